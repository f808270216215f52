// Package transport defines the callback-driven connection abstraction that
// the rest of asyncweb is built on. A Conn is assumed single-threaded and
// non-blocking: its owner is driven entirely by the On* callbacks and must
// never call a blocking read or write, unlike net.Conn's blocking
// Read/Write.
package transport

import "time"

// DataHandler is invoked when bytes arrive on the connection. The callee
// does not own buf beyond the call; it must copy anything it needs to keep.
type DataHandler func(buf []byte)

// AckHandler is invoked when the peer has acknowledged len bytes previously
// handed to Write. time is how long those bytes were in flight.
type AckHandler func(length int, rtt time.Duration)

// ErrorHandler is invoked on a transport-level error (e.g. RST).
type ErrorHandler func(err error)

// TimeoutHandler is invoked when a configured idle or ack timeout fires.
type TimeoutHandler func(idle time.Duration)

// DisconnectHandler is invoked once the connection has fully closed. No
// further callbacks fire after this one.
type DisconnectHandler func()

// Conn is the transport adapter surface a Request is built on. Implementations
// must be callback-driven and must never block the caller of Write, Space,
// or Close for an unbounded time.
type Conn interface {
	// OnData registers the handler invoked when bytes arrive. Passing nil
	// detaches any previously registered handler (used by SSE/WebSocket
	// upgrade to disconnect the request's bookkeeping from the raw socket).
	OnData(fn DataHandler)
	OnAck(fn AckHandler)
	OnError(fn ErrorHandler)
	OnTimeout(fn TimeoutHandler)
	OnDisconnect(fn DisconnectHandler)

	// Space reports the number of bytes currently writable without blocking,
	// a proxy for the kernel socket send buffer's free space.
	Space() int

	// Write enqueues data for transmission and returns the number of bytes
	// accepted (which may be less than len(data) if Space() is insufficient);
	// it never blocks.
	Write(data []byte) (int, error)

	// CanSend reports whether the connection is currently able to accept
	// any bytes at all (false during TLS handshake stalls, backpressure, or
	// after the peer has gone away).
	CanSend() bool

	// Close begins an orderly close. If force is true the connection is
	// torn down immediately without waiting for in-flight data to drain.
	Close(force bool)

	// SetRxTimeout arms (or, with d==0, disarms) the idle-receive timeout:
	// OnTimeout fires once d passes with no bytes received (NetConn restarts
	// its timer on every read).
	SetRxTimeout(d time.Duration)

	// RemoteAddr returns the peer's address for logging.
	RemoteAddr() string
}
