// Package socket tunes the listening socket and each accepted connection
// for a single-core, memory-constrained server: small buffers (the whole
// point is bounding memory), Nagle disabled (request/response framing is
// latency sensitive, not throughput sensitive), and keepalive so a
// half-open peer is reclaimed instead of pinning a connection slot
// forever.
//
// Linux-specific options (tuning_linux.go) go through golang.org/x/sys/unix
// rather than the standard library's syscall package, keeping one socket
// options vocabulary alongside the rest of the module's use of x/sys.
package socket

import (
	"net"
)

// Config controls the options Apply and ApplyListener install. Zero value
// fields are left at the system default.
type Config struct {
	// NoDelay disables Nagle's algorithm (TCP_NODELAY).
	NoDelay bool

	// RecvBuffer and SendBuffer set SO_RCVBUF/SO_SNDBUF. Keep these small
	// on a memory-constrained target; a single connection's buffers are
	// taken out of the same heap the request/response pipeline budgets
	// against.
	RecvBuffer int
	SendBuffer int

	// KeepAlive enables SO_KEEPALIVE so a peer that vanishes without a
	// FIN (a dead microcontroller client, a cut Wi-Fi link) is eventually
	// reclaimed rather than occupying a connection slot forever.
	KeepAlive bool

	// KeepAliveIdle, KeepAliveInterval, KeepAliveCount fine-tune the
	// keepalive probe schedule on platforms that support it (Linux).
	// Zero means "use the platform default".
	KeepAliveIdle     int
	KeepAliveInterval int
	KeepAliveCount    int
}

// DefaultConfig returns the tuning used for an embedded/IoT-class target:
// small buffers, Nagle off, keepalive on with an aggressive probe
// schedule so a dead client is reclaimed in about a minute (30s idle plus
// three probes 10s apart).
func DefaultConfig() Config {
	return Config{
		NoDelay:           true,
		RecvBuffer:        8 * 1024,
		SendBuffer:        8 * 1024,
		KeepAlive:         true,
		KeepAliveIdle:     30,
		KeepAliveInterval: 10,
		KeepAliveCount:    3,
	}
}

// Apply tunes an accepted connection. Non-TCP connections (used in tests,
// or a Unix socket listener) are left untouched.
func Apply(conn net.Conn, cfg Config) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	if cfg.NoDelay {
		if err := tcpConn.SetNoDelay(true); err != nil {
			return err
		}
	}
	if cfg.RecvBuffer > 0 {
		_ = tcpConn.SetReadBuffer(cfg.RecvBuffer)
	}
	if cfg.SendBuffer > 0 {
		_ = tcpConn.SetWriteBuffer(cfg.SendBuffer)
	}
	if cfg.KeepAlive {
		_ = tcpConn.SetKeepAlive(true)
	}

	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return err
	}
	return applyPlatformOptions(rawConn, cfg)
}

// ApplyListener tunes listener-wide options that must be set before
// Accept is called.
func ApplyListener(listener net.Listener, cfg Config) error {
	tcpListener, ok := listener.(*net.TCPListener)
	if !ok {
		return nil
	}
	rawConn, err := tcpListener.SyscallConn()
	if err != nil {
		return err
	}
	return applyListenerPlatformOptions(rawConn, cfg)
}
