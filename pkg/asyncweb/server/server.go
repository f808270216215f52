package server

import (
	"crypto/tls"
	"net"

	"github.com/rs/zerolog/log"

	"github.com/yourusername/asyncweb/pkg/asyncweb/bufpool"
	"github.com/yourusername/asyncweb/pkg/asyncweb/parser"
	"github.com/yourusername/asyncweb/pkg/asyncweb/request"
	"github.com/yourusername/asyncweb/pkg/asyncweb/scheduler"
	"github.com/yourusername/asyncweb/pkg/asyncweb/socket"
	"github.com/yourusername/asyncweb/pkg/asyncweb/transport"
)

// Server owns the listener, the buffer pool, the scheduler, and the
// router, tying the pieces the rest of this module describes into the one
// object an embedder constructs.
type Server struct {
	Config Config
	Router *Router
	Stats  Stats

	pool       *bufpool.Pool
	sched      *scheduler.Scheduler
	listener   net.Listener
	tlsConfig  *tls.Config
	stop       chan struct{}
	tickerStop chan struct{}
}

// New constructs a Server bound to cfg and router. The scheduler is armed
// and disarmed automatically as connections arrive and drain; Run starts
// its own ticker only while the ring is non-empty, so an idle server
// burns no CPU on a polling loop.
func New(cfg Config, router *Router) *Server {
	s := &Server{
		Config: cfg,
		Router: router,
		pool:   bufpool.New(scheduler.SchedMinHeap),
		stop:   make(chan struct{}),
	}
	s.sched = scheduler.New(s.pool, s.armTicker, s.disarmTicker)
	return s
}

// WithTLS installs a TLS config; ListenAndServe will wrap its listener
// with tls.NewListener when set.
func (s *Server) WithTLS(cfg *tls.Config) *Server {
	s.tlsConfig = cfg
	return s
}

func (s *Server) armTicker() {
	if s.tickerStop != nil {
		return
	}
	s.tickerStop = make(chan struct{})
	go s.sched.Run(s.tickerStop)
}

func (s *Server) disarmTicker() {
	if s.tickerStop == nil {
		return
	}
	close(s.tickerStop)
	s.tickerStop = nil
}

// ListenAndServe opens the configured address and accepts connections
// until Close is called, blocking the calling goroutine. Binding
// (net.Listen) and serving (Serve, below) are separate steps so a caller that needs
// to know the bound address before Accept starts running — e.g. a test
// using Config.Addr ":0" — can do its own net.Listen and call Serve
// directly.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.Config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve tunes ln, wraps it in TLS if WithTLS was called, and accepts
// connections from it until Close is called.
func (s *Server) Serve(ln net.Listener) error {
	if err := socket.ApplyListener(ln, socket.DefaultConfig()); err != nil {
		log.Warn().Err(err).Msg("server: listener tuning failed, continuing with defaults")
	}
	if s.tlsConfig != nil {
		ln = tls.NewListener(ln, s.tlsConfig)
	}
	s.listener = ln
	return s.serve()
}

func (s *Server) serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stop:
				return nil
			default:
				return err
			}
		}
		s.Stats.TotalConnections.Add(1)
		s.Stats.ActiveConnections.Add(1)
		if s.Config.MaxConcurrentConnections > 0 &&
			s.Stats.ActiveConnections.Load() > int64(s.Config.MaxConcurrentConnections) {
			s.Stats.ActiveConnections.Add(-1)
			conn.Close()
			continue
		}
		go s.acceptConn(conn)
	}
}

func (s *Server) acceptConn(rawConn net.Conn) {
	if err := socket.Apply(rawConn, socket.DefaultConfig()); err != nil {
		log.Debug().Err(err).Msg("server: connection tuning failed")
	}

	nc := transport.NewNetConn(rawConn)
	nc.OnDisconnect(func() {
		s.Stats.ActiveConnections.Add(-1)
	})

	req := request.New(nc, s.Router, s.Config.IdleTimeout)
	parser.NewHeadParser(req, s.Router)
	s.sched.Add(req)
	s.Stats.TotalRequests.Add(1)
}

// Close stops accepting new connections. In-flight requests continue to
// be driven by the scheduler until they finish or idle out.
func (s *Server) Close() error {
	close(s.stop)
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Addr returns the listener's bound address, useful when Config.Addr was
// ":0" and the caller needs to learn the actual port. Returns nil before
// ListenAndServe has bound a listener.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Scheduler exposes the underlying scheduler, e.g. for a caller that wants
// to enroll its own Progressable (a background SSE heartbeat, for
// instance) on the same cooperative ring.
func (s *Server) Scheduler() *scheduler.Scheduler {
	return s.sched
}

// Pool returns the server's shared buffer pool. Handlers building a
// response should call resp.WithPool(srv.Pool()) so every in-flight
// response is gated against the same heap-pressure signal the scheduler
// itself checks, instead of each response tracking its own.
func (s *Server) Pool() *bufpool.Pool {
	return s.pool
}
