// Package sse implements Server-Sent Events. A Source is a request.Handler
// bound to one URL; on a matching GET it attaches a 200 text/event-stream
// response and, once that response reaches its END state, hijacks the
// underlying transport into the Source's client registry: the
// ACK/DATA/timeout callbacks are detached from the request and the
// connection is migrated to live independently of it.
package sse

import (
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/yourusername/asyncweb/pkg/asyncweb/request"
	"github.com/yourusername/asyncweb/pkg/asyncweb/response"
	"github.com/yourusername/asyncweb/pkg/asyncweb/transport"
)

// Client is one hijacked connection registered with a Source. It owns the
// raw transport after hijack; the Request that created it is discarded.
type Client struct {
	conn   transport.Conn
	source *Source
	lastID uint64
}

// LastEventID is the value of the request's Last-Event-ID header at
// connect time, or 0 if absent.
func (c *Client) LastEventID() uint64 { return c.lastID }

// Close closes the underlying connection and removes it from the
// registry.
func (c *Client) Close() {
	c.conn.Close(false)
}

func (c *Client) write(frame []byte) {
	if !c.conn.CanSend() || c.conn.Space() < len(frame) {
		// Backpressure policy: drop silently, no per-client queue.
		return
	}
	c.conn.Write(frame)
}

func (c *Client) onDisconnect() {
	c.source.removeClient(c)
}

// Source is a GET-only handler bound to one URL. OnConnect, if set, runs
// while the new client is already visible in the registry, so the
// iteration Send uses must tolerate in-flight additions from a re-entrant
// Send call inside OnConnect.
type Source struct {
	URL       string
	OnConnect func(c *Client)

	mu      sync.Mutex
	clients []*Client
}

var _ request.Handler = (*Source)(nil)

// New creates a Source bound to url.
func New(url string) *Source {
	return &Source{URL: url}
}

func (s *Source) Filter(r *request.Request) bool { return true }

// CanHandle implements request.Handler: GET method and an exact URL
// match.
func (s *Source) CanHandle(r *request.Request) bool {
	return r.Method == request.MethodGET && r.URLDecoded == s.URL
}

func (s *Source) CheckContinue(r *request.Request, continueHeader bool) bool {
	if continueHeader {
		r.Conn().Write([]byte("HTTP/1.1 100 Continue\r\n\r\n"))
	}
	return true
}

// IsInterestingHeader implements request.Handler, requesting only
// "Last-Event-ID".
func (s *Source) IsInterestingHeader(name string) bool {
	return strings.EqualFold(name, "Last-Event-ID")
}

// HandleRequest implements request.Handler: attaches a 200
// text/event-stream response and arranges for the hijack to run once that
// response finishes sending its headers.
func (s *Source) HandleRequest(r *request.Request) {
	var lastID uint64
	if v := r.GetHeader("Last-Event-ID"); v != "" {
		lastID, _ = strconv.ParseUint(v, 10, 64)
	}

	resp := response.NewResponse(200, nil, false)
	resp.Headers.Set("Content-Type", "text/event-stream")
	resp.Headers.Set("Cache-Control", "no-cache")
	resp.Headers.Set("Connection", "keep-alive")
	conn := r.Conn()
	resp.OnComplete(func() {
		s.hijack(conn, lastID)
	})
	r.Send(resp)
}

// hijack detaches conn from the Request's callbacks and registers a new
// Client, invoking OnConnect only after the client is already visible to
// Send.
func (s *Source) hijack(conn transport.Conn, lastID uint64) {
	conn.OnData(nil)
	conn.OnAck(nil)
	conn.OnError(nil)
	conn.OnTimeout(nil)
	conn.SetRxTimeout(0)

	c := &Client{conn: conn, source: s, lastID: lastID}
	conn.OnDisconnect(c.onDisconnect)

	s.mu.Lock()
	s.clients = append(s.clients, c)
	s.mu.Unlock()

	log.Debug().Str("url", s.URL).Str("remote", conn.RemoteAddr()).Msg("sse: client connected")
	if s.OnConnect != nil {
		s.OnConnect(c)
	}
}

func (s *Source) removeClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cc := range s.clients {
		if cc == c {
			s.clients = append(s.clients[:i], s.clients[i+1:]...)
			return
		}
	}
}

// Count reports the number of currently registered clients.
func (s *Source) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Send formats an SSE frame and writes it to every registered client.
// Iteration is done over a snapshot so a client added concurrently via
// OnConnect (re-entrant Send) is not visited twice nor missed in a way
// that corrupts the slice.
func (s *Source) Send(message, event string, id, reconnect uint64) {
	frame := Frame(message, event, id, reconnect)

	s.mu.Lock()
	targets := make([]*Client, len(s.clients))
	copy(targets, s.clients)
	s.mu.Unlock()

	for _, c := range targets {
		c.write(frame)
	}
}

// Close closes every registered client.
func (s *Source) Close() {
	s.mu.Lock()
	targets := make([]*Client, len(s.clients))
	copy(targets, s.clients)
	s.mu.Unlock()
	for _, c := range targets {
		c.Close()
	}
}

// Frame formats one SSE message: an optional "retry:" line (only if
// reconnect != 0), an optional "id:" line (only if id != 0), an optional
// "event:" line (only if event != ""), then one "data:" line per input
// line (split on \r, \n, or \r\n), terminated by a blank line.
func Frame(message, event string, id, reconnect uint64) []byte {
	var b strings.Builder
	if reconnect != 0 {
		b.WriteString("retry: ")
		b.WriteString(strconv.FormatUint(reconnect, 10))
		b.WriteString("\r\n")
	}
	if id != 0 {
		b.WriteString("id: ")
		b.WriteString(strconv.FormatUint(id, 10))
		b.WriteString("\r\n")
	}
	if event != "" {
		b.WriteString("event: ")
		b.WriteString(event)
		b.WriteString("\r\n")
	}
	lines := splitLines(message)
	for _, line := range lines {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// splitLines splits s on any of \r\n, \r, or \n.
func splitLines(s string) []string {
	if s == "" {
		return []string{""}
	}
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n':
			lines = append(lines, s[start:i])
			start = i + 1
		case '\r':
			lines = append(lines, s[start:i])
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}
