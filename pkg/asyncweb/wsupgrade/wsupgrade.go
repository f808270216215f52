// Package wsupgrade performs the RFC 6455 opening handshake and hands the
// connection off to gorilla/websocket's frame-level Conn. The handshake
// runs as a request.Handler over the cooperative transport.Conn surface,
// and the upgrade completes by hijacking the connection the same way
// sse.Source does, rather than by reaching into an http.ResponseWriter.
//
// Frame-level semantics (ping/pong, fragmentation, per-message compression)
// are out of scope here; Upgrader only performs the handshake and returns
// the resulting *websocket.Conn to OnUpgrade for the caller to drive.
package wsupgrade

import (
	"net"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/asyncweb/pkg/asyncweb/request"
	"github.com/yourusername/asyncweb/pkg/asyncweb/response"
	"github.com/yourusername/asyncweb/pkg/asyncweb/transport"
)

// hijackable is implemented by transport.Conn values that can be detached
// from their owning read loop and handed to a frame-level library.
// *transport.NetConn is the only implementation today; with a transport
// that doesn't implement it, hijack logs an error and closes the
// connection after the 101 response has been sent.
type hijackable interface {
	Hijack() net.Conn
}

// Upgrader matches a path and performs the WebSocket handshake.
type Upgrader struct {
	Path string

	// CheckOrigin returns true if the request's Origin header is
	// acceptable. If nil, origin validation is skipped; callers serving
	// untrusted clients must set this.
	CheckOrigin func(r *request.Request) bool

	Subprotocols []string

	ReadBufferSize  int
	WriteBufferSize int

	// OnUpgrade runs once the handshake completes and the connection has
	// been hijacked into a frame-level websocket.Conn. It owns the
	// connection from this point on (typically spawning a goroutine to
	// drive it, since transport.Conn's cooperative model no longer
	// applies once hijacked).
	OnUpgrade func(conn *websocket.Conn, subprotocol string)
}

var _ request.Handler = (*Upgrader)(nil)

func (u *Upgrader) Filter(r *request.Request) bool { return true }

// CanHandle implements request.Handler: GET, exact path match, and the
// three required upgrade headers present.
func (u *Upgrader) CanHandle(r *request.Request) bool {
	if r.Method != request.MethodGET || r.URLDecoded != u.Path {
		return false
	}
	return hasToken(r.GetHeader("Connection"), "upgrade") &&
		hasToken(r.GetHeader("Upgrade"), "websocket") &&
		r.GetHeader("Sec-WebSocket-Key") != ""
}

func (u *Upgrader) CheckContinue(r *request.Request, continueHeader bool) bool {
	if continueHeader {
		r.Conn().Write([]byte("HTTP/1.1 100 Continue\r\n\r\n"))
	}
	return true
}

func (u *Upgrader) IsInterestingHeader(name string) bool {
	switch strings.ToLower(name) {
	case "connection", "upgrade", "sec-websocket-key", "sec-websocket-version",
		"sec-websocket-protocol", "origin":
		return true
	}
	return false
}

// HandleRequest implements request.Handler: version check, origin check,
// subprotocol selection, then the 101 response. The 101 response is sent
// through the normal Response pump and the hijack happens in the
// response's OnComplete hook, the same mechanism sse.Source uses to
// migrate a connection out of the request state machine.
func (u *Upgrader) HandleRequest(r *request.Request) {
	if r.GetHeader("Sec-WebSocket-Version") != "13" {
		resp := response.NewResponse(400, nil, false)
		resp.Headers.Set("Sec-WebSocket-Version", "13")
		r.Send(resp)
		return
	}

	if u.CheckOrigin != nil && !u.CheckOrigin(r) {
		r.Send(response.NewResponse(403, nil, false))
		return
	}

	var subprotocol string
	if len(u.Subprotocols) > 0 {
		subprotocol = selectSubprotocol(headerValues(r.GetHeader("Sec-WebSocket-Protocol")), u.Subprotocols)
	}

	wsKey := r.GetHeader("Sec-WebSocket-Key")
	resp := response.NewResponse(101, nil, false)
	resp.Headers.Set("Upgrade", "websocket")
	resp.Headers.Set("Connection", "Upgrade")
	resp.Headers.Set("Sec-WebSocket-Accept", websocket.ComputeAcceptKey(wsKey))
	if subprotocol != "" {
		resp.Headers.Set("Sec-WebSocket-Protocol", subprotocol)
	}

	conn := r.Conn()
	resp.OnComplete(func() {
		u.hijack(conn, subprotocol)
	})
	r.Send(resp)
}

func (u *Upgrader) hijack(conn transport.Conn, subprotocol string) {
	hj, ok := conn.(hijackable)
	if !ok {
		log.Error().Msg("wsupgrade: transport does not support hijack")
		conn.Close(true)
		return
	}
	raw := hj.Hijack()

	readSize := u.ReadBufferSize
	if readSize == 0 {
		readSize = 4096
	}
	writeSize := u.WriteBufferSize
	if writeSize == 0 {
		writeSize = 4096
	}

	wsConn := websocket.NewConn(raw, true, readSize, writeSize)
	log.Debug().Str("path", u.Path).Str("remote", conn.RemoteAddr()).Msg("wsupgrade: handshake complete")
	if u.OnUpgrade != nil {
		u.OnUpgrade(wsConn, subprotocol)
	}
}

func hasToken(header, value string) bool {
	for _, tok := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(tok), value) {
			return true
		}
	}
	return false
}

func headerValues(header string) []string {
	var out []string
	for _, tok := range strings.Split(header, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func selectSubprotocol(client, server []string) string {
	for _, c := range client {
		for _, s := range server {
			if c == s {
				return c
			}
		}
	}
	return ""
}
