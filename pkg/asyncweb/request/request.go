// Package request implements the per-connection Request object and its
// state machine: SETUP→START→HEADERS→BODY→RECEIVED→RESPONSE→REPLYING→
// (SETUP via recycle | FINALIZE), with an ERROR path reachable from any
// state. Field layout favors zero-copy parsing, and a recycle step
// (recycleClient) clears the per-request fields so a Request can be reused
// across keep-alive requests on one connection.
package request

import (
	"strings"
	"time"

	"github.com/yourusername/asyncweb/pkg/asyncweb/header"
	"github.com/yourusername/asyncweb/pkg/asyncweb/transport"
)

// QueryPair is one decoded key/value pair from the query string, retained
// in arrival order with duplicates allowed.
type QueryPair struct {
	Key   string
	Value string
}

// ActiveParser is implemented by whichever component currently owns raw
// byte consumption for this request: the head parser while in START/HEADERS,
// or a content parser while in BODY. Exactly one is active at a time,
// matching the data model's "exactly one of (parser, handler, response) is
// active per phase" invariant restricted to the parsing phases.
type ActiveParser interface {
	// Feed consumes as much of buf as it can use this call, returning how
	// many bytes it consumed. It may transition the owning Request's state;
	// once it no longer wants to be the active parser it must have already
	// done so (e.g. head parser hands off to a content parser or to
	// StateReceived) before returning.
	Feed(buf []byte) (consumed int, err error)
}

// Handler is a filter+dispatch object attached to a matching Request.
type Handler interface {
	// Filter is the user-supplied conjunction of predicates that must all
	// pass before CanHandle is even consulted.
	Filter(r *Request) bool
	// CanHandle reports whether this handler claims the request.
	CanHandle(r *Request) bool
	// CheckContinue is consulted once headers finish parsing. When it
	// returns true and continueHeader is set, the handler writes the
	// "100 Continue" interim response itself; the head parser does not.
	// Returning false (e.g. to issue a directory redirect) skips the switch
	// into BODY/RECEIVED; the handler is expected to have called r.Send with
	// a response of its own in that case.
	CheckContinue(r *Request, continueHeader bool) bool
	// IsInterestingHeader gates whether an otherwise-unrecognized header
	// name is retained on the Request.
	IsInterestingHeader(name string) bool
	// HandleRequest is invoked once the request reaches StateReceived; it
	// must call r.Send to attach a response before returning, or the
	// request transitions to StateError ("Ineffective handler").
	HandleRequest(r *Request)
}

// Router owns the ordered rewrite chain and handler list.
type Router interface {
	// Rewrite runs every registered rewrite whose filter accepts, each
	// allowed to mutate the request's decoded URL.
	Rewrite(r *Request)
	// AttachHandler scans registered handlers in insertion order and
	// returns the first whose Filter and CanHandle both pass, or the
	// catch-all handler if none match.
	AttachHandler(r *Request) Handler
}

// Responder is implemented by every response kind attached via Send. The
// scheduler and the Ack callback drive it through Pump; Request never
// inspects response internals directly.
type Responder interface {
	// Respond assembles the status line and begins the pump, called once
	// when the request transitions into StateResponse.
	Respond(r *Request)
	// Ack is called when the transport acknowledges length previously
	// written bytes; it decrements in-flight accounting and resumes the pump.
	Ack(length int, rtt time.Duration)
	// Pump drives one iteration of prepare/write/release, bounded by
	// budget bytes (the scheduler's per-tick send-share), stopping early if
	// the transport or heap threshold refuses further writes.
	Pump(budget int)
	// Sending reports whether the response still has bytes to emit.
	Sending() bool
	// Finished reports whether the response has reached END or FAILED.
	Finished() bool
}

// Request is the per-connection object that owns a transport.Conn for its
// lifetime and drives the request state machine.
type Request struct {
	conn transport.Conn

	// Fields surviving a keep-alive recycle.
	Version   int // 0 = HTTP/1.0, 1 = HTTP/1.1
	KeepAlive bool

	// Fields reset by Recycle.
	State          State
	Method         Method
	URLOriginal    string // undecoded, as sent on the wire
	URLDecoded     string // decoded path only
	QueryOriginal  string // undecoded query string, no leading '?'
	Query          []QueryPair
	Host           string
	ContentType    string
	ContentLength  int64 // -1 = unknown
	AuthType       AuthType
	AuthPayload    string
	Headers        header.Header
	ExpectContinue bool

	activeParser ActiveParser
	handler      Handler
	response     Responder
	router       Router
	bodySink     func(data []byte, index, total int64)

	idleTimeout time.Duration

	// RemoteIdent is a human-readable peer identity for logging.
	RemoteIdent string
}

// New creates a Request bound to conn for its lifetime, wiring the
// transport callbacks (onData/onAck/onError/onTimeout/onDisconnect) and
// arming the idle-receive timeout. router is stored on the Request; the
// head parser is installed separately (parser.NewHeadParser).
func New(conn transport.Conn, router Router, idleTimeout time.Duration) *Request {
	r := &Request{
		conn:        conn,
		router:      router,
		idleTimeout: idleTimeout,
		RemoteIdent: conn.RemoteAddr(),
	}
	r.ContentLength = -1
	conn.OnData(r.onData)
	conn.OnAck(r.onAck)
	conn.OnError(r.onError)
	conn.OnTimeout(r.onTimeout)
	conn.OnDisconnect(r.onDisconnect)
	conn.SetRxTimeout(idleTimeout)
	return r
}

// Conn returns the underlying transport, used by response implementations
// to read Space/CanSend/Write and by Handlers that need to write directly
// (the 100-continue literal, or an SSE hijack).
func (r *Request) Conn() transport.Conn { return r.conn }

// SetActiveParser installs the component now responsible for consuming
// incoming bytes. Called by parser.NewHeadParser (head parser) and
// parser.NewBodyParser (content parser for HEADERS→BODY); the parsers pass
// nil once no more bytes are wanted.
func (r *Request) SetActiveParser(p ActiveParser) { r.activeParser = p }

// Handler returns the currently attached handler, or nil.
func (r *Request) Handler() Handler { return r.handler }

// SetHandler attaches h as the request's handler (called by the router once
// AttachHandler has picked one).
func (r *Request) SetHandler(h Handler) { r.handler = h }

// Send attaches resp as the request's response and transitions to
// StateResponse.
func (r *Request) Send(resp Responder) {
	r.response = resp
	r.State = StateResponse
}

// Response returns the attached response, or nil.
func (r *Request) Response() Responder { return r.response }

// SetBodySink installs fn to receive body bytes as the content parser
// consumes them. It must be called before the request reaches StateBody; a
// handler typically calls it from CheckContinue or from an earlier
// header-driven hook.
func (r *Request) SetBodySink(fn func(data []byte, index, total int64)) {
	r.bodySink = fn
}

// BodySink returns the currently installed body sink, or nil.
func (r *Request) BodySink() func(data []byte, index, total int64) {
	return r.bodySink
}

// HasHeader reports whether a retained header with this name exists.
func (r *Request) HasHeader(name string) bool { return r.Headers.Has(name) }

// GetHeader returns the first retained value for name, or "".
func (r *Request) GetHeader(name string) string { return r.Headers.Get(name) }

// HasQuery reports whether key appears at least once in the decoded query.
func (r *Request) HasQuery(key string) bool {
	for _, p := range r.Query {
		if p.Key == key {
			return true
		}
	}
	return false
}

// GetQuery returns the first value for key in the decoded query, or "".
func (r *Request) GetQuery(key string) string {
	for _, p := range r.Query {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

// Redirect attaches the 302 response built by newResponse. url is not
// applied: no Location header is set here, so newResponse must add it.
func (r *Request) Redirect(url string, newResponse func(code int) Responder) {
	resp := newResponse(302)
	r.Send(resp)
}

// recycleClient resets SETUP-local fields while preserving Version and
// KeepAlive. The RX idle timeout is rearmed.
func (r *Request) recycleClient() {
	r.State = StateSetup
	r.Method = MethodUnknown
	r.URLOriginal = ""
	r.URLDecoded = ""
	r.QueryOriginal = ""
	r.Query = nil
	r.Host = ""
	r.ContentType = ""
	r.ContentLength = -1
	r.AuthType = AuthNone
	r.AuthPayload = ""
	r.ExpectContinue = false
	r.Headers.Reset()
	r.handler = nil
	r.response = nil
	r.activeParser = nil
	r.bodySink = nil
	r.conn.SetRxTimeout(r.idleTimeout)
}

// onData is the transport's DataHandler: it dispatches bytes to whichever
// parser is active. Bytes left over after the request reaches
// StateReceived are discarded (no pipelining).
func (r *Request) onData(buf []byte) {
	for {
		switch r.State {
		case StateSetup:
			// The head parser is installed through SetActiveParser
			// (parser.NewHeadParser) before any bytes are fed; if none has
			// been installed there is nothing to do with this buffer.
			if r.activeParser == nil || len(buf) == 0 {
				return
			}
			r.State = StateStart
			continue
		case StateStart, StateHeaders, StateBody:
			if r.activeParser == nil || len(buf) == 0 {
				return
			}
			n, err := r.activeParser.Feed(buf)
			if err != nil {
				r.State = StateError
				r.finalizeError()
				return
			}
			if n <= 0 {
				return
			}
			buf = buf[n:]
		case StateReceived:
			r.invokeHandler()
			if r.State == StateReceived {
				// Ineffective handler: never attached a response.
				r.State = StateError
				r.finalizeError()
			}
			return
		case StateResponse:
			r.conn.SetRxTimeout(0)
			if r.response != nil {
				r.response.Respond(r)
				r.State = StateReplying
			}
			r.Host = ""
			r.URLOriginal = ""
			return
		default:
			return
		}
	}
}

func (r *Request) invokeHandler() {
	if r.handler == nil {
		r.State = StateError
		return
	}
	r.handler.HandleRequest(r)
}

func (r *Request) onAck(length int, rtt time.Duration) {
	if r.response == nil {
		return
	}
	r.response.Ack(length, rtt)
	if r.response.Finished() && r.KeepAlive {
		r.recycleClient()
	}
}

func (r *Request) onError(err error) {
	r.State = StateError
	r.finalizeError()
}

func (r *Request) onTimeout(idle time.Duration) {
	r.State = StateError
	r.finalizeError()
}

func (r *Request) onDisconnect() {
	r.State = StateFinalize
}

func (r *Request) finalizeError() {
	r.conn.Close(false)
	r.State = StateFinalize
}

// MakeProgress is the scheduler's per-tick hook: start an attached response
// that has not begun yet (RESPONSE→REPLYING), advance the response pump
// while it has work and the transport can accept more, then recycle the
// connection for keep-alive or finalize it once the response is done.
func (r *Request) MakeProgress(budget int) (remove bool) {
	switch r.State {
	case StateResponse, StateReplying:
		if r.State == StateResponse && r.response != nil {
			r.conn.SetRxTimeout(0)
			r.response.Respond(r)
			r.State = StateReplying
		}
		if r.response != nil && r.response.Sending() && r.conn.CanSend() {
			r.response.Pump(budget)
		}
		if r.response != nil && r.response.Finished() {
			if r.KeepAlive {
				r.recycleClient()
				return false
			}
			r.State = StateFinalize
		}
	case StateError:
		r.finalizeError()
	}
	return r.State == StateFinalize
}

// SetURL stores the raw and decoded URL, splitting off and decoding the
// query string.
func (r *Request) SetURL(raw string) {
	r.URLOriginal = raw
	path := raw
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		path = raw[:i]
		r.QueryOriginal = raw[i+1:]
	}
	r.URLDecoded = URLDecode(path)
	r.Query = ParseQuery(r.QueryOriginal)
}
