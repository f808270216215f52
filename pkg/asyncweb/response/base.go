// Package response implements the outbound half of a request: a single
// shared pump driving a small state machine over a tagged-variant Content
// source, so every response kind (bytes, file, stream, callback, chunked)
// is just data fed through one STATUS/HEADERS/CONTENT/WAIT_ACK/END pump
// instead of a type-specific send routine.
package response

import (
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/asyncweb/pkg/asyncweb/bufpool"
	"github.com/yourusername/asyncweb/pkg/asyncweb/header"
	"github.com/yourusername/asyncweb/pkg/asyncweb/request"
	"github.com/yourusername/asyncweb/pkg/asyncweb/transport"
)

// fillSize is the buffer size requested from the pool per Content.Fill call.
const fillSize = bufpool.Size4KB

// Response is the shared Responder implementation for every status code
// and content kind this server emits. Construct one with NewResponse (or
// NewJSONResponse / NewPrettyJSONResponse in json.go) and hand it to
// request.Request.Send.
type Response struct {
	Code    int
	Headers header.Header
	Content Content
	Chunked bool

	pool *bufpool.Pool

	conn  transport.Conn
	state State

	statusLine  []byte
	headerBytes []byte
	pending     []byte
	pendingBuf  []byte // non-nil when pending was pool-allocated and must be released
	contentDone bool
	inFlight    int // bytes handed to conn.Write but not yet acknowledged

	onComplete func()
}

// OnComplete registers fn to run exactly once, the moment the response
// reaches StateEnd (not StateFailed). This is the hook an SSE endpoint
// uses to hijack the connection right after the response headers have
// finished sending. Must be called before Respond.
func (r *Response) OnComplete(fn func()) {
	r.onComplete = fn
}

var _ request.Responder = (*Response)(nil)

// NewResponse builds a response of the given status code serving content
// (nil for a headers-only reply). chunked requests Transfer-Encoding:
// chunked framing. For an HTTP/1.0 request Respond turns a chunked
// response into a bodyless 505 (see ErrChunkedRequiresHTTP11).
func NewResponse(code int, content Content, chunked bool) *Response {
	r := &Response{
		Code:    code,
		Headers: header.Header{},
		Content: content,
		Chunked: chunked,
		pool:    bufpool.New(0),
	}
	return r
}

// WithPool overrides the buffer pool used to prepare content chunks,
// letting a server share one Pool across all in-flight responses.
func (r *Response) WithPool(p *bufpool.Pool) *Response {
	r.pool = p
	return r
}

// Respond implements request.Responder. It finalizes headers against the
// request (Connection, Content-Length/Transfer-Encoding, Content-Type) and
// assembles the status line and header block.
func (r *Response) Respond(req *request.Request) {
	r.conn = req.Conn()

	if r.Chunked && req.Version == 0 {
		// HTTP/1.0 has no chunked encoding; force 505 rather than buffer an
		// arbitrarily large body to compute a real Content-Length.
		r.Code = 505
		r.Chunked = false
		r.Content = nil
	}

	if ct := r.Content; ct != nil {
		if !r.Headers.Has("Content-Type") {
			if ctype := ct.ContentType(); ctype != "" {
				r.Headers.Set("Content-Type", ctype)
			}
		}
	}

	length := int64(-1)
	if r.Content != nil {
		length = r.Content.Len()
	} else {
		length = 0
	}

	switch {
	case r.Chunked:
		r.Headers.Set("Transfer-Encoding", "chunked")
	case length >= 0:
		r.Headers.Set("Content-Length", strconv.FormatInt(length, 10))
	default:
		// Unknown length, not chunked: the only way to mark the end of
		// body is closing the connection.
		req.KeepAlive = false
	}

	if !r.Headers.Has("Connection") {
		if req.KeepAlive {
			r.Headers.Set("Connection", "keep-alive")
		} else {
			r.Headers.Set("Connection", "close")
		}
	}

	r.statusLine = []byte("HTTP/1.1 " + strconv.Itoa(r.Code) + " " + StatusText(r.Code) + "\r\n")
	if req.Version == 0 {
		r.statusLine = []byte("HTTP/1.0 " + strconv.Itoa(r.Code) + " " + StatusText(r.Code) + "\r\n")
	}

	var b strings.Builder
	r.Headers.VisitAll(func(name, value string) bool {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
		return true
	})
	b.WriteString("\r\n")
	r.headerBytes = []byte(b.String())

	r.state = StateStatus
}

// Sending implements request.Responder.
func (r *Response) Sending() bool {
	return r.state != StateSetup && r.state != StateEnd && r.state != StateFailed
}

// Finished implements request.Responder.
func (r *Response) Finished() bool {
	return r.state == StateEnd || r.state == StateFailed
}

// Ack implements request.Responder. length bytes, previously handed to
// conn.Write, have now been acknowledged by the transport and are no longer
// in flight. A WAIT_ACK pause (entered either for heap pressure or to wait
// out the last in-flight bytes before StateEnd) is retried on every ack,
// since an ack means buffers may now be reclaimable and in_flight may have
// reached zero.
func (r *Response) Ack(length int, rtt time.Duration) {
	if length > 0 {
		r.inFlight -= length
		if r.inFlight < 0 {
			r.inFlight = 0
		}
	}
	if r.state != StateWaitAck {
		return
	}
	r.state = StateContent
}

// Pump implements request.Responder, writing up to budget bytes (and no
// more than the connection currently has space for) before returning.
func (r *Response) Pump(budget int) {
	for budget > 0 && r.conn.CanSend() && r.conn.Space() > 0 {
		switch r.state {
		case StateStatus:
			n := r.drain(&r.statusLine, budget)
			budget -= n
			if len(r.statusLine) == 0 {
				r.state = StateHeaders
			}

		case StateHeaders:
			n := r.drain(&r.headerBytes, budget)
			budget -= n
			if len(r.headerBytes) == 0 {
				r.state = StateContent
			}

		case StateContent:
			// Any outstanding pending bytes (including a chunked final
			// chunk queued by finishContent) must drain before finishContent
			// runs again, or a chunked response would spin forever between
			// "done, but pending non-empty" and "append final chunk".
			if len(r.pending) != 0 {
				n := r.drainPending(budget)
				budget -= n
				continue
			}
			if r.Content == nil || r.contentDone {
				r.finishContent()
				continue
			}
			if r.pool.BelowThreshold() {
				r.state = StateWaitAck
				return
			}
			if !r.fillContent() {
				r.finishContent()
				continue
			}

		case StateWaitAck:
			return

		case StateEnd, StateFailed:
			return
		}
	}
}

// drain writes as much of (*buf) as budget and connection space allow,
// advancing (*buf) past what was written, and returns the byte count
// written.
func (r *Response) drain(buf *[]byte, budget int) int {
	n := len(*buf)
	if n > budget {
		n = budget
	}
	if space := r.conn.Space(); n > space {
		n = space
	}
	if n <= 0 {
		return 0
	}
	written, err := r.conn.Write((*buf)[:n])
	if err != nil {
		r.state = StateFailed
		return written
	}
	*buf = (*buf)[written:]
	r.inFlight += written
	return written
}

func (r *Response) drainPending(budget int) int {
	n := r.drain(&r.pending, budget)
	if len(r.pending) == 0 && r.pendingBuf != nil {
		r.pool.Put(r.pendingBuf)
		r.pendingBuf = nil
	}
	return n
}

// fillContent requests the next chunk of content from the pool, framing it
// for chunked transfer if requested, and reports whether any content
// remains to send.
func (r *Response) fillContent() bool {
	buf := r.pool.Get(fillSize)
	n := r.Content.Fill(buf)
	if n == 0 {
		r.pool.Put(buf)
		return false
	}
	if r.Chunked {
		r.pending = frameChunk(buf[:n])
		r.pool.Put(buf)
		r.pendingBuf = nil
	} else {
		r.pending = buf[:n]
		r.pendingBuf = buf
	}
	return true
}

func (r *Response) finishContent() {
	if r.Chunked && !r.contentDone {
		r.pending = []byte(finalChunk)
		r.contentDone = true
		return
	}
	r.contentDone = true
	if len(r.pending) != 0 {
		return
	}
	if r.inFlight != 0 {
		r.state = StateWaitAck
		return
	}
	r.state = StateEnd
	if r.onComplete != nil {
		cb := r.onComplete
		r.onComplete = nil
		cb()
	}
}
