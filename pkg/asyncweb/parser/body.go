// BodyParser consumes a declared-length, non-chunked request body. It does
// not buffer the body in memory: handlers that need the payload install
// their own sink via request.Request before the body starts arriving; this
// parser's job is only to track how many bytes remain and transition to
// StateReceived once they have all been delivered.
package parser

import "github.com/yourusername/asyncweb/pkg/asyncweb/request"

// BodySink receives body bytes as they arrive. A handler installs one via
// request.Request.SetBodySink before headers finish parsing; nil means
// body bytes are simply discarded, for handlers that only care that the
// body was fully received (e.g. a POST whose fields arrived via query
// string).
type BodySink func(data []byte, index, total int64)

// BodyParser tracks how much of a declared-length body remains.
type BodyParser struct {
	req       *request.Request
	remaining int64
	total     int64
	sink      BodySink
}

// NewBodyParser creates a parser expecting length bytes of body and
// installs it as req's active parser, for the HEADERS→BODY transition.
func NewBodyParser(req *request.Request, length int64) *BodyParser {
	p := &BodyParser{req: req, remaining: length, total: length, sink: req.BodySink()}
	req.SetActiveParser(p)
	return p
}

// Feed implements request.ActiveParser: it forwards up to p.remaining bytes
// of buf to the sink (if any), decrementing remaining, and transitions the
// request to StateReceived once the whole declared length has arrived.
func (p *BodyParser) Feed(buf []byte) (int, error) {
	n := int64(len(buf))
	if n > p.remaining {
		n = p.remaining
	}
	if p.sink != nil && n > 0 {
		p.sink(buf[:n], p.total-p.remaining, p.total)
	}
	p.remaining -= n
	if p.remaining == 0 {
		p.req.SetActiveParser(nil)
		p.req.State = request.StateReceived
	}
	return int(n), nil
}
