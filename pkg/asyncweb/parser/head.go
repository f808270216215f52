// Package parser implements the incremental request-head parser: bytes are
// appended line-by-line to an accumulator until a LF is found, the line is
// trimmed and dispatched, and the accumulator is cleared.
package parser

import (
	"strconv"
	"strings"

	"github.com/yourusername/asyncweb/pkg/asyncweb/request"
)

// MaxLineSize bounds a single accumulated header line (request line or
// header line) to an 8KB budget.
const MaxLineSize = 8192

// HeadParser consumes the request line and headers of one request,
// line-accumulating across arbitrarily-split Feed calls, so a line split
// across two reads parses identically to one delivered whole. It owns only
// the accumulator and the expect-continue flag.
type HeadParser struct {
	req    *request.Request
	router request.Router

	temp           []byte
	expectContinue bool
	sawRequestLine bool
	done           bool
}

// NewHeadParser creates a parser for req and installs it as the request's
// active parser.
func NewHeadParser(req *request.Request, router request.Router) *HeadParser {
	p := &HeadParser{req: req, router: router}
	req.SetActiveParser(p)
	return p
}

// Feed implements request.ActiveParser. It scans buf for LF-terminated
// lines, dispatching each to parseLine, and returns the number of bytes it
// consumed. It stops (without error) once parseLine signals the parser is
// done — handed off to a content parser, or the request reached
// StateReceived/StateResponse — leaving any remainder in buf for the new
// active parser.
func (p *HeadParser) Feed(buf []byte) (int, error) {
	consumed := 0
	for !p.done && len(buf) > 0 {
		nl := indexByte(buf, '\n')
		if nl < 0 {
			if len(p.temp)+len(buf) > MaxLineSize {
				return consumed, ErrRequestLineTooLarge
			}
			p.temp = append(p.temp, buf...)
			consumed += len(buf)
			return consumed, nil
		}

		line := buf[:nl]
		if len(p.temp)+len(line) > MaxLineSize {
			return consumed, ErrHeadersTooLarge
		}
		full := append(p.temp, line...)
		p.temp = nil
		consumed += nl + 1
		buf = buf[nl+1:]

		if err := p.parseLine(trimCR(full)); err != nil {
			return consumed, err
		}
	}
	return consumed, nil
}

func trimCR(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		return b[:n-1]
	}
	return b
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// parseLine dispatches one trimmed line according to the request's current
// state.
func (p *HeadParser) parseLine(line []byte) error {
	switch p.req.State {
	case request.StateStart:
		if len(line) == 0 {
			return nil
		}
		if err := p.parseRequestLine(string(line)); err != nil {
			p.req.State = request.StateError
			return err
		}
		p.router.Rewrite(p.req)
		h := p.router.AttachHandler(p.req)
		p.req.SetHandler(h)
		p.req.State = request.StateHeaders
		return nil

	case request.StateHeaders:
		if len(line) == 0 {
			return p.endOfHeaders()
		}
		return p.parseHeaderLine(string(line))

	default:
		return nil
	}
}

// parseRequestLine splits "METHOD URL HTTP/1.x" on the first two spaces.
// The version check is deliberately permissive: anything whose version
// tail is not exactly "HTTP/1.0" is treated as HTTP/1.1, including a
// malformed or unrecognized version string.
func (p *HeadParser) parseRequestLine(line string) error {
	sp1 := strings.IndexByte(line, ' ')
	if sp1 < 0 {
		return ErrInvalidRequestLine
	}
	rest := line[sp1+1:]
	sp2 := strings.IndexByte(rest, ' ')
	if sp2 < 0 {
		return ErrInvalidRequestLine
	}
	methodTok := line[:sp1]
	urlTok := rest[:sp2]
	versionTok := rest[sp2+1:]

	p.req.Method = request.ParseMethod(methodTok)
	p.req.SetURL(urlTok)
	if versionTok == "HTTP/1.0" {
		p.req.Version = 0
	} else {
		p.req.Version = 1
	}
	// Default keep-alive from version; a Connection header overrides below.
	p.req.KeepAlive = p.req.Version == 1
	return nil
}

// parseHeaderLine splits at the first ':' and dispatches recognized keys.
func (p *HeadParser) parseHeaderLine(line string) error {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return nil // malformed header line: original silently ignores
	}
	key := line[:colon]
	value := strings.TrimLeft(line[colon+1:], " \t")

	switch {
	case strings.EqualFold(key, "Host"):
		if p.req.Host != "" {
			return ErrDuplicateHost
		}
		p.req.Host = value

	case strings.EqualFold(key, "Content-Type"):
		p.req.ContentType = value

	case strings.EqualFold(key, "Content-Length"):
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || n < 0 {
			return ErrInvalidContentLength
		}
		p.req.ContentLength = n

	case strings.EqualFold(key, "Connection"):
		lower := strings.ToLower(value)
		if strings.Contains(lower, "keep-alive") {
			p.req.KeepAlive = true
		} else if strings.Contains(lower, "close") {
			p.req.KeepAlive = false
		}

	case strings.EqualFold(key, "Expect"):
		if strings.EqualFold(strings.TrimSpace(value), "100-continue") {
			p.expectContinue = true
			p.req.ExpectContinue = true
		}

	case strings.EqualFold(key, "Authorization"):
		sp := strings.IndexByte(value, ' ')
		if sp < 0 {
			p.req.AuthType = request.AuthOther
			p.req.AuthPayload = value
			return nil
		}
		scheme, payload := value[:sp], value[sp+1:]
		switch {
		case strings.EqualFold(scheme, "Basic"):
			p.req.AuthType = request.AuthBasic
		case strings.EqualFold(scheme, "Digest"):
			p.req.AuthType = request.AuthDigest
		default:
			p.req.AuthType = request.AuthOther
		}
		p.req.AuthPayload = payload

	default:
		if p.req.Handler() != nil && p.req.Handler().IsInterestingHeader(key) {
			_ = p.req.Headers.Add(key, value)
		}
	}
	return nil
}

// endOfHeaders runs on the blank line terminating the header block.
func (p *HeadParser) endOfHeaders() error {
	h := p.req.Handler()
	if h == nil {
		p.req.Send(nil)
		p.req.State = request.StateResponse
		p.done = true
		return nil
	}

	continueOK := h.CheckContinue(p.req, p.expectContinue)
	if !continueOK {
		// The handler is expected to have attached a response of its own
		// (e.g. a directory redirect) and left the request in StateResponse.
		p.done = true
		return nil
	}

	if p.req.ContentLength > 0 {
		NewBodyParser(p.req, p.req.ContentLength)
		p.req.State = request.StateBody
	} else {
		p.req.SetActiveParser(nil)
		p.req.State = request.StateReceived
	}
	p.done = true
	return nil
}
