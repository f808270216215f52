package server

import (
	"github.com/yourusername/asyncweb/pkg/asyncweb/request"
	"github.com/yourusername/asyncweb/pkg/asyncweb/response"
)

// PathHandler matches a method mask and URL prefix, optionally redirecting
// a directory request missing its trailing slash. It is embedded by the
// static file handler and usable directly as a callback-style handler.
type PathHandler struct {
	// Path is the stored prefix; callers should ensure it starts and ends
	// with '/' (NewPathHandler normalizes it).
	Path   string
	Method request.Method

	// OnRequest is invoked once the request reaches StateReceived.
	// Returning with no response sent (leaving the request unresponded)
	// moves the request to StateError and closes the connection without a
	// response. With OnRequest nil, HandleRequest sends a 500.
	OnRequest func(r *request.Request)

	// InterestingHeaders gates which otherwise-unrecognized headers the
	// head parser retains on the request.
	InterestingHeaders []string

	// Filters is a conjunction of user predicates, all of which must pass
	// before CanHandle is consulted.
	Filters []func(r *request.Request) bool
}

var _ request.Handler = (*PathHandler)(nil)

// NewPathHandler normalizes path to start and end with '/'.
func NewPathHandler(path string, method request.Method) *PathHandler {
	if len(path) == 0 || path[0] != '/' {
		path = "/" + path
	}
	if path[len(path)-1] != '/' {
		path = path + "/"
	}
	return &PathHandler{Path: path, Method: method}
}

// Filter implements request.Handler: the conjunction of all registered
// predicates.
func (h *PathHandler) Filter(r *request.Request) bool {
	for _, f := range h.Filters {
		if !f(r) {
			return false
		}
	}
	return true
}

// CanHandle implements request.Handler: the method must be in the mask,
// and the URL either starts with Path or is exactly Path missing its
// trailing slash (the directory-redirect case).
func (h *PathHandler) CanHandle(r *request.Request) bool {
	if h.Method&r.Method == 0 {
		return false
	}
	if len(r.URLDecoded) >= len(h.Path) && r.URLDecoded[:len(h.Path)] == h.Path {
		return true
	}
	if len(r.URLDecoded)+1 == len(h.Path) && h.Path[:len(r.URLDecoded)] == r.URLDecoded {
		return true
	}
	return false
}

// CheckContinue implements request.Handler: a directory-without-slash
// match triggers a 302 redirect to Path and refuses to continue into
// BODY/RECEIVED.
func (h *PathHandler) CheckContinue(r *request.Request, continueHeader bool) bool {
	if len(r.URLDecoded)+1 == len(h.Path) {
		RedirectDir(r)
		return false
	}
	if continueHeader {
		r.Conn().Write([]byte("HTTP/1.1 100 Continue\r\n\r\n"))
	}
	return true
}

// IsInterestingHeader implements request.Handler.
func (h *PathHandler) IsInterestingHeader(name string) bool {
	for _, want := range h.InterestingHeaders {
		if eqFold(want, name) {
			return true
		}
	}
	return false
}

// HandleRequest implements request.Handler.
func (h *PathHandler) HandleRequest(r *request.Request) {
	if h.OnRequest != nil {
		h.OnRequest(r)
		return
	}
	r.Send(response.NewResponse(500, nil, false))
}

func eqFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// RedirectDir sends a 302 to the request's URL with a trailing slash
// appended, preserving the original query string.
func RedirectDir(r *request.Request) {
	loc := r.URLDecoded + "/"
	if r.QueryOriginal != "" {
		loc += "?" + r.QueryOriginal
	}
	resp := response.NewResponse(302, nil, false)
	resp.Headers.Set("Location", loc)
	r.Send(resp)
}

// CatchAllHandler matches every request, declares every header
// interesting, and either calls a user-supplied OnRequest function or,
// when OnRequest is nil, emits 501.
type CatchAllHandler struct {
	OnRequest func(r *request.Request)
}

var _ request.Handler = (*CatchAllHandler)(nil)

func (h *CatchAllHandler) Filter(r *request.Request) bool   { return true }
func (h *CatchAllHandler) CanHandle(r *request.Request) bool { return true }
func (h *CatchAllHandler) CheckContinue(r *request.Request, continueHeader bool) bool {
	if continueHeader {
		r.Conn().Write([]byte("HTTP/1.1 100 Continue\r\n\r\n"))
	}
	return true
}
func (h *CatchAllHandler) IsInterestingHeader(name string) bool { return true }
func (h *CatchAllHandler) HandleRequest(r *request.Request) {
	if h.OnRequest != nil {
		h.OnRequest(r)
		return
	}
	r.Send(response.NewResponse(501, nil, false))
}
