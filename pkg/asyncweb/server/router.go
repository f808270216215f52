package server

import (
	"strings"

	"github.com/yourusername/asyncweb/pkg/asyncweb/request"
)

// Rewrite mutates a request's decoded URL when Filter accepts it. Beyond
// an arbitrary filter, it also supports a simple prefix replacement
// (From→To), so a rewrite rule can be declared without writing a custom
// Filter.
type Rewrite struct {
	From   string
	To     string
	Filter func(r *request.Request) bool
}

func (rw Rewrite) filterOK(r *request.Request) bool {
	if rw.Filter != nil {
		return rw.Filter(r)
	}
	return strings.HasPrefix(r.URLDecoded, rw.From)
}

// Perform replaces the From prefix with To in the request's decoded URL.
func (rw Rewrite) Perform(r *request.Request) {
	if strings.HasPrefix(r.URLDecoded, rw.From) {
		r.URLDecoded = rw.To + r.URLDecoded[len(rw.From):]
	}
}

// Router is the concrete request.Router: an ordered rewrite chain plus an
// ordered handler list with a catch-all fallback.
type Router struct {
	rewrites []Rewrite
	handlers []request.Handler
	catchAll request.Handler
}

var _ request.Router = (*Router)(nil)

// NewRouter creates a Router whose catch-all is CatchAllHandler if catchAll
// is nil.
func NewRouter(catchAll request.Handler) *Router {
	if catchAll == nil {
		catchAll = &CatchAllHandler{}
	}
	return &Router{catchAll: catchAll}
}

// AddRewrite appends rw to the rewrite chain, applied in insertion order
// ahead of handler selection.
func (s *Router) AddRewrite(rw Rewrite) { s.rewrites = append(s.rewrites, rw) }

// AddHandler appends h to the handler chain, scanned in insertion order
// for the first Filter+CanHandle match.
func (s *Router) AddHandler(h request.Handler) { s.handlers = append(s.handlers, h) }

// Rewrite implements request.Router.
func (s *Router) Rewrite(r *request.Request) {
	for _, rw := range s.rewrites {
		if rw.filterOK(r) {
			rw.Perform(r)
		}
	}
}

// AttachHandler implements request.Router: first handler whose Filter and
// CanHandle both accept, or the catch-all.
func (s *Router) AttachHandler(r *request.Request) request.Handler {
	for _, h := range s.handlers {
		if h.Filter(r) && h.CanHandle(r) {
			return h
		}
	}
	return s.catchAll
}
