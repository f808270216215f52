// Package static implements the static-file handler: gzip-variant lookup
// and ordering, directory index resolution, ETag/If-None-Match conditional
// responses, and directory listing that is forbidden by default.
package static

import (
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/yourusername/asyncweb/pkg/asyncweb/request"
	"github.com/yourusername/asyncweb/pkg/asyncweb/response"
	"github.com/yourusername/asyncweb/pkg/asyncweb/server"
)

// mimeTypes is the closed extension→MIME table used to infer Content-Type
// from the plain (non-gzip-suffixed) subpath; anything outside this set
// falls back to application/octet-stream.
var mimeTypes = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".png":  "image/png",
	".gif":  "image/gif",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".ico":  "image/x-icon",
	".svg":  "image/svg+xml",
	".xml":  "text/xml",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".txt":  "text/plain",
	".gz":   "application/x-gzip",
}

func mimeFor(subpath string) string {
	if ct, ok := mimeTypes[strings.ToLower(path.Ext(subpath))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Handler serves files rooted at FS under the URL prefix Path. Defaults are
// gzip lookup on, gzip-first on, 404 for a missing file, 403 for a
// directory listing, and the inherited trailing-slash redirect for a
// directory request missing its slash.
type Handler struct {
	server.PathHandler

	FS fs.FS

	CacheControl string
	IndexFile    string
	GZLookup     bool
	GZFirst      bool

	// OnIndex, if set, is delegated to for a directory request instead of
	// resolving IndexFile.
	OnIndex func(r *request.Request)
	// OnPathNotFound overrides the default 404 for a missing file or
	// non-existent directory.
	OnPathNotFound func(r *request.Request)
	// OnIndexNotFound overrides the default 403 directory-listing-forbidden
	// response for a directory request with no index to serve.
	OnIndexNotFound func(r *request.Request)
	// OnDirRedirect overrides the default append-trailing-slash redirect.
	OnDirRedirect func(r *request.Request)
}

var _ request.Handler = (*Handler)(nil)

// New creates a Handler serving filesystem under urlPath with GET-only
// matching, gzip lookup on, gz-first on, and the config's default
// cache-control.
func New(urlPath string, filesystem fs.FS, cfg server.Config) *Handler {
	h := &Handler{
		FS:           filesystem,
		CacheControl: cfg.DefaultCacheControl,
		IndexFile:    cfg.DefaultIndexFile,
		GZLookup:     true,
		GZFirst:      true,
	}
	h.PathHandler = *server.NewPathHandler(urlPath, request.MethodGET)
	h.PathHandler.OnRequest = h.handleRequest
	return h
}

// IsInterestingHeader overrides PathHandler's empty default: this handler
// needs If-None-Match for conditional requests and Accept-Encoding for
// gzip-variant selection.
func (h *Handler) IsInterestingHeader(name string) bool {
	return strings.EqualFold(name, "If-None-Match") || strings.EqualFold(name, "Accept-Encoding")
}

func (h *Handler) handleRequest(r *request.Request) {
	subpath := strings.TrimPrefix(r.URLDecoded, h.Path)

	serveDir := false
	switch {
	case subpath == "":
		serveDir = true
	case strings.HasSuffix(subpath, "/"):
		serveDir = true
		if !h.dirExists(strings.TrimSuffix(subpath, "/")) {
			h.pathNotFound(r)
			return
		}
	}

	if serveDir {
		if h.OnIndex != nil {
			h.OnIndex(r)
			return
		}
		if h.IndexFile != "" {
			subpath += h.IndexFile
		} else {
			subpath = ""
		}
	}

	gzEncode := h.GZLookup && r.Headers.Contains("Accept-Encoding", "gzip")

	var (
		f    fs.File
		name string
	)
	if subpath != "" {
		f, name, gzEncode = h.openWithGZ(subpath, gzEncode)
		if f == nil && !serveDir {
			if h.isDir(subpath) {
				h.dirRedirect(r)
				return
			}
			h.pathNotFound(r)
			return
		}
	}

	if f == nil {
		h.indexNotFound(r)
		return
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		h.pathNotFound(r)
		return
	}

	var etag string
	if h.CacheControl != "" {
		etag = weakETag(info)
		if r.Headers.HasValue("If-None-Match", etag) {
			f.Close()
			r.Send(response.NewResponse(304, nil, false))
			return
		}
	}

	resp := response.NewResponse(200, newFileContent(f, mimeFor(subpath), info.Size()), false)
	if h.CacheControl != "" {
		resp.Headers.Set("Cache-Control", h.CacheControl)
		resp.Headers.Set("ETag", etag)
	}
	if gzEncode {
		resp.Headers.Set("Content-Encoding", "gzip")
	}
	log.Debug().Str("path", r.URLDecoded).Str("subpath", subpath).Bool("gzip", gzEncode).Msg("static: serving file")
	r.Send(resp)
}

// fileContent wraps an open fs.File as response.Content, closing it once
// Fill reports exhaustion (a zero-byte read, or an error).
type fileContent struct {
	f           fs.File
	contentType string
	size        int64
	closed      bool
}

func newFileContent(f fs.File, contentType string, size int64) *fileContent {
	return &fileContent{f: f, contentType: contentType, size: size}
}

func (c *fileContent) Len() int64          { return c.size }
func (c *fileContent) ContentType() string { return c.contentType }
func (c *fileContent) Fill(dst []byte) int {
	if c.closed {
		return 0
	}
	n, err := c.f.Read(dst)
	if err != nil {
		c.closed = true
		c.f.Close()
	}
	return n
}

func (h *Handler) openWithGZ(subpath string, gzEncode bool) (fs.File, string, bool) {
	if !gzEncode {
		f, err := h.FS.Open(strings.TrimPrefix(subpath, "/"))
		if err != nil {
			return nil, subpath, false
		}
		return f, subpath, false
	}

	gzPath := strings.TrimPrefix(subpath+".gz", "/")
	plainPath := strings.TrimPrefix(subpath, "/")

	if h.GZFirst {
		if f, err := h.FS.Open(gzPath); err == nil {
			return f, subpath + ".gz", true
		}
		if f, err := h.FS.Open(plainPath); err == nil {
			return f, subpath, false
		}
		return nil, subpath, false
	}

	if f, err := h.FS.Open(plainPath); err == nil {
		return f, subpath, false
	}
	if f, err := h.FS.Open(gzPath); err == nil {
		return f, subpath + ".gz", true
	}
	return nil, subpath, false
}

func (h *Handler) dirExists(subpath string) bool {
	trimmed := strings.TrimPrefix(subpath, "/")
	info, err := fs.Stat(h.FS, normalizeDir(trimmed))
	return err == nil && info.IsDir()
}

func (h *Handler) isDir(subpath string) bool {
	trimmed := strings.TrimPrefix(subpath, "/")
	info, err := fs.Stat(h.FS, normalizeDir(trimmed))
	return err == nil && info.IsDir()
}

func normalizeDir(p string) string {
	if p == "" {
		return "."
	}
	return p
}

func (h *Handler) pathNotFound(r *request.Request) {
	if h.OnPathNotFound != nil {
		h.OnPathNotFound(r)
		return
	}
	r.Send(response.NewResponse(404, nil, false))
}

func (h *Handler) indexNotFound(r *request.Request) {
	if h.OnIndexNotFound != nil {
		h.OnIndexNotFound(r)
		return
	}
	r.Send(response.NewResponse(403, nil, false))
}

func (h *Handler) dirRedirect(r *request.Request) {
	if h.OnDirRedirect != nil {
		h.OnDirRedirect(r)
		return
	}
	server.RedirectDir(r)
}

// weakETag formats a weak entity tag "W/\"<size>@<mtime_hex>\"" from a
// file's size and modification time.
func weakETag(info fs.FileInfo) string {
	return `W/"` + strconv.FormatInt(info.Size(), 10) + "@" + strconv.FormatInt(info.ModTime().Unix(), 16) + `"`
}
