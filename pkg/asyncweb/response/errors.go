package response

import "errors"

// ErrChunkedRequiresHTTP11 describes a handler asking for chunked transfer
// encoding on an HTTP/1.0 request. Respond does not return it: it replaces
// such a response with a bodyless 505 rather than buffering the whole body.
var ErrChunkedRequiresHTTP11 = errors.New("response: chunked transfer encoding requires HTTP/1.1")
