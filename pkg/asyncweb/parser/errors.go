package parser

import "errors"

// Sentinel parse errors, pre-allocated rather than constructed per failure.
var (
	ErrInvalidRequestLine = errors.New("parser: malformed request line")
	ErrInvalidContentLength = errors.New("parser: invalid Content-Length")
	ErrDuplicateHost        = errors.New("parser: duplicate Host header")
	ErrRequestLineTooLarge  = errors.New("parser: request line exceeds limit")
	ErrHeadersTooLarge      = errors.New("parser: headers exceed limit")
	ErrNoHost11             = errors.New("parser: HTTP/1.1 request without Host")
)
