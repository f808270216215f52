package header

import "errors"

var (
	// ErrHeaderTooLarge is returned when a header name is empty or exceeds MaxHeaderName.
	ErrHeaderTooLarge = errors.New("header: name too large")
	// ErrInvalidHeader is returned when a name or value contains a bare CR or LF,
	// which would otherwise allow header/response splitting.
	ErrInvalidHeader = errors.New("header: CR or LF in name or value")
)
