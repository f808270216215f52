package response

import (
	"encoding/json"
)

// NewJSONResponse marshals v and returns a response with status code
// serving it as application/json. The document is marshaled once into a plain byte
// buffer and served as an ordinary NewBytesContent, not chunked, since
// encoding/json.Marshal gives the full length up front.
func NewJSONResponse(code int, v interface{}) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	r := NewResponse(code, NewBytesContent(body, "application/json"), false)
	return r, nil
}

// NewPrettyJSONResponse is NewJSONResponse with indented output.
func NewPrettyJSONResponse(code int, v interface{}) (*Response, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	r := NewResponse(code, NewBytesContent(body, "application/json"), false)
	return r, nil
}
