package response

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yourusername/asyncweb/pkg/asyncweb/request"
	"github.com/yourusername/asyncweb/pkg/asyncweb/transport"
)

func driveToEnd(t *testing.T, fake *transport.Fake, r *Response, req *request.Request) {
	t.Helper()
	acked := 0
	for i := 0; i < 10_000 && r.state != StateEnd && r.state != StateFailed; i++ {
		r.Pump(4096)
		if len(fake.Written) > acked {
			n := len(fake.Written) - acked
			acked = len(fake.Written)
			fake.Ack(n, time.Millisecond)
		}
	}
}

// TestResponsePumpChunkedReachesEnd guards against the Pump StateContent
// ordering bug where a chunked response's queued final chunk was never
// drained because finishContent ran again before drainPending had a
// chance to send it, spinning forever instead of reaching StateEnd.
func TestResponsePumpChunkedReachesEnd(t *testing.T) {
	fake := transport.NewFake()
	req := request.New(fake, nil, time.Second)
	req.Version = 1 // chunked transfer requires HTTP/1.1

	body := []byte("hello world, this is chunked content")
	n := 0
	content := NewCallbackContent(func(dst []byte) int {
		if n >= len(body) {
			return 0
		}
		c := copy(dst, body[n:])
		n += c
		return c
	}, "text/plain", -1)

	r := NewResponse(200, content, true)
	completed := false
	r.OnComplete(func() { completed = true })
	r.Respond(req)

	driveToEnd(t, fake, r, req)

	require.Equal(t, StateEnd, r.state)
	require.True(t, completed, "OnComplete must fire once the pump reaches StateEnd")
	require.Contains(t, string(fake.Written), "0\r\n\r\n", "chunked body must end with the terminating zero chunk")
}

func TestResponsePumpNonChunkedReachesEnd(t *testing.T) {
	fake := transport.NewFake()
	req := request.New(fake, nil, time.Second)

	r := NewResponse(200, NewBytesContent([]byte("fixed body"), "text/plain"), false)
	completed := false
	r.OnComplete(func() { completed = true })
	r.Respond(req)

	driveToEnd(t, fake, r, req)

	require.Equal(t, StateEnd, r.state)
	require.True(t, completed)
	require.Contains(t, string(fake.Written), "fixed body")
}

func TestResponsePumpNilContentReachesEndImmediately(t *testing.T) {
	fake := transport.NewFake()
	req := request.New(fake, nil, time.Second)

	r := NewResponse(204, nil, false)
	completed := false
	r.OnComplete(func() { completed = true })
	r.Respond(req)

	driveToEnd(t, fake, r, req)

	require.Equal(t, StateEnd, r.state)
	require.True(t, completed)
}

func TestResponseAckResumesFromWaitAck(t *testing.T) {
	fake := transport.NewFake()
	req := request.New(fake, nil, time.Second)

	r := NewResponse(200, NewBytesContent([]byte("x"), "text/plain"), false)
	r.Respond(req)
	r.state = StateWaitAck

	r.Ack(10, time.Millisecond)

	require.Equal(t, StateContent, r.state)
}
