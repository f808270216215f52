package sse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yourusername/asyncweb/pkg/asyncweb/request"
	"github.com/yourusername/asyncweb/pkg/asyncweb/transport"
)

func TestFrameFormatsRetryIDEventAndMultilineData(t *testing.T) {
	frame := Frame("line one\nline two", "update", 42, 3000)

	want := "retry: 3000\r\nid: 42\r\nevent: update\r\ndata: line one\r\ndata: line two\r\n\r\n"
	require.Equal(t, want, string(frame))
}

func TestFrameOmitsOptionalLinesWhenZero(t *testing.T) {
	frame := Frame("hello", "", 0, 0)
	require.Equal(t, "data: hello\r\n\r\n", string(frame))
}

func TestSourceCanHandleRequiresExactURLAndGET(t *testing.T) {
	s := New("/events")

	fake := transport.NewFake()
	r := request.New(fake, nil, time.Second)
	r.Method = request.MethodGET
	r.SetURL("/events")
	require.True(t, s.CanHandle(r))

	wrongPath := request.New(transport.NewFake(), nil, time.Second)
	wrongPath.Method = request.MethodGET
	wrongPath.SetURL("/events/extra")
	require.False(t, s.CanHandle(wrongPath))

	wrongMethod := request.New(transport.NewFake(), nil, time.Second)
	wrongMethod.Method = request.MethodPOST
	wrongMethod.SetURL("/events")
	require.False(t, s.CanHandle(wrongMethod))
}

func TestSourceHandleRequestHijacksOnComplete(t *testing.T) {
	s := New("/events")
	connected := make(chan *Client, 1)
	s.OnConnect = func(c *Client) { connected <- c }

	fake := transport.NewFake()
	r := request.New(fake, nil, time.Second)
	r.Method = request.MethodGET
	r.SetURL("/events")

	s.HandleRequest(r)
	require.NotNil(t, r.Response())
	require.Equal(t, 0, s.Count(), "the client must not be registered until the headers finish sending")

	// Feeding one byte while in StateResponse triggers Request.onData's
	// Respond call; from there MakeProgress drives the pump to completion,
	// with every written byte acknowledged as a transport would, since the
	// response only reaches StateEnd once nothing is left in flight.
	fake.Feed([]byte{0})
	resp := r.Response()
	for i := 0; i < 10_000 && !resp.Finished(); i++ {
		r.MakeProgress(4096)
		if inFlight := 1<<20 - fake.SpaceLeft; inFlight > 0 {
			fake.Ack(inFlight, time.Millisecond)
		}
	}

	require.Equal(t, 1, s.Count())
	select {
	case c := <-connected:
		require.NotNil(t, c)
	default:
		t.Fatal("OnConnect was not invoked")
	}
}

func TestSourceSendDropsSilentlyWhenBackpressured(t *testing.T) {
	s := New("/events")
	fake := transport.NewFake()
	c := &Client{conn: fake, source: s}
	s.clients = append(s.clients, c)

	fake.SpaceLeft = 0
	require.NotPanics(t, func() { s.Send("hi", "", 0, 0) })
	require.Empty(t, fake.Written, "a client with no space must not receive the frame")

	fake.SpaceLeft = 1 << 10
	s.Send("hi", "", 0, 0)
	require.NotEmpty(t, fake.Written)
}

func TestSourceRemoveClientOnDisconnect(t *testing.T) {
	s := New("/events")
	fake := transport.NewFake()
	c := &Client{conn: fake, source: s}
	s.clients = append(s.clients, c)
	require.Equal(t, 1, s.Count())

	c.onDisconnect()

	require.Equal(t, 0, s.Count())
}
