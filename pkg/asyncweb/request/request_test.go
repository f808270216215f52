package request

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yourusername/asyncweb/pkg/asyncweb/transport"
)

// stubParser satisfies ActiveParser, consuming everything handed to it and
// transitioning the owning request on command, letting tests drive the
// onData dispatch without a real head parser.
type stubParser struct {
	onFeed func(buf []byte) (int, error)
}

func (p *stubParser) Feed(buf []byte) (int, error) { return p.onFeed(buf) }

type stubHandler struct {
	canHandle       bool
	checkContinue   bool
	interesting     map[string]bool
	handleRequestFn func(r *Request)
}

func (h *stubHandler) Filter(r *Request) bool    { return true }
func (h *stubHandler) CanHandle(r *Request) bool { return h.canHandle }
func (h *stubHandler) CheckContinue(r *Request, continueHeader bool) bool {
	return h.checkContinue
}
func (h *stubHandler) IsInterestingHeader(name string) bool { return h.interesting[name] }
func (h *stubHandler) HandleRequest(r *Request) {
	if h.handleRequestFn != nil {
		h.handleRequestFn(r)
	}
}

type stubRouter struct{ handler Handler }

func (s *stubRouter) Rewrite(r *Request)          {}
func (s *stubRouter) AttachHandler(r *Request) Handler { return s.handler }

type stubResponder struct {
	responded bool
	finished  bool
	sending   bool
	acked     int
}

func (s *stubResponder) Respond(r *Request)                    { s.responded = true }
func (s *stubResponder) Ack(length int, rtt time.Duration)     { s.acked += length }
func (s *stubResponder) Pump(budget int)                       {}
func (s *stubResponder) Sending() bool                         { return s.sending }
func (s *stubResponder) Finished() bool                        { return s.finished }

func TestRequestSetURLSplitsAndDecodesQuery(t *testing.T) {
	r := &Request{}
	r.SetURL("/a%20b?x=1&y=2")
	require.Equal(t, "/a%20b?x=1&y=2", r.URLOriginal)
	require.Equal(t, "/a b", r.URLDecoded)
	require.Equal(t, "x=1&y=2", r.QueryOriginal)
	require.Equal(t, []QueryPair{{"x", "1"}, {"y", "2"}}, r.Query)
	require.True(t, r.HasQuery("x"))
	require.Equal(t, "1", r.GetQuery("x"))
	require.False(t, r.HasQuery("z"))
}

func TestRequestRecycleClientPreservesVersionAndKeepAlive(t *testing.T) {
	fake := transport.NewFake()
	r := New(fake, &stubRouter{}, 5*time.Second)
	r.Version = 1
	r.KeepAlive = true
	r.State = StateReplying
	r.Method = MethodPOST
	r.Host = "example.com"
	require.NoError(t, r.Headers.Add("X-Test", "1"))

	r.recycleClient()

	require.Equal(t, StateSetup, r.State)
	require.Equal(t, 1, r.Version, "version must survive recycle")
	require.True(t, r.KeepAlive, "keep-alive must survive recycle")
	require.Equal(t, MethodUnknown, r.Method)
	require.Equal(t, "", r.Host)
	require.Equal(t, 0, r.Headers.Len())
	require.Equal(t, int64(-1), r.ContentLength)
}

func TestRequestOnDataDispatchesToActiveParserUntilReceived(t *testing.T) {
	fake := transport.NewFake()
	r := New(fake, &stubRouter{}, time.Second)
	r.State = StateHeaders

	fed := 0
	r.SetActiveParser(&stubParser{onFeed: func(buf []byte) (int, error) {
		fed += len(buf)
		r.State = StateReceived
		return len(buf), nil
	}})

	called := false
	r.SetHandler(&stubHandler{handleRequestFn: func(rr *Request) {
		called = true
		rr.Send(&stubResponder{})
	}})

	fake.Feed([]byte("irrelevant bytes"))

	require.Equal(t, len("irrelevant bytes"), fed)
	require.True(t, called)
	require.Equal(t, StateResponse, r.State)
}

func TestRequestOnDataIneffectiveHandlerErrors(t *testing.T) {
	fake := transport.NewFake()
	r := New(fake, &stubRouter{}, time.Second)
	r.State = StateHeaders
	r.SetActiveParser(&stubParser{onFeed: func(buf []byte) (int, error) {
		r.State = StateReceived
		return len(buf), nil
	}})
	r.SetHandler(&stubHandler{handleRequestFn: func(rr *Request) {
		// never calls Send
	}})

	fake.Feed([]byte("x"))

	require.Equal(t, StateFinalize, r.State)
	require.True(t, fake.Closed)
}

func TestRequestMakeProgressRecyclesOnFinishedKeepAlive(t *testing.T) {
	fake := transport.NewFake()
	r := New(fake, &stubRouter{}, time.Second)
	r.KeepAlive = true
	r.State = StateReplying
	resp := &stubResponder{finished: true}
	r.response = resp

	remove := r.MakeProgress(4096)

	require.False(t, remove)
	require.Equal(t, StateSetup, r.State)
}

func TestRequestMakeProgressFinalizesWithoutKeepAlive(t *testing.T) {
	fake := transport.NewFake()
	r := New(fake, &stubRouter{}, time.Second)
	r.KeepAlive = false
	r.State = StateReplying
	r.response = &stubResponder{finished: true}

	remove := r.MakeProgress(4096)

	require.True(t, remove)
	require.Equal(t, StateFinalize, r.State)
}

func TestRequestOnTimeoutTransitionsToFinalize(t *testing.T) {
	fake := transport.NewFake()
	r := New(fake, &stubRouter{}, time.Second)
	r.onTimeout(time.Second)
	require.Equal(t, StateFinalize, r.State)
	require.True(t, fake.Closed)
}

func TestRequestOnDisconnectTransitionsToFinalize(t *testing.T) {
	fake := transport.NewFake()
	r := New(fake, &stubRouter{}, time.Second)
	r.onDisconnect()
	require.Equal(t, StateFinalize, r.State)
}
