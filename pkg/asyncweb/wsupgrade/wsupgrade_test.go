package wsupgrade

import (
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/asyncweb/pkg/asyncweb/request"
	"github.com/yourusername/asyncweb/pkg/asyncweb/transport"
)

// hijackableFake adds a Hijack method to transport.Fake so tests can drive
// the success path of Upgrader.hijack without a real socket.
type hijackableFake struct {
	*transport.Fake
	raw net.Conn
}

func (h *hijackableFake) Hijack() net.Conn { return h.raw }

func newUpgradeRequest(path string, headers map[string]string) (*request.Request, *transport.Fake) {
	fake := transport.NewFake()
	r := request.New(fake, nil, time.Second)
	r.Method = request.MethodGET
	r.SetURL(path)
	for k, v := range headers {
		r.Headers.Add(k, v)
	}
	return r, fake
}

func validUpgradeHeaders() map[string]string {
	return map[string]string{
		"Connection":            "Upgrade",
		"Upgrade":               "websocket",
		"Sec-WebSocket-Key":     "dGhlIHNhbXBsZSBub25jZQ==",
		"Sec-WebSocket-Version": "13",
	}
}

func TestUpgraderCanHandleRequiresAllThreeHeaders(t *testing.T) {
	u := &Upgrader{Path: "/ws"}

	r, _ := newUpgradeRequest("/ws", validUpgradeHeaders())
	require.True(t, u.CanHandle(r))

	missingKey, _ := newUpgradeRequest("/ws", map[string]string{
		"Connection": "Upgrade",
		"Upgrade":    "websocket",
	})
	require.False(t, u.CanHandle(missingKey))

	wrongPath, _ := newUpgradeRequest("/other", validUpgradeHeaders())
	require.False(t, u.CanHandle(wrongPath))
}

func TestUpgraderHandleRequestRejectsWrongVersion(t *testing.T) {
	u := &Upgrader{Path: "/ws"}
	headers := validUpgradeHeaders()
	headers["Sec-WebSocket-Version"] = "8"
	r, _ := newUpgradeRequest("/ws", headers)

	u.HandleRequest(r)

	require.NotNil(t, r.Response())
}

func TestUpgraderHandleRequestRejectsFailingOrigin(t *testing.T) {
	u := &Upgrader{Path: "/ws", CheckOrigin: func(r *request.Request) bool { return false }}
	r, _ := newUpgradeRequest("/ws", validUpgradeHeaders())

	u.HandleRequest(r)

	require.NotNil(t, r.Response())
}

func TestUpgraderHandleRequestSelectsSubprotocolAndComputesAccept(t *testing.T) {
	u := &Upgrader{Path: "/ws", Subprotocols: []string{"chat", "echo"}}
	headers := validUpgradeHeaders()
	headers["Sec-WebSocket-Protocol"] = "echo, superchat"
	r, fake := newUpgradeRequest("/ws", headers)

	u.HandleRequest(r)

	require.NotNil(t, r.Response())

	// Drive the 101 response to completion to confirm the accept key and
	// subprotocol ended up on the wire.
	fake.Feed([]byte{0})
	resp := r.Response()
	for i := 0; i < 10_000 && !resp.Finished(); i++ {
		r.MakeProgress(4096)
	}

	out := string(fake.Written)
	require.Contains(t, out, "101")
	require.Contains(t, out, websocket.ComputeAcceptKey("dGhlIHNhbXBsZSBub25jZQ=="))
	require.Contains(t, out, "Sec-WebSocket-Protocol: echo")
}

func TestUpgraderHijackClosesConnectionWhenNotHijackable(t *testing.T) {
	u := &Upgrader{Path: "/ws"}
	r, fake := newUpgradeRequest("/ws", validUpgradeHeaders())

	u.HandleRequest(r)
	fake.Feed([]byte{0})
	resp := r.Response()
	for i := 0; i < 10_000 && !resp.Finished(); i++ {
		r.MakeProgress(4096)
		if inFlight := 1<<20 - fake.SpaceLeft; inFlight > 0 {
			fake.Ack(inFlight, time.Millisecond)
		}
	}

	require.True(t, fake.Closed, "a transport that can't be hijacked must be closed instead of leaked")
}

func TestUpgraderHijackInvokesOnUpgradeWithAHijackableTransport(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()

	fake := &hijackableFake{Fake: transport.NewFake(), raw: serverSide}

	var gotConn *websocket.Conn
	var gotProtocol string
	done := make(chan struct{})
	u := &Upgrader{
		Path: "/ws",
		OnUpgrade: func(conn *websocket.Conn, subprotocol string) {
			gotConn = conn
			gotProtocol = subprotocol
			close(done)
		},
	}

	r := request.New(fake, nil, time.Second)
	r.Method = request.MethodGET
	r.SetURL("/ws")
	for k, v := range validUpgradeHeaders() {
		r.Headers.Add(k, v)
	}

	u.HandleRequest(r)
	fake.Feed([]byte{0})
	resp := r.Response()
	for i := 0; i < 10_000 && !resp.Finished(); i++ {
		r.MakeProgress(4096)
		if inFlight := 1<<20 - fake.SpaceLeft; inFlight > 0 {
			fake.Ack(inFlight, time.Millisecond)
		}
	}

	<-done
	require.NotNil(t, gotConn)
	require.Equal(t, "", gotProtocol)
}
