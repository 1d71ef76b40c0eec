package wsconn_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/handshake-client/internal/apperror"
	"github.com/fd1az/handshake-client/internal/wsconn"
)

type stateChange struct {
	state wsconn.State
	err   error
}

// serve accepts one websocket per request and hands it to handler. The
// connection is closed normally when handler returns.
func serve(t *testing.T, handler func(r *http.Request, conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		handler(r, conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func echo(_ *http.Request, conn *websocket.Conn) {
	ctx := context.Background()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if conn.Write(ctx, typ, data) != nil {
			return
		}
	}
}

func newClient(t *testing.T, cfg wsconn.Config) (*wsconn.Client, chan wsconn.Message, chan stateChange) {
	t.Helper()
	c, err := wsconn.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	msgs := make(chan wsconn.Message, 16)
	states := make(chan stateChange, 16)
	c.OnMessage(func(_ context.Context, msg wsconn.Message) { msgs <- msg })
	c.OnStateChange(func(state wsconn.State, err error) { states <- stateChange{state, err} })
	return c, msgs, states
}

func nextState(t *testing.T, states <-chan stateChange) stateChange {
	t.Helper()
	select {
	case s := <-states:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no state change")
		return stateChange{}
	}
}

func TestClient_SendAndReceive(t *testing.T) {
	url := serve(t, echo)
	c, msgs, _ := newClient(t, wsconn.DefaultConfig(url, "test"))

	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, wsconn.StateConnected, c.State())
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Send(context.Background(), []byte("2ping")))
	select {
	case msg := <-msgs:
		assert.False(t, msg.Binary)
		assert.Equal(t, "2ping", string(msg.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("no echo")
	}
}

func TestClient_BinaryFrame(t *testing.T) {
	url := serve(t, func(_ *http.Request, conn *websocket.Conn) {
		_ = conn.Write(context.Background(), websocket.MessageBinary, []byte{0x01, 0x02})
		_, _, _ = conn.Read(context.Background())
	})
	c, msgs, _ := newClient(t, wsconn.DefaultConfig(url, "test"))
	require.NoError(t, c.Connect(context.Background()))

	select {
	case msg := <-msgs:
		assert.True(t, msg.Binary)
		assert.Equal(t, []byte{0x01, 0x02}, msg.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("no binary frame")
	}
}

func TestClient_UpgradeHeader(t *testing.T) {
	got := make(chan string, 1)
	url := serve(t, func(r *http.Request, conn *websocket.Conn) {
		got <- r.Header.Get("X-Request-Source")
		_, _, _ = conn.Read(context.Background())
	})

	cfg := wsconn.DefaultConfig(url, "test")
	cfg.HTTPHeader = http.Header{"X-Request-Source": []string{"ops"}}
	c, _, _ := newClient(t, cfg)
	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, "ops", <-got)
}

func TestClient_CloseIsFinal(t *testing.T) {
	url := serve(t, echo)
	c, _, states := newClient(t, wsconn.DefaultConfig(url, "test"))

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Equal(t, wsconn.StateConnecting, nextState(t, states).state)
	assert.Equal(t, wsconn.StateConnected, nextState(t, states).state)
	closed := nextState(t, states)
	assert.Equal(t, wsconn.StateClosed, closed.state)
	assert.NoError(t, closed.err)

	err := c.Connect(context.Background())
	assert.Equal(t, apperror.CodeSocketClosed, apperror.GetCode(err))

	err = c.Send(context.Background(), []byte("x"))
	assert.Equal(t, apperror.CodeSocketNotConnected, apperror.GetCode(err))
}

func TestClient_PeerNormalClose(t *testing.T) {
	url := serve(t, func(*http.Request, *websocket.Conn) {})
	c, _, states := newClient(t, wsconn.DefaultConfig(url, "test"))
	require.NoError(t, c.Connect(context.Background()))

	nextState(t, states)
	nextState(t, states)
	ended := nextState(t, states)
	assert.Equal(t, wsconn.StateDisconnected, ended.state)
	assert.NoError(t, ended.err)

	err := c.Connect(context.Background())
	assert.Equal(t, apperror.CodeSocketClosed, apperror.GetCode(err))
}

func TestClient_PeerAbort(t *testing.T) {
	url := serve(t, func(_ *http.Request, conn *websocket.Conn) {
		_ = conn.CloseNow()
	})
	c, _, states := newClient(t, wsconn.DefaultConfig(url, "test"))
	require.NoError(t, c.Connect(context.Background()))

	nextState(t, states)
	nextState(t, states)
	ended := nextState(t, states)
	assert.Equal(t, wsconn.StateDisconnected, ended.state)
	assert.Equal(t, apperror.CodeSocketClosed, apperror.GetCode(ended.err))
}

func TestClient_ReadLimit(t *testing.T) {
	url := serve(t, func(_ *http.Request, conn *websocket.Conn) {
		_ = conn.Write(context.Background(), websocket.MessageText, make([]byte, 1024))
		_, _, _ = conn.Read(context.Background())
	})
	cfg := wsconn.DefaultConfig(url, "test")
	cfg.MaxMessageSize = 128
	c, msgs, states := newClient(t, cfg)
	require.NoError(t, c.Connect(context.Background()))

	nextState(t, states)
	nextState(t, states)
	assert.Equal(t, wsconn.StateDisconnected, nextState(t, states).state)
	assert.Empty(t, msgs)
}

func TestClient_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	c, _, _ := newClient(t, wsconn.DefaultConfig(url, "test"))
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperror.CodeSocketConnectionFailed, apperror.GetCode(err))
	assert.Equal(t, wsconn.StateDisconnected, c.State())
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := wsconn.New(wsconn.Config{Name: "test"})
	assert.Equal(t, apperror.CodeInvalidInput, apperror.GetCode(err))
}
