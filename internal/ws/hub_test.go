package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/pliu/quachat/internal/logs"
	"github.com/pliu/quachat/internal/middleware"
	"github.com/pliu/quachat/internal/models"
	"github.com/pliu/quachat/internal/rpc"
)

type tokens map[string]*models.User

func (t tokens) GetUser(_ context.Context, token string) (*models.User, error) {
	return t[token], nil
}

type countingGauge struct{ open atomic.Int64 }

func (g *countingGauge) ConnectionOpened() { g.open.Add(1) }
func (g *countingGauge) ConnectionClosed() { g.open.Add(-1) }

func newTestHub(t *testing.T, gauge Gauge) (*httptest.Server, context.CancelFunc) {
	t.Helper()
	d := rpc.NewDispatcher(logs.Discard(), nil)
	d.Register("whoami", rpc.Method(func(ctx context.Context, _ struct{}) (any, error) {
		if user := middleware.UserFromContext(ctx); user != nil {
			return user.Name, nil
		}
		return nil, nil
	}))

	hub := NewHub(d, nil, gauge, logs.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	users := tokens{"secret": {Name: "alice", Token: "secret"}}
	server := httptest.NewServer(middleware.AuthMiddleware(users, logs.Discard())(http.HandlerFunc(hub.ServeWs)))
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return server, cancel
}

func dial(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, payload string) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

func TestServeWsResolvesIdentityAtUpgrade(t *testing.T) {
	server, _ := newTestHub(t, nil)

	conn := dial(t, server, "secret")
	resp := roundTrip(t, conn, `{"jsonrpc":"2.0","method":"whoami","id":1}`)
	require.Equal(t, "alice", resp["result"])
	require.Equal(t, float64(1), resp["id"])

	anon := dial(t, server, "")
	resp = roundTrip(t, anon, `{"jsonrpc":"2.0","method":"whoami","id":2}`)
	require.Contains(t, resp, "result")
	require.Nil(t, resp["result"])
}

func TestServeWsAnswersInOrder(t *testing.T) {
	server, _ := newTestHub(t, nil)
	conn := dial(t, server, "secret")

	// A notification gets no frame back, so the next frame answers id 2.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","method":"whoami"}`)))
	resp := roundTrip(t, conn, `{"jsonrpc":"2.0","method":"nope","id":2}`)
	require.Equal(t, float64(2), resp["id"])
	require.Equal(t, float64(rpc.CodeMethodNotFound), resp["error"].(map[string]any)["code"])
}

func TestHubTracksConnections(t *testing.T) {
	gauge := &countingGauge{}
	server, _ := newTestHub(t, gauge)

	conn := dial(t, server, "")
	roundTrip(t, conn, `{"jsonrpc":"2.0","method":"whoami","id":1}`)
	require.Eventually(t, func() bool { return gauge.open.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return gauge.open.Load() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHubShutdownClosesConnections(t *testing.T) {
	server, cancel := newTestHub(t, nil)
	conn := dial(t, server, "secret")
	roundTrip(t, conn, `{"jsonrpc":"2.0","method":"whoami","id":1}`)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
