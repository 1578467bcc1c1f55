package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	req := require.New(t)
	m := New()

	m.Observe("register", 0, time.Millisecond)
	m.Observe("register", 0, time.Millisecond)
	m.Observe("create_chat", -32001, time.Millisecond)

	req.Equal(2.0, testutil.ToFloat64(m.requests.WithLabelValues("register", "ok")))
	req.Equal(1.0, testutil.ToFloat64(m.requests.WithLabelValues("create_chat", "-32001")))
}

func TestConnections(t *testing.T) {
	m := New()
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	require.Equal(t, 1.0, testutil.ToFloat64(m.wsConnections))
}

func TestHandler(t *testing.T) {
	req := require.New(t)
	m := New()
	m.Observe("list_chats", 0, time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	req.Equal(http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	req.NoError(err)
	req.Contains(string(body), `quachat_rpc_requests_total{method="list_chats",outcome="ok"} 1`)
	req.Contains(string(body), "quachat_ws_connections 0")
}
