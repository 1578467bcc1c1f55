package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pliu/quachat/internal/logs"
)

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
	ID      json.RawMessage `json:"id"`
}

type echoParams struct {
	Text  string `json:"text" validate:"required,max=5"`
	Count int    `json:"count" validate:"gte=0"`
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
	codes []int
}

func (o *recordingObserver) Observe(method string, code int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, method)
	o.codes = append(o.codes, code)
}

func newTestDispatcher(observer Observer) *Dispatcher {
	d := NewDispatcher(logs.Discard(), observer)
	d.Register("echo", Method(func(_ context.Context, p echoParams) (any, error) {
		return p.Text, nil
	}))
	d.Register("none", Method(func(_ context.Context, _ struct{}) (any, error) {
		return nil, nil
	}))
	d.Register("denied", Method(func(_ context.Context, _ struct{}) (any, error) {
		return nil, ErrUnauthorized
	}))
	d.Register("broken", Method(func(_ context.Context, _ struct{}) (any, error) {
		return nil, errors.New("disk on fire")
	}))
	d.Register("panics", Method(func(_ context.Context, _ struct{}) (any, error) {
		panic("boom")
	}))
	return d
}

func call(t *testing.T, d *Dispatcher, payload string) wireResponse {
	t.Helper()
	out, err := d.Handle(context.Background(), []byte(payload))
	require.NoError(t, err)
	require.NotNil(t, out)

	var resp wireResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	require.Equal(t, Version, resp.JSONRPC)
	return resp
}

func TestHandleResult(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher(nil)

	resp := call(t, d, `{"jsonrpc":"2.0","method":"echo","params":{"text":"hi"},"id":7}`)
	req.Nil(resp.Error)
	req.JSONEq(`"hi"`, string(resp.Result))
	req.JSONEq(`7`, string(resp.ID))
}

func TestHandleNullResult(t *testing.T) {
	out, err := newTestDispatcher(nil).Handle(context.Background(),
		[]byte(`{"jsonrpc":"2.0","method":"none","id":"a"}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"jsonrpc":"2.0","result":null,"id":"a"}`, string(out))
}

func TestHandleErrors(t *testing.T) {
	d := newTestDispatcher(nil)

	tests := []struct {
		name    string
		payload string
		code    int
	}{
		{"Parse error", `{"jsonrpc":`, CodeParseError},
		{"Empty body", ``, CodeParseError},
		{"Not an object", `42`, CodeInvalidRequest},
		{"Wrong version", `{"jsonrpc":"1.0","method":"echo","id":1}`, CodeInvalidRequest},
		{"Missing method", `{"jsonrpc":"2.0","id":1}`, CodeInvalidRequest},
		{"Unknown method", `{"jsonrpc":"2.0","method":"nope","id":1}`, CodeMethodNotFound},
		{"Positional params", `{"jsonrpc":"2.0","method":"echo","params":["hi"],"id":1}`, CodeInvalidParams},
		{"Unknown param", `{"jsonrpc":"2.0","method":"echo","params":{"text":"hi","x":1},"id":1}`, CodeInvalidParams},
		{"Wrong param type", `{"jsonrpc":"2.0","method":"echo","params":{"text":5},"id":1}`, CodeInvalidParams},
		{"Missing required param", `{"jsonrpc":"2.0","method":"echo","params":{},"id":1}`, CodeInvalidParams},
		{"Param too long", `{"jsonrpc":"2.0","method":"echo","params":{"text":"toolong"},"id":1}`, CodeInvalidParams},
		{"Negative param", `{"jsonrpc":"2.0","method":"echo","params":{"text":"a","count":-1},"id":1}`, CodeInvalidParams},
		{"Unauthorized", `{"jsonrpc":"2.0","method":"denied","id":1}`, CodeUnauthorized},
		{"Internal error", `{"jsonrpc":"2.0","method":"broken","id":1}`, CodeInternalError},
		{"Panic", `{"jsonrpc":"2.0","method":"panics","id":1}`, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, d, tt.payload)
			require.NotNil(t, resp.Error)
			require.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestInternalErrorDoesNotLeakDetails(t *testing.T) {
	resp := call(t, newTestDispatcher(nil), `{"jsonrpc":"2.0","method":"broken","id":1}`)
	require.NotNil(t, resp.Error)
	require.Equal(t, "Internal error", resp.Error.Message)
	require.Nil(t, resp.Error.Data)
}

func TestNotificationHasNoResponse(t *testing.T) {
	out, err := newTestDispatcher(nil).Handle(context.Background(),
		[]byte(`{"jsonrpc":"2.0","method":"echo","params":{"text":"hi"}}`))
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestNullIDIsNotANotification(t *testing.T) {
	resp := call(t, newTestDispatcher(nil), `{"jsonrpc":"2.0","method":"echo","params":{"text":"hi"},"id":null}`)
	require.JSONEq(t, `"hi"`, string(resp.Result))
	require.JSONEq(t, `null`, string(resp.ID))
}

func TestBatch(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher(nil)

	out, err := d.Handle(context.Background(), []byte(`[
		{"jsonrpc":"2.0","method":"echo","params":{"text":"a"},"id":1},
		{"jsonrpc":"2.0","method":"echo","params":{"text":"b"}},
		{"jsonrpc":"2.0","method":"nope","id":2},
		{"jsonrpc":"2.0","method":"echo","params":{"text":"c"},"id":3}
	]`))
	req.NoError(err)

	var responses []wireResponse
	req.NoError(json.Unmarshal(out, &responses))
	req.Len(responses, 3)
	req.JSONEq(`"a"`, string(responses[0].Result))
	req.Equal(CodeMethodNotFound, responses[1].Error.Code)
	req.JSONEq(`2`, string(responses[1].ID))
	req.JSONEq(`"c"`, string(responses[2].Result))
}

func TestBatchOfNotifications(t *testing.T) {
	out, err := newTestDispatcher(nil).Handle(context.Background(), []byte(`[
		{"jsonrpc":"2.0","method":"echo","params":{"text":"a"}},
		{"jsonrpc":"2.0","method":"none"}
	]`))
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestEmptyBatch(t *testing.T) {
	resp := call(t, newTestDispatcher(nil), `[]`)
	require.Equal(t, CodeInvalidRequest, resp.Error.Code)
}

func TestObserver(t *testing.T) {
	req := require.New(t)
	observer := &recordingObserver{}
	d := newTestDispatcher(observer)

	call(t, d, `{"jsonrpc":"2.0","method":"echo","params":{"text":"hi"},"id":1}`)
	call(t, d, `{"jsonrpc":"2.0","method":"denied","id":2}`)
	call(t, d, `{"jsonrpc":"2.0","method":"made-up","id":3}`)

	req.Equal([]string{"echo", "denied", "unknown"}, observer.calls)
	req.Equal([]int{0, CodeUnauthorized, CodeMethodNotFound}, observer.codes)
}

func TestRegisterTwicePanics(t *testing.T) {
	d := newTestDispatcher(nil)
	require.Panics(t, func() {
		d.Register("echo", Method(func(_ context.Context, _ struct{}) (any, error) { return nil, nil }))
	})
	require.Equal(t, []string{"broken", "denied", "echo", "none", "panics"}, d.Methods())
}
