package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
)

// HandlerFunc serves one method. Returning an *Error sends it as is; any other error
// is logged and reported as an internal error.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Observer is told about every dispatched call. code is 0 on success.
type Observer interface {
	Observe(method string, code int, elapsed time.Duration)
}

var validate = validator.New()

// Method adapts a typed handler. Params must be a JSON object; they are decoded into P
// with unknown members rejected and then validated with the struct's validate tags.
// Absent params decode to the zero P.
func Method[P any](fn func(ctx context.Context, params P) (any, error)) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params P
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
			if raw[0] != '{' {
				return nil, InvalidParams(errors.New("params must be an object"))
			}
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&params); err != nil {
				return nil, InvalidParams(err)
			}
		}
		if err := validate.Struct(params); err != nil {
			return nil, InvalidParams(err)
		}
		return fn(ctx, params)
	}
}

type Dispatcher struct {
	methods  map[string]HandlerFunc
	log      *slog.Logger
	observer Observer
}

func NewDispatcher(log *slog.Logger, observer Observer) *Dispatcher {
	return &Dispatcher{methods: map[string]HandlerFunc{}, log: log, observer: observer}
}

func (d *Dispatcher) Register(name string, h HandlerFunc) {
	if _, ok := d.methods[name]; ok {
		panic(fmt.Sprintf("rpc: method %q registered twice", name))
	}
	d.methods[name] = h
}

// Methods lists the registered method names in sorted order.
func (d *Dispatcher) Methods() []string {
	names := make([]string, 0, len(d.methods))
	for name := range d.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle serves a single request or a batch and returns the encoded response. It
// returns nil when nothing is to be sent back, i.e. for notifications.
func (d *Dispatcher) Handle(ctx context.Context, payload []byte) ([]byte, error) {
	d.log.Debug("Incoming data", "payload", string(payload))

	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || !json.Valid(payload) {
		return json.Marshal(Response{Error: ErrParse})
	}

	if payload[0] != '[' {
		resp := d.handleOne(ctx, payload)
		if resp == nil {
			return nil, nil
		}
		return json.Marshal(resp)
	}

	var batch []json.RawMessage
	if err := json.Unmarshal(payload, &batch); err != nil {
		return json.Marshal(Response{Error: ErrParse})
	}
	if len(batch) == 0 {
		return json.Marshal(Response{Error: ErrInvalidRequest})
	}

	responses := make([]*Response, 0, len(batch))
	for _, raw := range batch {
		if resp := d.handleOne(ctx, raw); resp != nil {
			responses = append(responses, resp)
		}
	}
	if len(responses) == 0 {
		return nil, nil
	}
	return json.Marshal(responses)
}

func (d *Dispatcher) handleOne(ctx context.Context, raw json.RawMessage) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return &Response{Error: ErrInvalidRequest}
	}
	if req.JSONRPC != Version || req.Method == "" {
		return &Response{ID: req.ID, Error: ErrInvalidRequest}
	}

	start := time.Now()
	result, rpcErr := d.call(ctx, &req)
	if d.observer != nil {
		label := req.Method
		if _, ok := d.methods[label]; !ok {
			label = "unknown"
		}
		code := 0
		if rpcErr != nil {
			code = rpcErr.Code
		}
		d.observer.Observe(label, code, time.Since(start))
	}

	if req.IsNotification() {
		return nil
	}
	if rpcErr != nil {
		return &Response{ID: req.ID, Error: rpcErr}
	}
	return &Response{ID: req.ID, Result: result}
}

func (d *Dispatcher) call(ctx context.Context, req *Request) (result any, rpcErr *Error) {
	h, ok := d.methods[req.Method]
	if !ok {
		return nil, ErrMethodNotFound
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Method panicked", "method", req.Method, "panic", r)
			result, rpcErr = nil, ErrInternal
		}
	}()

	result, err := h(ctx, req.Params)
	if err == nil {
		// Encode now so a result that cannot be marshalled becomes an error response.
		if _, err = json.Marshal(result); err == nil {
			return result, nil
		}
	}
	if errors.As(err, &rpcErr) {
		return nil, rpcErr
	}
	d.log.Error("Method failed", "method", req.Method, "error", err)
	return nil, ErrInternal
}
