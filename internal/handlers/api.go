// Package handlers binds the chat operations to JSON-RPC methods and serves them
// over HTTP.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/pliu/quachat/internal/chats"
	apperr "github.com/pliu/quachat/internal/errors"
	"github.com/pliu/quachat/internal/identity"
	"github.com/pliu/quachat/internal/membership"
	"github.com/pliu/quachat/internal/messages"
	"github.com/pliu/quachat/internal/rpc"
)

type Method string

const (
	MethodRegister      Method = "register"
	MethodGetUsername   Method = "get_username"
	MethodCreateChat    Method = "create_chat"
	MethodListChats     Method = "list_chats"
	MethodSearchChats   Method = "search_chats"
	MethodJoinChat      Method = "join_chat"
	MethodLeaveChat     Method = "leave_chat"
	MethodCreateMessage Method = "create_message"
	MethodListMessages  Method = "list_messages"
)

// ErrorResult is a validation or state failure reported as a successful call.
type ErrorResult struct {
	Error string `json:"error"`
}

var (
	usernameUsedResult = ErrorResult{Error: "USERNAME_USED"}
	notFoundResult     = ErrorResult{Error: "Not Found"}
	notMemberResult    = ErrorResult{Error: "not found"}
)

type API struct {
	Identity   *identity.Store
	Chats      *chats.Registry
	Members    *membership.Ledger
	Messages   *messages.Log
	Dispatcher *rpc.Dispatcher

	maxBodyBytes int64
	log          *slog.Logger
}

// NewAPI builds the method table. observer may be nil.
func NewAPI(ids *identity.Store, registry *chats.Registry, members *membership.Ledger, msgs *messages.Log,
	observer rpc.Observer, maxBodyBytes int64, log *slog.Logger) *API {
	a := &API{
		Identity:     ids,
		Chats:        registry,
		Members:      members,
		Messages:     msgs,
		Dispatcher:   rpc.NewDispatcher(log, observer),
		maxBodyBytes: maxBodyBytes,
		log:          log,
	}

	methods := map[Method]rpc.HandlerFunc{
		MethodRegister:      rpc.Method(a.register),
		MethodGetUsername:   rpc.Method(a.getUsername),
		MethodCreateChat:    rpc.Method(a.createChat),
		MethodListChats:     rpc.Method(a.listChats),
		MethodSearchChats:   rpc.Method(a.searchChats),
		MethodJoinChat:      rpc.Method(a.joinChat),
		MethodLeaveChat:     rpc.Method(a.leaveChat),
		MethodCreateMessage: rpc.Method(a.createMessage),
		MethodListMessages:  rpc.Method(a.listMessages),
	}
	for name, h := range methods {
		a.Dispatcher.Register(string(name), h)
	}
	return a
}

// ServeHTTP answers a JSON-RPC request or batch posted to the endpoint.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "only post", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := a.Dispatcher.Handle(r.Context(), body)
	if err != nil {
		a.log.Error("Error encoding response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		a.log.Warn("Error writing response", "error", err)
	}
}

// result turns domain failures into the values or protocol errors callers see.
// Anything else is a store failure and stays an error.
func result(value any, err error) (any, error) {
	switch {
	case err == nil:
		return value, nil
	case errors.Is(err, apperr.ErrUnauthenticated):
		return nil, rpc.ErrUnauthorized
	case errors.Is(err, apperr.ErrUsernameUsed):
		return usernameUsedResult, nil
	case errors.Is(err, apperr.ErrNotFound):
		return notFoundResult, nil
	case errors.Is(err, apperr.ErrNotMember):
		return notMemberResult, nil
	default:
		return nil, err
	}
}
