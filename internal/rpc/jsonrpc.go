// Package rpc implements the JSON-RPC 2.0 envelope and a dispatcher over a closed
// table of named methods.
package rpc

import (
	"encoding/json"
	"fmt"
)

const Version = "2.0"

// Standard JSON-RPC 2.0 error codes, plus one server-defined code.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeUnauthorized   = -32001
)

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("jsonrpc %d %s: %v", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("jsonrpc %d %s", e.Code, e.Message)
}

func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrParse          = NewError(CodeParseError, "Parse error")
	ErrInvalidRequest = NewError(CodeInvalidRequest, "Invalid Request")
	ErrMethodNotFound = NewError(CodeMethodNotFound, "Method not found")
	ErrInternal       = NewError(CodeInternalError, "Internal error")
	ErrUnauthorized   = NewError(CodeUnauthorized, "Unauthorized")
)

// InvalidParams reports why the params of a call were rejected.
func InvalidParams(reason error) *Error {
	return &Error{Code: CodeInvalidParams, Message: "Invalid params", Data: reason.Error()}
}

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// IsNotification reports whether the request carries no id and expects no response.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// Response holds either a result or an error. A nil Result is sent as null.
type Response struct {
	ID     json.RawMessage
	Result any
	Error  *Error
}

func (r Response) MarshalJSON() ([]byte, error) {
	id := r.ID
	if id == nil {
		id = json.RawMessage("null")
	}
	if r.Error != nil {
		return json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			Error   *Error          `json:"error"`
			ID      json.RawMessage `json:"id"`
		}{Version, r.Error, id})
	}
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		Result  any             `json:"result"`
		ID      json.RawMessage `json:"id"`
	}{Version, r.Result, id})
}
