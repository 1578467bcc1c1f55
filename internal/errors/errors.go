package errors

import "fmt"

var (
	ErrUsernameUsed    = fmt.Errorf("username is already used")
	ErrNotFound        = fmt.Errorf("not found")
	ErrNotMember       = fmt.Errorf("user is not a member of the chat")
	ErrUnauthenticated = fmt.Errorf("no user bound to the request")
	ErrTooManyAttempts = fmt.Errorf("could not mint a unique value")
)
