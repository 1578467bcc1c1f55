//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
package store

import (
	"context"
	"errors"

	"github.com/pliu/quachat/internal/models"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate key")

// MessageFilter selects a slice of a chat's history. When Last is positive it wins
// over the time bounds. Bounds are inclusive and expressed in microseconds.
type MessageFilter struct {
	Start *int64
	End   *int64
	Last  int
}

// Queries is the set of operations available both on the store and inside a
// transaction.
type Queries interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	UserExists(ctx context.Context, name string) (bool, error)
	GetUserByToken(ctx context.Context, token string) (*models.User, error)

	// Chat operations
	CreateChat(ctx context.Context, chat *models.Chat) error
	ChatExists(ctx context.Context, id string) (bool, error)
	GetUserChats(ctx context.Context, user string) ([]models.Chat, error)
	SearchPublicChats(ctx context.Context, prefix string, limit int) ([]models.Chat, error)

	// Membership operations
	AddMember(ctx context.Context, membership *models.Membership) error
	RemoveMember(ctx context.Context, user, chat string) (int64, error)
	IsMember(ctx context.Context, user, chat string) (bool, error)

	// Message operations
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetChatMessages(ctx context.Context, chat string, filter MessageFilter) ([]models.Message, error)
}

type Store interface {
	Queries

	// InTx runs fn inside a transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(q Queries) error) error
	Close() error
}
