// Package chats creates chats and answers chat listings and discovery searches.
package chats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pliu/quachat/internal/auth"
	apperr "github.com/pliu/quachat/internal/errors"
	"github.com/pliu/quachat/internal/membership"
	"github.com/pliu/quachat/internal/messages"
	"github.com/pliu/quachat/internal/models"
	"github.com/pliu/quachat/internal/store"
)

type Registry struct {
	db          store.Store
	members     *membership.Ledger
	messages    *messages.Log
	searchLimit int
	log         *slog.Logger
}

func New(db store.Store, members *membership.Ledger, msgs *messages.Log, searchLimit int, log *slog.Logger) *Registry {
	return &Registry{db: db, members: members, messages: msgs, searchLimit: searchLimit, log: log}
}

// Create stores a chat, makes creator its first member and posts the creation
// notice, all in one transaction. It returns the new chat id.
func (r *Registry) Create(ctx context.Context, name string, creator *models.User, isPrivate bool) (string, error) {
	if creator == nil {
		return "", apperr.ErrUnauthenticated
	}

	chat := &models.Chat{ID: auth.NewID(), Name: name, IsPrivate: isPrivate}
	err := r.db.InTx(ctx, func(q store.Queries) error {
		if err := q.CreateChat(ctx, chat); err != nil {
			return fmt.Errorf("create chat %q: %w", name, err)
		}
		if err := r.members.AddTx(ctx, q, chat.ID, creator.Name); err != nil {
			return err
		}
		_, err := r.messages.AppendSystem(ctx, q, chat.ID, fmt.Sprintf("Chat %s created", name))
		return err
	})
	if err != nil {
		return "", err
	}

	r.log.Info("Chat created", "chat", chat.ID, "name", name, "creator", creator.Name, "private", isPrivate)
	return chat.ID, nil
}

// List returns the chats user belongs to.
func (r *Registry) List(ctx context.Context, user *models.User) ([]models.Chat, error) {
	if user == nil {
		return nil, apperr.ErrUnauthenticated
	}
	chats, err := r.db.GetUserChats(ctx, user.Name)
	if err != nil {
		return nil, fmt.Errorf("list chats of %s: %w", user.Name, err)
	}
	return chats, nil
}

// Search returns public chats whose name starts with prefix. Membership is not
// required.
func (r *Registry) Search(ctx context.Context, prefix string) ([]models.Chat, error) {
	chats, err := r.db.SearchPublicChats(ctx, prefix, r.searchLimit)
	if err != nil {
		return nil, fmt.Errorf("search chats %q: %w", prefix, err)
	}
	return chats, nil
}
