// Package membership records which users belong to which chats.
package membership

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pliu/quachat/internal/auth"
	apperr "github.com/pliu/quachat/internal/errors"
	"github.com/pliu/quachat/internal/messages"
	"github.com/pliu/quachat/internal/models"
	"github.com/pliu/quachat/internal/store"
)

type Ledger struct {
	db       store.Store
	messages *messages.Log
	log      *slog.Logger
}

func New(db store.Store, msgs *messages.Log, log *slog.Logger) *Ledger {
	return &Ledger{db: db, messages: msgs, log: log}
}

func (l *Ledger) IsMember(ctx context.Context, user, chat string) (bool, error) {
	isMember, err := l.db.IsMember(ctx, user, chat)
	if err != nil {
		return false, fmt.Errorf("check membership of %s in %s: %w", user, chat, err)
	}
	return isMember, nil
}

// AddTx inserts a membership row without any notice.
func (l *Ledger) AddTx(ctx context.Context, q store.Queries, chat, user string) error {
	m := &models.Membership{ID: auth.NewID(), User: user, Chat: chat}
	if err := q.AddMember(ctx, m); err != nil {
		return fmt.Errorf("add %s to chat %s: %w", user, chat, err)
	}
	return nil
}

// Join makes user a member of chat and posts a notice. Joining twice is a no-op.
// It fails with ErrNotFound when the chat does not exist.
func (l *Ledger) Join(ctx context.Context, chat string, user *models.User) error {
	if user == nil {
		return apperr.ErrUnauthenticated
	}

	joined := false
	err := l.db.InTx(ctx, func(q store.Queries) error {
		exists, err := q.ChatExists(ctx, chat)
		if err != nil {
			return fmt.Errorf("check chat %s: %w", chat, err)
		}
		if !exists {
			return apperr.ErrNotFound
		}

		isMember, err := q.IsMember(ctx, user.Name, chat)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if isMember {
			return nil
		}

		if err := l.AddTx(ctx, q, chat, user.Name); err != nil {
			return err
		}
		joined = true
		_, err = l.messages.AppendSystem(ctx, q, chat, fmt.Sprintf("%s joined the chat", user.Name))
		return err
	})
	if err != nil {
		return err
	}

	if joined {
		l.log.Info("User joined chat", "user", user.Name, "chat", chat)
	}
	return nil
}

// Leave removes every membership row of the pair and posts a notice. It fails with
// ErrNotMember when there is nothing to remove.
func (l *Ledger) Leave(ctx context.Context, chat string, user *models.User) error {
	if user == nil {
		return apperr.ErrNotMember
	}

	err := l.db.InTx(ctx, func(q store.Queries) error {
		removed, err := q.RemoveMember(ctx, user.Name, chat)
		if err != nil {
			return fmt.Errorf("remove %s from chat %s: %w", user.Name, chat, err)
		}
		if removed == 0 {
			return apperr.ErrNotMember
		}
		_, err = l.messages.AppendSystem(ctx, q, chat, fmt.Sprintf("%s left the chat", user.Name))
		return err
	})
	if err != nil {
		return err
	}

	l.log.Info("User left chat", "user", user.Name, "chat", chat)
	return nil
}
