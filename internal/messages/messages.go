// Package messages is the append-only message log of every chat.
package messages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pliu/quachat/internal/auth"
	apperr "github.com/pliu/quachat/internal/errors"
	"github.com/pliu/quachat/internal/models"
	"github.com/pliu/quachat/internal/store"
)

// Query slices a chat's history. Start and End are unix seconds and inclusive.
// A positive Last selects the newest Last messages and ignores Start and End.
type Query struct {
	Start *float64
	End   *float64
	Last  int
}

type Log struct {
	db    store.Store
	clock *Clock
	log   *slog.Logger
}

func New(db store.Store, clock *Clock, log *slog.Logger) *Log {
	if clock == nil {
		clock = NewClock(nil)
	}
	return &Log{db: db, clock: clock, log: log}
}

// Append stores a message with a server timestamp and returns its id.
func (l *Log) Append(ctx context.Context, chat, author, text string) (string, error) {
	return l.AppendTx(ctx, l.db, chat, author, text)
}

// AppendTx is Append against q, which may be a transaction.
func (l *Log) AppendTx(ctx context.Context, q store.Queries, chat, author, text string) (string, error) {
	msg := &models.Message{
		ID:      auth.NewID(),
		Text:    text,
		Chat:    chat,
		Author:  author,
		Created: l.clock.Next(),
	}
	if err := q.SaveMessage(ctx, msg); err != nil {
		return "", fmt.Errorf("save message in chat %s: %w", chat, err)
	}
	return msg.ID, nil
}

// AppendSystem stores an automated notice.
func (l *Log) AppendSystem(ctx context.Context, q store.Queries, chat, text string) (string, error) {
	l.log.Debug("System notice", "chat", chat, "text", text)
	return l.AppendTx(ctx, q, chat, models.SystemAuthor, text)
}

// Create posts text to chat on behalf of caller. Unless asSystem is set the caller
// must be a member; otherwise ErrNotFound is returned so that non-members cannot
// tell a missing chat from a chat they are not in.
func (l *Log) Create(ctx context.Context, caller *models.User, chat, text string, asSystem bool) (string, error) {
	if asSystem {
		return l.AppendSystem(ctx, l.db, chat, text)
	}
	if err := l.requireMember(ctx, caller, chat); err != nil {
		return "", err
	}
	return l.Append(ctx, chat, caller.Name, text)
}

// List returns the selected messages oldest first, or ErrNotFound for non-members.
func (l *Log) List(ctx context.Context, caller *models.User, chat string, query Query) ([]models.Message, error) {
	if err := l.requireMember(ctx, caller, chat); err != nil {
		return nil, err
	}

	filter := store.MessageFilter{Last: max(query.Last, 0)}
	if query.Start != nil {
		start := models.EpochToMicros(*query.Start)
		filter.Start = &start
	}
	if query.End != nil {
		end := models.EpochToMicros(*query.End)
		filter.End = &end
	}

	messages, err := l.db.GetChatMessages(ctx, chat, filter)
	if err != nil {
		return nil, fmt.Errorf("list messages of chat %s: %w", chat, err)
	}
	return messages, nil
}

func (l *Log) requireMember(ctx context.Context, caller *models.User, chat string) error {
	if caller == nil {
		return apperr.ErrNotFound
	}
	isMember, err := l.db.IsMember(ctx, caller.Name, chat)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !isMember {
		return apperr.ErrNotFound
	}
	return nil
}
