package chats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	apperr "github.com/pliu/quachat/internal/errors"
	"github.com/pliu/quachat/internal/logs"
	"github.com/pliu/quachat/internal/membership"
	"github.com/pliu/quachat/internal/messages"
	"github.com/pliu/quachat/internal/models"
	"github.com/pliu/quachat/internal/store"
	"github.com/pliu/quachat/internal/store/sqlstore"
)

var (
	alice = &models.User{Name: "alice", Token: "alice-token"}
	bob   = &models.User{Name: "bob", Token: "bob-token"}
)

func newTestRegistry(t *testing.T) (*Registry, *sqlstore.SQLStore) {
	t.Helper()
	db, err := sqlstore.New(sqlstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	msgs := messages.New(db, nil, logs.Discard())
	ledger := membership.New(db, msgs, logs.Discard())
	return New(db, ledger, msgs, 50, logs.Discard()), db
}

func TestCreateChat(t *testing.T) {
	req := require.New(t)
	registry, db := newTestRegistry(t)
	ctx := context.Background()

	chatID, err := registry.Create(ctx, "general", alice, false)
	req.NoError(err)
	req.Len(chatID, 32)

	isMember, err := db.IsMember(ctx, "alice", chatID)
	req.NoError(err)
	req.True(isMember)

	msgs, err := db.GetChatMessages(ctx, chatID, store.MessageFilter{})
	req.NoError(err)
	req.Len(msgs, 1)
	req.Equal("Chat general created", msgs[0].Text)
	req.Equal(models.SystemAuthor, msgs[0].Author)
}

func TestCreateChatAnonymous(t *testing.T) {
	registry, _ := newTestRegistry(t)

	_, err := registry.Create(context.Background(), "general", nil, false)
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestListChats(t *testing.T) {
	req := require.New(t)
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	id1, err := registry.Create(ctx, "chat 1", alice, false)
	req.NoError(err)
	id2, err := registry.Create(ctx, "chat 2", alice, true)
	req.NoError(err)
	_, err = registry.Create(ctx, "chat 3", bob, false)
	req.NoError(err)

	chats, err := registry.List(ctx, alice)
	req.NoError(err)
	req.Equal([]models.Chat{
		{ID: id1, Name: "chat 1"},
		{ID: id2, Name: "chat 2", IsPrivate: true},
	}, chats)

	_, err = registry.List(ctx, nil)
	req.ErrorIs(err, apperr.ErrUnauthenticated)
}

func TestSearchChats(t *testing.T) {
	req := require.New(t)
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	publicID, err := registry.Create(ctx, "general", alice, false)
	req.NoError(err)
	_, err = registry.Create(ctx, "gentlemen", alice, true)
	req.NoError(err)
	_, err = registry.Create(ctx, "Generic", alice, false)
	req.NoError(err)

	// Bob is no member of anything and still finds public chats.
	chats, err := registry.Search(ctx, "gen")
	req.NoError(err)
	req.Equal([]models.Chat{{ID: publicID, Name: "general"}}, chats)

	chats, err = registry.Search(ctx, "xyz")
	req.NoError(err)
	req.Empty(chats)
}

func TestSearchChatsLimit(t *testing.T) {
	req := require.New(t)
	db, err := sqlstore.New(sqlstore.DriverSQLite, ":memory:")
	req.NoError(err)
	defer db.Close()

	msgs := messages.New(db, nil, logs.Discard())
	registry := New(db, membership.New(db, msgs, logs.Discard()), msgs, 2, logs.Discard())
	ctx := context.Background()
	for _, name := range []string{"a1", "a2", "a3"} {
		_, err := registry.Create(ctx, name, alice, false)
		req.NoError(err)
	}

	chats, err := registry.Search(ctx, "a")
	req.NoError(err)
	req.Len(chats, 2)
}
