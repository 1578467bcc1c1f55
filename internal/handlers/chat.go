package handlers

import (
	"context"

	"github.com/pliu/quachat/internal/messages"
	"github.com/pliu/quachat/internal/middleware"
)

// CreateChatParams.Name must be present but may be empty.
type CreateChatParams struct {
	Name      *string `json:"name" validate:"required,max=50"`
	IsPrivate bool    `json:"is_private"`
}

type SearchChatsParams struct {
	SearchStr *string `json:"search_str" validate:"required,max=50"`
}

type ChatParams struct {
	Chat string `json:"chat" validate:"required"`
}

type CreateMessageParams struct {
	Chat string  `json:"chat" validate:"required"`
	Text *string `json:"text" validate:"required,max=4096"`
}

// ListMessagesParams bounds are unix seconds. Last of 0 means not given.
type ListMessagesParams struct {
	Chat  string   `json:"chat" validate:"required"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
	Last  int      `json:"last" validate:"gte=0"`
}

func (a *API) createChat(ctx context.Context, p CreateChatParams) (any, error) {
	id, err := a.Chats.Create(ctx, *p.Name, middleware.UserFromContext(ctx), p.IsPrivate)
	return result(id, err)
}

func (a *API) listChats(ctx context.Context, _ NoParams) (any, error) {
	chats, err := a.Chats.List(ctx, middleware.UserFromContext(ctx))
	return result(chats, err)
}

func (a *API) searchChats(ctx context.Context, p SearchChatsParams) (any, error) {
	chats, err := a.Chats.Search(ctx, *p.SearchStr)
	return result(chats, err)
}

func (a *API) joinChat(ctx context.Context, p ChatParams) (any, error) {
	err := a.Members.Join(ctx, p.Chat, middleware.UserFromContext(ctx))
	return result(true, err)
}

func (a *API) leaveChat(ctx context.Context, p ChatParams) (any, error) {
	err := a.Members.Leave(ctx, p.Chat, middleware.UserFromContext(ctx))
	return result(true, err)
}

func (a *API) createMessage(ctx context.Context, p CreateMessageParams) (any, error) {
	id, err := a.Messages.Create(ctx, middleware.UserFromContext(ctx), p.Chat, *p.Text, false)
	return result(id, err)
}

func (a *API) listMessages(ctx context.Context, p ListMessagesParams) (any, error) {
	msgs, err := a.Messages.List(ctx, middleware.UserFromContext(ctx), p.Chat, messages.Query{
		Start: p.Start,
		End:   p.End,
		Last:  p.Last,
	})
	return result(msgs, err)
}
