package handlers

import (
	"context"

	"github.com/pliu/quachat/internal/middleware"
)

// RegisterParams.Name is optional; when empty a name is generated.
type RegisterParams struct {
	Name string `json:"name" validate:"omitempty,max=16"`
}

type NoParams struct{}

func (a *API) register(ctx context.Context, p RegisterParams) (any, error) {
	user, err := a.Identity.Register(ctx, p.Name)
	return result(user, err)
}

func (a *API) getUsername(ctx context.Context, _ NoParams) (any, error) {
	user := middleware.UserFromContext(ctx)
	if user == nil {
		return nil, nil
	}
	return user.Name, nil
}
