// Package identity registers users and resolves bearer tokens to them.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pliu/quachat/internal/auth"
	apperr "github.com/pliu/quachat/internal/errors"
	"github.com/pliu/quachat/internal/models"
	"github.com/pliu/quachat/internal/store"
)

const (
	maxNameAttempts     = 1000
	maxTokenAttempts    = 16
	maxRegisterAttempts = 16
)

type Store struct {
	db    store.Store
	names *NameGenerator
	log   *slog.Logger
}

func New(db store.Store, names *NameGenerator, log *slog.Logger) *Store {
	return &Store{db: db, names: names, log: log}
}

// IsUsernameUsed is an exact, case-sensitive check.
func (s *Store) IsUsernameUsed(ctx context.Context, name string) (bool, error) {
	used, err := s.db.UserExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check username %q: %w", name, err)
	}
	return used, nil
}

// GetUser returns the user holding token, or nil when there is none.
func (s *Store) GetUser(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	user, err := s.db.GetUserByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get user by token: %w", err)
	}
	return user, nil
}

// GenerateUniqueName draws names until one is free and fits the users table.
func (s *Store) GenerateUniqueName(ctx context.Context) (string, error) {
	for i := 0; i < maxNameAttempts; i++ {
		name := s.names.Generate()
		if !isValidGeneratedName(name) {
			continue
		}
		used, err := s.IsUsernameUsed(ctx, name)
		if err != nil {
			return "", err
		}
		if !used {
			return name, nil
		}
	}
	return "", fmt.Errorf("generate name: %w", apperr.ErrTooManyAttempts)
}

// GenerateUniqueToken derives tokens for name until no user holds one.
func (s *Store) GenerateUniqueToken(ctx context.Context, name string) (string, error) {
	for i := 0; i < maxTokenAttempts; i++ {
		token := auth.NewToken(name)
		user, err := s.GetUser(ctx, token)
		if err != nil {
			return "", err
		}
		if user == nil {
			return token, nil
		}
	}
	return "", fmt.Errorf("generate token: %w", apperr.ErrTooManyAttempts)
}

// Register creates a user. An empty name is replaced by a generated one, which always
// succeeds. An explicit name that is taken or reserved fails with ErrUsernameUsed.
func (s *Store) Register(ctx context.Context, name string) (*models.User, error) {
	generated := name == ""
	if name == models.SystemAuthor {
		return nil, apperr.ErrUsernameUsed
	}

	for attempt := 0; attempt < maxRegisterAttempts; attempt++ {
		var err error
		if generated {
			if name, err = s.GenerateUniqueName(ctx); err != nil {
				return nil, err
			}
		} else {
			used, err := s.IsUsernameUsed(ctx, name)
			if err != nil {
				return nil, err
			}
			if used {
				return nil, apperr.ErrUsernameUsed
			}
		}

		token, err := s.GenerateUniqueToken(ctx, name)
		if err != nil {
			return nil, err
		}

		user := &models.User{Name: name, Token: token}
		err = s.db.CreateUser(ctx, user)
		if err == nil {
			s.log.Info("User registered", "name", name, "generated", generated)
			return user, nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("create user %q: %w", name, err)
		}

		// Lost a race on the name or, far less likely, on the token.
		s.log.Debug("Register collided", "name", name, "attempt", attempt)
	}
	return nil, fmt.Errorf("register: %w", apperr.ErrTooManyAttempts)
}

func isValidGeneratedName(name string) bool {
	if name == "" || name == models.SystemAuthor {
		return false
	}
	if utf8.RuneCountInString(name) > models.MaxUserNameLength {
		return false
	}
	return !strings.ContainsFunc(name, unicode.IsSpace)
}
