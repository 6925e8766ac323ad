package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"go-member-portal/internal/model"
)

type userFinder interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
}

// IdentityService verifies credentials and supplies identity plus base
// role at login. The security core consumes only its output; everything
// beyond Authenticate is the identity collaborator's business.
type IdentityService struct {
	users userFinder
}

func NewIdentityService(users userFinder) *IdentityService {
	return &IdentityService{users: users}
}

// Authenticate checks the submitted credential. Unknown accounts,
// disabled accounts, and wrong passwords all return the same error so
// the response cannot be used for account enumeration.
func (s *IdentityService) Authenticate(ctx context.Context, email string, password string) (model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return model.User{}, model.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return model.User{}, model.ErrInvalidCredentials
		}
		return model.User{}, err
	}

	if user.Status != "active" {
		return model.User{}, model.ErrInvalidCredentials
	}

	if _, ok := model.ParseRole(string(user.BaseRole)); !ok {
		return model.User{}, model.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.User{}, model.ErrInvalidCredentials
	}

	return user, nil
}
