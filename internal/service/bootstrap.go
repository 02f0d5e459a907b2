package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/course-keeper/internal/errs"
	"github.com/and161185/course-keeper/internal/model"
)

// Seed is a privileged account created on first start.
type Seed struct {
	Email    string
	Password string
	FullName string
	Role     model.Role
}

// SystemActor creates accounts outside any request.
var SystemActor = model.Principal{Role: model.RoleAdmin}

// SeedAccounts creates the given accounts, leaving existing ones untouched.
// It returns how many were created.
func SeedAccounts(ctx context.Context, users UserService, seeds []Seed, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	created := 0
	for _, sd := range seeds {
		if sd.Email == "" {
			continue
		}
		u, err := users.Create(ctx, SystemActor, NewUser{
			Email:    sd.Email,
			Password: sd.Password,
			FullName: sd.FullName,
			Role:     sd.Role,
		})
		switch {
		case errors.Is(err, errs.ErrUserExists):
			log.Info("account exists, skipping", zap.String("email", sd.Email), zap.String("role", string(sd.Role)))
			continue
		case err != nil:
			return created, fmt.Errorf("seed %s account: %w", sd.Role, err)
		}
		log.Info("account created", zap.String("id", u.ID.String()), zap.String("role", string(u.Role)))
		created++
	}
	return created, nil
}
