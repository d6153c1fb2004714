package user

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/cetrack/core"
	"github.com/trezcool/cetrack/core/password"
)

var (
	// errors
	ErrNotFound = errors.New("user not found")
)

type (
	Repository interface {
		// GetUser returns the user matching the first non-empty GetFilter field.
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// UpdateOrCreateUser upserts on the email.
		UpdateOrCreateUser(ctx context.Context, usr User) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service struct {
		repo   Repository
		hasher *password.Hasher
	}
)

func NewService(repo Repository, hasher *password.Hasher) *Service {
	return &Service{repo: repo, hasher: hasher}
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// AddOrUpdate creates the user, or refreshes name, role and password when the email exists.
func (svc *Service) AddOrUpdate(ctx context.Context, nu NewUser) (User, error) {
	hash, err := svc.hasher.Hash(nu.Password)
	if err != nil {
		return User{}, err
	}
	now := time.Now().UTC()
	return svc.repo.UpdateOrCreateUser(ctx, User{
		Email:        nu.Email,
		DisplayName:  nu.DisplayName,
		Role:         nu.Role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (svc *Service) ResetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if usr.PasswordHash, err = svc.hasher.Hash(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

// CheckPassword verifies a login credential against the stored hash.
func (svc *Service) CheckPassword(usr User, cred password.Credential) bool {
	return svc.hasher.Verify(cred, usr.PasswordHash)
}
