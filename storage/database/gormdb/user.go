package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/cetrack/core/user"
)

type userRepository struct {
	db *gorm.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *gorm.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) boil(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Email:        usr.Email,
		DisplayName:  usr.DisplayName,
		Role:         usr.Role,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
	}
}

func (repo userRepository) unboil(u userRow) user.User {
	return user.User{
		ID:           u.ID,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		Role:         u.Role,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// trapNotFound maps gorm's "record not found" err to user.ErrNotFound
func (repo userRepository) trapNotFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := repo.db.WithContext(ctx)
	switch {
	case filter.ID != "":
		q = q.Where("id = ?", filter.ID)
	case filter.Email != "":
		q = q.Where("email = ?", filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}

	var u userRow
	if err := q.Take(&u).Error; err != nil {
		return user.User{}, repo.trapNotFound(err, "getting user")
	}
	return repo.unboil(u), nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	u := repo.boil(usr)
	u.ID = uuid.New().String()
	err := repo.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "role", "password_hash", "updated_at"}),
		}).
		Create(&u).Error
	if err != nil {
		return user.User{}, errors.Wrap(err, "upserting user")
	}
	// the generated id is discarded on conflict
	return repo.GetUser(ctx, user.GetFilter{Email: u.Email})
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	u := repo.boil(usr)
	res := repo.db.WithContext(ctx).
		Model(&userRow{ID: u.ID}).
		Select("display_name", "role", "password_hash", "updated_at").
		Updates(&u)
	if res.Error != nil {
		return user.User{}, errors.Wrap(res.Error, "updating user")
	}
	if res.RowsAffected == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: u.ID})
}
