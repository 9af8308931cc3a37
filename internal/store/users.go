package store

import (
	"context"
	"time"

	"github.com/d9705996/marknote/internal/model"
	"gorm.io/gorm"
)

// Users is the GORM implementation of UserRepository.
type Users struct {
	db *gorm.DB
}

// NewUsers creates a Users repository backed by db.
func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (r *Users) Create(ctx context.Context, u *model.User) error {
	return translate(r.db.WithContext(ctx).Create(u).Error)
}

func (r *Users) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *Users) first(ctx context.Context, cond string, arg any) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).
		Where(cond+" AND deleted_at IS NULL", arg).
		First(&u).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// EmailTaken reports whether any user other than excludeID holds email.
// Soft-deleted users still hold their address because the column is unique.
func (r *Users) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	return r.taken(ctx, "email", email, excludeID)
}

// UsernameTaken reports whether any user other than excludeID holds username.
func (r *Users) UsernameTaken(ctx context.Context, username, excludeID string) (bool, error) {
	return r.taken(ctx, "username", username, excludeID)
}

func (r *Users) taken(ctx context.Context, col, value, excludeID string) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&model.User{}).Where(col+" = ?", value)
	if excludeID != "" {
		tx = tx.Where("id <> ?", excludeID)
	}
	var n int64
	if err := tx.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Update writes the non-nil fields of c and returns the stored row.
func (r *Users) Update(ctx context.Context, id string, c UserChanges) (*model.User, error) {
	cols := map[string]any{}
	if c.Email != nil {
		cols["email"] = *c.Email
	}
	if c.Username != nil {
		cols["username"] = *c.Username
	}
	if c.PasswordHash != nil {
		cols["password_hash"] = *c.PasswordHash
	}
	if c.AvatarURL != nil {
		cols["avatar_url"] = *c.AvatarURL
	}
	if len(cols) > 0 {
		res := r.db.WithContext(ctx).
			Model(&model.User{}).
			Where("id = ? AND deleted_at IS NULL", id).
			Updates(cols)
		if res.Error != nil {
			return nil, translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return r.GetByID(ctx, id)
}

// SoftDelete marks the user deleted. Files, groups and linked accounts are
// left untouched.
func (r *Users) SoftDelete(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Accounts is the GORM implementation of AccountRepository.
type Accounts struct {
	db *gorm.DB
}

// NewAccounts creates an Accounts repository backed by db.
func NewAccounts(db *gorm.DB) *Accounts {
	return &Accounts{db: db}
}

// GetByProvider returns the account for a provider identity with its user
// preloaded. The user may be soft-deleted; callers decide what that means.
func (r *Accounts) GetByProvider(ctx context.Context, provider, providerID string) (*model.Account, error) {
	var a model.Account
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("provider = ? AND provider_id = ?", provider, providerID).
		First(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r *Accounts) Create(ctx context.Context, a *model.Account) error {
	return translate(r.db.WithContext(ctx).Omit("User").Create(a).Error)
}
