// Package model contains GORM model definitions shared across packages.
// All models are driver-agnostic: they work with both PostgreSQL and SQLite.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Fold is the case folding stored in the *_fold columns. Case-insensitive
// lookups compare folded values so they do not depend on the database's
// LOWER(), which only folds ASCII on SQLite.
func Fold(s string) string { return strings.ToLower(s) }

// User is the GORM model for the users table. PasswordHash is nil for
// accounts that only ever signed in through an OAuth provider.
type User struct {
	ID           string     `gorm:"type:text;primaryKey" json:"id"`
	Email        string     `gorm:"type:text;not null;uniqueIndex" json:"email"`
	Username     string     `gorm:"type:text;not null;uniqueIndex" json:"username"`
	PasswordHash *string    `gorm:"type:text" json:"-"`
	AvatarURL    *string    `gorm:"type:text" json:"avatar_url"`
	DeletedAt    *time.Time `gorm:"index" json:"-"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}

// BeforeCreate generates a UUID primary key if not set.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// HasPassword reports whether the user can log in with a local password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Account links a User to an identity at an external OAuth provider.
type Account struct {
	ID           string    `gorm:"type:text;primaryKey"`
	UserID       string    `gorm:"type:text;not null;index"`
	User         User      `gorm:"foreignKey:UserID"`
	Provider     string    `gorm:"type:text;not null;uniqueIndex:idx_accounts_provider_identity"`
	ProviderID   string    `gorm:"type:text;not null;uniqueIndex:idx_accounts_provider_identity"`
	AccessToken  string    `gorm:"type:text;not null;default:''"`
	RefreshToken *string   `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (a *Account) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// RefreshToken is the GORM model for the refresh_tokens table.
type RefreshToken struct {
	ID        string    `gorm:"type:text;primaryKey"`
	UserID    string    `gorm:"type:text;not null;index"`
	TokenHash string    `gorm:"type:text;not null;uniqueIndex"`
	ExpiresAt time.Time `gorm:"not null"`
	RevokedAt *time.Time
	CreatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (rt *RefreshToken) BeforeCreate(_ *gorm.DB) error {
	if rt.ID == "" {
		rt.ID = uuid.New().String()
	}
	return nil
}

// Group is a named collection of files owned by one user. Name uniqueness
// (case-insensitive, non-deleted groups only) is enforced by a partial index
// on NameFold created in the db package.
type Group struct {
	ID        string     `gorm:"type:text;primaryKey" json:"id"`
	Name      string     `gorm:"type:text;not null" json:"name"`
	NameFold  string     `gorm:"type:text;not null;default:''" json:"-"`
	UserID    string     `gorm:"type:text;not null;index" json:"user_id"`
	Files     []File     `gorm:"foreignKey:GroupID" json:"files,omitempty"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
}

// TableName avoids the GROUPS keyword.
func (Group) TableName() string { return "note_groups" }

// BeforeCreate generates a UUID primary key if not set.
func (g *Group) BeforeCreate(_ *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	g.NameFold = Fold(g.Name)
	return nil
}

// File is a markdown document. DeletedAt == nil means the file is active;
// a non-nil value means it sits in the owner's trash. TitleFold and
// ContentFold hold Fold of Title and Content for keyword search.
type File struct {
	ID          string     `gorm:"type:text;primaryKey" json:"id"`
	Title       string     `gorm:"type:text;not null" json:"title"`
	Content     string     `gorm:"type:text;not null;default:''" json:"content"`
	TitleFold   string     `gorm:"type:text;not null;default:''" json:"-"`
	ContentFold string     `gorm:"type:text;not null;default:''" json:"-"`
	UserID      string     `gorm:"type:text;not null;index" json:"user_id"`
	GroupID     *string    `gorm:"type:text;index" json:"group_id"`
	DeletedAt   *time.Time `gorm:"index" json:"deleted_at"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

// TableName keeps the historical table name.
func (File) TableName() string { return "markdown_files" }

// BeforeCreate generates a UUID primary key if not set.
func (f *File) BeforeCreate(_ *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	f.TitleFold = Fold(f.Title)
	f.ContentFold = Fold(f.Content)
	return nil
}

// Trashed reports whether the file is in the trash.
func (f *File) Trashed() bool { return f.DeletedAt != nil }
