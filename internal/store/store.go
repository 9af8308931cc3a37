// Package store is the GORM-backed persistence layer. Every file and group
// query is scoped by an explicit owner id and a lifecycle predicate.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/d9705996/marknote/internal/model"
)

var (
	// ErrNotFound is returned when no row matches the owner and state.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a unique index.
	ErrDuplicate = errors.New("duplicate record")
)

// State selects a lifecycle partition.
type State int

const (
	Active State = iota
	Trashed
	AnyState
)

// FileQuery filters and pages a file listing.
type FileQuery struct {
	State     State
	GroupID   string // empty means any group
	Ungrouped bool   // only files without a group; wins over GroupID
	Keyword   string // case-insensitive substring of title or content
	Offset    int
	Limit     int
	OrderBy   string
	Desc      bool
}

// FileChanges lists the columns an update writes. Nil fields are untouched.
type FileChanges struct {
	Title       *string
	Content     *string
	GroupID     *string
	DetachGroup bool
}

// Empty reports whether no column would change.
func (c FileChanges) Empty() bool {
	return c.Title == nil && c.Content == nil && c.GroupID == nil && !c.DetachGroup
}

// FileRepository persists markdown files.
type FileRepository interface {
	Create(ctx context.Context, f *model.File) error
	Get(ctx context.Context, ownerID, id string, state State) (*model.File, error)
	List(ctx context.Context, ownerID string, q FileQuery) ([]model.File, int64, error)
	Count(ctx context.Context, ownerID string, state State) (int64, error)
	Update(ctx context.Context, ownerID, id string, c FileChanges) (*model.File, error)
	SetTrashed(ctx context.Context, ownerID string, ids []string, at time.Time) (int64, error)
	Restore(ctx context.Context, ownerID string, ids []string) (int64, error)
	ExistingTitles(ctx context.Context, ownerID string, titles []string) ([]string, error)
	HardDelete(ctx context.Context, ownerID, id string, state State) (int64, error)
	DeleteTrashed(ctx context.Context, ownerID string) (int64, error)
	PurgeTrashedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// GroupRepository persists groups.
type GroupRepository interface {
	Create(ctx context.Context, g *model.Group) error
	Get(ctx context.Context, ownerID, id string) (*model.Group, error)
	Exists(ctx context.Context, ownerID, id string) (bool, error)
	List(ctx context.Context, ownerID string, offset, limit int) ([]model.Group, int64, error)
	NameTaken(ctx context.Context, ownerID, name, excludeID string) (bool, error)
	Rename(ctx context.Context, ownerID, id, name string) (*model.Group, error)
	SoftDelete(ctx context.Context, ownerID, id string, at time.Time) error
}

// UserChanges lists the user columns an update writes. Nil fields are untouched.
type UserChanges struct {
	Email        *string
	Username     *string
	PasswordHash *string
	AvatarURL    *string
}

// UserRepository persists users. Lookups ignore soft-deleted users.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	UsernameTaken(ctx context.Context, username, excludeID string) (bool, error)
	Update(ctx context.Context, id string, c UserChanges) (*model.User, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

// AccountRepository persists linked OAuth identities.
type AccountRepository interface {
	GetByProvider(ctx context.Context, provider, providerID string) (*model.Account, error)
	Create(ctx context.Context, a *model.Account) error
}
