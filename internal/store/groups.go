package store

import (
	"context"
	"time"

	"github.com/d9705996/marknote/internal/model"
	"gorm.io/gorm"
)

// Groups is the GORM implementation of GroupRepository.
type Groups struct {
	db *gorm.DB
}

// NewGroups creates a Groups repository backed by db.
func NewGroups(db *gorm.DB) *Groups {
	return &Groups{db: db}
}

func activeFiles(tx *gorm.DB) *gorm.DB {
	return tx.Where("deleted_at IS NULL").Order("created_at DESC")
}

// Create inserts g. A name already used by an active group of the same
// owner (ignoring case) yields ErrDuplicate.
func (r *Groups) Create(ctx context.Context, g *model.Group) error {
	return translate(r.db.WithContext(ctx).Create(g).Error)
}

// Get returns an active group owned by ownerID with its active files.
func (r *Groups) Get(ctx context.Context, ownerID, id string) (*model.Group, error) {
	var g model.Group
	err := r.db.WithContext(ctx).
		Preload("Files", activeFiles).
		Scopes(ownedBy(ownerID), inState(Active)).
		Where("id = ?", id).
		First(&g).Error
	if err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

// Exists reports whether ownerID has an active group with id. Unlike Get it
// loads no files.
func (r *Groups) Exists(ctx context.Context, ownerID, id string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Group{}).
		Scopes(ownedBy(ownerID), inState(Active)).
		Where("id = ?", id).
		Count(&n).Error
	return n > 0, err
}

// List returns one page of active groups, newest first, plus the total.
func (r *Groups) List(ctx context.Context, ownerID string, offset, limit int) ([]model.Group, int64, error) {
	base := r.db.WithContext(ctx).
		Model(&model.Group{}).
		Scopes(ownedBy(ownerID), inState(Active))

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var groups []model.Group
	err := base.Session(&gorm.Session{}).
		Preload("Files", activeFiles).
		Order("created_at DESC").
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&groups).Error
	if err != nil {
		return nil, 0, err
	}
	return groups, total, nil
}

// NameTaken reports whether another active group of ownerID already uses
// name, compared case-insensitively.
func (r *Groups) NameTaken(ctx context.Context, ownerID, name, excludeID string) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&model.Group{}).
		Scopes(ownedBy(ownerID), inState(Active)).
		Where("name_fold = ?", model.Fold(name))
	if excludeID != "" {
		tx = tx.Where("id <> ?", excludeID)
	}
	var n int64
	if err := tx.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Rename sets the name of an active group and returns the stored row.
func (r *Groups) Rename(ctx context.Context, ownerID, id, name string) (*model.Group, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Group{}).
		Scopes(ownedBy(ownerID), inState(Active)).
		Where("id = ?", id).
		Updates(map[string]any{"name": name, "name_fold": model.Fold(name)})
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, ownerID, id)
}

// SoftDelete marks the group deleted and clears the group reference of all
// its files, active or trashed, in one transaction.
func (r *Groups) SoftDelete(ctx context.Context, ownerID, id string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Group{}).
			Scopes(ownedBy(ownerID), inState(Active)).
			Where("id = ?", id).
			Update("deleted_at", at)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&model.File{}).
			Scopes(ownedBy(ownerID)).
			Where("group_id = ?", id).
			Update("group_id", nil).Error
	})
}
