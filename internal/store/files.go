package store

import (
	"context"
	"time"

	"github.com/d9705996/marknote/internal/model"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Files is the GORM implementation of FileRepository.
type Files struct {
	db *gorm.DB
}

// NewFiles creates a Files repository backed by db.
func NewFiles(db *gorm.DB) *Files {
	return &Files{db: db}
}

func ownedBy(ownerID string) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("user_id = ?", ownerID)
	}
}

func inState(state State) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		switch state {
		case Active:
			return tx.Where("deleted_at IS NULL")
		case Trashed:
			return tx.Where("deleted_at IS NOT NULL")
		default:
			return tx
		}
	}
}

// Create inserts f. A title already used by an active file of the same
// owner yields ErrDuplicate.
func (r *Files) Create(ctx context.Context, f *model.File) error {
	return translate(r.db.WithContext(ctx).Create(f).Error)
}

// Get returns the file with id owned by ownerID in the given state.
func (r *Files) Get(ctx context.Context, ownerID, id string, state State) (*model.File, error) {
	var f model.File
	err := r.db.WithContext(ctx).
		Scopes(ownedBy(ownerID), inState(state)).
		Where("id = ?", id).
		First(&f).Error
	if err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

// List returns one page of files matching q plus the total match count.
// The page and the count are fetched concurrently.
func (r *Files) List(ctx context.Context, ownerID string, q FileQuery) ([]model.File, int64, error) {
	g, gctx := errgroup.WithContext(ctx)
	filtered := func() *gorm.DB {
		tx := r.db.WithContext(gctx).
			Model(&model.File{}).
			Scopes(ownedBy(ownerID), inState(q.State))
		switch {
		case q.Ungrouped:
			tx = tx.Where("group_id IS NULL")
		case q.GroupID != "":
			tx = tx.Where("group_id = ?", q.GroupID)
		}
		if q.Keyword != "" {
			p := likePattern(q.Keyword)
			tx = tx.Where(`(title_fold LIKE ? ESCAPE '\' OR content_fold LIKE ? ESCAPE '\')`, p, p)
		}
		return tx
	}

	var total int64
	g.Go(func() error {
		return filtered().Count(&total).Error
	})

	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	var files []model.File
	g.Go(func() error {
		return filtered().
			Order(clause.OrderByColumn{Column: clause.Column{Name: orderBy}, Desc: q.Desc}).
			Order("id").
			Offset(q.Offset).
			Limit(q.Limit).
			Find(&files).Error
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return files, total, nil
}

// Count returns the number of files owned by ownerID in state.
func (r *Files) Count(ctx context.Context, ownerID string, state State) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.File{}).
		Scopes(ownedBy(ownerID), inState(state)).
		Count(&n).Error
	return n, err
}

// Update applies c to an active file and returns the stored row.
func (r *Files) Update(ctx context.Context, ownerID, id string, c FileChanges) (*model.File, error) {
	if c.Empty() {
		return r.Get(ctx, ownerID, id, Active)
	}
	cols := map[string]any{}
	if c.Title != nil {
		cols["title"] = *c.Title
		cols["title_fold"] = model.Fold(*c.Title)
	}
	if c.Content != nil {
		cols["content"] = *c.Content
		cols["content_fold"] = model.Fold(*c.Content)
	}
	switch {
	case c.DetachGroup:
		cols["group_id"] = nil
	case c.GroupID != nil:
		cols["group_id"] = *c.GroupID
	}

	res := r.db.WithContext(ctx).
		Model(&model.File{}).
		Scopes(ownedBy(ownerID), inState(Active)).
		Where("id = ?", id).
		Updates(cols)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, ownerID, id, Active)
}

// SetTrashed moves the active files among ids to the trash and returns how
// many rows changed. Ids that are not owned or already trashed are skipped.
func (r *Files) SetTrashed(ctx context.Context, ownerID string, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.File{}).
		Scopes(ownedBy(ownerID), inState(Active)).
		Where("id IN ?", ids).
		Update("deleted_at", at)
	return res.RowsAffected, res.Error
}

// Restore clears deleted_at on the trashed files among ids in a single
// statement, so either every row is restored or none is.
func (r *Files) Restore(ctx context.Context, ownerID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.File{}).
		Scopes(ownedBy(ownerID), inState(Trashed)).
		Where("id IN ?", ids).
		Update("deleted_at", nil)
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}

// ExistingTitles returns those titles already used by active files of ownerID.
func (r *Files) ExistingTitles(ctx context.Context, ownerID string, titles []string) ([]string, error) {
	if len(titles) == 0 {
		return nil, nil
	}
	var out []string
	err := r.db.WithContext(ctx).
		Model(&model.File{}).
		Scopes(ownedBy(ownerID), inState(Active)).
		Where("title IN ?", titles).
		Distinct().
		Pluck("title", &out).Error
	return out, err
}

// HardDelete physically removes the file with id if it is owned by ownerID
// and in state.
func (r *Files) HardDelete(ctx context.Context, ownerID, id string, state State) (int64, error) {
	res := r.db.WithContext(ctx).
		Scopes(ownedBy(ownerID), inState(state)).
		Where("id = ?", id).
		Delete(&model.File{})
	return res.RowsAffected, res.Error
}

// DeleteTrashed physically removes every trashed file of ownerID.
func (r *Files) DeleteTrashed(ctx context.Context, ownerID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Scopes(ownedBy(ownerID), inState(Trashed)).
		Delete(&model.File{})
	return res.RowsAffected, res.Error
}

// PurgeTrashedBefore removes files of every owner trashed before cutoff.
func (r *Files) PurgeTrashedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Delete(&model.File{})
	return res.RowsAffected, res.Error
}
