// Package note implements the markdown file lifecycle: active files, the
// per-owner trash and permanent removal.
//
// Title uniqueness holds only among a user's active files. Trashing never
// conflicts; restoring can. The partial unique index on (user_id, title)
// decides every clash, so the service never relies on a check-then-act read.
package note

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/d9705996/marknote/internal/apperr"
	"github.com/d9705996/marknote/internal/model"
	"github.com/d9705996/marknote/internal/paging"
	"github.com/d9705996/marknote/internal/patch"
	"github.com/d9705996/marknote/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RestoreAllLimit is the default cap on how many trashed files one
// RestoreAll call loads.
const RestoreAllLimit = 1000

// OrderBy lists the columns active listings may be sorted by.
var OrderBy = []string{"created_at", "updated_at", "title"}

const (
	transitionCreate  = "create"
	transitionTrash   = "trash"
	transitionRestore = "restore"
	transitionPurge   = "purge"
)

// CreateInput is the payload of Create.
type CreateInput struct {
	Title   string
	Content string
	GroupID *string
}

// Patch is a partial update of a file. GroupID set to null, "" or "null"
// removes the file from its group.
type Patch struct {
	Title   patch.Field[string] `json:"title"`
	Content patch.Field[string] `json:"content"`
	GroupID patch.Field[string] `json:"groupId"`
}

// ListOptions filters and pages an active listing.
type ListOptions struct {
	Page      int
	Limit     int
	OrderBy   string
	Order     string
	GroupID   string
	Ungrouped bool
}

// Service enforces the file state machine on top of the repositories.
type Service struct {
	files       store.FileRepository
	groups      store.GroupRepository
	log         *slog.Logger
	transitions  metric.Int64Counter
	now          func() time.Time
	restoreLimit int
}

// Option configures a Service.
type Option func(*Service)

// WithRestoreAllLimit overrides RestoreAllLimit.
func WithRestoreAllLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.restoreLimit = n
		}
	}
}

// NewService creates a Service. The transition counter is registered on the
// global OTel meter provider.
func NewService(files store.FileRepository, groups store.GroupRepository, log *slog.Logger, opts ...Option) *Service {
	counter, err := otel.Meter("github.com/d9705996/marknote/internal/note").Int64Counter(
		"marknote.file.transitions",
		metric.WithDescription("File lifecycle transitions."),
	)
	if err != nil {
		log.Warn("note: transition counter unavailable", "err", err)
	}
	s := &Service{
		files:        files,
		groups:       groups,
		log:          log,
		transitions:  counter,
		now:          func() time.Time { return time.Now().UTC() },
		restoreLimit: RestoreAllLimit,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) record(ctx context.Context, transition, ownerID string, n int64) {
	if n <= 0 {
		return
	}
	if s.transitions != nil {
		s.transitions.Add(ctx, n, metric.WithAttributes(attribute.String("transition", transition)))
	}
	s.log.DebugContext(ctx, "file transition", "transition", transition, "owner", ownerID, "count", n)
}

// Create stores a new active file.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*model.File, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.ValidationErr("title is required")
	}
	f := &model.File{Title: title, Content: in.Content, UserID: ownerID}
	if in.GroupID != nil && !detaches(*in.GroupID) {
		if err := s.requireGroup(ctx, ownerID, *in.GroupID); err != nil {
			return nil, err
		}
		gid := *in.GroupID
		f.GroupID = &gid
	}
	if err := s.files.Create(ctx, f); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, titleConflict(title)
		}
		return nil, fmt.Errorf("create file: %w", err)
	}
	s.record(ctx, transitionCreate, ownerID, 1)
	return f, nil
}

// Get returns an active file of ownerID.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*model.File, error) {
	f, err := s.files.Get(ctx, ownerID, id, store.Active)
	if err != nil {
		return nil, notFound(err, "file not found", "get file")
	}
	return f, nil
}

// Update applies p to an active file of ownerID.
func (s *Service) Update(ctx context.Context, ownerID, id string, p Patch) (*model.File, error) {
	var c store.FileChanges
	var title string
	if p.Title.Set {
		title = strings.TrimSpace(p.Title.Value)
		if p.Title.Null || title == "" {
			return nil, apperr.ValidationErr("title cannot be empty")
		}
		c.Title = &title
	}
	if p.Content.Set {
		content := p.Content.Value
		c.Content = &content
	}
	if p.GroupID.Set {
		if p.GroupID.Null || detaches(p.GroupID.Value) {
			c.DetachGroup = true
		} else {
			// A missing file is reported before a bad group.
			if _, err := s.files.Get(ctx, ownerID, id, store.Active); err != nil {
				return nil, notFound(err, "file not found", "update file")
			}
			if err := s.requireGroup(ctx, ownerID, p.GroupID.Value); err != nil {
				return nil, err
			}
			gid := p.GroupID.Value
			c.GroupID = &gid
		}
	}

	f, err := s.files.Update(ctx, ownerID, id, c)
	switch {
	case err == nil:
		return f, nil
	case errors.Is(err, store.ErrDuplicate):
		return nil, titleConflict(title)
	default:
		return nil, notFound(err, "file not found", "update file")
	}
}

// SoftDelete moves an active file to the trash.
func (s *Service) SoftDelete(ctx context.Context, ownerID, id string) error {
	n, err := s.files.SetTrashed(ctx, ownerID, []string{id}, s.now())
	if err != nil {
		return fmt.Errorf("trash file: %w", err)
	}
	if n == 0 {
		return apperr.NotFoundErr("file not found")
	}
	s.record(ctx, transitionTrash, ownerID, n)
	return nil
}

// BulkSoftDelete trashes the owned active files among ids and returns how
// many were moved. Ids that do not match are skipped silently.
func (s *Service) BulkSoftDelete(ctx context.Context, ownerID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, apperr.ValidationErr("file ids are required")
	}
	n, err := s.files.SetTrashed(ctx, ownerID, ids, s.now())
	if err != nil {
		return 0, fmt.Errorf("bulk trash files: %w", err)
	}
	s.record(ctx, transitionTrash, ownerID, n)
	return n, nil
}

// Restore moves a trashed file back to the active set. It never renames:
// an active file with the same title makes it fail with a conflict.
func (s *Service) Restore(ctx context.Context, ownerID, id string) (*model.File, error) {
	f, err := s.files.Get(ctx, ownerID, id, store.Trashed)
	if err != nil {
		return nil, notFound(err, "file not found in trash", "restore file")
	}
	n, err := s.files.Restore(ctx, ownerID, []string{id})
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return nil, titleConflict(f.Title)
	case err != nil:
		return nil, fmt.Errorf("restore file: %w", err)
	case n == 0:
		return nil, apperr.NotFoundErr("file not found in trash")
	}
	s.record(ctx, transitionRestore, ownerID, n)
	restored, err := s.files.Get(ctx, ownerID, id, store.Active)
	if err != nil {
		return nil, fmt.Errorf("reload restored file: %w", err)
	}
	return restored, nil
}

// RestoreAll restores every trashed file of ownerID, up to the restore limit
// (RestoreAllLimit unless overridden), or none of them. Titles that clash
// with an active file or with another file in the same batch are all
// reported in one conflict error.
func (s *Service) RestoreAll(ctx context.Context, ownerID string) (int64, error) {
	trashed, _, err := s.files.List(ctx, ownerID, store.FileQuery{
		State:   store.Trashed,
		Limit:   s.restoreLimit,
		OrderBy: "deleted_at",
		Desc:    true,
	})
	if err != nil {
		return 0, fmt.Errorf("load trash: %w", err)
	}
	if len(trashed) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(trashed))
	titles := make([]string, 0, len(trashed))
	seen := make(map[string]int, len(trashed))
	for _, f := range trashed {
		ids = append(ids, f.ID)
		if seen[f.Title] == 0 {
			titles = append(titles, f.Title)
		}
		seen[f.Title]++
	}

	active, err := s.files.ExistingTitles(ctx, ownerID, titles)
	if err != nil {
		return 0, fmt.Errorf("check active titles: %w", err)
	}
	clash := make(map[string]bool, len(active))
	for _, t := range active {
		clash[t] = true
	}
	var conflicts []string
	for _, t := range titles {
		if clash[t] || seen[t] > 1 {
			conflicts = append(conflicts, t)
		}
	}
	if len(conflicts) > 0 {
		return 0, apperr.ConflictErr("cannot restore files with titles already in use", conflicts...)
	}

	n, err := s.files.Restore(ctx, ownerID, ids)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return 0, apperr.ConflictErr("cannot restore files with titles already in use")
		}
		return 0, fmt.Errorf("restore trash: %w", err)
	}
	s.record(ctx, transitionRestore, ownerID, n)
	return n, nil
}

// PermanentDelete removes a trashed file for good. Active files must be
// trashed first.
func (s *Service) PermanentDelete(ctx context.Context, ownerID, id string) error {
	f, err := s.files.Get(ctx, ownerID, id, store.AnyState)
	if err != nil {
		return notFound(err, "file not found", "delete file")
	}
	if !f.Trashed() {
		return apperr.NotFoundErr("file is not in trash")
	}
	n, err := s.files.HardDelete(ctx, ownerID, id, store.Trashed)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if n == 0 {
		return apperr.NotFoundErr("file is not in trash")
	}
	s.record(ctx, transitionPurge, ownerID, n)
	return nil
}

// EmptyTrash removes every trashed file of ownerID and returns the count.
func (s *Service) EmptyTrash(ctx context.Context, ownerID string) (int64, error) {
	n, err := s.files.DeleteTrashed(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("empty trash: %w", err)
	}
	s.record(ctx, transitionPurge, ownerID, n)
	return n, nil
}

// ListActive returns one page of active files.
func (s *Service) ListActive(ctx context.Context, ownerID string, opts ListOptions) (paging.Result[model.File], error) {
	return s.list(ctx, ownerID, "", opts)
}

// Search matches keyword case-insensitively against title or content of
// active files. A blank keyword lists without filtering.
func (s *Service) Search(ctx context.Context, ownerID, keyword string, opts ListOptions) (paging.Result[model.File], error) {
	return s.list(ctx, ownerID, strings.TrimSpace(keyword), opts)
}

func (s *Service) list(ctx context.Context, ownerID, keyword string, opts ListOptions) (paging.Result[model.File], error) {
	p := paging.Normalize(paging.Request{
		Page:    opts.Page,
		Limit:   opts.Limit,
		OrderBy: opts.OrderBy,
		Order:   opts.Order,
	}, OrderBy...)
	files, total, err := s.files.List(ctx, ownerID, store.FileQuery{
		State:     store.Active,
		GroupID:   opts.GroupID,
		Ungrouped: opts.Ungrouped,
		Keyword:   keyword,
		Offset:    p.Offset(),
		Limit:     p.Limit,
		OrderBy:   p.OrderBy,
		Desc:      p.Desc(),
	})
	if err != nil {
		return paging.Result[model.File]{}, fmt.Errorf("list files: %w", err)
	}
	return paging.NewResult(files, total, p), nil
}

// ListTrashed returns one page of the trash, most recently trashed first.
func (s *Service) ListTrashed(ctx context.Context, ownerID string, page, limit int) (paging.Result[model.File], error) {
	p := paging.Normalize(paging.Request{Page: page, Limit: limit})
	files, total, err := s.files.List(ctx, ownerID, store.FileQuery{
		State:   store.Trashed,
		Offset:  p.Offset(),
		Limit:   p.Limit,
		OrderBy: "deleted_at",
		Desc:    true,
	})
	if err != nil {
		return paging.Result[model.File]{}, fmt.Errorf("list trash: %w", err)
	}
	return paging.NewResult(files, total, p), nil
}

// Count returns the number of active files of ownerID.
func (s *Service) Count(ctx context.Context, ownerID string) (int64, error) {
	n, err := s.files.Count(ctx, ownerID, store.Active)
	if err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return n, nil
}

// PurgeExpired removes files of every owner that have been in the trash for
// longer than olderThan.
func (s *Service) PurgeExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, apperr.ValidationErr("retention must be positive")
	}
	n, err := s.files.PurgeTrashedBefore(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("purge trash: %w", err)
	}
	if n > 0 {
		if s.transitions != nil {
			s.transitions.Add(ctx, n, metric.WithAttributes(attribute.String("transition", transitionPurge)))
		}
		s.log.InfoContext(ctx, "purged expired trash", "count", n, "older_than", olderThan)
	}
	return n, nil
}

func (s *Service) requireGroup(ctx context.Context, ownerID, groupID string) error {
	ok, err := s.groups.Exists(ctx, ownerID, groupID)
	if err != nil {
		return fmt.Errorf("check group: %w", err)
	}
	if !ok {
		return apperr.NotFoundErr("group not found")
	}
	return nil
}

// detaches reports whether a group id value means "no group".
func detaches(groupID string) bool {
	v := strings.TrimSpace(groupID)
	return v == "" || v == "null"
}

func titleConflict(title string) error {
	return apperr.ConflictErr(fmt.Sprintf("a file titled %q already exists", title))
}

// notFound turns store.ErrNotFound into a NotFound error and wraps anything
// else with op.
func notFound(err error, msg, op string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFoundErr(msg)
	}
	return fmt.Errorf("%s: %w", op, err)
}
