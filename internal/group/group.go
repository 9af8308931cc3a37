// Package group manages named collections of files.
package group

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
)

// Patch is a partial update of a group.
type Patch struct {
	Name patch.Field[string] `json:"name"`
}

// Service enforces group ownership and name uniqueness.
type Service struct {
	groups store.GroupRepository
	log    *slog.Logger
	now    func() time.Time
}

// NewService creates a Service.
func NewService(groups store.GroupRepository, log *slog.Logger) *Service {
	return &Service{
		groups: groups,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create adds a group named name (trimmed) for ownerID.
func (s *Service) Create(ctx context.Context, ownerID, name string) (*model.Group, error) {
	name, err := s.checkName(ctx, ownerID, name, "")
	if err != nil {
		return nil, err
	}
	g := &model.Group{Name: name, UserID: ownerID}
	if err := s.groups.Create(ctx, g); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, nameConflict(name)
		}
		return nil, fmt.Errorf("create group: %w", err)
	}
	g.Files = []model.File{}
	return g, nil
}

// Get returns an active group of ownerID with its active files.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*model.Group, error) {
	g, err := s.groups.Get(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFoundErr("group not found")
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

// List returns one page of active groups, newest first.
func (s *Service) List(ctx context.Context, ownerID string, page, limit int) (paging.Result[model.Group], error) {
	p := paging.Normalize(paging.Request{Page: page, Limit: limit})
	groups, total, err := s.groups.List(ctx, ownerID, p.Offset(), p.Limit)
	if err != nil {
		return paging.Result[model.Group]{}, fmt.Errorf("list groups: %w", err)
	}
	return paging.NewResult(groups, total, p), nil
}

// Update renames a group. The group's own current name never conflicts.
func (s *Service) Update(ctx context.Context, ownerID, id string, p Patch) (*model.Group, error) {
	if !p.Name.Set {
		return s.Get(ctx, ownerID, id)
	}
	if p.Name.Null {
		return nil, apperr.ValidationErr("group name is required")
	}
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	name, err := s.checkName(ctx, ownerID, p.Name.Value, id)
	if err != nil {
		return nil, err
	}
	g, err := s.groups.Rename(ctx, ownerID, id, name)
	switch {
	case err == nil:
		return g, nil
	case errors.Is(err, store.ErrDuplicate):
		return nil, nameConflict(name)
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.NotFoundErr("group not found")
	default:
		return nil, fmt.Errorf("rename group: %w", err)
	}
}

// Delete soft-deletes a group. Its files stay where they are in their own
// lifecycle but lose the group reference.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	err := s.groups.SoftDelete(ctx, ownerID, id, s.now())
	switch {
	case err == nil:
		s.log.DebugContext(ctx, "group deleted", "owner", ownerID, "group", id)
		return nil
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFoundErr("group not found")
	default:
		return fmt.Errorf("delete group: %w", err)
	}
}

// checkName trims name and rejects blanks and names used by another active
// group. The unique index still guards the following write.
func (s *Service) checkName(ctx context.Context, ownerID, name, excludeID string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.ValidationErr("group name is required")
	}
	taken, err := s.groups.NameTaken(ctx, ownerID, name, excludeID)
	if err != nil {
		return "", fmt.Errorf("check group name: %w", err)
	}
	if taken {
		return "", nameConflict(name)
	}
	return name, nil
}

func nameConflict(name string) error {
	return apperr.ConflictErr(fmt.Sprintf("a group named %q already exists", name))
}
