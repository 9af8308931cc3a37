// Package account registers and authenticates users and links OAuth
// identities to them.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/d9705996/marknote/internal/apperr"
	"github.com/d9705996/marknote/internal/model"
	"github.com/d9705996/marknote/internal/oauth"
	"github.com/d9705996/marknote/internal/patch"
	"github.com/d9705996/marknote/internal/store"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"golang.org/x/crypto/bcrypt"
)

const (
	minUsername = 3
	maxUsername = 50
	minPassword = 6
	maxPassword = 72 // bcrypt ignores anything longer

	maxUsernameAttempts = 1000
)

var errInvalidCredentials = apperr.UnauthorizedErr("invalid email or password")

// RegisterInput is the payload of Register.
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

func (in RegisterInput) validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Username, validation.Required, validation.Length(minUsername, maxUsername)),
		validation.Field(&in.Password, validation.Required, validation.Length(minPassword, maxPassword)),
	)
}

// ProfilePatch is a partial update of the caller's profile.
type ProfilePatch struct {
	Email     patch.Field[string] `json:"email"`
	Username  patch.Field[string] `json:"username"`
	AvatarURL patch.Field[string] `json:"avatarUrl"`
}

// Service manages users and their linked identities.
type Service struct {
	users    store.UserRepository
	accounts store.AccountRepository
	log      *slog.Logger
	cost     int
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithHashCost sets the bcrypt cost used for new password hashes.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// NewService creates a Service.
func NewService(users store.UserRepository, accounts store.AccountRepository, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		users:    users,
		accounts: accounts,
		log:      log,
		cost:     bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register creates a user with a local password.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := in.validate(); err != nil {
		return nil, apperr.Wrap(apperr.Validation, err.Error(), err)
	}
	if err := s.checkAvailable(ctx, in.Email, in.Username, ""); err != nil {
		return nil, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	u := &model.User{Email: in.Email, Username: in.Username, PasswordHash: &hash}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.ConflictErr("email or username is already in use")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.InfoContext(ctx, "user registered", "user", u.ID)
	return u, nil
}

// Login checks a local password.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !u.HasPassword() {
		return nil, apperr.UnauthorizedErr("this account signs in with Google or GitHub")
	}
	if bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(password)) != nil {
		return nil, errInvalidCredentials
	}
	return u, nil
}

// Profile returns the user with id.
func (s *Service) Profile(ctx context.Context, id string) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFoundErr("user not found")
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// UpdateProfile changes email, username or avatar of the user with id.
func (s *Service) UpdateProfile(ctx context.Context, id string, p ProfilePatch) (*model.User, error) {
	var c store.UserChanges
	if p.Email.Set {
		email := normalizeEmail(p.Email.Value)
		if err := validation.Validate(email, validation.Required, is.Email); err != nil {
			return nil, apperr.Wrap(apperr.Validation, "email: "+err.Error(), err)
		}
		c.Email = &email
	}
	if p.Username.Set {
		username := strings.TrimSpace(p.Username.Value)
		if err := validation.Validate(username, validation.Required, validation.Length(minUsername, maxUsername)); err != nil {
			return nil, apperr.Wrap(apperr.Validation, "username: "+err.Error(), err)
		}
		c.Username = &username
	}
	if p.AvatarURL.Set {
		avatar := strings.TrimSpace(p.AvatarURL.Value)
		if err := validation.Validate(avatar, is.URL); err != nil {
			return nil, apperr.Wrap(apperr.Validation, "avatarUrl: "+err.Error(), err)
		}
		c.AvatarURL = &avatar
	}

	var email, username string
	if c.Email != nil {
		email = *c.Email
	}
	if c.Username != nil {
		username = *c.Username
	}
	if err := s.checkAvailable(ctx, email, username, id); err != nil {
		return nil, err
	}

	u, err := s.users.Update(ctx, id, c)
	switch {
	case err == nil:
		return u, nil
	case errors.Is(err, store.ErrDuplicate):
		return nil, apperr.ConflictErr("email or username is already in use")
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.NotFoundErr("user not found")
	default:
		return nil, fmt.Errorf("update user: %w", err)
	}
}

// ChangePassword replaces the local password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	u, err := s.Profile(ctx, id)
	if err != nil {
		return err
	}
	if !u.HasPassword() {
		return apperr.ValidationErr("this account has no password; it signs in with Google or GitHub")
	}
	if bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(current)) != nil {
		return apperr.ValidationErr("current password is incorrect")
	}
	if err := validation.Validate(next, validation.Required, validation.Length(minPassword, maxPassword)); err != nil {
		return apperr.Wrap(apperr.Validation, "new password: "+err.Error(), err)
	}
	hash, err := s.hash(next)
	if err != nil {
		return err
	}
	if _, err := s.users.Update(ctx, id, store.UserChanges{PasswordHash: &hash}); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// DeleteAccount soft-deletes the user. Files, groups and linked identities
// are kept.
func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	err := s.users.SoftDelete(ctx, id, s.now())
	switch {
	case err == nil:
		s.log.InfoContext(ctx, "user deleted", "user", id)
		return nil
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFoundErr("user not found")
	default:
		return fmt.Errorf("delete user: %w", err)
	}
}

// LinkOAuth finds or creates the user for a provider identity. The second
// result is false only when the identity was already linked.
func (s *Service) LinkOAuth(ctx context.Context, p *oauth.Profile) (*model.User, bool, error) {
	if p.Provider == "" || p.ProviderID == "" {
		return nil, false, apperr.ValidationErr("provider identity is incomplete")
	}

	acc, err := s.accounts.GetByProvider(ctx, p.Provider, p.ProviderID)
	switch {
	case err == nil:
		if acc.User.DeletedAt != nil {
			return nil, false, apperr.UnauthorizedErr("account has been deleted")
		}
		return &acc.User, false, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, false, fmt.Errorf("find account: %w", err)
	}

	email := normalizeEmail(p.Email)
	if email == "" {
		email = noreplyEmail(p)
	}

	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if u.AvatarURL == nil && p.AvatarURL != "" {
			avatar := p.AvatarURL
			if u, err = s.users.Update(ctx, u.ID, store.UserChanges{AvatarURL: &avatar}); err != nil {
				return nil, false, fmt.Errorf("set avatar: %w", err)
			}
		}
	case errors.Is(err, store.ErrNotFound):
		if u, err = s.createOAuthUser(ctx, p, email); err != nil {
			return nil, false, err
		}
	default:
		return nil, false, fmt.Errorf("find user: %w", err)
	}

	a := &model.Account{
		UserID:      u.ID,
		Provider:    p.Provider,
		ProviderID:  p.ProviderID,
		AccessToken: p.AccessToken,
	}
	if p.RefreshToken != "" {
		rt := p.RefreshToken
		a.RefreshToken = &rt
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, false, fmt.Errorf("link account: %w", err)
	}
	s.log.InfoContext(ctx, "oauth identity linked", "user", u.ID, "provider", p.Provider)
	return u, true, nil
}

func (s *Service) createOAuthUser(ctx context.Context, p *oauth.Profile, email string) (*model.User, error) {
	username, err := s.uniqueUsername(ctx, usernameBase(p, email))
	if err != nil {
		return nil, err
	}
	u := &model.User{Email: email, Username: username}
	if p.AvatarURL != "" {
		avatar := p.AvatarURL
		u.AvatarURL = &avatar
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.ConflictErr("email or username is already in use")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// uniqueUsername returns base, or base followed by the smallest positive
// number that is not taken.
func (s *Service) uniqueUsername(ctx context.Context, base string) (string, error) {
	for i := 0; i < maxUsernameAttempts; i++ {
		candidate := base
		if i > 0 {
			candidate = base + strconv.Itoa(i)
		}
		taken, err := s.users.UsernameTaken(ctx, candidate, "")
		if err != nil {
			return "", fmt.Errorf("check username: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", apperr.ConflictErr("could not find a free username for " + base)
}

// checkAvailable rejects an email or username held by a user other than
// excludeID. Empty values are not checked.
func (s *Service) checkAvailable(ctx context.Context, email, username, excludeID string) error {
	if email != "" {
		taken, err := s.users.EmailTaken(ctx, email, excludeID)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			return apperr.ConflictErr("email is already registered")
		}
	}
	if username != "" {
		taken, err := s.users.UsernameTaken(ctx, username, excludeID)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if taken {
			return apperr.ConflictErr("username is already taken")
		}
	}
	return nil
}

func (s *Service) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func noreplyEmail(p *oauth.Profile) string {
	if p.Provider == oauth.GitHub && p.Login != "" {
		return fmt.Sprintf("%s+%s@users.noreply.github.com", p.ProviderID, strings.ToLower(p.Login))
	}
	return fmt.Sprintf("%s@users.noreply.%s.invalid", p.ProviderID, p.Provider)
}

var usernameJunk = regexp.MustCompile(`[^a-z0-9_.-]+`)

// usernameBase derives a username from the provider login, the display name
// or the email local part, in that order.
func usernameBase(p *oauth.Profile, email string) string {
	candidates := []string{p.Login, strings.ReplaceAll(p.Name, " ", ""), strings.SplitN(email, "@", 2)[0]}
	for _, c := range candidates {
		base := usernameJunk.ReplaceAllString(strings.ToLower(c), "")
		if base == "" {
			continue
		}
		if len(base) > maxUsername-4 {
			base = base[:maxUsername-4]
		}
		for len(base) < minUsername {
			base += "_"
		}
		return base
	}
	return "user"
}
