// Package seed creates a demo account with a welcome note on first boot.
package seed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/d9705996/marknote/internal/account"
	"github.com/d9705996/marknote/internal/apperr"
	"github.com/d9705996/marknote/internal/note"
)

// WelcomeTitle is the title of the note created for the demo user.
const WelcomeTitle = "Welcome to marknote"

const welcomeContent = `# Welcome

Notes are plain markdown. Deleting a note moves it to the trash, where it
can be restored or removed for good.
`

// DemoOptions configures the demo user.
type DemoOptions struct {
	Email    string // empty disables seeding
	Username string // defaults to "demo"
	Password string // if empty, a random password is generated
}

// EnsureDemoUser registers the demo user and its welcome note. An account
// that already holds the email is left untouched, so it is safe to call on
// every startup.
func EnsureDemoUser(ctx context.Context, accounts *account.Service, notes *note.Service, opts DemoOptions, log *slog.Logger) error {
	if opts.Email == "" {
		log.Debug("demo seed disabled")
		return nil
	}
	username := opts.Username
	if username == "" {
		username = "demo"
	}

	password := opts.Password
	if password == "" {
		var err error
		password, err = generatePassword()
		if err != nil {
			return fmt.Errorf("generate seed password: %w", err)
		}
		// Print the generated password to stdout exactly once.
		fmt.Printf("[marknote] demo user password: %s\n", password)
	}

	u, err := accounts.Register(ctx, account.RegisterInput{
		Email:    opts.Email,
		Username: username,
		Password: password,
	})
	if apperr.Is(err, apperr.Conflict) {
		log.Info("demo user already exists", "email", opts.Email)
		return nil
	}
	if err != nil {
		return fmt.Errorf("register demo user: %w", err)
	}

	if _, err := notes.Create(ctx, u.ID, note.CreateInput{Title: WelcomeTitle, Content: welcomeContent}); err != nil {
		return fmt.Errorf("create welcome note: %w", err)
	}
	log.Info("demo user created", "email", u.Email, "user", u.ID)
	return nil
}

func generatePassword() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
