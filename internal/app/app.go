// Package app implements the core service logic: account flows, play CRUD
// and search, contact dispatch, and admin moderation.
package app

import (
	"errors"
	"fmt"
	"time"

	"playsdb/internal/token"
	"playsdb/pkg/mail"
	"playsdb/pkg/store"
)

const defaultContactCooldown = time.Hour

// Mailer enqueues outbound mail for asynchronous delivery.
type Mailer interface {
	Enqueue(msg mail.Message)
}

// Config holds runtime configuration for the core application.
type Config struct {
	Store           store.Store
	Tokens          *token.Manager
	Mailer          Mailer
	ContactCooldown time.Duration
	ClientURL       string
	SupportEmail    string
	SiteName        string
}

// App wires storage, tokens, and notifications together.
type App struct {
	store        store.Store
	tokens       *token.Manager
	mailer       Mailer
	cooldown     time.Duration
	clientURL    string
	supportEmail string
	siteName     string
	now          func() time.Time
}

// New constructs the application core.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token manager is required")
	}
	if cfg.Mailer == nil {
		return nil, errors.New("mailer is required")
	}
	if cfg.ContactCooldown <= 0 {
		cfg.ContactCooldown = defaultContactCooldown
	}
	if cfg.ClientURL == "" {
		cfg.ClientURL = "http://localhost:3000"
	}
	if cfg.SiteName == "" {
		cfg.SiteName = "PlaysDB"
	}
	return &App{
		store:        cfg.Store,
		tokens:       cfg.Tokens,
		mailer:       cfg.Mailer,
		cooldown:     cfg.ContactCooldown,
		clientURL:    cfg.ClientURL,
		supportEmail: cfg.SupportEmail,
		siteName:     cfg.SiteName,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// Tokens exposes the token manager for the HTTP layer.
func (a *App) Tokens() *token.Manager {
	return a.tokens
}

// ContactCooldown returns the configured contact cooldown window.
func (a *App) ContactCooldown() time.Duration {
	return a.cooldown
}

func (a *App) wrapStoreErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
