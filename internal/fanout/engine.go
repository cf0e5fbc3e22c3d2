package fanout

import (
	"context"

	"firebase.google.com/go/v4/auth"
	"github.com/rs/zerolog"

	"github.com/relaychat/notifier/internal/repositories"
	"github.com/relaychat/notifier/internal/services"
)

const defaultWorkers = 16

// IdentityProvider is the slice of the Firebase Auth client the engine uses
// to resolve names and email addresses for users without a mirrored profile.
type IdentityProvider interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
}

// Deps are the collaborators one Engine needs. Auth may be nil when no
// identity provider is configured; everything else is required.
type Deps struct {
	Chat     repositories.ChatRepository
	Users    repositories.UserRepository
	Settings repositories.SettingsRepository
	Presence repositories.PresenceRepository
	Tokens   repositories.DeviceTokenRepository
	Activity repositories.ActivityRepository
	Push     services.PushService
	Email    services.EmailService
	Auth     IdentityProvider
	Log      zerolog.Logger

	// Workers caps the concurrent per-recipient work inside one invocation.
	Workers int
}

// Engine expands one created message into zero or more per-recipient
// deliveries: an activity feed entry, a push, an email. Invocations are
// stateless and independent; the engine itself holds no mutable state.
type Engine struct {
	deps    Deps
	workers int
}

func NewEngine(deps Deps) *Engine {
	workers := deps.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Engine{deps: deps, workers: workers}
}

// displayName resolves a user's display name: mirrored profile first, then
// the identity provider, then a neutral fallback.
func (e *Engine) displayName(ctx context.Context, uid string) string {
	user, err := e.deps.Users.GetByUID(ctx, uid)
	if err != nil {
		e.deps.Log.Warn().Err(err).Str("uid", uid).Msg("profile lookup failed")
	}
	if user != nil && user.DisplayName != "" {
		return user.DisplayName
	}
	if e.deps.Auth != nil {
		if rec, err := e.deps.Auth.GetUser(ctx, uid); err == nil && rec.DisplayName != "" {
			return rec.DisplayName
		}
	}
	return "Someone"
}

// emailAddress resolves a user's contact address: mirrored profile first,
// then the identity provider. Empty when neither knows one.
func (e *Engine) emailAddress(ctx context.Context, uid string) string {
	user, err := e.deps.Users.GetByUID(ctx, uid)
	if err != nil {
		e.deps.Log.Warn().Err(err).Str("uid", uid).Msg("profile lookup failed")
	}
	if user != nil && user.Email != "" {
		return user.Email
	}
	if e.deps.Auth != nil {
		if rec, err := e.deps.Auth.GetUser(ctx, uid); err == nil && rec.Email != "" {
			return rec.Email
		}
	}
	return ""
}
