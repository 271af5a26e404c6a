package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Gerardinho-server/GestionUsuarios/internal/session"
	"github.com/Gerardinho-server/GestionUsuarios/internal/store"
	"github.com/Gerardinho-server/GestionUsuarios/types"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// AuthService owns the login session lifecycle.
type AuthService interface {
	// Login checks the credentials and opens a new session. Any session id
	// the caller presented before logging in is destroyed.
	Login(ctx context.Context, previousSessionID, identifier, password string) (session.Session, error)

	// ResolveSession makes sure the session carries the username and role,
	// loading them once from the user record when missing.
	ResolveSession(ctx context.Context, sess session.Session) (session.Session, error)

	// RefreshIdentity replaces the cached username and role with user's.
	RefreshIdentity(ctx context.Context, sess session.Session, user types.User) (session.Session, error)

	Logout(ctx context.Context, sessionID string) error
}

// UserLookup is the read side of the user repository used for logins.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByLogin(ctx context.Context, identifier string) (types.User, error)
}

// SessionAuth implements AuthService on top of a session.Store.
type SessionAuth struct {
	users    UserLookup
	sessions session.Store
	logger   zerolog.Logger
}

func NewSessionAuth(users UserLookup, sessions session.Store, logger zerolog.Logger) *SessionAuth {
	return &SessionAuth{users: users, sessions: sessions, logger: logger}
}

var _ AuthService = (*SessionAuth)(nil)

// dummyHash is compared against when no account matches so that unknown
// identifiers take as long as wrong passwords.
var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	return hash
})

func (a *SessionAuth) Login(ctx context.Context, previousSessionID, identifier, password string) (session.Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return session.Session{}, invalid("please enter your username or email and your password")
	}

	user, err := a.users.GetByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
			return session.Session{}, ErrInvalidCredentials
		}
		return session.Session{}, unavailable(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return session.Session{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return session.Session{}, ErrInvalidCredentials
	}

	if previousSessionID != "" {
		if err := a.sessions.Delete(ctx, previousSessionID); err != nil {
			return session.Session{}, unavailable(err)
		}
	}

	sess, err := a.sessions.Create(ctx, session.Session{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
	if err != nil {
		return session.Session{}, unavailable(err)
	}

	a.logger.Info().Int64("user_id", user.ID).Msg("user logged in")
	return sess, nil
}

// resolveAttempts bounds how often ResolveSession retries when the session
// is invalidated while the user row is being read.
const resolveAttempts = 3

func (a *SessionAuth) ResolveSession(ctx context.Context, sess session.Session) (session.Session, error) {
	if !sess.Authenticated() || sess.ID == "" {
		return session.Session{}, ErrLoginRequired
	}

	for attempt := 0; attempt < resolveAttempts; attempt++ {
		if sess.Resolved() {
			return sess, nil
		}

		user, err := a.users.GetByID(ctx, sess.UserID)
		if err != nil || !user.IsActive {
			if delErr := a.sessions.Delete(ctx, sess.ID); delErr != nil {
				a.logger.Error().Err(delErr).Str("session", shortID(sess.ID)).Msg("destroy session")
			}
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return session.Session{}, unavailable(err)
			}
			return session.Session{}, ErrLoginRequired
		}

		resolved := sess
		resolved.Username = user.Username
		resolved.Role = user.Role
		saved, err := a.sessions.Save(ctx, resolved)
		switch {
		case err == nil:
			return saved, nil
		case errors.Is(err, session.ErrNotFound):
			return session.Session{}, ErrLoginRequired
		case !errors.Is(err, session.ErrStale):
			return session.Session{}, unavailable(err)
		}

		// The user was edited meanwhile; the row just read may predate it.
		sess, err = a.sessions.Get(ctx, sess.ID)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return session.Session{}, ErrLoginRequired
			}
			return session.Session{}, unavailable(err)
		}
	}

	return session.Session{}, unavailable(errors.New("session kept changing during resolve"))
}

// RefreshIdentity stores user's current username and role in sess. When
// the session was invalidated concurrently it is left for the next request
// to resolve.
func (a *SessionAuth) RefreshIdentity(ctx context.Context, sess session.Session, user types.User) (session.Session, error) {
	if sess.UserID != user.ID {
		return sess, ErrNotOwner
	}
	if sess.Username == user.Username && sess.Role == user.Role {
		return sess, nil
	}
	sess.Username = user.Username
	sess.Role = user.Role
	saved, err := a.sessions.Save(ctx, sess)
	switch {
	case err == nil:
		return saved, nil
	case errors.Is(err, session.ErrStale), errors.Is(err, session.ErrNotFound):
		return sess, nil
	default:
		return sess, unavailable(err)
	}
}

func (a *SessionAuth) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := a.sessions.Delete(ctx, sessionID); err != nil {
		return unavailable(err)
	}
	return nil
}

// RequireAdmin fails unless the resolved session belongs to an admin.
func RequireAdmin(sess session.Session) error {
	if !sess.Authenticated() {
		return ErrLoginRequired
	}
	if !sess.Role.IsAdmin() {
		return ErrAdminRequired
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
