// Package session keeps server-side login sessions keyed by an opaque
// random identifier carried in a cookie.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/Gerardinho-server/GestionUsuarios/types"
)

var (
	// ErrNotFound is returned for unknown or expired session ids.
	ErrNotFound = errors.New("session not found")

	// ErrStale is returned by Save when the stored session changed since it
	// was read, for example because ForgetUser ran in between.
	ErrStale = errors.New("session changed concurrently")
)

const idBytes = 32

// Session is the server-side state associated with one browser.
type Session struct {
	ID        string
	UserID    int64
	Username  string
	Role      types.Role
	CreatedAt time.Time

	// rev is bumped by every write so Save can detect lost updates.
	rev int64
}

// Resolved reports whether the username and role are cached.
func (s Session) Resolved() bool {
	return s.Username != "" && s.Role != ""
}

// Authenticated reports whether the session belongs to a logged-in user.
func (s Session) Authenticated() bool {
	return s.UserID > 0
}

// Store persists sessions. Implementations must be safe for concurrent use.
type Store interface {
	// Create persists sess under a freshly generated id and returns it.
	Create(ctx context.Context, sess Session) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	// Save overwrites an existing session and returns it as stored. It fails
	// with ErrStale when sess was not read from the latest stored version.
	Save(ctx context.Context, sess Session) (Session, error)
	// Delete removes a session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
	// ForgetUser drops the cached username and role from every session of
	// the user so they are resolved again on the next request. Copies read
	// before the call can no longer be saved.
	ForgetUser(ctx context.Context, userID int64) error
	// DeleteUser removes every session of the user.
	DeleteUser(ctx context.Context, userID int64) error
	Close() error
}

func newID() (string, error) {
	var buf [idBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}
