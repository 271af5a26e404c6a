package handlers

import (
	"errors"
	"net/http"

	"github.com/Gerardinho-server/GestionUsuarios/config"
	"github.com/Gerardinho-server/GestionUsuarios/internal/services"
	"github.com/Gerardinho-server/GestionUsuarios/internal/session"
	"github.com/rs/zerolog"
)

// SessionManager moves sessions between the cookie, the store and the
// request context, and enforces login and admin requirements.
type SessionManager struct {
	auth     services.AuthService
	store    session.Store
	cookie   config.SessionConfig
	renderer *Renderer
	logger   zerolog.Logger
}

func NewSessionManager(
	auth services.AuthService,
	store session.Store,
	cookie config.SessionConfig,
	renderer *Renderer,
	logger zerolog.Logger,
) *SessionManager {
	return &SessionManager{
		auth:     auth,
		store:    store,
		cookie:   cookie,
		renderer: renderer,
		logger:   logger,
	}
}

// LoadSession attaches the session named by the cookie to the request
// context. Requests without a valid cookie continue anonymously; a failing
// session store answers 500 and leaves the cookie in place.
func (m *SessionManager) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(m.cookie.CookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := m.store.Get(r.Context(), cookie.Value)
		switch {
		case errors.Is(err, session.ErrNotFound):
			m.clearCookie(w)
			next.ServeHTTP(w, r)
			return
		case err != nil:
			// The session may still exist, so the cookie stays.
			m.logger.Error().Err(err).Msg("load session")
			m.renderer.Render(w, http.StatusInternalServerError, "error", PageData{
				Title:   "Error",
				Message: (&services.StoreUnavailableError{Cause: err}).Error(),
			})
			return
		}

		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
	})
}

// RequireLogin redirects anonymous callers to the login page and makes
// sure the session carries the username and role.
func (m *SessionManager) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		if !sess.Authenticated() {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		resolved, err := m.auth.ResolveSession(r.Context(), sess)
		if err != nil {
			m.clearCookie(w)
			if isKind[*services.StoreUnavailableError](err) {
				m.logger.Error().Err(errors.Unwrap(err)).Int64("user_id", sess.UserID).Msg("resolve session")
				m.renderer.Render(w, http.StatusInternalServerError, "error", PageData{
					Title:   "Error",
					Message: err.Error(),
				})
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), resolved)))
	})
}

// RequireAdmin must run after RequireLogin. Non-admins are sent back to
// the dashboard.
func (m *SessionManager) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		if err := services.RequireAdmin(sess); err != nil {
			m.logger.Warn().Int64("user_id", sess.UserID).Str("path", r.URL.Path).Msg("admin access denied")
			redirectWithStatus(w, r, "/dashboard", statusError, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *SessionManager) setCookie(w http.ResponseWriter, sess session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie.CookieName,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(m.cookie.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *SessionManager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
