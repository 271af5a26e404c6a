package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Gerardinho-server/GestionUsuarios/internal/services"
	"github.com/rs/zerolog"
)

// AccountHandler serves the pages of the logged-in user.
type AccountHandler struct {
	users    *services.UserService
	auth     services.AuthService
	sessions *SessionManager
	renderer *Renderer
	logger   zerolog.Logger
}

func NewAccountHandler(d Deps) *AccountHandler {
	return &AccountHandler{
		users:    d.Users,
		auth:     d.Auth,
		sessions: d.Sessions,
		renderer: d.Renderer,
		logger:   d.Logger,
	}
}

// Dashboard greets the user. Admins also get the list of accounts.
func (h *AccountHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	data := PageData{
		Title:   "Dashboard",
		Session: sess,
		Flash:   flashFromRequest(r),
	}

	if sess.Role.IsAdmin() {
		users, err := h.users.List(r.Context())
		if err != nil {
			h.logger.Error().Err(errors.Unwrap(err)).Msg("list users for dashboard")
			data.AdminError = err.Error()
		}
		data.Users = users
	}

	h.renderer.Render(w, http.StatusOK, "dashboard", data)
}

func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	user, err := h.users.Get(r.Context(), sess.UserID)
	if err != nil {
		h.loadFailed(w, r, err)
		return
	}

	h.renderer.Render(w, http.StatusOK, "profile", PageData{
		Title:   "My profile",
		Session: sess,
		Flash:   flashFromRequest(r),
		User:    user,
	})
}

func (h *AccountHandler) EditProfileForm(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if _, ok := h.ownTarget(w, r); !ok {
		return
	}

	user, err := h.users.Get(r.Context(), sess.UserID)
	if err != nil {
		h.loadFailed(w, r, err)
		return
	}

	h.renderer.Render(w, http.StatusOK, "profile_edit", PageData{
		Title:   "Edit profile",
		Session: sess,
		User:    user,
		Form:    FormValues{Username: user.Username, Email: user.Email},
	})
}

// EditProfile applies the self-service profile form.
func (h *AccountHandler) EditProfile(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		redirectWithStatus(w, r, "/profile", statusError, "invalid request")
		return
	}
	targetID, ok := h.ownTarget(w, r)
	if !ok {
		return
	}

	in := services.ProfileInput{
		Username:        r.PostFormValue("username"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}

	user, err := h.users.UpdateProfile(r.Context(), sess.UserID, targetID, in)
	switch {
	case err == nil:
	case isKind[*services.AuthError](err):
		redirectWithStatus(w, r, "/profile", statusError, err.Error())
		return
	case isKind[*services.NotFoundError](err):
		h.loadFailed(w, r, err)
		return
	default:
		if isKind[*services.StoreUnavailableError](err) {
			h.logger.Error().Err(errors.Unwrap(err)).Int64("user_id", sess.UserID).Msg("update profile")
		}
		h.renderer.Render(w, formStatus(err), "profile_edit", PageData{
			Title:   "Edit profile",
			Session: sess,
			Error:   err.Error(),
			Form:    FormValues{Username: in.Username, Email: in.Email},
		})
		return
	}

	if _, err := h.auth.RefreshIdentity(r.Context(), sess, user); err != nil {
		h.logger.Error().Err(err).Int64("user_id", sess.UserID).Msg("refresh session identity")
	}
	redirectWithStatus(w, r, "/profile", statusSuccess, "Your profile has been updated.")
}

// ownTarget reads the optional id parameter and rejects ids other than the
// caller's own.
func (h *AccountHandler) ownTarget(w http.ResponseWriter, r *http.Request) (int64, bool) {
	sess := sessionFromContext(r.Context())
	raw := strings.TrimSpace(r.FormValue("id"))
	if raw == "" {
		return sess.UserID, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id != sess.UserID {
		h.logger.Warn().Int64("user_id", sess.UserID).Str("target", raw).Msg("profile edit of another account")
		redirectWithStatus(w, r, "/profile", statusError, services.ErrNotOwner.Error())
		return 0, false
	}
	return id, true
}

// loadFailed handles a failure to load the caller's own account. A missing
// row means the account is gone, so the session is ended.
func (h *AccountHandler) loadFailed(w http.ResponseWriter, r *http.Request, err error) {
	if isKind[*services.NotFoundError](err) {
		sess := sessionFromContext(r.Context())
		_ = h.auth.Logout(r.Context(), sess.ID)
		h.sessions.clearCookie(w)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	h.logger.Error().Err(errors.Unwrap(err)).Msg("load own account")
	h.renderer.Render(w, http.StatusInternalServerError, "error", PageData{
		Title:   "Error",
		Session: sessionFromContext(r.Context()),
		Message: err.Error(),
	})
}
