package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gerardinho-server/GestionUsuarios/internal/services"
	"github.com/Gerardinho-server/GestionUsuarios/types"
	"github.com/rs/zerolog"
)

const adminUsersPath = "/admin/users"

// AdminHandler serves the user management panel.
type AdminHandler struct {
	users    *services.UserService
	renderer *Renderer
	logger   zerolog.Logger
}

func NewAdminHandler(d Deps) *AdminHandler {
	return &AdminHandler{
		users:    d.Users,
		renderer: d.Renderer,
		logger:   d.Logger,
	}
}

// ListUsers shows every account, newest first.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		Title:   "Manage users",
		Session: sessionFromContext(r.Context()),
		Flash:   flashFromRequest(r),
	}

	users, err := h.users.List(r.Context())
	if err != nil {
		h.logger.Error().Err(errors.Unwrap(err)).Msg("list users")
		data.AdminError = err.Error()
	}
	data.Users = users

	h.renderer.Render(w, http.StatusOK, "admin_users", data)
}

func (h *AdminHandler) EditUserForm(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		redirectWithStatus(w, r, adminUsersPath, statusError, err.Error())
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		h.targetFailed(w, r, err)
		return
	}

	h.renderer.Render(w, http.StatusOK, "admin_user_edit", PageData{
		Title:   "Edit user",
		Session: sessionFromContext(r.Context()),
		Flash:   flashFromRequest(r),
		User:    user,
		Roles:   types.Roles,
		Form: FormValues{
			Username: user.Username,
			Email:    user.Email,
			Role:     user.Role.String(),
			IsActive: user.IsActive,
		},
	})
}

// EditUser applies the admin edit form to the account in the URL.
func (h *AdminHandler) EditUser(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	id, err := parseUserID(r)
	if err != nil {
		redirectWithStatus(w, r, adminUsersPath, statusError, err.Error())
		return
	}
	if err := r.ParseForm(); err != nil {
		redirectWithStatus(w, r, adminUsersPath, statusError, "invalid request")
		return
	}

	in := services.AdminEditInput{
		Username: r.PostFormValue("username"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Role:     r.PostFormValue("role"),
		IsActive: r.PostFormValue("is_active") != "",
	}

	user, err := h.users.AdminUpdate(r.Context(), sess.UserID, id, in)
	if err != nil {
		if isKind[*services.NotFoundError](err) {
			h.targetFailed(w, r, err)
			return
		}
		if isKind[*services.StoreUnavailableError](err) {
			h.logger.Error().Err(errors.Unwrap(err)).Int64("target_id", id).Msg("admin update user")
		}
		h.renderer.Render(w, formStatus(err), "admin_user_edit", PageData{
			Title:   "Edit user",
			Session: sess,
			Error:   err.Error(),
			User:    types.User{ID: id},
			Roles:   types.Roles,
			Form: FormValues{
				Username: in.Username,
				Email:    in.Email,
				Role:     in.Role,
				IsActive: in.IsActive,
			},
		})
		return
	}

	h.logger.Info().Int64("actor_id", sess.UserID).Int64("target_id", id).Str("role", user.Role.String()).Msg("user updated by admin")
	path := fmt.Sprintf("%s/%d/edit", adminUsersPath, id)
	redirectWithStatus(w, r, path, statusSuccess, "User updated successfully.")
}

// DeleteUser removes the account in the URL. It always answers with a
// redirect to the user list.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	id, err := parseUserID(r)
	if err != nil {
		redirectWithStatus(w, r, adminUsersPath, statusError, err.Error())
		return
	}

	err = h.users.Delete(r.Context(), sess.UserID, id)
	switch {
	case err == nil:
		h.logger.Info().Int64("actor_id", sess.UserID).Int64("target_id", id).Msg("user deleted")
		redirectWithStatus(w, r, adminUsersPath, statusSuccess, fmt.Sprintf("User %d deleted.", id))
	case isKind[*services.SelfDeleteError](err):
		redirectWithStatus(w, r, adminUsersPath, statusError, err.Error())
	case isKind[*services.NotFoundError](err):
		redirectWithStatus(w, r, adminUsersPath, statusWarning, fmt.Sprintf("User %d was not found.", id))
	default:
		h.logger.Error().Err(errors.Unwrap(err)).Int64("target_id", id).Msg("delete user")
		redirectWithStatus(w, r, adminUsersPath, statusError, err.Error())
	}
}

func (h *AdminHandler) targetFailed(w http.ResponseWriter, r *http.Request, err error) {
	if isKind[*services.NotFoundError](err) {
		redirectWithStatus(w, r, adminUsersPath, statusWarning, "User not found.")
		return
	}
	h.logger.Error().Err(errors.Unwrap(err)).Msg("load user for admin")
	redirectWithStatus(w, r, adminUsersPath, statusError, err.Error())
}
