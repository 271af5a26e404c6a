package handlers

import (
	"errors"
	"net/http"

	"github.com/Gerardinho-server/GestionUsuarios/internal/services"
	"github.com/rs/zerolog"
)

// AuthHandler serves registration, login and logout.
type AuthHandler struct {
	users    *services.UserService
	auth     services.AuthService
	sessions *SessionManager
	renderer *Renderer
	logger   zerolog.Logger
}

func NewAuthHandler(d Deps) *AuthHandler {
	return &AuthHandler{
		users:    d.Users,
		auth:     d.Auth,
		sessions: d.Sessions,
		renderer: d.Renderer,
		logger:   d.Logger,
	}
}

// Index shows the welcome page, or the dashboard for logged-in users.
func (h *AuthHandler) Index(w http.ResponseWriter, r *http.Request) {
	if sessionFromContext(r.Context()).Authenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	h.renderer.Render(w, http.StatusOK, "index", PageData{Title: "Welcome", Flash: flashFromRequest(r)})
}

func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, "register", PageData{
		Title:   "Register",
		Session: sessionFromContext(r.Context()),
		Flash:   flashFromRequest(r),
	})
}

// Register creates a new account. The visitor still has to log in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.Render(w, http.StatusBadRequest, "register", PageData{Title: "Register", Error: "invalid request"})
		return
	}

	in := services.RegisterInput{
		Username: r.PostFormValue("username"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}

	user, err := h.users.Register(r.Context(), in)
	if err != nil {
		if isKind[*services.StoreUnavailableError](err) {
			h.logger.Error().Err(errors.Unwrap(err)).Msg("register user")
		}
		h.renderer.Render(w, formStatus(err), "register", PageData{
			Title:   "Register",
			Session: sessionFromContext(r.Context()),
			Error:   err.Error(),
			Form:    FormValues{Username: in.Username, Email: in.Email},
		})
		return
	}

	h.logger.Info().Int64("user_id", user.ID).Msg("user registered")
	redirectWithStatus(w, r, "/login", statusSuccess, "Registration successful. You can now log in.")
}

func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if sessionFromContext(r.Context()).Authenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	h.renderer.Render(w, http.StatusOK, "login", PageData{Title: "Log in", Flash: flashFromRequest(r)})
}

// Login opens a fresh session for valid credentials.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	current := sessionFromContext(r.Context())
	if current.Authenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderer.Render(w, http.StatusBadRequest, "login", PageData{Title: "Log in", Error: "invalid request"})
		return
	}

	identifier := r.PostFormValue("username_or_email")
	sess, err := h.auth.Login(r.Context(), current.ID, identifier, r.PostFormValue("password"))
	if err != nil {
		if isKind[*services.StoreUnavailableError](err) {
			h.logger.Error().Err(errors.Unwrap(err)).Msg("login")
		}
		h.renderer.Render(w, formStatus(err), "login", PageData{
			Title: "Log in",
			Error: err.Error(),
			Form:  FormValues{Username: identifier},
		})
		return
	}

	h.sessions.setCookie(w, sess)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout destroys the session and its cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if err := h.auth.Logout(r.Context(), sess.ID); err != nil {
		h.logger.Error().Err(errors.Unwrap(err)).Msg("logout")
	}
	h.sessions.clearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
