package handlers

import (
	"github.com/Gerardinho-server/GestionUsuarios/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Deps carries everything the HTTP handlers need.
type Deps struct {
	Users    *services.UserService
	Auth     services.AuthService
	Sessions *SessionManager
	Renderer *Renderer
	Health   Pinger
	Logger   zerolog.Logger
}

// Routes registers every page on r. LoadSession must already be installed
// on r by the caller.
func Routes(r chi.Router, d Deps) {
	auth := NewAuthHandler(d)
	account := NewAccountHandler(d)
	admin := NewAdminHandler(d)

	r.Get("/healthz", Healthz(d.Health))

	r.Get("/", auth.Index)
	r.Get("/register", auth.RegisterForm)
	r.Post("/register", auth.Register)
	r.Get("/login", auth.LoginForm)
	r.Post("/login", auth.Login)
	r.Get("/logout", auth.Logout)

	r.Group(func(r chi.Router) {
		r.Use(d.Sessions.RequireLogin)

		r.Get("/dashboard", account.Dashboard)
		r.Get("/profile", account.Profile)
		r.Get("/profile/edit", account.EditProfileForm)
		r.Post("/profile/edit", account.EditProfile)

		r.Route("/admin/users", func(r chi.Router) {
			r.Use(d.Sessions.RequireAdmin)

			r.Get("/", admin.ListUsers)
			r.Route("/{userID}", func(r chi.Router) {
				r.Get("/edit", admin.EditUserForm)
				r.Post("/edit", admin.EditUser)
				r.Post("/delete", admin.DeleteUser)
			})
		})
	})
}
