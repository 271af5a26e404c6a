package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Gerardinho-server/GestionUsuarios/internal/services"
	"github.com/Gerardinho-server/GestionUsuarios/internal/session"
	"github.com/go-chi/chi/v5"
)

type contextKey string

const contextSessionKey contextKey = "session"

const (
	statusSuccess = "success"
	statusError   = "error"
	statusWarning = "warning"
)

func withSession(ctx context.Context, sess session.Session) context.Context {
	return context.WithValue(ctx, contextSessionKey, sess)
}

// sessionFromContext returns the caller's session, or the zero Session for
// anonymous requests.
func sessionFromContext(ctx context.Context) session.Session {
	sess, _ := ctx.Value(contextSessionKey).(session.Session)
	return sess
}

// redirectWithStatus sends the browser to path with a status banner.
func redirectWithStatus(w http.ResponseWriter, r *http.Request, path, status, message string) {
	q := url.Values{}
	q.Set("status", status)
	q.Set("message", message)
	http.Redirect(w, r, path+"?"+q.Encode(), http.StatusSeeOther)
}

func flashFromRequest(r *http.Request) *Flash {
	q := r.URL.Query()
	status := q.Get("status")
	message := strings.TrimSpace(q.Get("message"))
	if message == "" {
		return nil
	}
	switch status {
	case statusSuccess, statusError, statusWarning:
		return &Flash{Status: status, Message: message}
	default:
		return nil
	}
}

func parseUserID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}

// formStatus picks the response code used when a form is re-rendered
// because of err.
func formStatus(err error) int {
	var (
		validation *services.ValidationError
		conflict   *services.ConflictError
		auth       *services.AuthError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &auth):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func isKind[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
