package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Gerardinho-server/GestionUsuarios/config"
	"github.com/Gerardinho-server/GestionUsuarios/internal/events"
	"github.com/Gerardinho-server/GestionUsuarios/internal/handlers"
	"github.com/Gerardinho-server/GestionUsuarios/internal/services"
	"github.com/Gerardinho-server/GestionUsuarios/internal/session"
	"github.com/Gerardinho-server/GestionUsuarios/internal/store/storetest"
	"github.com/Gerardinho-server/GestionUsuarios/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const cookieName = "test_session"

// flakyStore fails reads with getErr when it is set.
type flakyStore struct {
	*session.MemoryStore
	getErr error
}

func (s *flakyStore) Get(ctx context.Context, id string) (session.Session, error) {
	if s.getErr != nil {
		return session.Session{}, s.getErr
	}
	return s.MemoryStore.Get(ctx, id)
}

type app struct {
	t        *testing.T
	router   http.Handler
	repo     *storetest.Users
	sessions *session.MemoryStore
	flaky    *flakyStore
}

func newApp(t *testing.T) *app {
	t.Helper()

	logger := zerolog.Nop()
	repo := storetest.NewUsers()
	sessions := session.NewMemoryStore(time.Hour)
	publisher := events.NewPublisher(nil, "test", logger)

	users := services.NewUserService(repo, sessions, publisher, logger, services.WithHashCost(bcrypt.MinCost))
	auth := services.NewSessionAuth(repo, sessions, logger)

	renderer, err := handlers.NewRenderer(logger)
	require.NoError(t, err)

	flaky := &flakyStore{MemoryStore: sessions}
	manager := handlers.NewSessionManager(auth, flaky, config.SessionConfig{
		CookieName: cookieName,
		TTL:        time.Hour,
	}, renderer, logger)

	router := chi.NewRouter()
	router.Use(manager.LoadSession)
	handlers.Routes(router, handlers.Deps{
		Users:    users,
		Auth:     auth,
		Sessions: manager,
		Renderer: renderer,
		Logger:   logger,
	})

	return &app{t: t, router: router, repo: repo, sessions: sessions, flaky: flaky}
}

func (a *app) seed(username string, role types.Role, password string) types.User {
	a.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(a.t, err)
	return a.repo.Seed(types.User{
		Username:     username,
		Email:        username + "@example.com",
		Role:         role,
		IsActive:     true,
		PasswordHash: string(hash),
	})
}

func (a *app) do(method, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	a.t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *app) login(identifier, password string) *http.Cookie {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/login", url.Values{
		"username_or_email": {identifier},
		"password":          {password},
	}, nil)
	require.Equal(a.t, http.StatusSeeOther, rec.Code)
	require.Equal(a.t, "/dashboard", rec.Header().Get("Location"))
	return sessionCookie(a.t, rec)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", cookieName)
	return nil
}

// redirect returns the path and status banner of a 303 response.
func redirect(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return loc.Path, loc.Query().Get("status")
}

func TestRegisterThenLogin(t *testing.T) {
	a := newApp(t)

	rec := a.do(http.MethodPost, "/register", url.Values{
		"username": {"alice"},
		"email":    {"a@x.io"},
		"password": {"secret1"},
	}, nil)
	path, status := redirect(t, rec)
	require.Equal(t, "/login", path)
	require.Equal(t, "success", status)
	require.Empty(t, rec.Result().Cookies())

	cookie := a.login("a@x.io", "secret1")
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	require.Equal(t, "/", cookie.Path)
	require.Len(t, cookie.Value, 64)

	rec = a.do(http.MethodGet, "/dashboard", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Welcome, alice")
	require.Contains(t, rec.Body.String(), "User")

	rec = a.do(http.MethodGet, "/login", nil, cookie)
	path, _ = redirect(t, rec)
	require.Equal(t, "/dashboard", path)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	a := newApp(t)
	a.seed("alice", types.RoleUser, "secret1")

	rec := a.do(http.MethodPost, "/register", url.Values{
		"username": {"bob"},
		"email":    {"not-an-email"},
		"password": {"secret1"},
	}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), `value="bob"`)

	rec = a.do(http.MethodPost, "/register", url.Values{
		"username": {"alice"},
		"email":    {"other@x.io"},
		"password": {"secret1"},
	}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, "/register", url.Values{
		"username": {strings.Repeat("b", 70)},
		"email":    {"b@x.io"},
		"password": {"secret1"},
	}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, 1, a.repo.Count())
}

func TestLoginFailureIsGeneric(t *testing.T) {
	a := newApp(t)
	a.seed("alice", types.RoleUser, "secret1")

	wrong := a.do(http.MethodPost, "/login", url.Values{
		"username_or_email": {"alice"},
		"password":          {"nope123"},
	}, nil)
	unknown := a.do(http.MethodPost, "/login", url.Values{
		"username_or_email": {"ghost"},
		"password":          {"nope123"},
	}, nil)

	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Contains(t, wrong.Body.String(), services.ErrInvalidCredentials.Error())
	require.Contains(t, unknown.Body.String(), services.ErrInvalidCredentials.Error())
	for _, c := range wrong.Result().Cookies() {
		require.NotEqual(t, cookieName, c.Name)
	}
}

func TestProtectedPagesRequireLogin(t *testing.T) {
	a := newApp(t)

	for _, path := range []string{"/dashboard", "/profile", "/profile/edit", "/admin/users"} {
		rec := a.do(http.MethodGet, path, nil, nil)
		got, _ := redirect(t, rec)
		require.Equal(t, "/login", got, path)
	}

	rec := a.do(http.MethodGet, "/dashboard", nil, &http.Cookie{Name: cookieName, Value: "forged"})
	got, _ := redirect(t, rec)
	require.Equal(t, "/login", got)
}

func TestAdminPagesRejectRegularUsers(t *testing.T) {
	a := newApp(t)
	a.seed("alice", types.RoleUser, "secret1")
	victim := a.seed("bob", types.RoleUser, "secret1")
	cookie := a.login("alice", "secret1")

	rec := a.do(http.MethodGet, "/admin/users", nil, cookie)
	path, status := redirect(t, rec)
	require.Equal(t, "/dashboard", path)
	require.Equal(t, "error", status)

	rec = a.do(http.MethodPost, "/admin/users/2/delete", nil, cookie)
	path, _ = redirect(t, rec)
	require.Equal(t, "/dashboard", path)
	require.Equal(t, 2, a.repo.Count())
	_, err := a.repo.GetByID(context.Background(), victim.ID)
	require.NoError(t, err)
}

func TestAdminListAndDelete(t *testing.T) {
	a := newApp(t)
	admin := a.seed("root", types.RoleAdmin, "secret1")
	bob := a.seed("bob", types.RoleUser, "secret1")
	adminCookie := a.login("root", "secret1")
	bobCookie := a.login("bob", "secret1")

	rec := a.do(http.MethodGet, "/admin/users", nil, adminCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "bob@example.com")
	require.Contains(t, body, "root@example.com")
	require.NotContains(t, body, "$2a$")

	rec = a.do(http.MethodPost, "/admin/users/1/delete", nil, adminCookie)
	path, status := redirect(t, rec)
	require.Equal(t, "/admin/users", path)
	require.Equal(t, "error", status)
	_, err := a.repo.GetByID(context.Background(), admin.ID)
	require.NoError(t, err)

	rec = a.do(http.MethodPost, "/admin/users/99/delete", nil, adminCookie)
	_, status = redirect(t, rec)
	require.Equal(t, "warning", status)

	rec = a.do(http.MethodPost, "/admin/users/2/delete", nil, adminCookie)
	_, status = redirect(t, rec)
	require.Equal(t, "success", status)
	require.Equal(t, 1, a.repo.Count())

	rec = a.do(http.MethodGet, "/dashboard", nil, bobCookie)
	path, _ = redirect(t, rec)
	require.Equal(t, "/login", path)
	_, err = a.sessions.Get(context.Background(), bobCookie.Value)
	require.ErrorIs(t, err, session.ErrNotFound)
	require.NotZero(t, bob.ID)
}

func TestAdminPromotionTakesEffectImmediately(t *testing.T) {
	a := newApp(t)
	a.seed("root", types.RoleAdmin, "secret1")
	a.seed("bob", types.RoleUser, "secret1")
	adminCookie := a.login("root", "secret1")
	bobCookie := a.login("bob", "secret1")

	rec := a.do(http.MethodGet, "/admin/users/2/edit", nil, adminCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `value="bob"`)

	rec = a.do(http.MethodPost, "/admin/users/2/edit", url.Values{
		"username":  {"bob"},
		"email":     {"bob@example.com"},
		"role":      {"admin"},
		"is_active": {"1"},
	}, adminCookie)
	path, status := redirect(t, rec)
	require.Equal(t, "/admin/users/2/edit", path)
	require.Equal(t, "success", status)

	rec = a.do(http.MethodGet, "/admin/users", nil, bobCookie)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminEditValidation(t *testing.T) {
	a := newApp(t)
	a.seed("root", types.RoleAdmin, "secret1")
	a.seed("bob", types.RoleUser, "secret1")
	adminCookie := a.login("root", "secret1")

	rec := a.do(http.MethodPost, "/admin/users/2/edit", url.Values{
		"username": {"bob"},
		"email":    {"bob@example.com"},
		"role":     {"superuser"},
	}, adminCookie)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(http.MethodPost, "/admin/users/2/edit", url.Values{
		"username": {"root"},
		"email":    {"bob@example.com"},
		"role":     {"user"},
	}, adminCookie)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodGet, "/admin/users/42/edit", nil, adminCookie)
	_, status := redirect(t, rec)
	require.Equal(t, "warning", status)
}

func TestAdminDeactivationEndsSessions(t *testing.T) {
	a := newApp(t)
	a.seed("root", types.RoleAdmin, "secret1")
	a.seed("bob", types.RoleUser, "secret1")
	adminCookie := a.login("root", "secret1")
	bobCookie := a.login("bob", "secret1")

	rec := a.do(http.MethodPost, "/admin/users/2/edit", url.Values{
		"username": {"bob"},
		"email":    {"bob@example.com"},
		"role":     {"user"},
	}, adminCookie)
	_, status := redirect(t, rec)
	require.Equal(t, "success", status)

	rec = a.do(http.MethodGet, "/dashboard", nil, bobCookie)
	path, _ := redirect(t, rec)
	require.Equal(t, "/login", path)

	rec = a.do(http.MethodPost, "/login", url.Values{
		"username_or_email": {"bob"},
		"password":          {"secret1"},
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEditProfile(t *testing.T) {
	a := newApp(t)
	a.seed("alice", types.RoleUser, "secret1")
	a.seed("bob", types.RoleUser, "secret1")
	cookie := a.login("alice", "secret1")

	rec := a.do(http.MethodGet, "/profile/edit?id=2", nil, cookie)
	path, status := redirect(t, rec)
	require.Equal(t, "/profile", path)
	require.Equal(t, "error", status)

	rec = a.do(http.MethodPost, "/profile/edit", url.Values{
		"id":               {"1"},
		"username":         {"alicia"},
		"email":            {"alice@example.com"},
		"password":         {"newpass"},
		"confirm_password": {"mismatch"},
	}, cookie)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(http.MethodPost, "/profile/edit", url.Values{
		"username": {"alicia"},
		"email":    {"alice@example.com"},
	}, cookie)
	path, status = redirect(t, rec)
	require.Equal(t, "/profile", path)
	require.Equal(t, "success", status)

	rec = a.do(http.MethodGet, "/dashboard", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Welcome, alicia")

	rec = a.do(http.MethodGet, "/profile", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "alicia")
}

func TestLogout(t *testing.T) {
	a := newApp(t)
	a.seed("alice", types.RoleUser, "secret1")
	cookie := a.login("alice", "secret1")

	rec := a.do(http.MethodGet, "/logout", nil, cookie)
	path, _ := redirect(t, rec)
	require.Equal(t, "/login", path)
	cleared := sessionCookie(t, rec)
	require.Empty(t, cleared.Value)
	require.Negative(t, cleared.MaxAge)

	rec = a.do(http.MethodGet, "/dashboard", nil, cookie)
	path, _ = redirect(t, rec)
	require.Equal(t, "/login", path)
}

func TestStoreFailureRendersGenericError(t *testing.T) {
	a := newApp(t)
	a.repo.Err = errors.New("connection refused")

	rec := a.do(http.MethodPost, "/register", url.Values{
		"username": {"alice"},
		"email":    {"a@x.io"},
		"password": {"secret1"},
	}, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection refused")
}

func TestSessionStoreOutageKeepsCookie(t *testing.T) {
	a := newApp(t)
	a.seed("alice", types.RoleUser, "secret1")
	cookie := a.login("alice", "secret1")

	a.flaky.getErr = errors.New("redis: i/o timeout")
	rec := a.do(http.MethodGet, "/dashboard", nil, cookie)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "i/o timeout")
	for _, c := range rec.Result().Cookies() {
		require.NotEqual(t, cookieName, c.Name, "session cookie must survive a store outage")
	}

	a.flaky.getErr = nil
	rec = a.do(http.MethodGet, "/dashboard", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	handlers.Healthz(pinger{})(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handlers.Healthz(pinger{err: errors.New("down")})(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
