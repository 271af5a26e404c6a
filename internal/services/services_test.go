package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gerardinho-server/GestionUsuarios/internal/events"
	"github.com/Gerardinho-server/GestionUsuarios/internal/services"
	"github.com/Gerardinho-server/GestionUsuarios/internal/session"
	"github.com/Gerardinho-server/GestionUsuarios/internal/store/storetest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type eventSink struct {
	published []string
}

func (s *eventSink) Publish(_ context.Context, _ string, _ []byte, attrs map[string]string) (string, error) {
	s.published = append(s.published, attrs["event"])
	return "id", nil
}

func (s *eventSink) Close() error { return nil }

type fixture struct {
	repo     *storetest.Users
	sessions *session.MemoryStore
	sink     *eventSink
	users    *services.UserService
	auth     *services.SessionAuth
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := storetest.NewUsers()
	sessions := session.NewMemoryStore(time.Hour)
	sink := &eventSink{}
	publisher := events.NewPublisher(sink, "test", zerolog.Nop())
	return &fixture{
		repo:     repo,
		sessions: sessions,
		sink:     sink,
		users:    services.NewUserService(repo, sessions, publisher, zerolog.Nop(), services.WithHashCost(bcrypt.MinCost)),
		auth:     services.NewSessionAuth(repo, sessions, zerolog.Nop()),
	}
}

func (f *fixture) register(t *testing.T, username, email, password string) int64 {
	t.Helper()
	user, err := f.users.Register(context.Background(), services.RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return user.ID
}

func requireKind[T error](t *testing.T, err error) T {
	t.Helper()
	var target T
	require.Error(t, err)
	require.True(t, errors.As(err, &target), "unexpected error %T: %v", err, err)
	return target
}
