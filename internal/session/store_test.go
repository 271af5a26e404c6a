package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Gerardinho-server/GestionUsuarios/config"
	"github.com/Gerardinho-server/GestionUsuarios/types"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every Store backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	first, err := s.Create(ctx, Session{UserID: 41, Username: "alice", Role: types.RoleUser})
	require.NoError(t, err)
	require.Len(t, first.ID, idBytes*2)

	second, err := s.Create(ctx, Session{UserID: 41, Username: "alice", Role: types.RoleUser})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	other, err := s.Create(ctx, Session{UserID: 42, Username: "bob", Role: types.RoleAdmin})
	require.NoError(t, err)

	got, err := s.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, int64(41), got.UserID)
	require.True(t, got.Resolved())

	got.Username = "alice2"
	saved, err := s.Save(ctx, got)
	require.NoError(t, err)
	require.Equal(t, "alice2", saved.Username)
	got, err = s.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, "alice2", got.Username)

	// The copy read before the save is outdated now.
	_, err = s.Save(ctx, saved)
	require.NoError(t, err)
	_, err = s.Save(ctx, got)
	require.ErrorIs(t, err, ErrStale)

	// A resolve racing with ForgetUser must not write the old identity back.
	before, err := s.Get(ctx, second.ID)
	require.NoError(t, err)

	require.NoError(t, s.ForgetUser(ctx, 41))
	before.Role = types.RoleAdmin
	_, err = s.Save(ctx, before)
	require.ErrorIs(t, err, ErrStale)
	for _, id := range []string{first.ID, second.ID} {
		got, err = s.Get(ctx, id)
		require.NoError(t, err)
		require.False(t, got.Resolved())
		require.Equal(t, int64(41), got.UserID)
	}
	got, err = s.Get(ctx, other.ID)
	require.NoError(t, err)
	require.True(t, got.Resolved())

	require.NoError(t, s.Delete(ctx, first.ID))
	_, err = s.Get(ctx, first.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.Delete(ctx, first.ID))
	_, err = s.Save(ctx, Session{ID: first.ID, UserID: 41})
	require.ErrorIs(t, err, ErrNotFound)

	stale, err := s.Get(ctx, other.ID)
	require.NoError(t, err)
	require.NoError(t, s.DeleteUser(ctx, 42))
	_, err = s.Get(ctx, other.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Save(ctx, stale)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, other.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, second.ID)
	require.NoError(t, err)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Hour))
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	sess, err := s.Create(context.Background(), Session{UserID: 1})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = s.Get(context.Background(), sess.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreSweepsExpiredSessions(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, Session{UserID: 1})
		require.NoError(t, err)
	}
	require.Equal(t, 3, s.Len())

	now = now.Add(2 * time.Minute)
	fresh, err := s.Create(ctx, Session{UserID: 2})
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	_, err = s.Get(ctx, fresh.ID)
	require.NoError(t, err)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("SESSION_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SESSION_TEST_REDIS_ADDR not set")
	}
	s, err := NewRedisStore(context.Background(), config.RedisConfig{Addr: addr}, time.Minute)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.DeleteUser(context.Background(), 41))
	require.NoError(t, s.DeleteUser(context.Background(), 42))
	exerciseStore(t, s)
}

func TestRedisFieldCodec(t *testing.T) {
	created := time.Unix(1700000000, 0)
	sess := Session{ID: "abc", UserID: 9, Username: "carol", Role: types.RoleGuest, CreatedAt: created}

	fields := encodeFields(sess)
	raw := make(map[string]string, len(fields))
	for k, v := range fields {
		raw[k] = v.(string)
	}

	decoded, err := decodeFields("abc", raw)
	require.NoError(t, err)
	require.Equal(t, sess, decoded)

	unresolved := encodeFields(Session{UserID: 9, CreatedAt: created})
	require.NotContains(t, unresolved, fieldUsername)
	require.NotContains(t, unresolved, fieldRole)

	_, err = decodeFields("abc", map[string]string{fieldUserID: "x"})
	require.Error(t, err)
}
