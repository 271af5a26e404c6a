package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Gerardinho-server/GestionUsuarios/config"
	"github.com/Gerardinho-server/GestionUsuarios/types"
	"github.com/redis/go-redis/v9"
)

const (
	fieldUserID    = "user_id"
	fieldUsername  = "username"
	fieldRole      = "role"
	fieldCreatedAt = "created_at"
	fieldRev       = "rev"
)

// forgetScript clears the cached identity of one session and bumps its
// revision, without recreating a key that has already expired.
var forgetScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HDEL", KEYS[1], ARGV[1], ARGV[2])
return redis.call("HINCRBY", KEYS[1], ARGV[3], 1)
`)

// RedisStore keeps sessions in Redis hashes with a TTL. A per-user set
// indexes the session ids of each account.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

var _ Store = (*RedisStore)(nil)

func sessionKey(id string) string {
	return "session:" + id
}

func userKey(userID int64) string {
	return "user_sessions:" + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) Create(ctx context.Context, sess Session) (Session, error) {
	id, err := newID()
	if err != nil {
		return Session{}, err
	}
	sess.ID = id
	sess.rev = 0
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey(id), encodeFields(sess))
		pipe.Expire(ctx, sessionKey(id), s.ttl)
		pipe.SAdd(ctx, userKey(sess.UserID), id)
		pipe.Expire(ctx, userKey(sess.UserID), s.ttl)
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	fields, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return Session{}, err
	}
	if len(fields) == 0 {
		return Session{}, ErrNotFound
	}
	return decodeFields(id, fields)
}

// Save writes sess inside a WATCH transaction on the session key. A write
// or delete of the key by anyone else aborts it with ErrStale, so a session
// removed meanwhile is never recreated.
func (s *RedisStore) Save(ctx context.Context, sess Session) (Session, error) {
	key := sessionKey(sess.ID)
	next := sess

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, fieldRev).Result()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		rev, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("session %s: bad revision: %w", shortKey(sess.ID), err)
		}
		if rev != sess.rev {
			return ErrStale
		}

		next.rev = rev + 1
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeFields(next))
			if !next.Resolved() {
				pipe.HDel(ctx, key, fieldUsername, fieldRole)
			}
			return nil
		})
		return err
	}, key)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		return Session{}, ErrStale
	case err != nil:
		return Session{}, err
	}
	return next, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	userID, err := s.client.HGet(ctx, sessionKey(id), fieldUserID).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(id))
		if userID > 0 {
			pipe.SRem(ctx, userKey(userID), id)
		}
		return nil
	})
	return err
}

func (s *RedisStore) ForgetUser(ctx context.Context, userID int64) error {
	ids, err := s.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return err
	}

	for _, id := range ids {
		err := forgetScript.Run(ctx, s.client, []string{sessionKey(id)}, fieldUsername, fieldRole, fieldRev).Err()
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *RedisStore) DeleteUser(ctx context.Context, userID int64) error {
	ids, err := s.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, userKey(userID))
	return s.client.Del(ctx, keys...).Err()
}

func shortKey(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func encodeFields(sess Session) map[string]any {
	fields := map[string]any{
		fieldUserID:    strconv.FormatInt(sess.UserID, 10),
		fieldCreatedAt: strconv.FormatInt(sess.CreatedAt.Unix(), 10),
		fieldRev:       strconv.FormatInt(sess.rev, 10),
	}
	if sess.Resolved() {
		fields[fieldUsername] = sess.Username
		fields[fieldRole] = string(sess.Role)
	}
	return fields
}

func decodeFields(id string, fields map[string]string) (Session, error) {
	userID, err := strconv.ParseInt(fields[fieldUserID], 10, 64)
	if err != nil {
		return Session{}, fmt.Errorf("session %s: bad user id: %w", shortKey(id), err)
	}
	sess := Session{
		ID:       id,
		UserID:   userID,
		Username: fields[fieldUsername],
		Role:     types.Role(fields[fieldRole]),
	}
	if raw, ok := fields[fieldRev]; ok {
		rev, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Session{}, fmt.Errorf("session %s: bad revision: %w", shortKey(id), err)
		}
		sess.rev = rev
	}
	if raw, ok := fields[fieldCreatedAt]; ok {
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
			sess.CreatedAt = time.Unix(secs, 0)
		}
	}
	return sess, nil
}
