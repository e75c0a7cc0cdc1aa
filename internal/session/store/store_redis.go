package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"healthbff/internal/session/models"
	"healthbff/pkg/platform/sentinel"
)

// maxUpdateAttempts bounds optimistic retries when a watched key changes.
const maxUpdateAttempts = 10

const (
	sessionKeyPrefix = "bff:session:"
	indexKeyPrefix   = "bff:session-index:"
	lockKeyPrefix    = "bff:lock:"
)

// deleteIfEquals removes a key only while it still holds the given value. It
// guards the subject index against a late logout clearing a newer login, and
// locks against release by a holder whose TTL already lapsed.
var deleteIfEquals = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore is the shared session store used across gateway instances.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(id string) string    { return sessionKeyPrefix + id }
func indexKey(subject string) string { return indexKeyPrefix + subject }
func lockKey(key string) string      { return lockKeyPrefix + key }

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Put(ctx context.Context, sess *models.Session, ttl time.Duration) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) Expire(ctx context.Context, id string, ttl time.Duration) error {
	ok, err := s.client.Expire(ctx, sessionKey(id), ttl).Result()
	if err != nil {
		return fmt.Errorf("expire session: %w", err)
	}
	if !ok {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RedisStore) IndexedSessionID(ctx context.Context, subjectID string) (string, error) {
	id, err := s.client.Get(ctx, indexKey(subjectID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get session index: %w", err)
	}
	return id, nil
}

func (s *RedisStore) SetIndex(ctx context.Context, subjectID, sessionID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, indexKey(subjectID), sessionID, ttl).Err(); err != nil {
		return fmt.Errorf("set session index: %w", err)
	}
	return nil
}

// ExpireIndex resets the index TTL without changing where it points.
func (s *RedisStore) ExpireIndex(ctx context.Context, subjectID string, ttl time.Duration) error {
	ok, err := s.client.Expire(ctx, indexKey(subjectID), ttl).Result()
	if err != nil {
		return fmt.Errorf("expire session index: %w", err)
	}
	if !ok {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RedisStore) DeleteIndex(ctx context.Context, subjectID, sessionID string) error {
	if err := deleteIfEquals.Run(ctx, s.client, []string{indexKey(subjectID)}, sessionID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete session index: %w", err)
	}
	return nil
}

// Update applies mutate under WATCH/MULTI so concurrent writers cannot
// interleave a read-modify-write. When mutate returns false nothing is
// written. A ttl of zero keeps the record's remaining TTL.
func (s *RedisStore) Update(ctx context.Context, id string, ttl time.Duration, mutate func(*models.Session) (bool, error)) (*models.Session, error) {
	key := sessionKey(id)
	var result *models.Session
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return err
		}
		var sess models.Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}
		write, err := mutate(&sess)
		if err != nil {
			return err
		}
		result = &sess
		if !write {
			return nil
		}
		payload, err := json.Marshal(&sess)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if ttl > 0 {
				pipe.Set(ctx, key, payload, ttl)
			} else {
				pipe.SetArgs(ctx, key, payload, redis.SetArgs{KeepTTL: true})
			}
			return nil
		})
		return err
	}

	for range maxUpdateAttempts {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("update session: %w", err)
		}
		return result, nil
	}
	return nil, fmt.Errorf("update session: %w", sentinel.ErrConflict)
}

// TryAcquireLock is SET NX PX with a random token. The TTL bounds how long a
// crashed holder can block other instances.
func (s *RedisStore) TryAcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock deletes the lock only if token still owns it.
func (s *RedisStore) ReleaseLock(ctx context.Context, key, token string) error {
	if err := deleteIfEquals.Run(ctx, s.client, []string{lockKey(key)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
