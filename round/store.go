package round

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Store is the persistence adapter for rounds. Save is the serialization
// point: it atomically enforces join-code uniqueness, so two concurrent
// writers racing for the same code see exactly one ErrCodeTaken.
type Store interface {
	Get(ctx context.Context, id string) (*Round, error)
	GetByCode(ctx context.Context, code string) (*Round, error)
	ListForUser(ctx context.Context, userID string) ([]*Round, error)
	Save(ctx context.Context, r *Round) error
	Delete(ctx context.Context, id string) error
}

// RedisStore stores each round as a JSON value, with a code index and
// per-user membership sets for listing. All keys are namespaced under
// "openround:".
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Ping verifies connectivity. Useful for health checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func roundKey(id string) string    { return "openround:round:" + id }
func codeKey(code string) string   { return "openround:code:" + code }
func membersKey(id string) string  { return "openround:members:" + id }
func userKey(userID string) string { return "openround:user:" + userID }

func (s *RedisStore) Get(ctx context.Context, id string) (*Round, error) {
	data, err := s.rdb.Get(ctx, roundKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr(err)
	}

	var r Round
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, storageErr(fmt.Errorf("corrupt round %s: %w", id, err))
	}
	return &r, nil
}

func (s *RedisStore) GetByCode(ctx context.Context, code string) (*Round, error) {
	id, err := s.rdb.Get(ctx, codeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return s.Get(ctx, id)
}

func (s *RedisStore) ListForUser(ctx context.Context, userID string) ([]*Round, error) {
	ids, err := s.rdb.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, storageErr(err)
	}

	rounds := make([]*Round, 0, len(ids))
	for _, id := range ids {
		r, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// Stale index entry; the round was deleted.
			_ = s.rdb.SRem(ctx, userKey(userID), id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, r)
	}
	return rounds, nil
}

// Save persists the full round. If the round carries a code, the code
// index entry is created with SETNX; a code already pointing at a
// different round fails with ErrCodeTaken and leaves the round unwritten,
// which is what triggers re-allocation in the caller.
func (s *RedisStore) Save(ctx context.Context, r *Round) error {
	if r.Code != "" {
		ok, err := s.rdb.SetNX(ctx, codeKey(r.Code), r.ID, 0).Result()
		if err != nil {
			return storageErr(err)
		}
		if !ok {
			holder, err := s.rdb.Get(ctx, codeKey(r.Code)).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return storageErr(err)
			}
			if holder != r.ID {
				return ErrCodeTaken
			}
		}
	}

	data, err := json.Marshal(r)
	if err != nil {
		return storageErr(err)
	}
	if err := s.rdb.Set(ctx, roundKey(r.ID), data, 0).Err(); err != nil {
		return storageErr(err)
	}

	return s.reindexMembers(ctx, r)
}

// reindexMembers diffs the stored member set against the round's current
// members so that vacated identities stop seeing the round in their list.
func (s *RedisStore) reindexMembers(ctx context.Context, r *Round) error {
	previous, err := s.rdb.SMembers(ctx, membersKey(r.ID)).Result()
	if err != nil {
		return storageErr(err)
	}

	current := r.Members()
	keep := make(map[string]bool, len(current))
	for _, id := range current {
		keep[id] = true
		if err := s.rdb.SAdd(ctx, userKey(id), r.ID).Err(); err != nil {
			return storageErr(err)
		}
		if err := s.rdb.SAdd(ctx, membersKey(r.ID), id).Err(); err != nil {
			return storageErr(err)
		}
	}

	for _, id := range previous {
		if keep[id] {
			continue
		}
		if err := s.rdb.SRem(ctx, userKey(id), r.ID).Err(); err != nil {
			return storageErr(err)
		}
		if err := s.rdb.SRem(ctx, membersKey(r.ID), id).Err(); err != nil {
			return storageErr(err)
		}
	}

	return nil
}

// Delete removes the round, frees its join code, and clears every
// membership index entry.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if r.Code != "" {
		if err := s.rdb.Del(ctx, codeKey(r.Code)).Err(); err != nil {
			return storageErr(err)
		}
	}

	members, err := s.rdb.SMembers(ctx, membersKey(id)).Result()
	if err != nil {
		return storageErr(err)
	}
	for _, userID := range members {
		if err := s.rdb.SRem(ctx, userKey(userID), id).Err(); err != nil {
			return storageErr(err)
		}
	}

	if err := s.rdb.Del(ctx, membersKey(id), roundKey(id)).Err(); err != nil {
		return storageErr(err)
	}
	return nil
}
