package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/shipos/shipos/pkg/composables"
)

const DefaultTTL = 24 * time.Hour

// RedisTracker stores one JSON snapshot per run in the hash
// migration:progress:{tenantID}. Every write refreshes the hash expiry.
type RedisTracker struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisTracker(client redis.UniversalClient, ttl time.Duration) *RedisTracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisTracker{client: client, ttl: ttl}
}

func HashKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("migration:progress:%s", tenantID)
}

func (t *RedisTracker) Start(ctx context.Context, runID uuid.UUID, totals map[string]int) error {
	key, err := t.hashKey(ctx)
	if err != nil {
		return err
	}
	return t.save(ctx, key, newSnapshot(runID, totals, time.Now().UTC()))
}

func (t *RedisTracker) Advance(ctx context.Context, runID uuid.UUID, entity string, ok bool) error {
	return t.update(ctx, runID, func(s *Snapshot) { s.advance(entity, ok, time.Now().UTC()) })
}

func (t *RedisTracker) Finish(ctx context.Context, runID uuid.UUID, status string) error {
	return t.update(ctx, runID, func(s *Snapshot) {
		s.Status = status
		s.UpdatedAt = time.Now().UTC()
	})
}

func (t *RedisTracker) Get(ctx context.Context, runID uuid.UUID) (Snapshot, error) {
	key, err := t.hashKey(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return t.load(ctx, key, runID)
}

func (t *RedisTracker) hashKey(ctx context.Context) (string, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return "", err
	}
	return HashKey(tenantID), nil
}

func (t *RedisTracker) load(ctx context.Context, key string, runID uuid.UUID) (Snapshot, error) {
	raw, err := t.client.HGet(ctx, key, runID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrProgressNotFound
	}
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to read migration progress")
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to decode migration progress")
	}
	return s, nil
}

func (t *RedisTracker) save(ctx context.Context, key string, s Snapshot) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "failed to encode migration progress")
	}
	pipe := t.client.TxPipeline()
	pipe.HSet(ctx, key, s.RunID.String(), raw)
	pipe.Expire(ctx, key, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to write migration progress")
	}
	return nil
}

func (t *RedisTracker) update(ctx context.Context, runID uuid.UUID, fn func(*Snapshot)) error {
	key, err := t.hashKey(ctx)
	if err != nil {
		return err
	}
	s, err := t.load(ctx, key, runID)
	if err != nil {
		return err
	}
	fn(&s)
	return t.save(ctx, key, s)
}
