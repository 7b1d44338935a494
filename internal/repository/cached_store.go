package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"impex-service/internal/models"
	"impex-service/internal/schema"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultRecordCacheTTL is used when no TTL is configured
const DefaultRecordCacheTTL = 30 * time.Minute

// CachedStore is a read-through Redis cache in front of another store.
// Writes go to the inner store first and then drop the cached entries.
// A nil Redis client turns it into a pass-through.
type CachedStore struct {
	inner  Store
	redis  *redis.Client
	schema *schema.Descriptor
	ttl    time.Duration
	logger *logrus.Entry
}

func NewCachedStore(inner Store, client *redis.Client, d *schema.Descriptor, ttl time.Duration, logger *logrus.Entry) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultRecordCacheTTL
	}
	return &CachedStore{
		inner:  inner,
		redis:  client,
		schema: d,
		ttl:    ttl,
		logger: logger.WithFields(logrus.Fields{"store": "redis-cache", "collection": d.Collection()}),
	}
}

func (s *CachedStore) cacheKey(id string) string {
	return fmt.Sprintf("impex:%s:record:%s", s.schema.Collection(), id)
}

func (s *CachedStore) FindByID(ctx context.Context, id string) (*models.Record, error) {
	if s.redis != nil {
		val, err := s.redis.Get(ctx, s.cacheKey(id)).Bytes()
		if err == nil {
			if rec, decodeErr := s.decode(val); decodeErr == nil {
				return rec, nil
			}
		}
	}

	rec, err := s.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(rec); err == nil {
			if err := s.redis.Set(ctx, s.cacheKey(id), data, s.ttl).Err(); err != nil {
				s.logger.WithError(err).Debug("Failed to cache record")
			}
		}
	}
	return rec, nil
}

func (s *CachedStore) Save(ctx context.Context, rec *models.Record) (*models.Record, error) {
	saved, err := s.inner.Save(ctx, rec)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, rec.ID)
	return saved, nil
}

func (s *CachedStore) SaveAll(ctx context.Context, recs []*models.Record) ([]*models.Record, error) {
	saved, err := s.inner.SaveAll(ctx, recs)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ID)
	}
	s.invalidate(ctx, ids...)
	return saved, nil
}

func (s *CachedStore) Delete(ctx context.Context, rec *models.Record) error {
	if err := s.inner.Delete(ctx, rec); err != nil {
		return err
	}
	s.invalidate(ctx, rec.ID)
	return nil
}

func (s *CachedStore) invalidate(ctx context.Context, ids ...string) {
	if s.redis == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.cacheKey(id))
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate cached records")
	}
}

func (s *CachedStore) decode(data []byte) (*models.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, err
	}

	rec, problems := s.schema.Decode(values)
	if len(problems) > 0 {
		return nil, problems[0]
	}
	rec.ID, _ = values["id"].(string)
	return rec, nil
}
