package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"vocab-quest-service/internal/domain"
)

// CatalogLoader fetches the quest session catalog from a backing store.
type CatalogLoader interface {
	LoadSessions(ctx context.Context) ([]domain.QuestSession, error)
}

// CatalogRepository caches the session catalog in Redis and falls back to a loader on cache miss.
// Sessions are stored as: HSET quest:catalog {sessionID} {session JSON}
type CatalogRepository struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalogRepository(client *redis.Client, loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

const catalogKey = "quest:catalog"

func (r *CatalogRepository) SessionByNumber(ctx context.Context, number int) (domain.QuestSession, error) {
	catalog, err := r.load(ctx)
	if err != nil {
		return domain.QuestSession{}, err
	}
	if q, ok := catalog.ByNumber(number); ok {
		return q, nil
	}
	return domain.QuestSession{}, domain.ErrSessionNotFound
}

func (r *CatalogRepository) Session(ctx context.Context, sessionID string) (domain.QuestSession, error) {
	raw, err := r.client.HGet(ctx, catalogKey, sessionID).Result()
	if err == nil {
		var q domain.QuestSession
		if json.Unmarshal([]byte(raw), &q) == nil {
			return q, nil
		}
	}

	catalog, err := r.load(ctx)
	if err != nil {
		return domain.QuestSession{}, err
	}
	if q, ok := catalog.ByID(sessionID); ok {
		return q, nil
	}
	return domain.QuestSession{}, domain.ErrSessionNotFound
}

func (r *CatalogRepository) Sessions(ctx context.Context) ([]domain.QuestSession, error) {
	catalog, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.All(), nil
}

func (r *CatalogRepository) load(ctx context.Context) (domain.Catalog, error) {
	if catalog, ok := r.cached(ctx); ok {
		return catalog, nil
	}

	result, err, _ := r.sf.Do(catalogKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if catalog, ok := r.cached(ctx); ok {
			return catalog, nil
		}

		sessions, err := r.loader.LoadSessions(ctx)
		if err != nil {
			return domain.Catalog{}, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		pipe.Del(ctx, catalogKey)
		for _, q := range sessions {
			data, err := json.Marshal(q)
			if err != nil {
				return domain.Catalog{}, fmt.Errorf("marshal session %s: %w", q.ID, err)
			}
			pipe.HSet(ctx, catalogKey, q.ID, data)
		}
		if ttl > 0 {
			pipe.Expire(ctx, catalogKey, ttl)
		}
		// cache fill is best effort
		_, _ = pipe.Exec(ctx)

		return domain.NewCatalog(sessions), nil
	})
	if err != nil {
		return domain.Catalog{}, err
	}
	return result.(domain.Catalog), nil
}

func (r *CatalogRepository) cached(ctx context.Context) (domain.Catalog, bool) {
	entries, err := r.client.HGetAll(ctx, catalogKey).Result()
	if err != nil || len(entries) == 0 {
		return domain.Catalog{}, false
	}
	sessions := make([]domain.QuestSession, 0, len(entries))
	for _, raw := range entries {
		var q domain.QuestSession
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return domain.Catalog{}, false
		}
		sessions = append(sessions, q)
	}
	return domain.NewCatalog(sessions), true
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
