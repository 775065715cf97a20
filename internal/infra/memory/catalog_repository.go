package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"vocab-quest-service/internal/domain"
)

// CatalogLoader fetches the quest session catalog from a backing store.
type CatalogLoader interface {
	LoadSessions(ctx context.Context) ([]domain.QuestSession, error)
}

// CatalogRepository caches the session catalog with a TTL to avoid repeated DB hits.
type CatalogRepository struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	catalog   domain.Catalog
	expiresAt time.Time
	loaded    bool
}

func NewCatalogRepository(loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

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
	if catalog, ok := r.cached(r.clock()); ok {
		return catalog, nil
	}

	result, err, _ := r.sf.Do("catalog", func() (interface{}, error) {
		now := r.clock()
		if catalog, ok := r.cached(now); ok {
			return catalog, nil
		}

		sessions, err := r.loader.LoadSessions(ctx)
		if err != nil {
			return domain.Catalog{}, err
		}
		catalog := domain.NewCatalog(sessions)

		r.mu.Lock()
		r.catalog = catalog
		r.expiresAt = now.Add(r.ttlWithJitter())
		r.loaded = true
		r.mu.Unlock()
		return catalog, nil
	})
	if err != nil {
		return domain.Catalog{}, err
	}
	return result.(domain.Catalog), nil
}

func (r *CatalogRepository) cached(now time.Time) (domain.Catalog, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.loaded && r.expiresAt.After(now) {
		return r.catalog, true
	}
	return domain.Catalog{}, false
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticCatalogLoader is a loader backed by a fixed slice (useful for tests/demos).
type StaticCatalogLoader struct {
	sessions []domain.QuestSession
}

func NewStaticCatalogLoader(sessions []domain.QuestSession) *StaticCatalogLoader {
	return &StaticCatalogLoader{sessions: sessions}
}

func (l *StaticCatalogLoader) LoadSessions(_ context.Context) ([]domain.QuestSession, error) {
	out := make([]domain.QuestSession, len(l.sessions))
	copy(out, l.sessions)
	return out, nil
}
