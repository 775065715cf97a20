package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"vocab-quest-service/internal/domain"
)

func TestCatalogRepositoryCaches(t *testing.T) {
	loader := &countingLoader{CatalogLoader: NewStaticCatalogLoader(sampleSessions())}
	repo := NewCatalogRepository(loader, time.Minute)

	q, err := repo.SessionByNumber(context.Background(), 1)
	if err != nil {
		t.Fatalf("session by number: %v", err)
	}
	if q.ID != "s-1" {
		t.Fatalf("expected s-1, got %s", q.ID)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.Session(context.Background(), "s-2"); err != nil {
		t.Fatalf("session by id: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestCatalogRepositoryReloadsAfterTTL(t *testing.T) {
	loader := &countingLoader{CatalogLoader: NewStaticCatalogLoader(sampleSessions())}
	repo := NewCatalogRepository(loader, time.Minute)
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, _ = repo.Sessions(context.Background())
	now = now.Add(2 * time.Minute)
	_, _ = repo.Sessions(context.Background())
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}
}

func TestCatalogRepositoryUnknownSession(t *testing.T) {
	repo := NewCatalogRepository(NewStaticCatalogLoader(sampleSessions()), time.Minute)

	if _, err := repo.SessionByNumber(context.Background(), 99); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
	all, err := repo.Sessions(context.Background())
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(all) != 2 || all[0].Number != 1 || all[1].Number != 2 {
		t.Fatalf("expected sessions ordered by number, got %+v", all)
	}
}

type countingLoader struct {
	CatalogLoader
	calls int
}

func (l *countingLoader) LoadSessions(ctx context.Context) ([]domain.QuestSession, error) {
	l.calls++
	return l.CatalogLoader.LoadSessions(ctx)
}

func sampleSessions() []domain.QuestSession {
	return []domain.QuestSession{
		{ID: "s-2", Number: 2, Title: "Kitchen", Words: []domain.WordRef{{ID: "w3", Term: "spoon"}}},
		{ID: "s-1", Number: 1, Title: "Fruit", Words: []domain.WordRef{{ID: "w1", Term: "apple"}, {ID: "w2", Term: "pear"}}},
	}
}
