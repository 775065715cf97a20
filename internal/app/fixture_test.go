package app_test

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"vocab-quest-service/internal/app"
	"vocab-quest-service/internal/domain"
	"vocab-quest-service/internal/infra/memory"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	service     *app.QuestService
	words       *memory.WordStateStore
	ledger      *memory.Ledger
	completions *memory.CompletionStore
	attempts    *memory.AttemptStore
	activity    *memory.ActivityLog
	now         time.Time
}

func newFixture(t *testing.T, opts ...app.Option) *fixture {
	t.Helper()
	f := &fixture{
		words:       memory.NewWordStateStore(),
		ledger:      memory.NewLedger(),
		completions: memory.NewCompletionStore(),
		attempts:    memory.NewAttemptStore(),
		activity:    memory.NewActivityLog(),
		now:         t0,
	}
	f.service = f.build(t, app.Stores{}, opts...)
	return f
}

// build wires a service over the fixture's memory stores; non-nil fields of override replace them.
func (f *fixture) build(t *testing.T, override app.Stores, opts ...app.Option) *app.QuestService {
	stores := app.Stores{
		Catalog:     memory.NewCatalogRepository(memory.NewStaticCatalogLoader(testSessions()), time.Minute),
		Words:       f.words,
		Ledger:      f.ledger,
		Completions: f.completions,
		Attempts:    f.attempts,
		Activity:    f.activity,
	}
	if override.Words != nil {
		stores.Words = override.Words
	}
	if override.Ledger != nil {
		stores.Ledger = override.Ledger
	}
	if override.Completions != nil {
		stores.Completions = override.Completions
	}
	if override.Activity != nil {
		stores.Activity = override.Activity
	}
	base := []app.Option{
		app.WithClock(func() time.Time { return f.now }),
		app.WithLocation(time.UTC),
		app.WithLogger(zaptest.NewLogger(t)),
	}
	return app.NewQuestService(stores, append(base, opts...)...)
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func testSessions() []domain.QuestSession {
	return []domain.QuestSession{
		{
			ID:     "s-1",
			Number: 1,
			Title:  "Fruit",
			Words: []domain.WordRef{
				{ID: "w1", Term: "apple"},
				{ID: "w2", Term: "pear"},
				{ID: "w3", Term: "plum"},
				{ID: "w4", Term: "fig"},
				{ID: "w5", Term: "grape"},
			},
		},
		{
			ID:     "s-2",
			Number: 2,
			Title:  "Kitchen",
			Words:  []domain.WordRef{{ID: "w6", Term: "spoon"}},
		},
	}
}

func fruitSnapshot() domain.GuestProgressSnapshot {
	return domain.GuestProgressSnapshot{
		SessionNumber: 1,
		XPEarned:      60,
		Words: []domain.GuestWord{
			{WordID: "w1", Term: "apple", IsCorrect: true},
			{WordID: "w2", Term: "pear", IsCorrect: false},
			{WordID: "w3", Term: "plum", IsCorrect: true},
			{WordID: "w4", Term: "fig", IsCorrect: true},
			{WordID: "w5", Term: "grape", IsCorrect: true},
		},
		CompletedAt:  t0.Add(-72 * time.Hour),
		CorrectCount: 4,
		TotalCount:   5,
	}
}
