package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"vocab-quest-service/internal/domain"
)

// ActivityLog records activity events in memory, one per (user, kind, date).
type ActivityLog struct {
	mu     sync.Mutex
	events map[string]map[string]struct{}
}

func NewActivityLog() *ActivityLog {
	return &ActivityLog{events: make(map[string]map[string]struct{})}
}

func (a *ActivityLog) RecordActivity(_ context.Context, userID string, kind domain.ActivityKind, date string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	days, ok := a.events[userID]
	if !ok {
		days = make(map[string]struct{})
		a.events[userID] = days
	}
	days[string(kind)+"@"+date] = struct{}{}
	return nil
}

// Dates returns the recorded dates for a user and kind, sorted.
func (a *ActivityLog) Dates(userID string, kind domain.ActivityKind) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	prefix := string(kind) + "@"
	var out []string
	for k := range a.events[userID] {
		if date, ok := strings.CutPrefix(k, prefix); ok {
			out = append(out, date)
		}
	}
	sort.Strings(out)
	return out
}
