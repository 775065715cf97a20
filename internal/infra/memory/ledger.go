package memory

import (
	"context"
	"sort"
	"sync"

	"vocab-quest-service/internal/domain"
)

// Ledger is an in-memory XP ledger. Every credit is a single critical section.
type Ledger struct {
	mu      sync.Mutex
	totals  map[string]int64
	applied map[string]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{
		totals:  make(map[string]int64),
		applied: make(map[string]struct{}),
	}
}

func (l *Ledger) Credit(_ context.Context, userID string, amount int) (domain.XPBalance, error) {
	if err := domain.CheckCreditAmount(amount); err != nil {
		return domain.XPBalance{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totals[userID] += int64(amount)
	return domain.NewXPBalance(userID, l.totals[userID]), nil
}

func (l *Ledger) CreditOnce(_ context.Context, userID, key string, amount int) (domain.XPBalance, bool, error) {
	if err := domain.CheckCreditAmount(amount); err != nil {
		return domain.XPBalance{}, false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fence := userID + "\x00" + key
	if _, ok := l.applied[fence]; ok {
		return domain.NewXPBalance(userID, l.totals[userID]), false, nil
	}
	l.applied[fence] = struct{}{}
	l.totals[userID] += int64(amount)
	return domain.NewXPBalance(userID, l.totals[userID]), true, nil
}

func (l *Ledger) Balance(_ context.Context, userID string) (domain.XPBalance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.NewXPBalance(userID, l.totals[userID]), nil
}

// Top ranks by XP, ties broken by user id.
func (l *Ledger) Top(_ context.Context, limit int) ([]domain.XPBalance, error) {
	l.mu.Lock()
	out := make([]domain.XPBalance, 0, len(l.totals))
	for userID, total := range l.totals {
		out = append(out, domain.NewXPBalance(userID, total))
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].XPTotal != out[j].XPTotal {
			return out[i].XPTotal > out[j].XPTotal
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
