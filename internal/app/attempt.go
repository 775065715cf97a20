package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"vocab-quest-service/internal/domain"
)

// Attempt is the in-memory answer log of one user's run through a quest session.
type Attempt struct {
	userID    string
	sessionID string
	startedAt time.Time

	mu      sync.Mutex
	answers []domain.Answer
	state   domain.AttemptState
	pending int
	idle    chan struct{}
}

// NewAttempt is exported for infrastructure layers that create or rehydrate attempts.
func NewAttempt(userID, sessionID string, startedAt time.Time) *Attempt {
	return &Attempt{
		userID:    userID,
		sessionID: sessionID,
		startedAt: startedAt,
		state:     domain.AttemptInProgress,
	}
}

func (a *Attempt) UserID() string       { return a.userID }
func (a *Attempt) SessionID() string    { return a.sessionID }
func (a *Attempt) StartedAt() time.Time { return a.startedAt }

// Record appends an acknowledged answer. A blocked attempt returns to in progress.
func (a *Attempt) Record(answer domain.Answer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.answers = append(a.answers, answer)
	if a.state == domain.AttemptBlocked {
		a.state = domain.AttemptInProgress
	}
}

// Answers returns a copy of the answer log in submission order.
func (a *Attempt) Answers() []domain.Answer {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.Answer, len(a.answers))
	copy(out, a.answers)
	return out
}

func (a *Attempt) State() domain.AttemptState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Attempt) setState(state domain.AttemptState) {
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
}

// begin registers an answer write that completion must wait for.
func (a *Attempt) begin() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == 0 {
		a.idle = make(chan struct{})
	}
	a.pending++
}

func (a *Attempt) end() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending--
	if a.pending == 0 {
		close(a.idle)
	}
}

// waitIdle blocks until no answer writes are in flight.
func (a *Attempt) waitIdle(ctx context.Context) error {
	a.mu.Lock()
	if a.pending == 0 {
		a.mu.Unlock()
		return nil
	}
	idle := a.idle
	a.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// openMistakes returns the words whose latest answer in this attempt was wrong, with the time of
// that answer, ordered by word id.
func (a *Attempt) openMistakes() []domain.Answer {
	a.mu.Lock()
	last := make(map[string]domain.Answer, len(a.answers))
	for _, ans := range a.answers {
		last[ans.WordID] = ans
	}
	a.mu.Unlock()

	out := make([]domain.Answer, 0)
	for _, ans := range last {
		if !ans.Correct {
			out = append(out, ans)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WordID < out[j].WordID })
	return out
}
