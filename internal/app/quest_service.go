package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vocab-quest-service/internal/domain"
	"vocab-quest-service/internal/srs"
)

// DefaultLeaderboardSize is the number of ranked users returned when no limit is given.
const DefaultLeaderboardSize = 50

// Stores groups the collaborators QuestService drives.
type Stores struct {
	Catalog     SessionCatalog
	Words       WordStateStore
	Ledger      XPLedger
	Completions CompletionStore
	Attempts    AttemptRepository
	Activity    ActivityRecorder
}

// QuestService contains the core quest use cases: answers, session completion and guest merges.
type QuestService struct {
	catalog     SessionCatalog
	words       WordStateStore
	ledger      XPLedger
	completions CompletionStore
	attempts    AttemptRepository
	activity    ActivityRecorder

	rules    domain.XPRules
	location *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

type Option func(*QuestService)

func WithLogger(logger *zap.Logger) Option {
	return func(s *QuestService) { s.logger = logger }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuestService) { s.now = now }
}

func WithXPRules(rules domain.XPRules) Option {
	return func(s *QuestService) { s.rules = rules }
}

// WithLocation sets the zone used to derive calendar dates for activity events.
func WithLocation(loc *time.Location) Option {
	return func(s *QuestService) { s.location = loc }
}

func NewQuestService(stores Stores, opts ...Option) *QuestService {
	s := &QuestService{
		catalog:     stores.Catalog,
		words:       stores.Words,
		ledger:      stores.Ledger,
		completions: stores.Completions,
		attempts:    stores.Attempts,
		activity:    stores.Activity,
		rules:       domain.DefaultXPRules(),
		location:    time.Local,
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitAnswer schedules the next review of a word outside any quest session and credits answer XP.
func (s *QuestService) SubmitAnswer(ctx context.Context, userID, wordID string, correct bool, at time.Time) (domain.AnswerResult, error) {
	if err := checkAnswer(userID, wordID); err != nil {
		return domain.AnswerResult{}, err
	}
	at = s.normalizeTime(at)

	state, err := s.persistAnswer(ctx, userID, wordID, correct, at)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	result, err := s.creditAnswer(ctx, state, correct)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	s.recordActivity(ctx, userID, domain.ActivityReview)
	return result, nil
}

// SubmitQuestAnswer records an answer inside a quest session. The word state is persisted before the
// answer enters the attempt log, and completion requests wait for the write.
func (s *QuestService) SubmitQuestAnswer(ctx context.Context, userID, sessionID, wordID string, correct bool, at time.Time) (domain.AnswerResult, error) {
	if err := checkAnswer(userID, wordID); err != nil {
		return domain.AnswerResult{}, err
	}
	session, err := s.catalog.Session(ctx, sessionID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if !session.HasWord(wordID) {
		return domain.AnswerResult{}, fmt.Errorf("%w: %s", domain.ErrWordNotFound, wordID)
	}

	attempt, err := s.attempts.GetOrCreate(ctx, userID, session.ID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	attempt.begin()
	defer attempt.end()

	at = s.normalizeTime(at)
	state, err := s.persistAnswer(ctx, userID, wordID, correct, at)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	// The local log is already updated when Record fails; only the shared copy is stale.
	if err := s.attempts.Record(ctx, attempt, domain.Answer{WordID: wordID, Correct: correct, At: at}); err != nil {
		s.logger.Warn("mirror attempt answer failed",
			zap.String("user_id", userID), zap.String("session_id", session.ID), zap.Error(err))
	}
	return s.creditAnswer(ctx, state, correct)
}

// WordState returns the user's schedule for a word.
func (s *QuestService) WordState(ctx context.Context, userID, wordID string) (domain.WordState, error) {
	if err := checkAnswer(userID, wordID); err != nil {
		return domain.WordState{}, err
	}
	state, ok, err := s.words.Get(ctx, userID, wordID)
	if err != nil {
		return domain.WordState{}, err
	}
	if !ok {
		return domain.WordState{}, domain.ErrWordStateNotFound
	}
	return state, nil
}

// DueWords lists words waiting for review, earliest due first.
func (s *QuestService) DueWords(ctx context.Context, userID string, limit int) ([]domain.WordState, error) {
	if userID == "" {
		return nil, domain.ErrMissingUser
	}
	return s.words.Due(ctx, userID, s.clock(), limit)
}

// DueCount is the size of the user's review queue.
func (s *QuestService) DueCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, domain.ErrMissingUser
	}
	return s.words.CountDue(ctx, userID, s.clock())
}

// Balance returns the user's XP and level.
func (s *QuestService) Balance(ctx context.Context, userID string) (domain.XPBalance, error) {
	if userID == "" {
		return domain.XPBalance{}, domain.ErrMissingUser
	}
	return s.ledger.Balance(ctx, userID)
}

// Leaderboard ranks users by XP. The caller sees themselves as "You".
func (s *QuestService) Leaderboard(ctx context.Context, currentUserID string, limit int) (domain.Leaderboard, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	top, err := s.ledger.Top(ctx, limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	entries := make([]domain.LeaderboardEntry, 0, len(top))
	for i, b := range top {
		entry := domain.LeaderboardEntry{
			Rank:        i + 1,
			UserID:      b.UserID,
			DisplayName: scholarName(b.UserID),
			XPTotal:     b.XPTotal,
			Level:       b.Level,
		}
		if currentUserID != "" && b.UserID == currentUserID {
			entry.DisplayName = "You"
			entry.IsCurrentUser = true
		}
		entries = append(entries, entry)
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: s.clock()}, nil
}

// SessionsProgress lists catalog sessions with the user's completion status.
func (s *QuestService) SessionsProgress(ctx context.Context, userID string) ([]domain.SessionProgress, error) {
	if userID == "" {
		return nil, domain.ErrMissingUser
	}
	sessions, err := s.catalog.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	done, err := s.completions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	completedAt := make(map[string]time.Time, len(done))
	for _, c := range done {
		completedAt[c.SessionID] = c.CompletedAt
	}

	out := make([]domain.SessionProgress, 0, len(sessions))
	for _, q := range sessions {
		p := domain.SessionProgress{
			SessionID: q.ID,
			Number:    q.Number,
			Title:     q.Title,
			WordCount: len(q.Words),
		}
		if at, ok := completedAt[q.ID]; ok {
			at := at
			p.Completed = true
			p.CompletedAt = &at
		}
		out = append(out, p)
	}
	return out, nil
}

// SessionByNumber resolves a catalog session for transports that address sessions by number.
func (s *QuestService) SessionByNumber(ctx context.Context, number int) (domain.QuestSession, error) {
	return s.catalog.SessionByNumber(ctx, number)
}

func (s *QuestService) persistAnswer(ctx context.Context, userID, wordID string, correct bool, at time.Time) (domain.WordState, error) {
	state, err := s.words.Upsert(ctx, userID, wordID, func(prev *domain.WordState) domain.WordState {
		next := srs.Advance(prev, correct, at)
		next.UserID = userID
		next.WordID = wordID
		return next
	})
	if err != nil {
		s.logger.Error("persist answer failed",
			zap.String("user_id", userID), zap.String("word_id", wordID), zap.Error(err))
		return domain.WordState{}, fmt.Errorf("persist answer: %w", err)
	}
	return state, nil
}

func (s *QuestService) creditAnswer(ctx context.Context, state domain.WordState, correct bool) (domain.AnswerResult, error) {
	xp := s.rules.AnswerXP(correct)
	balance, err := s.ledger.Credit(ctx, state.UserID, xp)
	if err != nil {
		s.logger.Error("credit answer xp failed",
			zap.String("user_id", state.UserID), zap.Int("xp", xp), zap.Error(err))
		return domain.AnswerResult{}, fmt.Errorf("credit answer xp: %w", err)
	}
	return domain.AnswerResult{State: state, XPAwarded: xp, Balance: balance}, nil
}

// recordActivity is best effort; streak bookkeeping never fails the calling operation.
func (s *QuestService) recordActivity(ctx context.Context, userID string, kind domain.ActivityKind) {
	if s.activity == nil {
		return
	}
	date := s.now().In(s.location).Format("2006-01-02")
	if err := s.activity.RecordActivity(ctx, userID, kind, date); err != nil {
		s.logger.Warn("record activity failed",
			zap.String("user_id", userID), zap.String("kind", string(kind)), zap.String("date", date), zap.Error(err))
	}
}

func (s *QuestService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// normalizeTime keeps timestamps at storage precision so they compare equal after a round trip.
func (s *QuestService) normalizeTime(at time.Time) time.Time {
	if at.IsZero() {
		return s.clock()
	}
	return at.UTC().Truncate(time.Microsecond)
}

func checkAnswer(userID, wordID string) error {
	if userID == "" {
		return domain.ErrMissingUser
	}
	if wordID == "" {
		return fmt.Errorf("%w: missing word id", domain.ErrInvalidAnswer)
	}
	return nil
}

func scholarName(userID string) string {
	short := userID
	if len(short) > 4 {
		short = short[:4]
	}
	return "Scholar " + short
}
