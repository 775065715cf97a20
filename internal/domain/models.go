package domain

import (
	"fmt"
	"time"
)

// WordState is the spaced-repetition schedule of one word for one user.
type WordState struct {
	UserID         string    `json:"userId"`
	WordID         string    `json:"wordId"`
	Repetitions    int       `json:"repetitions"`
	IntervalDays   int       `json:"intervalDays"`
	EaseFactor     float64   `json:"easeFactor"`
	DueAt          time.Time `json:"dueAt"`
	LastReviewedAt time.Time `json:"lastReviewedAt"`
	Lapses         int       `json:"lapses"`
}

// IsDue reports whether the word should be reviewed at now.
func (s WordState) IsDue(now time.Time) bool {
	return !s.DueAt.After(now)
}

// WordRef is a word as listed in a quest session.
type WordRef struct {
	ID   string `json:"id"`
	Term string `json:"term"`
}

// QuestSession is a catalog entry: a numbered quiz over a fixed word list.
type QuestSession struct {
	ID     string    `json:"id"`
	Number int       `json:"number"`
	Title  string    `json:"title"`
	Words  []WordRef `json:"words"`
}

// HasWord reports whether wordID belongs to the session.
func (q QuestSession) HasWord(wordID string) bool {
	for _, w := range q.Words {
		if w.ID == wordID {
			return true
		}
	}
	return false
}

// Answer is one entry of an attempt's answer log.
type Answer struct {
	WordID  string    `json:"wordId"`
	Correct bool      `json:"correct"`
	At      time.Time `json:"at"`
}

type AttemptState string

const (
	AttemptInProgress AttemptState = "in_progress"
	AttemptBlocked    AttemptState = "blocked"
	AttemptCompleted  AttemptState = "completed"
)

// SessionCompletion is the durable record that a user finished a session. One row per (user, session).
type SessionCompletion struct {
	UserID      string    `json:"userId"`
	SessionID   string    `json:"sessionId"`
	CompletedAt time.Time `json:"completedAt"`
}

type ActivityKind string

const (
	ActivitySession ActivityKind = "session"
	ActivityReview  ActivityKind = "review"
)

// AnswerResult summarizes the outcome of a single answer.
type AnswerResult struct {
	State     WordState `json:"state"`
	XPAwarded int       `json:"xpAwarded"`
	Balance   XPBalance `json:"balance"`
}

type CompletionStatus string

const (
	CompletionCompleted CompletionStatus = "completed"
	CompletionBlocked   CompletionStatus = "blocked"
)

// CompletionResult is the gate's answer to a completion request. Blocked is a normal outcome.
type CompletionResult struct {
	Status           CompletionStatus `json:"status"`
	BonusXP          int              `json:"bonusXp"`
	Balance          XPBalance        `json:"balance"`
	MistakeWordIDs   []string         `json:"mistakeWordIds,omitempty"`
	Message          string           `json:"message,omitempty"`
	AlreadyCompleted bool             `json:"alreadyCompleted,omitempty"`
}

// BlockedMessage names the blocking condition for n uncorrected words.
func BlockedMessage(n int) string {
	if n == 1 {
		return "1 word needs review before this session is complete"
	}
	return fmt.Sprintf("%d words need review before this session is complete", n)
}

// GuestWord is one answered word in a guest snapshot.
type GuestWord struct {
	WordID    string `json:"wordId"`
	Term      string `json:"term"`
	IsCorrect bool   `json:"isCorrect"`
}

// GuestProgressSnapshot is progress accumulated by an anonymous player. Every field is client supplied.
type GuestProgressSnapshot struct {
	SessionNumber int         `json:"sessionNumber"`
	XPEarned      int         `json:"xpEarned"`
	Words         []GuestWord `json:"words"`
	CompletedAt   time.Time   `json:"completedAt"`
	CorrectCount  int         `json:"correctCount"`
	TotalCount    int         `json:"totalCount"`
}

// Validate rejects snapshots that are structurally inconsistent.
func (s GuestProgressSnapshot) Validate() error {
	if s.SessionNumber < 1 {
		return fmt.Errorf("%w: session number %d", ErrInvalidSnapshot, s.SessionNumber)
	}
	if s.XPEarned < 0 {
		return fmt.Errorf("%w: negative xp", ErrInvalidSnapshot)
	}
	if len(s.Words) == 0 {
		return fmt.Errorf("%w: no words", ErrInvalidSnapshot)
	}
	correct := 0
	for i, w := range s.Words {
		if w.WordID == "" {
			return fmt.Errorf("%w: word %d has no id", ErrInvalidSnapshot, i)
		}
		if w.IsCorrect {
			correct++
		}
	}
	if s.TotalCount != len(s.Words) || s.CorrectCount != correct {
		return fmt.Errorf("%w: counts %d/%d do not match word list %d/%d",
			ErrInvalidSnapshot, s.CorrectCount, s.TotalCount, correct, len(s.Words))
	}
	return nil
}

// MergeResult reports what a guest merge changed.
type MergeResult struct {
	Success       bool      `json:"success"`
	Message       string    `json:"message,omitempty"`
	AlreadyMerged bool      `json:"alreadyMerged"`
	XPCredited    int       `json:"xpCredited"`
	WordsSeeded   int       `json:"wordsSeeded"`
	WordsSkipped  int       `json:"wordsSkipped"`
	Balance       XPBalance `json:"balance"`
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	XPTotal       int64  `json:"xpTotal"`
	Level         int    `json:"level"`
	IsCurrentUser bool   `json:"isCurrentUser"`
}

// Leaderboard is the top of the XP ranking.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// SessionProgress is a catalog session together with the user's completion status.
type SessionProgress struct {
	SessionID   string     `json:"sessionId"`
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	WordCount   int        `json:"wordCount"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
