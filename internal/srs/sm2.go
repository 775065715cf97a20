// Package srs implements the SM-2 spaced repetition schedule used for word reviews.
package srs

import (
	"math"
	"time"

	"vocab-quest-service/internal/domain"
)

const (
	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3
	// MaxIntervalDays caps interval growth so due dates stay representable.
	MaxIntervalDays = 36500

	easeReward  = 0.1
	easePenalty = 0.2
)

// Initial is the state of a word before its first answer.
func Initial() domain.WordState {
	return domain.WordState{
		Repetitions:  0,
		IntervalDays: 1,
		EaseFactor:   DefaultEaseFactor,
		Lapses:       0,
	}
}

// Advance returns the state that follows prev after one answer at now. A nil prev is a first
// exposure. Advance is pure; prev is not modified.
func Advance(prev *domain.WordState, correct bool, now time.Time) domain.WordState {
	next := Initial()
	if prev != nil {
		next = Normalize(*prev)
	}

	if correct {
		next.Repetitions++
		next.EaseFactor = roundEase(math.Max(MinEaseFactor, next.EaseFactor+easeReward))
		switch next.Repetitions {
		case 1:
			next.IntervalDays = 1
		case 2:
			next.IntervalDays = 6
		default:
			next.IntervalDays = clampInterval(int(math.Round(float64(next.IntervalDays) * next.EaseFactor)))
		}
	} else {
		next.Repetitions = 0
		next.Lapses++
		next.IntervalDays = 1
		next.EaseFactor = roundEase(math.Max(MinEaseFactor, next.EaseFactor-easePenalty))
	}

	next.LastReviewedAt = now
	next.DueAt = now.AddDate(0, 0, next.IntervalDays)
	return next
}

// Normalize clamps a state read from storage back into the valid domain.
func Normalize(s domain.WordState) domain.WordState {
	if s.Repetitions < 0 {
		s.Repetitions = 0
	}
	if s.Lapses < 0 {
		s.Lapses = 0
	}
	s.IntervalDays = clampInterval(s.IntervalDays)
	if math.IsNaN(s.EaseFactor) || s.EaseFactor == 0 {
		s.EaseFactor = DefaultEaseFactor
	}
	if s.EaseFactor < MinEaseFactor {
		s.EaseFactor = MinEaseFactor
	}
	return s
}

func clampInterval(days int) int {
	if days < 1 {
		return 1
	}
	if days > MaxIntervalDays {
		return MaxIntervalDays
	}
	return days
}

// roundEase keeps the factor at two decimals so repeated updates do not accumulate float drift.
func roundEase(ef float64) float64 {
	return math.Round(ef*100) / 100
}
