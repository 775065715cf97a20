package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vocab-quest-service/internal/domain"
	"vocab-quest-service/internal/srs"
)

// MergeGuestProgress folds an anonymous player's finished session into the user's account.
//
// The snapshot is untrusted: words outside the catalog session are dropped, timestamps come from
// the server clock and the XP hint is clamped to what the answers to session words can be worth.
// Running the merge again with the same snapshot changes nothing: word states are only inserted
// when absent and the XP credit is fenced by the session id. Individual word failures are logged and skipped; failing to
// record the completion or to credit XP fails the merge.
func (s *QuestService) MergeGuestProgress(ctx context.Context, userID string, snapshot domain.GuestProgressSnapshot) (domain.MergeResult, error) {
	if userID == "" {
		return domain.MergeResult{}, domain.ErrMissingUser
	}
	if err := snapshot.Validate(); err != nil {
		return domain.MergeResult{}, err
	}

	session, err := s.catalog.SessionByNumber(ctx, snapshot.SessionNumber)
	if err != nil {
		return domain.MergeResult{}, err
	}
	log := s.logger.With(zap.String("user_id", userID), zap.String("session_id", session.ID))
	now := s.clock()

	inserted, err := s.completions.MarkCompleted(ctx, domain.SessionCompletion{
		UserID:      userID,
		SessionID:   session.ID,
		CompletedAt: now,
	})
	if err != nil {
		log.Error("merge: mark session completed failed", zap.Error(err))
		return domain.MergeResult{}, fmt.Errorf("mark session completed: %w", err)
	}
	if !inserted {
		log.Info("merge: session already completed for user")
	}

	result := domain.MergeResult{Success: true}
	var answered, correct int
	for _, w := range collapseGuestWords(snapshot.Words) {
		if !session.HasWord(w.WordID) {
			log.Warn("merge: word not in session, skipped", zap.String("word_id", w.WordID))
			result.WordsSkipped++
			continue
		}
		answered++
		if w.IsCorrect {
			correct++
		}
		state := srs.Advance(nil, w.IsCorrect, now)
		state.UserID = userID
		state.WordID = w.WordID
		seeded, err := s.words.Seed(ctx, state)
		if err != nil {
			log.Error("merge: seed word state failed", zap.String("word_id", w.WordID), zap.Error(err))
			result.WordsSkipped++
			continue
		}
		if seeded {
			result.WordsSeeded++
		}
	}

	xp := snapshot.XPEarned
	if bound := s.rules.MaxMergeXP(correct, answered); xp > bound {
		log.Warn("merge: xp hint above bound, clamped", zap.Int("xp_hint", xp), zap.Int("xp_bound", bound))
		xp = bound
	}

	balance, applied, err := s.ledger.CreditOnce(ctx, userID, domain.SessionCreditKey(session.ID), xp)
	if err != nil {
		log.Error("merge: credit xp failed", zap.Int("xp", xp), zap.Error(err))
		return domain.MergeResult{}, fmt.Errorf("credit xp: %w", err)
	}
	result.Balance = balance

	if !applied {
		result.AlreadyMerged = true
		result.Message = "guest progress already merged"
		log.Info("merge: replay detected, xp not credited again")
		return result, nil
	}

	result.XPCredited = xp
	s.recordActivity(ctx, userID, domain.ActivitySession)
	log.Info("merge: guest progress merged",
		zap.Int("xp", xp), zap.Int("words_seeded", result.WordsSeeded), zap.Int("words_skipped", result.WordsSkipped))
	return result, nil
}

// collapseGuestWords keeps the last answer per word, in first-seen order.
func collapseGuestWords(words []domain.GuestWord) []domain.GuestWord {
	index := make(map[string]int, len(words))
	out := make([]domain.GuestWord, 0, len(words))
	for _, w := range words {
		if i, ok := index[w.WordID]; ok {
			out[i] = w
			continue
		}
		index[w.WordID] = len(out)
		out = append(out, w)
	}
	return out
}
