package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vocab-quest-service/internal/domain"
)

// RequestSessionCompletion decides whether the user's attempt at a session may complete. Words
// answered wrong in the attempt block completion until a later correct review reaches the word
// state store. A blocked attempt stays open and can be completed again later.
func (s *QuestService) RequestSessionCompletion(ctx context.Context, userID, sessionID string) (domain.CompletionResult, error) {
	if userID == "" {
		return domain.CompletionResult{}, domain.ErrMissingUser
	}
	session, err := s.catalog.Session(ctx, sessionID)
	if err != nil {
		return domain.CompletionResult{}, err
	}

	attempt, ok, err := s.attempts.Get(ctx, userID, session.ID)
	if err != nil {
		return domain.CompletionResult{}, err
	}
	if !ok {
		return s.replayCompletion(ctx, userID, session.ID)
	}

	if err := attempt.waitIdle(ctx); err != nil {
		return domain.CompletionResult{}, err
	}

	mistakes, err := s.uncorrectedMistakes(ctx, userID, attempt)
	if err != nil {
		return domain.CompletionResult{}, err
	}
	if len(mistakes) > 0 {
		attempt.setState(domain.AttemptBlocked)
		s.logger.Info("session completion blocked",
			zap.String("user_id", userID), zap.String("session_id", session.ID), zap.Strings("word_ids", mistakes))
		return domain.CompletionResult{
			Status:         domain.CompletionBlocked,
			MistakeWordIDs: mistakes,
			Message:        domain.BlockedMessage(len(mistakes)),
		}, nil
	}

	result, err := s.finishSession(ctx, userID, session.ID)
	if err != nil {
		return domain.CompletionResult{}, err
	}
	attempt.setState(domain.AttemptCompleted)
	if err := s.attempts.Delete(ctx, userID, session.ID); err != nil {
		s.logger.Warn("discard attempt failed",
			zap.String("user_id", userID), zap.String("session_id", session.ID), zap.Error(err))
	}
	return result, nil
}

// uncorrectedMistakes returns the words whose last answer in the attempt was wrong and which have
// not been answered correctly in the word state store since.
func (s *QuestService) uncorrectedMistakes(ctx context.Context, userID string, attempt *Attempt) ([]string, error) {
	var out []string
	for _, miss := range attempt.openMistakes() {
		state, ok, err := s.words.Get(ctx, userID, miss.WordID)
		if err != nil {
			return nil, fmt.Errorf("check word %s: %w", miss.WordID, err)
		}
		corrected := ok && state.LastReviewedAt.After(miss.At) && state.Repetitions > 0
		if !corrected {
			out = append(out, miss.WordID)
		}
	}
	return out, nil
}

// finishSession writes the completion row and applies the session bonus. Both steps are keyed by
// session id, so repeating them is harmless.
func (s *QuestService) finishSession(ctx context.Context, userID, sessionID string) (domain.CompletionResult, error) {
	inserted, err := s.completions.MarkCompleted(ctx, domain.SessionCompletion{
		UserID:      userID,
		SessionID:   sessionID,
		CompletedAt: s.clock(),
	})
	if err != nil {
		s.logger.Error("mark session completed failed",
			zap.String("user_id", userID), zap.String("session_id", sessionID), zap.Error(err))
		return domain.CompletionResult{}, fmt.Errorf("mark session completed: %w", err)
	}

	balance, applied, err := s.ledger.CreditOnce(ctx, userID, domain.SessionCreditKey(sessionID), s.rules.SessionBonus)
	if err != nil {
		s.logger.Error("credit session bonus failed",
			zap.String("user_id", userID), zap.String("session_id", sessionID), zap.Error(err))
		return domain.CompletionResult{}, fmt.Errorf("credit session bonus: %w", err)
	}

	result := domain.CompletionResult{
		Status:           domain.CompletionCompleted,
		Balance:          balance,
		AlreadyCompleted: !inserted,
	}
	if applied {
		result.BonusXP = s.rules.SessionBonus
		s.recordActivity(ctx, userID, domain.ActivitySession)
	}
	s.logger.Info("session completed",
		zap.String("user_id", userID), zap.String("session_id", sessionID),
		zap.Bool("first_completion", inserted), zap.Int("bonus_xp", result.BonusXP))
	return result, nil
}

// replayCompletion answers a completion request for a session without an open attempt.
func (s *QuestService) replayCompletion(ctx context.Context, userID, sessionID string) (domain.CompletionResult, error) {
	_, ok, err := s.completions.Get(ctx, userID, sessionID)
	if err != nil {
		return domain.CompletionResult{}, err
	}
	if !ok {
		return domain.CompletionResult{}, domain.ErrAttemptNotFound
	}
	return s.finishSession(ctx, userID, sessionID)
}
