package domain

// XPPerLevel is the amount of XP between two levels.
const XPPerLevel = 500

// LevelForXP derives the level from an XP total. Level 1 starts at 0 XP.
func LevelForXP(xpTotal int64) int {
	if xpTotal < 0 {
		xpTotal = 0
	}
	return int(xpTotal/XPPerLevel) + 1
}

// XPBalance is a user's ledger entry. Level is always derived from XPTotal.
type XPBalance struct {
	UserID  string `json:"userId"`
	XPTotal int64  `json:"xpTotal"`
	Level   int    `json:"level"`
}

func NewXPBalance(userID string, xpTotal int64) XPBalance {
	return XPBalance{UserID: userID, XPTotal: xpTotal, Level: LevelForXP(xpTotal)}
}

// CheckCreditAmount rejects negative credits.
func CheckCreditAmount(amount int) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// XPRules holds the quest XP economy.
type XPRules struct {
	CorrectAnswer   int `yaml:"correctAnswer"`
	IncorrectAnswer int `yaml:"incorrectAnswer"`
	SessionBonus    int `yaml:"sessionBonus"`
}

func DefaultXPRules() XPRules {
	return XPRules{CorrectAnswer: 10, IncorrectAnswer: 2, SessionBonus: 50}
}

// AnswerXP is the XP for a single answer.
func (r XPRules) AnswerXP(correct bool) int {
	if correct {
		return r.CorrectAnswer
	}
	return r.IncorrectAnswer
}

// MaxPerWordXP is the most a single answered word can earn.
func (r XPRules) MaxPerWordXP() int {
	if r.IncorrectAnswer > r.CorrectAnswer {
		return r.IncorrectAnswer
	}
	return r.CorrectAnswer
}

// MaxMergeXP is the most XP a completed session with the given answers can be worth.
func (r XPRules) MaxMergeXP(correct, total int) int {
	if correct > total {
		correct = total
	}
	return correct*r.CorrectAnswer + (total-correct)*r.IncorrectAnswer + r.SessionBonus
}

// SessionCreditKey is the idempotency key of the one-time credit attached to a session.
func SessionCreditKey(sessionID string) string {
	return "session:" + sessionID
}
