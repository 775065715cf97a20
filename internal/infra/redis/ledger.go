package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"vocab-quest-service/internal/domain"
)

const xpKey = "quest:xp"

// creditOnceScript sets the fence key and increments the user's score in one atomic step.
// KEYS[1] ledger zset, KEYS[2] fence key; ARGV[1] amount, ARGV[2] user id.
var creditOnceScript = redis.NewScript(`
local applied = 0
if redis.call('SET', KEYS[2], '1', 'NX') then
  redis.call('ZINCRBY', KEYS[1], ARGV[1], ARGV[2])
  applied = 1
end
local score = redis.call('ZSCORE', KEYS[1], ARGV[2])
if not score then
  score = 0
end
return {applied, tonumber(score)}
`)

// Ledger keeps XP totals in a sorted set, which also serves the leaderboard.
// Totals are stored as: ZADD quest:xp {xp} {userID}
type Ledger struct {
	client *redis.Client
}

func NewLedger(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

func (l *Ledger) Credit(ctx context.Context, userID string, amount int) (domain.XPBalance, error) {
	if err := domain.CheckCreditAmount(amount); err != nil {
		return domain.XPBalance{}, err
	}
	total, err := l.client.ZIncrBy(ctx, xpKey, float64(amount), userID).Result()
	if err != nil {
		return domain.XPBalance{}, domain.NewStoreError("credit xp", err)
	}
	return domain.NewXPBalance(userID, int64(total)), nil
}

func (l *Ledger) CreditOnce(ctx context.Context, userID, key string, amount int) (domain.XPBalance, bool, error) {
	if err := domain.CheckCreditAmount(amount); err != nil {
		return domain.XPBalance{}, false, err
	}
	res, err := creditOnceScript.Run(ctx, l.client, []string{xpKey, l.fenceKey(userID, key)}, amount, userID).Slice()
	if err != nil {
		return domain.XPBalance{}, false, domain.NewStoreError("credit xp once", err)
	}
	if len(res) != 2 {
		return domain.XPBalance{}, false, fmt.Errorf("credit xp once: unexpected reply %v", res)
	}
	applied, _ := res[0].(int64)
	total, _ := res[1].(int64)
	return domain.NewXPBalance(userID, total), applied == 1, nil
}

func (l *Ledger) Balance(ctx context.Context, userID string) (domain.XPBalance, error) {
	total, err := l.client.ZScore(ctx, xpKey, userID).Result()
	if err == redis.Nil {
		return domain.NewXPBalance(userID, 0), nil
	}
	if err != nil {
		return domain.XPBalance{}, domain.NewStoreError("load xp", err)
	}
	return domain.NewXPBalance(userID, int64(total)), nil
}

func (l *Ledger) Top(ctx context.Context, limit int) ([]domain.XPBalance, error) {
	stop := int64(limit - 1)
	if limit <= 0 {
		stop = -1
	}
	rows, err := l.client.ZRevRangeWithScores(ctx, xpKey, 0, stop).Result()
	if err != nil {
		return nil, domain.NewStoreError("load leaderboard", err)
	}
	out := make([]domain.XPBalance, 0, len(rows))
	for _, z := range rows {
		userID, _ := z.Member.(string)
		out = append(out, domain.NewXPBalance(userID, int64(z.Score)))
	}
	return out, nil
}

func (l *Ledger) fenceKey(userID, key string) string {
	return "quest:xp:fence:" + userID + ":" + key
}
