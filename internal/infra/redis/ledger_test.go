package redis

import (
	"context"
	"errors"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"vocab-quest-service/internal/domain"
)

func TestLedgerCredit(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	ledger := NewLedger(newClient(mr))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Credit(ctx, "u1", 10); err != nil {
				t.Errorf("credit: %v", err)
			}
		}()
	}
	wg.Wait()

	b, err := ledger.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if b.XPTotal != 500 || b.Level != 2 {
		t.Fatalf("expected 500 xp at level 2, got %+v", b)
	}

	empty, _ := ledger.Balance(ctx, "nobody")
	if empty.XPTotal != 0 || empty.Level != 1 {
		t.Fatalf("expected empty balance at level 1, got %+v", empty)
	}

	if _, err := ledger.Credit(ctx, "u1", -1); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestLedgerCreditOnce(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	ledger := NewLedger(newClient(mr))
	_, _ = ledger.Credit(ctx, "u1", 20)

	b, applied, err := ledger.CreditOnce(ctx, "u1", "session:s-1", 60)
	if err != nil {
		t.Fatalf("credit once: %v", err)
	}
	if !applied || b.XPTotal != 80 {
		t.Fatalf("expected credit applied to 80, got %+v applied=%v", b, applied)
	}

	b, applied, err = ledger.CreditOnce(ctx, "u1", "session:s-1", 60)
	if err != nil {
		t.Fatalf("credit once replay: %v", err)
	}
	if applied || b.XPTotal != 80 {
		t.Fatalf("expected replay ignored at 80, got %+v applied=%v", b, applied)
	}
	if !mr.Exists("quest:xp:fence:u1:session:s-1") {
		t.Fatalf("expected fence key")
	}
}

func TestLedgerTop(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	ledger := NewLedger(newClient(mr))
	_, _ = ledger.Credit(ctx, "a", 100)
	_, _ = ledger.Credit(ctx, "b", 900)
	_, _ = ledger.Credit(ctx, "c", 400)

	top, err := ledger.Top(ctx, 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 || top[0].UserID != "b" || top[1].UserID != "c" {
		t.Fatalf("expected [b c], got %+v", top)
	}
	if top[0].Level != 2 {
		t.Fatalf("expected level 2, got %d", top[0].Level)
	}

	all, err := ledger.Top(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected all three users without a limit, got %+v %v", all, err)
	}
}
