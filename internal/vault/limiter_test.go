package vault

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"
)

func limiterParams(p *Params) {
	p.SingleTxCap = big.NewInt(80_000)
	p.DailyCap = big.NewInt(100_000)
}

func TestDailyCapBlocksSecondWithdrawal(t *testing.T) {
	v := newTestVault(t, limiterParams)
	mustDeposit(t, v, alice, 200_000)

	if _, err := v.Withdraw(context.Background(), alice, big.NewInt(80_000)); err != nil {
		t.Fatalf("first withdrawal: %v", err)
	}
	_, err := v.Withdraw(context.Background(), alice, big.NewInt(30_000))
	if !errors.Is(err, ErrDailyCap) {
		t.Fatalf("second withdrawal = %v, want ErrDailyCap", err)
	}

	limiter := v.Limiter()
	if limiter.WithdrawnToday.Cmp(big.NewInt(80_000)) != 0 {
		t.Fatalf("window counts %s, want only the successful 80000", limiter.WithdrawnToday)
	}
	if limiter.RemainingToday.Cmp(big.NewInt(20_000)) != 0 {
		t.Fatalf("remaining = %s, want 20000", limiter.RemainingToday)
	}

	event := lastEvent(t, v, EventWithdrawLimitExceeded)
	if event.Data["attempted"] != "30000" {
		t.Fatalf("limit event attempted = %q, want 30000", event.Data["attempted"])
	}
}

func TestDailyWindowRollsOver(t *testing.T) {
	v := newTestVault(t, limiterParams)
	mustDeposit(t, v, alice, 200_000)

	if _, err := v.Withdraw(context.Background(), alice, big.NewInt(80_000)); err != nil {
		t.Fatalf("first withdrawal: %v", err)
	}
	if _, err := v.Withdraw(context.Background(), alice, big.NewInt(30_000)); !errors.Is(err, ErrDailyCap) {
		t.Fatalf("same-day retry = %v, want ErrDailyCap", err)
	}

	v.clock.Advance(24 * time.Hour)

	if _, err := v.Withdraw(context.Background(), alice, big.NewInt(30_000)); err != nil {
		t.Fatalf("next-day withdrawal: %v", err)
	}
	limiter := v.Limiter()
	if limiter.WithdrawnToday.Cmp(big.NewInt(30_000)) != 0 {
		t.Fatalf("fresh window counts %s, want 30000", limiter.WithdrawnToday)
	}
}

func TestSingleTxCapEnforced(t *testing.T) {
	v := newTestVault(t, limiterParams)
	mustDeposit(t, v, alice, 200_000)

	before := v.Snapshot()
	_, err := v.Withdraw(context.Background(), alice, big.NewInt(80_001))
	if !errors.Is(err, ErrSingleTxCap) {
		t.Fatalf("got %v, want ErrSingleTxCap", err)
	}
	after := v.Snapshot()
	if after.TotalShares.Cmp(before.TotalShares) != 0 {
		t.Fatal("rejected withdrawal burned shares")
	}
	if v.Limiter().WithdrawnToday.Sign() != 0 {
		t.Fatal("rejected withdrawal counted against the window")
	}
}

func TestSetLimitsTakesEffect(t *testing.T) {
	v := newTestVault(t, limiterParams)
	mustDeposit(t, v, alice, 200_000)

	if err := v.SetLimits(context.Background(), owner, big.NewInt(10_000), big.NewInt(20_000)); err != nil {
		t.Fatalf("SetLimits: %v", err)
	}
	if _, err := v.Withdraw(context.Background(), alice, big.NewInt(10_001)); !errors.Is(err, ErrSingleTxCap) {
		t.Fatalf("got %v, want ErrSingleTxCap under new cap", err)
	}
	if err := v.SetLimits(context.Background(), alice, big.NewInt(1), big.NewInt(1)); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner SetLimits = %v, want ErrNotOwner", err)
	}
}
