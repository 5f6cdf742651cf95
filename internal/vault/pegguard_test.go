package vault

import (
	"context"
	"errors"
	"math/big"
	"testing"
)

func pegParams(p *Params) {
	p.PegGuard = true
}

func TestDepegBlocksGuardedOperations(t *testing.T) {
	v := newTestVault(t, pegParams)
	mustDeposit(t, v, alice, 10_000)

	v.oracle.price = big.NewInt(99_000_000) // 0.99, below the 0.995 threshold

	if _, err := v.Deposit(context.Background(), bob, big.NewInt(1_000)); !errors.Is(err, ErrDepegged) {
		t.Fatalf("deposit under depeg = %v, want ErrDepegged", err)
	}
	if _, err := v.Swap(context.Background(), agent, usdAsset, otherAsset, big.NewInt(1_000), false); !errors.Is(err, ErrDepegged) {
		t.Fatalf("swap under depeg = %v, want ErrDepegged", err)
	}
	lastEvent(t, v, EventDepegDetected)
}

func TestPegRecoveryUnblocksImmediately(t *testing.T) {
	v := newTestVault(t, pegParams)
	mustDeposit(t, v, alice, 10_000)

	v.oracle.price = big.NewInt(99_000_000)
	if _, err := v.Deposit(context.Background(), bob, big.NewInt(1_000)); !errors.Is(err, ErrDepegged) {
		t.Fatalf("deposit under depeg = %v, want ErrDepegged", err)
	}

	// No cached verdict: the very next call re-reads the oracle.
	v.oracle.price = big.NewInt(99_600_000)
	if _, err := v.Deposit(context.Background(), bob, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit after recovery: %v", err)
	}
}

func TestThresholdIsExclusive(t *testing.T) {
	v := newTestVault(t, pegParams)

	// Exactly at the threshold is on peg.
	v.oracle.price = big.NewInt(DefaultDepegThreshold)
	if _, err := v.Deposit(context.Background(), alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit at threshold: %v", err)
	}

	v.oracle.price = big.NewInt(DefaultDepegThreshold - 1)
	if _, err := v.Deposit(context.Background(), alice, big.NewInt(1_000)); !errors.Is(err, ErrDepegged) {
		t.Fatalf("deposit one below threshold = %v, want ErrDepegged", err)
	}
}

func TestWithdrawalsIgnorePegGuard(t *testing.T) {
	v := newTestVault(t, pegParams)
	mustDeposit(t, v, alice, 10_000)

	v.oracle.price = big.NewInt(90_000_000)
	if _, err := v.Withdraw(context.Background(), alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("withdraw under depeg: %v", err)
	}
}

func TestOracleFailureIsNotADepeg(t *testing.T) {
	v := newTestVault(t, pegParams)

	v.oracle.err = context.DeadlineExceeded
	_, err := v.Deposit(context.Background(), alice, big.NewInt(1_000))
	if err == nil {
		t.Fatal("deposit succeeded with a dead oracle")
	}
	if errors.Is(err, ErrDepegged) {
		t.Fatal("oracle failure reported as a depeg")
	}
}

func TestPegGuardCanBeDisabled(t *testing.T) {
	v := newTestVault(t, pegParams)
	v.oracle.price = big.NewInt(90_000_000)

	if err := v.SetPegGuard(context.Background(), owner, false, nil); err != nil {
		t.Fatalf("SetPegGuard: %v", err)
	}
	if _, err := v.Deposit(context.Background(), alice, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit with guard disabled: %v", err)
	}
}
