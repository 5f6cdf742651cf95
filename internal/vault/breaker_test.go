package vault

import (
	"context"
	"errors"
	"math/big"
	"testing"
)

func TestBreakerTripsAfterConsecutiveOversize(t *testing.T) {
	s := newState(testParams())

	oversize := new(big.Int).Add(s.singleTxCap, big.NewInt(1))
	for i := 0; i < BreakerThreshold-1; i++ {
		if _, tripped := s.recordBreakerSample(oversize); tripped {
			t.Fatalf("breaker tripped after %d samples, threshold is %d", i+1, BreakerThreshold)
		}
	}
	if _, tripped := s.recordBreakerSample(oversize); !tripped {
		t.Fatalf("breaker did not trip at sample %d", BreakerThreshold)
	}
	if !s.breakerTripped {
		t.Fatal("trip flag not set")
	}
}

func TestCompliantSampleDecaysCounter(t *testing.T) {
	s := newState(testParams())

	oversize := new(big.Int).Add(s.singleTxCap, big.NewInt(1))
	s.recordBreakerSample(oversize)
	s.recordBreakerSample(oversize)
	s.recordBreakerSample(big.NewInt(1))
	if s.breakerCount != 1 {
		t.Fatalf("counter = %d after decay, want 1", s.breakerCount)
	}
	if s.breakerTripped {
		t.Fatal("breaker tripped below threshold")
	}
}

func TestTrippedBreakerBlocksWithdrawals(t *testing.T) {
	v := newTestVault(t, nil)
	mustDeposit(t, v, alice, 10_000)

	v.mu.Lock()
	v.st.breakerTripped = true
	v.mu.Unlock()

	if _, err := v.Withdraw(context.Background(), alice, big.NewInt(100)); !errors.Is(err, ErrBreakerTripped) {
		t.Fatalf("withdraw = %v, want ErrBreakerTripped", err)
	}
	if _, err := v.Swap(context.Background(), agent, usdAsset, otherAsset, big.NewInt(100), false); !errors.Is(err, ErrBreakerTripped) {
		t.Fatalf("agent swap = %v, want ErrBreakerTripped", err)
	}
	// Deposits stay open while the breaker is tripped.
	if _, err := v.Deposit(context.Background(), bob, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit under tripped breaker: %v", err)
	}
}

func TestGuardianResetsBreaker(t *testing.T) {
	v := newTestVault(t, nil)
	mustDeposit(t, v, alice, 10_000)

	v.mu.Lock()
	v.st.breakerTripped = true
	v.st.breakerCount = BreakerThreshold
	v.mu.Unlock()

	if err := v.ResetBreaker(context.Background(), owner); !errors.Is(err, ErrNotGuardian) {
		t.Fatalf("owner reset = %v, want ErrNotGuardian", err)
	}
	if err := v.ResetBreaker(context.Background(), guardian); err != nil {
		t.Fatalf("guardian reset: %v", err)
	}

	status := v.Snapshot()
	if status.BreakerTripped || status.BreakerCount != 0 {
		t.Fatalf("after reset tripped=%v count=%d", status.BreakerTripped, status.BreakerCount)
	}
	if _, err := v.Withdraw(context.Background(), alice, big.NewInt(100)); err != nil {
		t.Fatalf("withdraw after reset: %v", err)
	}
	lastEvent(t, v, EventCircuitBreakerReset)
}
