package vault

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestGatedWithdrawalRequiresConfirmations(t *testing.T) {
	v := newTestVault(t, nil)
	mustDeposit(t, v, alice, 10_000)

	destination := addr(0xD0)
	amount := big.NewInt(4_000)

	err := v.ExecuteGatedWithdrawal(context.Background(), owner, destination, amount)
	if !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("unconfirmed execute = %v, want ErrNotConfirmed", err)
	}

	actionID := v.WithdrawalActionID(amount, destination)
	if _, err := v.Confirm(context.Background(), signerOne, actionID); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if v.IsConfirmed(actionID) {
		t.Fatal("one of two confirmations reported as sufficient")
	}

	err = v.ExecuteGatedWithdrawal(context.Background(), owner, destination, amount)
	if !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("half-confirmed execute = %v, want ErrNotConfirmed", err)
	}

	count, err := v.Confirm(context.Background(), signerTwo, actionID)
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if count != 2 {
		t.Fatalf("confirmation count = %d, want 2", count)
	}
	if !v.IsConfirmed(actionID) {
		t.Fatal("two of two confirmations not reported as sufficient")
	}

	if err := v.ExecuteGatedWithdrawal(context.Background(), owner, destination, amount); err != nil {
		t.Fatalf("confirmed execute: %v", err)
	}
	if got := v.Snapshot().IdleBalance; got.Cmp(big.NewInt(6_000)) != 0 {
		t.Fatalf("idle balance = %s after gated withdrawal, want 6000", got)
	}
}

func TestConfirmationsConsumedOnExecution(t *testing.T) {
	v := newTestVault(t, nil)
	mustDeposit(t, v, alice, 10_000)

	destination := addr(0xD0)
	amount := big.NewInt(1_000)
	actionID := v.WithdrawalActionID(amount, destination)

	for _, signer := range []common.Address{signerOne, signerTwo} {
		if _, err := v.Confirm(context.Background(), signer, actionID); err != nil {
			t.Fatalf("confirm: %v", err)
		}
	}
	if err := v.ExecuteGatedWithdrawal(context.Background(), owner, destination, amount); err != nil {
		t.Fatalf("first execute: %v", err)
	}

	err := v.ExecuteGatedWithdrawal(context.Background(), owner, destination, amount)
	if !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("replayed execute = %v, want ErrNotConfirmed", err)
	}
}

func TestDuplicateConfirmationRejected(t *testing.T) {
	v := newTestVault(t, nil)
	actionID := v.WithdrawalActionID(big.NewInt(100), addr(0xD0))

	if _, err := v.Confirm(context.Background(), signerOne, actionID); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	count, err := v.Confirm(context.Background(), signerOne, actionID)
	if !errors.Is(err, ErrAlreadyConfirmed) {
		t.Fatalf("duplicate confirm = %v, want ErrAlreadyConfirmed", err)
	}
	if count != 1 {
		t.Fatalf("count after duplicate = %d, want 1", count)
	}
}

func TestStrangerCannotConfirm(t *testing.T) {
	v := newTestVault(t, nil)
	actionID := v.WithdrawalActionID(big.NewInt(100), addr(0xD0))

	if _, err := v.Confirm(context.Background(), alice, actionID); !errors.Is(err, ErrNotASigner) {
		t.Fatalf("stranger confirm = %v, want ErrNotASigner", err)
	}
	// The owner may stand in for a signer.
	if _, err := v.Confirm(context.Background(), owner, actionID); err != nil {
		t.Fatalf("owner confirm: %v", err)
	}
}

func TestActionIDBindsAmountDestinationAndDay(t *testing.T) {
	v := newTestVault(t, nil)

	base := v.WithdrawalActionID(big.NewInt(100), addr(0xD0))
	if other := v.WithdrawalActionID(big.NewInt(101), addr(0xD0)); other == base {
		t.Fatal("different amounts share an action ID")
	}
	if other := v.WithdrawalActionID(big.NewInt(100), addr(0xD1)); other == base {
		t.Fatal("different destinations share an action ID")
	}
	v.clock.Advance(24 * time.Hour)
	if other := v.WithdrawalActionID(big.NewInt(100), addr(0xD0)); other == base {
		t.Fatal("different days share an action ID")
	}
}
