package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func proposeAgentRotation(t *testing.T, v *testVault, target common.Address) common.Hash {
	t.Helper()
	id, err := v.Propose(context.Background(), owner, ProposalAction{Kind: ProposalSetAgent, Address: target})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	return id
}

func TestTimelockEnforcesDelay(t *testing.T) {
	v := newTestVault(t, nil)
	newAgent := addr(0x33)
	id := proposeAgentRotation(t, v, newAgent)

	if err := v.ExecuteProposal(context.Background(), owner, id); !errors.Is(err, ErrProposalImmature) {
		t.Fatalf("immediate execute = %v, want ErrProposalImmature", err)
	}

	v.clock.Advance(TimelockDelay - time.Second)
	if err := v.ExecuteProposal(context.Background(), owner, id); !errors.Is(err, ErrProposalImmature) {
		t.Fatalf("execute one second early = %v, want ErrProposalImmature", err)
	}

	v.clock.Advance(time.Second)
	if err := v.ExecuteProposal(context.Background(), owner, id); err != nil {
		t.Fatalf("matured execute: %v", err)
	}
	if got := v.Snapshot().Agent; got != newAgent {
		t.Fatalf("agent = %s after execution, want %s", got.Hex(), newAgent.Hex())
	}
}

func TestProposalExecutesAtMostOnce(t *testing.T) {
	v := newTestVault(t, nil)
	id := proposeAgentRotation(t, v, addr(0x33))

	v.clock.Advance(TimelockDelay)
	if err := v.ExecuteProposal(context.Background(), owner, id); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	if err := v.ExecuteProposal(context.Background(), owner, id); !errors.Is(err, ErrProposalExecuted) {
		t.Fatalf("second execute = %v, want ErrProposalExecuted", err)
	}
}

func TestCancelRemovesProposal(t *testing.T) {
	v := newTestVault(t, nil)
	id := proposeAgentRotation(t, v, addr(0x33))

	if err := v.CancelProposal(context.Background(), owner, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, ok := v.Proposal(id); ok {
		t.Fatal("cancelled proposal still queued")
	}
	v.clock.Advance(TimelockDelay)
	if err := v.ExecuteProposal(context.Background(), owner, id); !errors.Is(err, ErrProposalNotFound) {
		t.Fatalf("execute after cancel = %v, want ErrProposalNotFound", err)
	}
}

func TestOnlyOwnerDrivesTimelock(t *testing.T) {
	v := newTestVault(t, nil)

	if _, err := v.Propose(context.Background(), agent, ProposalAction{Kind: ProposalSetAgent, Address: addr(0x33)}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("agent propose = %v, want ErrNotOwner", err)
	}

	id := proposeAgentRotation(t, v, addr(0x33))
	v.clock.Advance(TimelockDelay)
	if err := v.ExecuteProposal(context.Background(), guardian, id); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("guardian execute = %v, want ErrNotOwner", err)
	}
}

func TestProposalIDsAreTimeScoped(t *testing.T) {
	v := newTestVault(t, nil)

	first := proposeAgentRotation(t, v, addr(0x33))
	v.clock.Advance(time.Minute)
	second := proposeAgentRotation(t, v, addr(0x33))

	if first == second {
		t.Fatal("identical actions at different times produced the same proposal ID")
	}
}
