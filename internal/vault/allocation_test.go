package vault

import (
	"context"
	"errors"
	"math/big"
	"testing"
)

func TestAllocationCapBlocksOverdeployment(t *testing.T) {
	v := newTestVault(t, nil)
	mustDeposit(t, v, alice, 100_000)

	// 25% of 100k is 25k. 12.5k + 12.5k lands exactly at the cap.
	if _, err := v.AddLiquidity(context.Background(), agent, usdAsset, otherAsset, big.NewInt(12_500), big.NewInt(12_500), false); err != nil {
		t.Fatalf("deployment at the cap: %v", err)
	}

	_, err := v.AddLiquidity(context.Background(), agent, usdAsset, otherAsset, big.NewInt(1), big.NewInt(1), false)
	if !errors.Is(err, ErrAllocationCap) {
		t.Fatalf("deployment over the cap = %v, want ErrAllocationCap", err)
	}
	if got := v.AllocationOf(poolAddr); got.Cmp(big.NewInt(25_000)) != 0 {
		t.Fatalf("allocation = %s, want 25000", got)
	}
}

func TestUnapprovedProtocolRejected(t *testing.T) {
	v := newTestVault(t, nil)
	mustDeposit(t, v, alice, 100_000)

	v.router.pool = addr(0xEE)
	_, err := v.AddLiquidity(context.Background(), agent, usdAsset, otherAsset, big.NewInt(1_000), big.NewInt(1_000), false)
	if !errors.Is(err, ErrUnapprovedProtocol) {
		t.Fatalf("got %v, want ErrUnapprovedProtocol", err)
	}

	if err := v.ApproveProtocol(context.Background(), owner, addr(0xEE)); err != nil {
		t.Fatalf("ApproveProtocol: %v", err)
	}
	if _, err := v.AddLiquidity(context.Background(), agent, usdAsset, otherAsset, big.NewInt(1_000), big.NewInt(1_000), false); err != nil {
		t.Fatalf("deployment after approval: %v", err)
	}
}

func TestRemoveLiquidityReleasesAllocation(t *testing.T) {
	v := newTestVault(t, nil)
	mustDeposit(t, v, alice, 100_000)

	pos, err := v.AddLiquidity(context.Background(), agent, usdAsset, otherAsset, big.NewInt(10_000), big.NewInt(10_000), false)
	if err != nil {
		t.Fatalf("AddLiquidity: %v", err)
	}
	if v.AllocationOf(poolAddr).Cmp(big.NewInt(20_000)) != 0 {
		t.Fatalf("allocation = %s, want 20000", v.AllocationOf(poolAddr))
	}

	v.router.removeA = big.NewInt(10_000)
	v.router.removeB = big.NewInt(10_000)
	outA, outB, err := v.RemoveLiquidity(context.Background(), agent, 0, pos.LPAmount)
	if err != nil {
		t.Fatalf("RemoveLiquidity: %v", err)
	}
	if outA.Cmp(big.NewInt(10_000)) != 0 || outB.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("released %s/%s, want 10000/10000", outA, outB)
	}
	if v.AllocationOf(poolAddr).Sign() != 0 {
		t.Fatalf("allocation after full exit = %s, want 0", v.AllocationOf(poolAddr))
	}

	// The position record survives at zero.
	positions := v.Positions()
	if len(positions) != 1 || positions[0].LPAmount.Sign() != 0 {
		t.Fatalf("positions after exit = %+v", positions)
	}
}

func TestOnlyAgentDeploysCapital(t *testing.T) {
	v := newTestVault(t, nil)
	mustDeposit(t, v, alice, 100_000)

	if _, err := v.AddLiquidity(context.Background(), owner, usdAsset, otherAsset, big.NewInt(1_000), big.NewInt(1_000), false); !errors.Is(err, ErrNotAgent) {
		t.Fatalf("owner AddLiquidity = %v, want ErrNotAgent", err)
	}
	if _, err := v.Swap(context.Background(), alice, usdAsset, otherAsset, big.NewInt(1_000), false); !errors.Is(err, ErrNotAgent) {
		t.Fatalf("depositor Swap = %v, want ErrNotAgent", err)
	}
}
