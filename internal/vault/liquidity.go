package vault

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	xerrors "AegisVault/internal/errors"
	"AegisVault/internal/market"
)

// Swap routes idle capital through the router, applying the vault's
// slippage tolerance to the quoted output. Only the agent may call it.
func (v *Vault) Swap(ctx context.Context, caller common.Address, fromAsset, toAsset common.Address, amountIn *big.Int, stablePool bool) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.agentGates(ctx, caller); err != nil {
		return nil, err
	}
	return v.swapLocked(ctx, caller, fromAsset, toAsset, amountIn, stablePool)
}

// AddLiquidity supplies both assets to a pool, books the LP position and
// records the deployed value against the protocol's allocation cap.
func (v *Vault) AddLiquidity(ctx context.Context, caller common.Address, assetA, assetB common.Address, amountA, amountB *big.Int, stablePool bool) (*LPPosition, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.agentGates(ctx, caller); err != nil {
		return nil, err
	}
	return v.addLiquidityLocked(ctx, caller, assetA, assetB, amountA, amountB, stablePool)
}

// RemoveLiquidity burns LP tokens from a recorded position and releases
// the protocol allocation. The position record survives at zero.
func (v *Vault) RemoveLiquidity(ctx context.Context, caller common.Address, positionIndex int, lpAmount *big.Int) (*big.Int, *big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.agentGates(ctx, caller); err != nil {
		return nil, nil, err
	}
	if v.router == nil {
		return nil, nil, xerrors.New(xerrors.CodeNotInitialized, "liquidity router not configured")
	}
	if positionIndex < 0 || positionIndex >= len(v.st.positions) {
		return nil, nil, xerrors.New(xerrors.CodeValidation, "unknown position index")
	}
	if lpAmount == nil || lpAmount.Sign() <= 0 {
		return nil, nil, xerrors.New(xerrors.CodeValidation, "lp amount must be positive")
	}
	pos := &v.st.positions[positionIndex]
	if lpAmount.Cmp(pos.LPAmount) > 0 {
		return nil, nil, xerrors.New(xerrors.CodeValidation, "lp amount exceeds position")
	}

	snapshot := v.st.clone()
	pos.LPAmount.Sub(pos.LPAmount, lpAmount)

	callCtx, cancel := v.externalContext(ctx)
	outA, outB, err := v.router.RemoveLiquidity(callCtx, pos.AssetA, pos.AssetB, pos.Stable,
		lpAmount, big.NewInt(0), big.NewInt(0), v.address, v.deadline())
	cancel()
	if err != nil {
		v.st = snapshot
		return nil, nil, xerrors.Wrap(xerrors.CodeExternalFailure, err, "remove liquidity failed")
	}

	released := new(big.Int).Add(outA, outB)
	v.st.reduceAllocation(pos.Pool, released)
	if pos.AssetA == v.referenceAsset() {
		v.st.idleBalance.Add(v.st.idleBalance, outA)
	}
	if pos.AssetB == v.referenceAsset() {
		v.st.idleBalance.Add(v.st.idleBalance, outB)
	}

	v.journal.Append(ctx, EventLiquidityRemoved, caller.Hex(), map[string]string{
		"pool":      pos.Pool.Hex(),
		"lp_amount": lpAmount.String(),
		"amount_a":  outA.String(),
		"amount_b":  outB.String(),
	})
	return outA, outB, nil
}

// EnterDualSidedPosition swaps half of the base amount into the paired
// asset and supplies both halves as liquidity in one serialized operation.
func (v *Vault) EnterDualSidedPosition(ctx context.Context, caller common.Address, otherAsset common.Address, baseAmount *big.Int, stablePool bool) (*LPPosition, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.agentGates(ctx, caller); err != nil {
		return nil, err
	}
	if baseAmount == nil {
		return nil, xerrors.New(xerrors.CodeValidation, "base amount is required")
	}
	threshold := new(big.Int).Lsh(v.st.minDeposit, 1)
	if baseAmount.Cmp(threshold) < 0 {
		return nil, xerrors.New(xerrors.CodeValidation, "base amount below twice the minimum deposit")
	}
	if v.st.liquidityPolicy == PolicySingleSided {
		return nil, ErrPolicyForbids
	}

	half := new(big.Int).Rsh(baseAmount, 1)
	otherAmount, err := v.swapLocked(ctx, caller, v.referenceAsset(), otherAsset, half, stablePool)
	if err != nil {
		return nil, err
	}
	return v.addLiquidityLocked(ctx, caller, v.referenceAsset(), otherAsset, half, otherAmount, stablePool)
}

// agentGates is the fixed gate order for agent-initiated operations.
func (v *Vault) agentGates(ctx context.Context, caller common.Address) error {
	if err := v.requireAgent(caller); err != nil {
		return err
	}
	if err := v.ensureActive(); err != nil {
		return err
	}
	if err := v.ensureBreakerClear(); err != nil {
		return err
	}
	return v.checkPeg(ctx, caller)
}

// swapLocked runs the swap with the vault mutex already held.
func (v *Vault) swapLocked(ctx context.Context, caller common.Address, fromAsset, toAsset common.Address, amountIn *big.Int, stablePool bool) (*big.Int, error) {
	if v.router == nil {
		return nil, xerrors.New(xerrors.CodeNotInitialized, "liquidity router not configured")
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, xerrors.New(xerrors.CodeValidation, "swap amount must be positive")
	}
	fromReference := fromAsset == v.referenceAsset()
	if fromReference && amountIn.Cmp(v.st.idleBalance) > 0 {
		return nil, ErrInsufficientIdle
	}

	route := []market.Hop{{From: fromAsset, To: toAsset, Stable: stablePool}}

	quoteCtx, cancel := v.externalContext(ctx)
	quoted, err := v.router.Quote(quoteCtx, amountIn, route)
	cancel()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExternalFailure, err, "swap quote failed")
	}
	if len(quoted) == 0 {
		return nil, xerrors.New(xerrors.CodeExternalFailure, "router returned an empty quote")
	}
	minOut := applySlippage(quoted[len(quoted)-1], v.st.defaultSlippageBps)

	snapshot := v.st.clone()
	if fromReference {
		v.st.idleBalance.Sub(v.st.idleBalance, amountIn)
	}

	callCtx, cancel := v.externalContext(ctx)
	amounts, err := v.router.Swap(callCtx, amountIn, minOut, route, v.address, v.deadline())
	cancel()
	if err != nil {
		v.st = snapshot
		return nil, xerrors.Wrap(xerrors.CodeExternalFailure, err, "swap execution failed")
	}
	if len(amounts) == 0 {
		v.st = snapshot
		return nil, xerrors.New(xerrors.CodeExternalFailure, "router returned no output amounts")
	}
	realized := amounts[len(amounts)-1]
	if realized.Cmp(minOut) < 0 {
		v.st = snapshot
		return nil, xerrors.New(xerrors.CodeExternalFailure, "swap output below slippage tolerance")
	}
	if toAsset == v.referenceAsset() {
		v.st.idleBalance.Add(v.st.idleBalance, realized)
	}

	v.journal.Append(ctx, EventSwapped, caller.Hex(), map[string]string{
		"from":      fromAsset.Hex(),
		"to":        toAsset.Hex(),
		"amount_in": amountIn.String(),
		"out":       realized.String(),
	})
	return new(big.Int).Set(realized), nil
}

// addLiquidityLocked runs the liquidity addition with the mutex held.
func (v *Vault) addLiquidityLocked(ctx context.Context, caller common.Address, assetA, assetB common.Address, amountA, amountB *big.Int, stablePool bool) (*LPPosition, error) {
	if v.router == nil {
		return nil, xerrors.New(xerrors.CodeNotInitialized, "liquidity router not configured")
	}
	if amountA == nil || amountA.Sign() <= 0 || amountB == nil || amountB.Sign() <= 0 {
		return nil, xerrors.New(xerrors.CodeValidation, "liquidity amounts must be positive")
	}

	poolCtx, cancel := v.externalContext(ctx)
	pool, err := v.router.PoolFor(poolCtx, assetA, assetB, stablePool)
	cancel()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExternalFailure, err, "pool lookup failed")
	}

	// Deposited amounts are USD-denominated, so the deployed value is the
	// plain sum of both sides.
	value := new(big.Int).Add(amountA, amountB)
	if err := v.st.checkAllocation(pool, value); err != nil {
		return nil, err
	}

	aReference := assetA == v.referenceAsset()
	bReference := assetB == v.referenceAsset()
	needed := big.NewInt(0)
	if aReference {
		needed.Add(needed, amountA)
	}
	if bReference {
		needed.Add(needed, amountB)
	}
	if needed.Cmp(v.st.idleBalance) > 0 {
		return nil, ErrInsufficientIdle
	}

	minA := applySlippage(amountA, v.st.defaultSlippageBps)
	minB := applySlippage(amountB, v.st.defaultSlippageBps)

	snapshot := v.st.clone()
	v.st.idleBalance.Sub(v.st.idleBalance, needed)

	callCtx, cancel := v.externalContext(ctx)
	realizedA, realizedB, liquidity, err := v.router.AddLiquidity(callCtx, assetA, assetB, stablePool,
		amountA, amountB, minA, minB, v.address, v.deadline())
	cancel()
	if err != nil {
		v.st = snapshot
		return nil, xerrors.Wrap(xerrors.CodeExternalFailure, err, "add liquidity failed")
	}

	// Credit back whatever the router did not consume on reference sides.
	if aReference {
		v.st.idleBalance.Add(v.st.idleBalance, new(big.Int).Sub(amountA, realizedA))
	}
	if bReference {
		v.st.idleBalance.Add(v.st.idleBalance, new(big.Int).Sub(amountB, realizedB))
	}

	realizedValue := new(big.Int).Add(realizedA, realizedB)
	v.st.addAllocation(pool, realizedValue)
	position := v.bookPosition(pool, assetA, assetB, stablePool, liquidity)

	v.journal.Append(ctx, EventLiquidityAdded, caller.Hex(), map[string]string{
		"pool":      pool.Hex(),
		"amount_a":  realizedA.String(),
		"amount_b":  realizedB.String(),
		"liquidity": liquidity.String(),
	})
	return position, nil
}

// bookPosition merges liquidity into an existing position for the pool or
// appends a new record.
func (v *Vault) bookPosition(pool, assetA, assetB common.Address, stable bool, liquidity *big.Int) *LPPosition {
	for i := range v.st.positions {
		if v.st.positions[i].Pool == pool {
			v.st.positions[i].LPAmount.Add(v.st.positions[i].LPAmount, liquidity)
			out := v.st.positions[i]
			out.LPAmount = new(big.Int).Set(out.LPAmount)
			return &out
		}
	}
	v.st.positions = append(v.st.positions, LPPosition{
		Pool:     pool,
		AssetA:   assetA,
		AssetB:   assetB,
		Stable:   stable,
		LPAmount: new(big.Int).Set(liquidity),
	})
	out := v.st.positions[len(v.st.positions)-1]
	out.LPAmount = new(big.Int).Set(out.LPAmount)
	return &out
}

func (v *Vault) referenceAsset() common.Address {
	return v.refAsset
}

// deadline is the absolute bound passed to router calls.
func (v *Vault) deadline() time.Time {
	return v.nowFn().Add(v.callTimeout)
}
