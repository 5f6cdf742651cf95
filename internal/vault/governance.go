package vault

import (
	"context"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	xerrors "AegisVault/internal/errors"
	"AegisVault/internal/market"
)

// Propose queues a governance action behind the timelock. Only the owner
// may propose; the action becomes executable TimelockDelay later.
func (v *Vault) Propose(ctx context.Context, caller common.Address, action ProposalAction) (common.Hash, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller); err != nil {
		return common.Hash{}, err
	}
	if action.Kind != ProposalSetAgent {
		return common.Hash{}, xerrors.New(xerrors.CodeValidation, "unknown proposal kind")
	}
	if action.Address == (common.Address{}) {
		return common.Hash{}, xerrors.New(xerrors.CodeValidation, "proposal target address is required")
	}

	now := v.nowFn()
	id := proposalID(action, now)
	if _, exists := v.st.proposals[id]; exists {
		return common.Hash{}, xerrors.New(xerrors.CodeConflict, "proposal already queued")
	}
	v.st.proposals[id] = &TimelockProposal{
		ID:           id,
		Action:       action,
		ExecutableAt: now.Add(TimelockDelay),
	}

	v.journal.Append(ctx, EventTimelockProposed, caller.Hex(), map[string]string{
		"proposal":      id.Hex(),
		"kind":          string(action.Kind),
		"target":        action.Address.Hex(),
		"executable_at": strconv.FormatInt(now.Add(TimelockDelay).Unix(), 10),
	})
	return id, nil
}

// ExecuteProposal applies a matured proposal. A proposal executes at most
// once; re-execution and early execution both fail without side effects.
func (v *Vault) ExecuteProposal(ctx context.Context, caller common.Address, id common.Hash) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller); err != nil {
		return err
	}
	proposal, ok := v.st.proposals[id]
	if !ok {
		return ErrProposalNotFound
	}
	if proposal.Executed {
		return ErrProposalExecuted
	}
	if v.nowFn().Before(proposal.ExecutableAt) {
		return ErrProposalImmature
	}

	switch proposal.Action.Kind {
	case ProposalSetAgent:
		previous := v.st.agent
		v.st.agent = proposal.Action.Address
		v.journal.Append(ctx, EventAgentRotated, caller.Hex(), map[string]string{
			"previous": previous.Hex(),
			"agent":    proposal.Action.Address.Hex(),
		})
	default:
		return xerrors.New(xerrors.CodeInvalidState, "proposal carries an unknown action")
	}
	proposal.Executed = true

	v.journal.Append(ctx, EventTimelockExecuted, caller.Hex(), map[string]string{
		"proposal": id.Hex(),
	})
	return nil
}

// CancelProposal removes a pending proposal before execution.
func (v *Vault) CancelProposal(ctx context.Context, caller common.Address, id common.Hash) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller); err != nil {
		return err
	}
	proposal, ok := v.st.proposals[id]
	if !ok {
		return ErrProposalNotFound
	}
	if proposal.Executed {
		return ErrProposalExecuted
	}
	delete(v.st.proposals, id)

	v.journal.Append(ctx, EventTimelockCancelled, caller.Hex(), map[string]string{
		"proposal": id.Hex(),
	})
	return nil
}

// WithdrawalActionID derives the confirmation identifier for a gated
// withdrawal of amount to destination on the current day.
func (v *Vault) WithdrawalActionID(amount *big.Int, destination common.Address) common.Hash {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return withdrawalActionID(amount.Bytes(), destination, v.nowFn().Unix()/secondsPerDay)
}

// Confirm records one signer's approval of a gated action. The owner may
// also confirm, standing in for an unavailable signer. Double confirmation
// by the same identity is rejected.
func (v *Vault) Confirm(ctx context.Context, caller common.Address, actionID common.Hash) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.st.signers[caller]; !ok && caller != v.st.owner {
		return 0, ErrNotASigner
	}
	confirmed, ok := v.st.confirmations[actionID]
	if !ok {
		confirmed = make(map[common.Address]struct{})
		v.st.confirmations[actionID] = confirmed
	}
	if _, dup := confirmed[caller]; dup {
		return len(confirmed), ErrAlreadyConfirmed
	}
	confirmed[caller] = struct{}{}
	count := len(confirmed)

	v.journal.Append(ctx, EventMultiSigConfirmed, caller.Hex(), map[string]string{
		"action":   actionID.Hex(),
		"count":    strconv.Itoa(count),
		"required": strconv.Itoa(v.st.requiredCount),
	})
	return count, nil
}

// IsConfirmed reports whether the action has gathered the required number
// of confirmations.
func (v *Vault) IsConfirmed(actionID common.Hash) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.st.confirmations[actionID]) >= v.st.requiredCount
}

// ExecuteGatedWithdrawal pays out a multi-signature-approved transfer from
// the idle balance. The confirmation set is consumed on success, so the
// same action identifier cannot authorise a second transfer.
func (v *Vault) ExecuteGatedWithdrawal(ctx context.Context, caller, destination common.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller); err != nil {
		return err
	}
	if err := v.ensureBreakerClear(); err != nil {
		return err
	}
	if destination == (common.Address{}) {
		return xerrors.New(xerrors.CodeValidation, "destination address is required")
	}
	if amount == nil || amount.Sign() <= 0 {
		return xerrors.New(xerrors.CodeValidation, "amount must be positive")
	}

	actionID := withdrawalActionID(amount.Bytes(), destination, v.nowFn().Unix()/secondsPerDay)
	if len(v.st.confirmations[actionID]) < v.st.requiredCount {
		return ErrNotConfirmed
	}
	if amount.Cmp(v.st.idleBalance) > 0 {
		return ErrInsufficientIdle
	}

	snapshot := v.st.clone()
	v.st.idleBalance.Sub(v.st.idleBalance, amount)
	delete(v.st.confirmations, actionID)

	if v.token != nil {
		callCtx, cancel := v.externalContext(ctx)
		err := v.token.Transfer(callCtx, destination, amount)
		cancel()
		if err != nil {
			v.st = snapshot
			return xerrors.Wrap(xerrors.CodeExternalFailure, err, "gated withdrawal transfer failed")
		}
	}

	v.journal.Append(ctx, EventGatedWithdrawalExecuted, caller.Hex(), map[string]string{
		"action":      actionID.Hex(),
		"destination": destination.Hex(),
		"amount":      amount.String(),
	})
	return nil
}

// ResetBreaker clears a tripped circuit breaker. Only the guardian may
// reset; the counter goes back to zero along with the trip flag.
func (v *Vault) ResetBreaker(ctx context.Context, caller common.Address) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireGuardian(caller); err != nil {
		return err
	}
	v.st.resetBreaker()

	v.journal.Append(ctx, EventCircuitBreakerReset, caller.Hex(), nil)
	return nil
}

// Pause suspends deposits, withdrawals and agent operations. Guardian or
// owner may pause.
func (v *Vault) Pause(ctx context.Context, caller common.Address) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if caller != v.st.guardian && caller != v.st.owner {
		return ErrNotGuardian
	}
	if v.st.paused {
		return xerrors.New(xerrors.CodeInvalidState, "vault is already paused")
	}
	v.st.paused = true

	v.journal.Append(ctx, EventVaultPaused, caller.Hex(), nil)
	return nil
}

// Unpause resumes normal operation. Owner only.
func (v *Vault) Unpause(ctx context.Context, caller common.Address) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller); err != nil {
		return err
	}
	if !v.st.paused {
		return xerrors.New(xerrors.CodeInvalidState, "vault is not paused")
	}
	v.st.paused = false

	v.journal.Append(ctx, EventVaultUnpaused, caller.Hex(), nil)
	return nil
}

// EnterEmergency switches the vault into emergency mode, blocking all
// normal operations until the owner exits it. Owner or guardian may enter.
func (v *Vault) EnterEmergency(ctx context.Context, caller common.Address) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if caller != v.st.owner && caller != v.st.guardian {
		return ErrNotGuardian
	}
	if v.st.emergency {
		return xerrors.New(xerrors.CodeInvalidState, "vault is already in emergency mode")
	}
	v.st.emergency = true

	v.journal.Append(ctx, EventEmergencyEntered, caller.Hex(), nil)
	v.alert(ctx, xerrors.CodeInvalidState, "vault entered emergency mode", map[string]string{
		"actor": caller.Hex(),
	})
	return nil
}

// ExitEmergency returns the vault to normal operation. Owner only.
func (v *Vault) ExitEmergency(ctx context.Context, caller common.Address) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller); err != nil {
		return err
	}
	if !v.st.emergency {
		return xerrors.New(xerrors.CodeInvalidState, "vault is not in emergency mode")
	}
	v.st.emergency = false

	v.journal.Append(ctx, EventEmergencyExited, caller.Hex(), nil)
	return nil
}

// EmergencyDrain moves the entire idle balance to destination. It bypasses
// the limiter and the breaker but requires emergency mode, so the normal
// withdrawal path cannot be sidestepped casually. Owner only.
func (v *Vault) EmergencyDrain(ctx context.Context, caller, destination common.Address) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller); err != nil {
		return nil, err
	}
	if !v.st.emergency {
		return nil, ErrEmergencyOnly
	}
	if destination == (common.Address{}) {
		return nil, xerrors.New(xerrors.CodeValidation, "destination address is required")
	}

	drained := new(big.Int).Set(v.st.idleBalance)
	if drained.Sign() == 0 {
		return drained, nil
	}

	snapshot := v.st.clone()
	v.st.idleBalance.SetInt64(0)

	if v.token != nil {
		callCtx, cancel := v.externalContext(ctx)
		err := v.token.Transfer(callCtx, destination, drained)
		cancel()
		if err != nil {
			v.st = snapshot
			return nil, xerrors.Wrap(xerrors.CodeExternalFailure, err, "emergency drain transfer failed")
		}
	}

	v.journal.Append(ctx, EventEmergencyDrained, caller.Hex(), map[string]string{
		"destination": destination.Hex(),
		"amount":      drained.String(),
	})
	return drained, nil
}

// ApproveProtocol whitelists a pool for agent deployment. Owner only.
func (v *Vault) ApproveProtocol(ctx context.Context, caller common.Address, protocol common.Address) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller); err != nil {
		return err
	}
	if protocol == (common.Address{}) {
		return xerrors.New(xerrors.CodeValidation, "protocol address is required")
	}
	v.st.approvedProtocols[protocol] = struct{}{}

	v.journal.Append(ctx, EventProtocolApproved, caller.Hex(), map[string]string{
		"protocol": protocol.Hex(),
	})
	return nil
}

// RemoveProtocol drops a pool from the whitelist. Existing positions stay
// booked; the agent just cannot add to them.
func (v *Vault) RemoveProtocol(ctx context.Context, caller common.Address, protocol common.Address) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller); err != nil {
		return err
	}
	if _, ok := v.st.approvedProtocols[protocol]; !ok {
		return xerrors.New(xerrors.CodeNotFound, "protocol is not approved")
	}
	delete(v.st.approvedProtocols, protocol)

	v.journal.Append(ctx, EventProtocolRemoved, caller.Hex(), map[string]string{
		"protocol": protocol.Hex(),
	})
	return nil
}

// SetSlippage changes the default slippage tolerance. Owner only.
func (v *Vault) SetSlippage(ctx context.Context, caller common.Address, bps uint32) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller); err != nil {
		return err
	}
	if bps > maxSlippageBps {
		return xerrors.New(xerrors.CodeValidation, "slippage tolerance too large")
	}
	v.st.defaultSlippageBps = bps

	v.journal.Append(ctx, EventSlippageChanged, caller.Hex(), map[string]string{
		"bps": strconv.FormatUint(uint64(bps), 10),
	})
	return nil
}

// SetLimits changes the withdrawal caps. Owner only. The daily window is
// untouched; amounts already counted today stay counted.
func (v *Vault) SetLimits(ctx context.Context, caller common.Address, singleTxCap, dailyCap *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller); err != nil {
		return err
	}
	if singleTxCap == nil || singleTxCap.Sign() <= 0 || dailyCap == nil || dailyCap.Sign() <= 0 {
		return xerrors.New(xerrors.CodeValidation, "caps must be positive")
	}
	if singleTxCap.Cmp(dailyCap) > 0 {
		return xerrors.New(xerrors.CodeValidation, "single transaction cap exceeds daily cap")
	}
	v.st.singleTxCap = new(big.Int).Set(singleTxCap)
	v.st.dailyCap = new(big.Int).Set(dailyCap)

	v.journal.Append(ctx, EventLimitsChanged, caller.Hex(), map[string]string{
		"single_tx_cap": singleTxCap.String(),
		"daily_cap":     dailyCap.String(),
	})
	return nil
}

// SetPerformanceFee changes the performance fee. Owner only.
func (v *Vault) SetPerformanceFee(ctx context.Context, caller common.Address, bps uint32) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller); err != nil {
		return err
	}
	if bps > maxPerformanceFeeBps {
		return xerrors.New(xerrors.CodeValidation, "performance fee too large")
	}
	v.st.performanceFeeBps = bps

	v.journal.Append(ctx, EventFeeChanged, caller.Hex(), map[string]string{
		"bps": strconv.FormatUint(uint64(bps), 10),
	})
	return nil
}

// SetGuardian replaces the guardian. Owner only; immediate, no timelock.
func (v *Vault) SetGuardian(ctx context.Context, caller, guardian common.Address) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller); err != nil {
		return err
	}
	if guardian == (common.Address{}) {
		return xerrors.New(xerrors.CodeValidation, "guardian address is required")
	}
	previous := v.st.guardian
	v.st.guardian = guardian

	v.journal.Append(ctx, EventGuardianChanged, caller.Hex(), map[string]string{
		"previous": previous.Hex(),
		"guardian": guardian.Hex(),
	})
	return nil
}

// SetOracle swaps the price oracle. Owner only; immediate, no timelock.
func (v *Vault) SetOracle(ctx context.Context, caller common.Address, oracle market.PriceOracle) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller); err != nil {
		return err
	}
	v.oracle = oracle

	v.journal.Append(ctx, EventOracleChanged, caller.Hex(), nil)
	return nil
}

// SetPegGuard enables or disables depeg checking and optionally adjusts
// the threshold. Owner only. A nil threshold keeps the current one.
func (v *Vault) SetPegGuard(ctx context.Context, caller common.Address, enabled bool, threshold *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireOwner(caller); err != nil {
		return err
	}
	if threshold != nil {
		if threshold.Sign() <= 0 {
			return xerrors.New(xerrors.CodeValidation, "depeg threshold must be positive")
		}
		v.st.depegThreshold = new(big.Int).Set(threshold)
	}
	v.st.pegGuard = enabled

	v.journal.Append(ctx, EventPegGuardChanged, caller.Hex(), map[string]string{
		"enabled":   strconv.FormatBool(enabled),
		"threshold": v.st.depegThreshold.String(),
	})
	return nil
}
