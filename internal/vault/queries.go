package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Status is a point-in-time summary of the vault.
type Status struct {
	TotalShares    *big.Int
	TotalDeposited *big.Int
	IdleBalance    *big.Int
	TotalValue     *big.Int

	Owner    common.Address
	Guardian common.Address
	Agent    common.Address

	Paused         bool
	Emergency      bool
	BreakerTripped bool
	BreakerCount   int

	PegGuard       bool
	DepegThreshold *big.Int

	PerformanceFeeBps  uint32
	DefaultSlippageBps uint32
	LiquidityPolicy    LiquidityPolicy

	Depositors int
	Positions  int
	Proposals  int
}

// LimiterStatus reports the withdrawal caps and today's remaining headroom.
type LimiterStatus struct {
	SingleTxCap    *big.Int
	DailyCap       *big.Int
	WithdrawnToday *big.Int
	RemainingToday *big.Int
}

// Snapshot copies the headline state out under a read lock.
func (v *Vault) Snapshot() Status {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return Status{
		TotalShares:    new(big.Int).Set(v.st.totalShares),
		TotalDeposited: new(big.Int).Set(v.st.totalDeposited),
		IdleBalance:    new(big.Int).Set(v.st.idleBalance),
		TotalValue:     v.st.totalValue(),

		Owner:    v.st.owner,
		Guardian: v.st.guardian,
		Agent:    v.st.agent,

		Paused:         v.st.paused,
		Emergency:      v.st.emergency,
		BreakerTripped: v.st.breakerTripped,
		BreakerCount:   v.st.breakerCount,

		PegGuard:       v.st.pegGuard,
		DepegThreshold: new(big.Int).Set(v.st.depegThreshold),

		PerformanceFeeBps:  v.st.performanceFeeBps,
		DefaultSlippageBps: v.st.defaultSlippageBps,
		LiquidityPolicy:    v.st.liquidityPolicy,

		Depositors: len(v.st.accounts),
		Positions:  len(v.st.positions),
		Proposals:  len(v.st.proposals),
	}
}

// SharesOf returns the depositor's share balance, zero for strangers.
func (v *Vault) SharesOf(depositor common.Address) *big.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if acct, ok := v.st.accounts[depositor]; ok {
		return new(big.Int).Set(acct.shares)
	}
	return big.NewInt(0)
}

// ValueOf prices the depositor's shares against the current vault value.
func (v *Vault) ValueOf(depositor common.Address) *big.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	acct, ok := v.st.accounts[depositor]
	if !ok {
		return big.NewInt(0)
	}
	return amountForShares(acct.shares, v.st.totalShares, v.st.totalValue())
}

// Positions returns a copy of the LP position book.
func (v *Vault) Positions() []LPPosition {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]LPPosition, len(v.st.positions))
	for i, pos := range v.st.positions {
		out[i] = pos
		out[i].LPAmount = new(big.Int).Set(pos.LPAmount)
	}
	return out
}

// Limiter reports the withdrawal limiter's caps and headroom as of now.
func (v *Vault) Limiter() LimiterStatus {
	v.mu.RLock()
	defer v.mu.RUnlock()

	now := v.nowFn()
	withdrawn := big.NewInt(0)
	if now.Unix()/secondsPerDay == v.st.dayIndex {
		withdrawn = new(big.Int).Set(v.st.withdrawnToday)
	}
	return LimiterStatus{
		SingleTxCap:    new(big.Int).Set(v.st.singleTxCap),
		DailyCap:       new(big.Int).Set(v.st.dailyCap),
		WithdrawnToday: withdrawn,
		RemainingToday: v.st.remainingToday(now),
	}
}

// AllocationOf returns the value currently booked against a protocol.
func (v *Vault) AllocationOf(protocol common.Address) *big.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if allocated, ok := v.st.allocations[protocol]; ok {
		return new(big.Int).Set(allocated)
	}
	return big.NewInt(0)
}

// IsProtocolApproved reports whether the agent may deploy into the pool.
func (v *Vault) IsProtocolApproved(protocol common.Address) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	_, ok := v.st.approvedProtocols[protocol]
	return ok
}

// Proposal looks up a timelock proposal by identifier.
func (v *Vault) Proposal(id common.Hash) (TimelockProposal, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	proposal, ok := v.st.proposals[id]
	if !ok {
		return TimelockProposal{}, false
	}
	return *proposal, true
}
