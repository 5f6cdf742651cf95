package vault

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// account tracks one depositor's claim on the vault.
type account struct {
	shares      *big.Int
	lastDeposit time.Time
}

// LPPosition records liquidity supplied to one AMM pool. Positions are
// never deleted; fully exited positions remain with a zero amount.
type LPPosition struct {
	Pool     common.Address
	AssetA   common.Address
	AssetB   common.Address
	Stable   bool
	LPAmount *big.Int
}

// TimelockProposal is a pending governance action.
type TimelockProposal struct {
	ID           common.Hash
	Action       ProposalAction
	ExecutableAt time.Time
	Executed     bool
}

// ProposalKind enumerates the governance actions that go through the
// timelock.
type ProposalKind string

const (
	// ProposalSetAgent rotates the delegated agent identity. Agent rotation
	// is the one role change that must clear the timelock; guardian and
	// oracle changes are direct owner setters.
	ProposalSetAgent ProposalKind = "set_agent"
)

// ProposalAction is the timelock payload.
type ProposalAction struct {
	Kind    ProposalKind
	Address common.Address
}

// state is the full mutable vault state. It is only ever touched while the
// vault mutex is held; reads copy values out.
type state struct {
	totalShares    *big.Int
	totalDeposited *big.Int
	idleBalance    *big.Int

	accounts  map[common.Address]*account
	positions []LPPosition

	owner    common.Address
	guardian common.Address
	agent    common.Address

	minDeposit         *big.Int
	singleTxCap        *big.Int
	dailyCap           *big.Int
	performanceFeeBps  uint32
	defaultSlippageBps uint32
	liquidityPolicy    LiquidityPolicy

	paused    bool
	emergency bool

	proposals map[common.Hash]*TimelockProposal

	signers       map[common.Address]struct{}
	requiredCount int
	confirmations map[common.Hash]map[common.Address]struct{}

	breakerCount   int
	breakerTripped bool

	dayIndex       int64
	withdrawnToday *big.Int

	depegThreshold *big.Int
	pegGuard       bool

	approvedProtocols map[common.Address]struct{}
	allocations       map[common.Address]*big.Int
}

func newState(p Params) *state {
	s := &state{
		totalShares:    big.NewInt(0),
		totalDeposited: big.NewInt(0),
		idleBalance:    big.NewInt(0),
		accounts:       make(map[common.Address]*account),

		owner:    p.Owner,
		guardian: p.Guardian,
		agent:    p.Agent,

		minDeposit:         new(big.Int).Set(p.MinDeposit),
		singleTxCap:        new(big.Int).Set(p.SingleTxCap),
		dailyCap:           new(big.Int).Set(p.DailyCap),
		performanceFeeBps:  p.PerformanceFeeBps,
		defaultSlippageBps: p.DefaultSlippageBps,
		liquidityPolicy:    p.LiquidityPolicy,

		proposals: make(map[common.Hash]*TimelockProposal),

		signers:       make(map[common.Address]struct{}, len(p.Signers)),
		requiredCount: p.RequiredConfirmations,
		confirmations: make(map[common.Hash]map[common.Address]struct{}),

		withdrawnToday: big.NewInt(0),

		depegThreshold: big.NewInt(DefaultDepegThreshold),
		pegGuard:       p.PegGuard,

		approvedProtocols: make(map[common.Address]struct{}, len(p.ApprovedProtocols)),
		allocations:       make(map[common.Address]*big.Int),
	}
	if s.liquidityPolicy == "" {
		s.liquidityPolicy = PolicyUnrestricted
	}
	if p.DepegThreshold != nil {
		s.depegThreshold = new(big.Int).Set(p.DepegThreshold)
	}
	for _, signer := range p.Signers {
		s.signers[signer] = struct{}{}
	}
	for _, protocol := range p.ApprovedProtocols {
		s.approvedProtocols[protocol] = struct{}{}
	}
	return s
}

// clone deep-copies the state so a failed external call can roll the vault
// back to the pre-operation snapshot.
func (s *state) clone() *state {
	c := &state{
		totalShares:    new(big.Int).Set(s.totalShares),
		totalDeposited: new(big.Int).Set(s.totalDeposited),
		idleBalance:    new(big.Int).Set(s.idleBalance),
		accounts:       make(map[common.Address]*account, len(s.accounts)),
		positions:      make([]LPPosition, len(s.positions)),

		owner:    s.owner,
		guardian: s.guardian,
		agent:    s.agent,

		minDeposit:         new(big.Int).Set(s.minDeposit),
		singleTxCap:        new(big.Int).Set(s.singleTxCap),
		dailyCap:           new(big.Int).Set(s.dailyCap),
		performanceFeeBps:  s.performanceFeeBps,
		defaultSlippageBps: s.defaultSlippageBps,
		liquidityPolicy:    s.liquidityPolicy,

		paused:    s.paused,
		emergency: s.emergency,

		proposals: make(map[common.Hash]*TimelockProposal, len(s.proposals)),

		signers:       make(map[common.Address]struct{}, len(s.signers)),
		requiredCount: s.requiredCount,
		confirmations: make(map[common.Hash]map[common.Address]struct{}, len(s.confirmations)),

		breakerCount:   s.breakerCount,
		breakerTripped: s.breakerTripped,

		dayIndex:       s.dayIndex,
		withdrawnToday: new(big.Int).Set(s.withdrawnToday),

		depegThreshold: new(big.Int).Set(s.depegThreshold),
		pegGuard:       s.pegGuard,

		approvedProtocols: make(map[common.Address]struct{}, len(s.approvedProtocols)),
		allocations:       make(map[common.Address]*big.Int, len(s.allocations)),
	}
	for addr, acct := range s.accounts {
		c.accounts[addr] = &account{
			shares:      new(big.Int).Set(acct.shares),
			lastDeposit: acct.lastDeposit,
		}
	}
	for i, pos := range s.positions {
		c.positions[i] = pos
		c.positions[i].LPAmount = new(big.Int).Set(pos.LPAmount)
	}
	for id, proposal := range s.proposals {
		copied := *proposal
		c.proposals[id] = &copied
	}
	for signer := range s.signers {
		c.signers[signer] = struct{}{}
	}
	for action, confirmed := range s.confirmations {
		set := make(map[common.Address]struct{}, len(confirmed))
		for signer := range confirmed {
			set[signer] = struct{}{}
		}
		c.confirmations[action] = set
	}
	for protocol := range s.approvedProtocols {
		c.approvedProtocols[protocol] = struct{}{}
	}
	for protocol, allocated := range s.allocations {
		c.allocations[protocol] = new(big.Int).Set(allocated)
	}
	return c
}

// totalValue is the vault's idle reference-asset balance. Open positions
// are deliberately excluded from valuation.
func (s *state) totalValue() *big.Int {
	return new(big.Int).Set(s.idleBalance)
}
