package vault

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	xerrors "AegisVault/internal/errors"
)

// LiquidityPolicy restricts which pool shapes the agent may enter.
type LiquidityPolicy string

const (
	PolicySingleSided  LiquidityPolicy = "single_sided"
	PolicyDualSided    LiquidityPolicy = "dual_sided"
	PolicyUnrestricted LiquidityPolicy = "unrestricted"
)

const (
	// TimelockDelay is the mandatory wait between proposing and executing
	// a governance action.
	TimelockDelay = 48 * time.Hour

	// BreakerThreshold is the consecutive-oversize count that trips the
	// circuit breaker.
	BreakerThreshold = 3

	// AllocationCapBps caps exposure to any single downstream protocol at
	// 25% of total vault value.
	AllocationCapBps = 2500

	// DefaultDepegThreshold is 99.5% of the reference value with 8 implied
	// decimals.
	DefaultDepegThreshold = 99_500_000

	// ExternalCallTimeout bounds every router, oracle and token call.
	ExternalCallTimeout = 300 * time.Second

	maxPerformanceFeeBps = 3000
	maxSlippageBps       = 2000
	bpsDenominator       = 10_000
	secondsPerDay        = 86_400
)

// Params fixes the vault's roles and risk limits at construction time.
// Everything here can later be changed through the governance surface,
// subject to the same limits New enforces.
type Params struct {
	Owner    common.Address
	Guardian common.Address
	Agent    common.Address

	Signers               []common.Address
	RequiredConfirmations int

	ReferenceAsset common.Address

	MinDeposit         *big.Int
	SingleTxCap        *big.Int
	DailyCap           *big.Int
	PerformanceFeeBps  uint32
	DefaultSlippageBps uint32
	LiquidityPolicy    LiquidityPolicy

	// ApprovedProtocols seeds the allocation-cap whitelist with pool
	// identifiers the agent may deploy into.
	ApprovedProtocols []common.Address

	// DepegThreshold overrides DefaultDepegThreshold when non-nil.
	DepegThreshold *big.Int
	PegGuard       bool
}

func (p Params) validate() error {
	if p.Owner == (common.Address{}) {
		return xerrors.New(xerrors.CodeValidation, "owner address is required")
	}
	if p.MinDeposit == nil || p.MinDeposit.Sign() <= 0 {
		return xerrors.New(xerrors.CodeValidation, "minimum deposit must be positive")
	}
	if p.SingleTxCap == nil || p.SingleTxCap.Sign() <= 0 {
		return xerrors.New(xerrors.CodeValidation, "single transaction cap must be positive")
	}
	if p.DailyCap == nil || p.DailyCap.Cmp(p.SingleTxCap) < 0 {
		return xerrors.New(xerrors.CodeValidation, "daily cap must be at least the single transaction cap")
	}
	if p.PerformanceFeeBps > maxPerformanceFeeBps {
		return xerrors.New(xerrors.CodeValidation, "performance fee exceeds 3000 bps")
	}
	if p.DefaultSlippageBps > maxSlippageBps {
		return xerrors.New(xerrors.CodeValidation, "slippage tolerance exceeds 2000 bps")
	}
	switch p.LiquidityPolicy {
	case PolicySingleSided, PolicyDualSided, PolicyUnrestricted:
	case "":
		// defaulted in New
	default:
		return xerrors.New(xerrors.CodeValidation, "unknown liquidity policy")
	}
	if p.RequiredConfirmations < 0 {
		return xerrors.New(xerrors.CodeValidation, "required confirmations cannot be negative")
	}
	if p.RequiredConfirmations > len(p.Signers) {
		return xerrors.New(xerrors.CodeValidation, "required confirmations exceed signer count")
	}
	if p.DepegThreshold != nil && p.DepegThreshold.Sign() <= 0 {
		return xerrors.New(xerrors.CodeValidation, "depeg threshold must be positive")
	}
	return nil
}
