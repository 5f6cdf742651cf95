package market

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Hop describes one leg of a swap route through the router.
type Hop struct {
	From   common.Address
	To     common.Address
	Stable bool
}

// PricePoint is a single oracle observation. Price carries 8 implied
// decimals, so 1.00 of the reference asset is 100_000_000.
type PricePoint struct {
	Price     *big.Int
	UpdatedAt time.Time
}

// PriceOracle reports the latest reference-asset price. Every guarded vault
// operation re-reads the oracle; implementations must not cache stale
// answers on the caller's behalf.
type PriceOracle interface {
	LatestPrice(ctx context.Context) (PricePoint, error)
}

// LiquidityRouter is the venue-side surface for swaps and liquidity
// management. All mutating calls accept an absolute deadline; calls that do
// not complete by the deadline are failed, never retried.
type LiquidityRouter interface {
	Quote(ctx context.Context, amountIn *big.Int, route []Hop) ([]*big.Int, error)
	Swap(ctx context.Context, amountIn, minOut *big.Int, route []Hop, recipient common.Address, deadline time.Time) ([]*big.Int, error)
	AddLiquidity(ctx context.Context, assetA, assetB common.Address, stable bool, amountADesired, amountBDesired, amountAMin, amountBMin *big.Int, recipient common.Address, deadline time.Time) (amountA, amountB, liquidity *big.Int, err error)
	RemoveLiquidity(ctx context.Context, assetA, assetB common.Address, stable bool, liquidity, amountAMin, amountBMin *big.Int, recipient common.Address, deadline time.Time) (amountA, amountB *big.Int, err error)
	PoolFor(ctx context.Context, assetA, assetB common.Address, stable bool) (common.Address, error)
}

// Token is the value-transfer interface for the reference asset and any LP
// tokens the vault touches.
type Token interface {
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, from, to common.Address, amount *big.Int) error
	Approve(ctx context.Context, spender common.Address, amount *big.Int) error
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
}
