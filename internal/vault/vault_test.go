package vault

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"AegisVault/internal/audit"
	"AegisVault/internal/market"
)

func addr(b byte) common.Address {
	var a common.Address
	a[common.AddressLength-1] = b
	return a
}

var (
	owner      = addr(0x01)
	guardian   = addr(0x02)
	agent      = addr(0x03)
	alice      = addr(0x0A)
	bob        = addr(0x0B)
	signerOne  = addr(0x11)
	signerTwo  = addr(0x12)
	usdAsset   = addr(0xAA)
	otherAsset = addr(0xBB)
	poolAddr   = addr(0xCC)
)

// testClock is a hand-advanced time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeOracle struct {
	price *big.Int
	err   error
}

func (o *fakeOracle) LatestPrice(context.Context) (market.PricePoint, error) {
	if o.err != nil {
		return market.PricePoint{}, o.err
	}
	return market.PricePoint{Price: new(big.Int).Set(o.price), UpdatedAt: time.Now()}, nil
}

type fakeToken struct {
	failTransfer     bool
	failTransferFrom bool
	transfers        int
}

func (t *fakeToken) Transfer(_ context.Context, _ common.Address, _ *big.Int) error {
	if t.failTransfer {
		return errors.New("transfer reverted")
	}
	t.transfers++
	return nil
}

func (t *fakeToken) TransferFrom(_ context.Context, _, _ common.Address, _ *big.Int) error {
	if t.failTransferFrom {
		return errors.New("transferFrom reverted")
	}
	t.transfers++
	return nil
}

func (t *fakeToken) Approve(context.Context, common.Address, *big.Int) error { return nil }

func (t *fakeToken) BalanceOf(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

// fakeRouter answers quotes and executes swaps at a fixed ratio.
type fakeRouter struct {
	pool     common.Address
	swapOut  *big.Int
	failSwap bool
	failAdd  bool

	// AddLiquidity echoes the desired amounts and mints liquidity equal to
	// their sum unless overridden.
	liquidityOut *big.Int
	removeA      *big.Int
	removeB      *big.Int
}

func (r *fakeRouter) Quote(_ context.Context, amountIn *big.Int, _ []market.Hop) ([]*big.Int, error) {
	out := r.swapOut
	if out == nil {
		out = amountIn
	}
	return []*big.Int{new(big.Int).Set(amountIn), new(big.Int).Set(out)}, nil
}

func (r *fakeRouter) Swap(_ context.Context, amountIn, _ *big.Int, _ []market.Hop, _ common.Address, _ time.Time) ([]*big.Int, error) {
	if r.failSwap {
		return nil, errors.New("swap reverted")
	}
	out := r.swapOut
	if out == nil {
		out = amountIn
	}
	return []*big.Int{new(big.Int).Set(amountIn), new(big.Int).Set(out)}, nil
}

func (r *fakeRouter) AddLiquidity(_ context.Context, _, _ common.Address, _ bool, amountADesired, amountBDesired, _, _ *big.Int, _ common.Address, _ time.Time) (*big.Int, *big.Int, *big.Int, error) {
	if r.failAdd {
		return nil, nil, nil, errors.New("addLiquidity reverted")
	}
	liquidity := r.liquidityOut
	if liquidity == nil {
		liquidity = new(big.Int).Add(amountADesired, amountBDesired)
	}
	return new(big.Int).Set(amountADesired), new(big.Int).Set(amountBDesired), new(big.Int).Set(liquidity), nil
}

func (r *fakeRouter) RemoveLiquidity(_ context.Context, _, _ common.Address, _ bool, liquidity, _, _ *big.Int, _ common.Address, _ time.Time) (*big.Int, *big.Int, error) {
	if r.removeA != nil {
		return new(big.Int).Set(r.removeA), new(big.Int).Set(r.removeB), nil
	}
	half := new(big.Int).Rsh(liquidity, 1)
	return half, new(big.Int).Sub(liquidity, half), nil
}

func (r *fakeRouter) PoolFor(context.Context, common.Address, common.Address, bool) (common.Address, error) {
	return r.pool, nil
}

func testParams() Params {
	return Params{
		Owner:                 owner,
		Guardian:              guardian,
		Agent:                 agent,
		Signers:               []common.Address{signerOne, signerTwo},
		RequiredConfirmations: 2,
		ReferenceAsset:        usdAsset,
		MinDeposit:            big.NewInt(100),
		SingleTxCap:           big.NewInt(50_000),
		DailyCap:              big.NewInt(100_000),
		PerformanceFeeBps:     1000,
		DefaultSlippageBps:    100,
		LiquidityPolicy:       PolicyUnrestricted,
		ApprovedProtocols:     []common.Address{poolAddr},
	}
}

type testVault struct {
	*Vault
	clock   *testClock
	journal *audit.Log
	router  *fakeRouter
	oracle  *fakeOracle
}

func newTestVault(t *testing.T, mutate func(*Params), opts ...Option) *testVault {
	t.Helper()

	params := testParams()
	if mutate != nil {
		mutate(&params)
	}
	clock := newTestClock()
	journal := audit.NewLog()
	router := &fakeRouter{pool: poolAddr}
	oracle := &fakeOracle{price: big.NewInt(100_000_000)}

	all := append([]Option{
		WithClock(clock.Now),
		WithRouter(router),
		WithOracle(oracle),
	}, opts...)

	v, err := New(params, journal, all...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testVault{Vault: v, clock: clock, journal: journal, router: router, oracle: oracle}
}

func mustDeposit(t *testing.T, v *testVault, depositor common.Address, amount int64) *big.Int {
	t.Helper()
	shares, err := v.Deposit(context.Background(), depositor, big.NewInt(amount))
	if err != nil {
		t.Fatalf("Deposit(%d): %v", amount, err)
	}
	return shares
}

func lastEvent(t *testing.T, v *testVault, eventType string) audit.Event {
	t.Helper()
	events := v.journal.Events(0)
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == eventType {
			return events[i]
		}
	}
	t.Fatalf("no %s event in journal", eventType)
	return audit.Event{}
}
