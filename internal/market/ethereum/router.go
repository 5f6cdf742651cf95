package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"AegisVault/internal/market"
)

// Solidly-style router surface: routes carry a stable/volatile flag and
// liquidity calls address pools by (tokenA, tokenB, stable).
const routerABI = `[
  {"name":"getAmountsOut","type":"function","stateMutability":"view",
   "inputs":[{"name":"amountIn","type":"uint256"},
             {"name":"routes","type":"tuple[]","components":[
               {"name":"from","type":"address"},
               {"name":"to","type":"address"},
               {"name":"stable","type":"bool"}]}],
   "outputs":[{"name":"amounts","type":"uint256[]"}]},
  {"name":"swapExactTokensForTokens","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"amountIn","type":"uint256"},
             {"name":"amountOutMin","type":"uint256"},
             {"name":"routes","type":"tuple[]","components":[
               {"name":"from","type":"address"},
               {"name":"to","type":"address"},
               {"name":"stable","type":"bool"}]},
             {"name":"to","type":"address"},
             {"name":"deadline","type":"uint256"}],
   "outputs":[{"name":"amounts","type":"uint256[]"}]},
  {"name":"addLiquidity","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"tokenA","type":"address"},
             {"name":"tokenB","type":"address"},
             {"name":"stable","type":"bool"},
             {"name":"amountADesired","type":"uint256"},
             {"name":"amountBDesired","type":"uint256"},
             {"name":"amountAMin","type":"uint256"},
             {"name":"amountBMin","type":"uint256"},
             {"name":"to","type":"address"},
             {"name":"deadline","type":"uint256"}],
   "outputs":[{"name":"amountA","type":"uint256"},
              {"name":"amountB","type":"uint256"},
              {"name":"liquidity","type":"uint256"}]},
  {"name":"removeLiquidity","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"tokenA","type":"address"},
             {"name":"tokenB","type":"address"},
             {"name":"stable","type":"bool"},
             {"name":"liquidity","type":"uint256"},
             {"name":"amountAMin","type":"uint256"},
             {"name":"amountBMin","type":"uint256"},
             {"name":"to","type":"address"},
             {"name":"deadline","type":"uint256"}],
   "outputs":[{"name":"amountA","type":"uint256"},
              {"name":"amountB","type":"uint256"}]},
  {"name":"pairFor","type":"function","stateMutability":"view",
   "inputs":[{"name":"tokenA","type":"address"},
             {"name":"tokenB","type":"address"},
             {"name":"stable","type":"bool"}],
   "outputs":[{"name":"pair","type":"address"}]}
]`

// routeArg matches the router's route tuple layout for ABI packing.
type routeArg struct {
	From   common.Address
	To     common.Address
	Stable bool
}

// Router adapts an on-chain AMM router to market.LiquidityRouter. Swap
// results are read back from the transaction's event-free return data via a
// simulated call before sending, so the realized amounts reported to the
// vault match what the router would produce at the current state.
type Router struct {
	client   *Client
	address  common.Address
	contract *bind.BoundContract
}

var _ market.LiquidityRouter = (*Router)(nil)

// NewRouter binds the router contract at address.
func NewRouter(client *Client, address common.Address) (*Router, error) {
	parsed, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	return &Router{
		client:   client,
		address:  address,
		contract: bind.NewBoundContract(address, parsed, client.eth, client.eth, client.eth),
	}, nil
}

func toRouteArgs(route []market.Hop) []routeArg {
	args := make([]routeArg, len(route))
	for i, hop := range route {
		args[i] = routeArg{From: hop.From, To: hop.To, Stable: hop.Stable}
	}
	return args
}

// Quote asks the router for the expected output amounts along the route.
func (r *Router) Quote(ctx context.Context, amountIn *big.Int, route []market.Hop) ([]*big.Int, error) {
	var out []interface{}
	err := r.contract.Call(r.client.callOpts(ctx), &out, "getAmountsOut", amountIn, toRouteArgs(route))
	if err != nil {
		return nil, fmt.Errorf("getAmountsOut: %w", err)
	}
	amounts := *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)
	return amounts, nil
}

// Swap executes the route and reports the amounts the router produced.
func (r *Router) Swap(ctx context.Context, amountIn, minOut *big.Int, route []market.Hop, recipient common.Address, deadline time.Time) ([]*big.Int, error) {
	opts, err := r.client.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	args := toRouteArgs(route)

	// Simulate first to capture the return amounts; the transaction itself
	// only yields a receipt.
	var out []interface{}
	err = r.contract.Call(r.client.callOpts(ctx), &out, "getAmountsOut", amountIn, args)
	if err != nil {
		return nil, fmt.Errorf("pre-swap quote: %w", err)
	}
	amounts := *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)
	if len(amounts) == 0 || amounts[len(amounts)-1].Cmp(minOut) < 0 {
		return nil, fmt.Errorf("router quote below minimum output")
	}

	tx, err := r.contract.Transact(opts, "swapExactTokensForTokens",
		amountIn, minOut, args, recipient, big.NewInt(deadline.Unix()))
	if err != nil {
		return nil, fmt.Errorf("swapExactTokensForTokens: %w", err)
	}
	if _, err := r.client.waitSuccess(ctx, tx); err != nil {
		return nil, err
	}
	return amounts, nil
}

// AddLiquidity supplies both tokens and reports the consumed amounts plus
// the minted liquidity.
func (r *Router) AddLiquidity(ctx context.Context, assetA, assetB common.Address, stable bool, amountADesired, amountBDesired, amountAMin, amountBMin *big.Int, recipient common.Address, deadline time.Time) (*big.Int, *big.Int, *big.Int, error) {
	opts, err := r.client.transactOpts(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	var out []interface{}
	err = r.contract.Call(r.client.callOpts(ctx), &out, "addLiquidity",
		assetA, assetB, stable, amountADesired, amountBDesired, amountAMin, amountBMin, recipient, big.NewInt(deadline.Unix()))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("simulate addLiquidity: %w", err)
	}
	amountA := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	amountB := *abi.ConvertType(out[1], new(*big.Int)).(**big.Int)
	liquidity := *abi.ConvertType(out[2], new(*big.Int)).(**big.Int)

	tx, err := r.contract.Transact(opts, "addLiquidity",
		assetA, assetB, stable, amountADesired, amountBDesired, amountAMin, amountBMin, recipient, big.NewInt(deadline.Unix()))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("addLiquidity: %w", err)
	}
	if _, err := r.client.waitSuccess(ctx, tx); err != nil {
		return nil, nil, nil, err
	}
	return amountA, amountB, liquidity, nil
}

// RemoveLiquidity burns liquidity and reports the token amounts released.
func (r *Router) RemoveLiquidity(ctx context.Context, assetA, assetB common.Address, stable bool, liquidity, amountAMin, amountBMin *big.Int, recipient common.Address, deadline time.Time) (*big.Int, *big.Int, error) {
	opts, err := r.client.transactOpts(ctx)
	if err != nil {
		return nil, nil, err
	}

	var out []interface{}
	err = r.contract.Call(r.client.callOpts(ctx), &out, "removeLiquidity",
		assetA, assetB, stable, liquidity, amountAMin, amountBMin, recipient, big.NewInt(deadline.Unix()))
	if err != nil {
		return nil, nil, fmt.Errorf("simulate removeLiquidity: %w", err)
	}
	amountA := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	amountB := *abi.ConvertType(out[1], new(*big.Int)).(**big.Int)

	tx, err := r.contract.Transact(opts, "removeLiquidity",
		assetA, assetB, stable, liquidity, amountAMin, amountBMin, recipient, big.NewInt(deadline.Unix()))
	if err != nil {
		return nil, nil, fmt.Errorf("removeLiquidity: %w", err)
	}
	if _, err := r.client.waitSuccess(ctx, tx); err != nil {
		return nil, nil, err
	}
	return amountA, amountB, nil
}

// PoolFor resolves the pool address for a token pair.
func (r *Router) PoolFor(ctx context.Context, assetA, assetB common.Address, stable bool) (common.Address, error) {
	var out []interface{}
	err := r.contract.Call(r.client.callOpts(ctx), &out, "pairFor", assetA, assetB, stable)
	if err != nil {
		return common.Address{}, fmt.Errorf("pairFor: %w", err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}
