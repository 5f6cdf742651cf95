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

const aggregatorABI = `[
  {"name":"latestRoundData","type":"function","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"roundId","type":"uint80"},
              {"name":"answer","type":"int256"},
              {"name":"startedAt","type":"uint256"},
              {"name":"updatedAt","type":"uint256"},
              {"name":"answeredInRound","type":"uint80"}]},
  {"name":"decimals","type":"function","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint8"}]}
]`

// targetDecimals is the price precision the vault works with.
const targetDecimals = 8

// ChainlinkOracle reads a Chainlink aggregator feed and normalises the
// answer to 8 implied decimals. The feed's own decimals are read once at
// construction; feeds do not change precision in place.
type ChainlinkOracle struct {
	client   *Client
	contract *bind.BoundContract
	scaleUp  *big.Int
	scaleDn  *big.Int
}

var _ market.PriceOracle = (*ChainlinkOracle)(nil)

// NewChainlinkOracle binds the aggregator at address and probes its
// decimals.
func NewChainlinkOracle(ctx context.Context, client *Client, address common.Address) (*ChainlinkOracle, error) {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABI))
	if err != nil {
		return nil, fmt.Errorf("parse aggregator abi: %w", err)
	}
	o := &ChainlinkOracle{
		client:   client,
		contract: bind.NewBoundContract(address, parsed, client.eth, client.eth, client.eth),
	}

	var out []interface{}
	if err := o.contract.Call(o.client.callOpts(ctx), &out, "decimals"); err != nil {
		return nil, fmt.Errorf("read feed decimals: %w", err)
	}
	decimals := *abi.ConvertType(out[0], new(uint8)).(*uint8)

	switch {
	case decimals < targetDecimals:
		o.scaleUp = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(targetDecimals-decimals)), nil)
	case decimals > targetDecimals:
		o.scaleDn = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-targetDecimals)), nil)
	}
	return o, nil
}

// LatestPrice returns the most recent feed answer.
func (o *ChainlinkOracle) LatestPrice(ctx context.Context) (market.PricePoint, error) {
	var out []interface{}
	if err := o.contract.Call(o.client.callOpts(ctx), &out, "latestRoundData"); err != nil {
		return market.PricePoint{}, fmt.Errorf("latestRoundData: %w", err)
	}
	answer := *abi.ConvertType(out[1], new(*big.Int)).(**big.Int)
	updatedAt := *abi.ConvertType(out[3], new(*big.Int)).(**big.Int)

	if answer == nil || answer.Sign() <= 0 {
		return market.PricePoint{}, fmt.Errorf("feed returned non-positive answer")
	}

	price := new(big.Int).Set(answer)
	if o.scaleUp != nil {
		price.Mul(price, o.scaleUp)
	}
	if o.scaleDn != nil {
		price.Quo(price, o.scaleDn)
	}
	return market.PricePoint{
		Price:     price,
		UpdatedAt: time.Unix(updatedAt.Int64(), 0).UTC(),
	}, nil
}
