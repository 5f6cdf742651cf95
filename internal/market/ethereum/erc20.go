package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"AegisVault/internal/market"
)

const erc20ABI = `[
  {"name":"transfer","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"name":"transferFrom","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"name":"approve","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"name":"balanceOf","type":"function","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]}
]`

// ERC20 adapts a standard token contract to market.Token. Every mutating
// call waits for its receipt, so a returned nil error means the transfer is
// final on chain.
type ERC20 struct {
	client   *Client
	address  common.Address
	contract *bind.BoundContract
}

var _ market.Token = (*ERC20)(nil)

// NewERC20 binds the token contract at address.
func NewERC20(client *Client, address common.Address) (*ERC20, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &ERC20{
		client:   client,
		address:  address,
		contract: bind.NewBoundContract(address, parsed, client.eth, client.eth, client.eth),
	}, nil
}

// Address returns the token contract address.
func (t *ERC20) Address() common.Address {
	return t.address
}

func (t *ERC20) Transfer(ctx context.Context, to common.Address, amount *big.Int) error {
	return t.transact(ctx, "transfer", to, amount)
}

func (t *ERC20) TransferFrom(ctx context.Context, from, to common.Address, amount *big.Int) error {
	return t.transact(ctx, "transferFrom", from, to, amount)
}

func (t *ERC20) Approve(ctx context.Context, spender common.Address, amount *big.Int) error {
	return t.transact(ctx, "approve", spender, amount)
}

func (t *ERC20) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	var out []interface{}
	if err := t.contract.Call(t.client.callOpts(ctx), &out, "balanceOf", account); err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (t *ERC20) transact(ctx context.Context, method string, args ...interface{}) error {
	opts, err := t.client.transactOpts(ctx)
	if err != nil {
		return err
	}
	tx, err := t.contract.Transact(opts, method, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	_, err = t.client.waitSuccess(ctx, tx)
	return err
}
