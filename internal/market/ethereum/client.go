package ethereum

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Client bundles the RPC connection and the signing identity used by the
// venue-side adapters.
type Client struct {
	rpcClient *gethrpc.Client
	eth       *ethclient.Client
	signer    *bind.TransactOpts
}

// Dial connects to an EVM RPC endpoint. The private key, when provided as a
// hex string, becomes the transaction signer; without it the client is
// read-only and mutating calls fail.
func Dial(ctx context.Context, rpcURL, privateKeyHex string) (*Client, error) {
	rpcURL = strings.TrimSpace(rpcURL)
	if rpcURL == "" {
		return nil, errors.New("rpc url is required")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc endpoint: %w", err)
	}
	eth := ethclient.NewClient(rpcClient)

	c := &Client{rpcClient: rpcClient, eth: eth}

	if key := strings.TrimSpace(privateKeyHex); key != "" {
		privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(key, "0x"))
		if err != nil {
			rpcClient.Close()
			return nil, fmt.Errorf("parse signing key: %w", err)
		}
		chainID, err := eth.ChainID(ctx)
		if err != nil {
			rpcClient.Close()
			return nil, fmt.Errorf("read chain id: %w", err)
		}
		signer, err := bind.NewKeyedTransactorWithChainID(privateKey, chainID)
		if err != nil {
			rpcClient.Close()
			return nil, fmt.Errorf("build transactor: %w", err)
		}
		c.signer = signer
	}
	return c, nil
}

// SignerAddress returns the address transactions are sent from.
func (c *Client) SignerAddress() common.Address {
	if c.signer == nil {
		return common.Address{}
	}
	return c.signer.From
}

// Close releases the underlying connection.
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *Client) callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx}
}

// transactOpts clones the signer with the call context attached. The clone
// keeps concurrent transactions from racing on the shared Context field.
func (c *Client) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if c.signer == nil {
		return nil, errors.New("client has no signing key")
	}
	opts := *c.signer
	opts.Context = ctx
	return &opts, nil
}

// waitSuccess blocks until the transaction is mined and fails on revert.
func (c *Client) waitSuccess(ctx context.Context, tx *coretypes.Transaction) (*coretypes.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for transaction %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}
	return receipt, nil
}
