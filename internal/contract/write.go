package contract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// gasHeadroom pads the node's gas estimate by 20%.
const gasHeadroom = 12

// WriteDiscovery mints one discovery card to p.Recipient and waits for the
// receipt. The tokenURI must already be resolved on p.Asset.
func (c *Client) WriteDiscovery(ctx context.Context, p domain.MintParams) (domain.MintResult, error) {
	if c.signer == nil {
		return domain.MintResult{}, fmt.Errorf("contract: %w: no signing key configured", domain.ErrUnavailable)
	}
	if err := p.Validate(); err != nil {
		return domain.MintResult{}, err
	}

	a := p.Asset
	data, err := DiscoveryABI.Pack("mintDiscovery",
		common.HexToAddress(p.Recipient),
		common.HexToAddress(a.Address),
		big.NewInt(a.ChainID),
		a.Name,
		a.Symbol,
		a.AssetType.Code(),
		scoreUint(a.RarityScore),
		scoreUint(a.PredictionScore),
		a.CurrentValue.Int(),
		big.NewInt(max(a.YieldRate, 0)),
		a.TokenURI,
	)
	if err != nil {
		return domain.MintResult{}, fmt.Errorf("contract: pack mintDiscovery: %w", err)
	}

	tx, err := c.buildTx(ctx, data)
	if err != nil {
		return domain.MintResult{}, err
	}
	signed, err := c.signer.SignTx(tx)
	if err != nil {
		return domain.MintResult{}, fmt.Errorf("contract: sign: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return domain.MintResult{}, fmt.Errorf("contract: send: %w", err)
	}

	logger := c.logger.With(slog.String("tx", signed.Hash().Hex()), slog.String("asset", strings.ToLower(a.Address)))
	logger.Info("mint submitted")

	receipt, err := c.waitReceipt(ctx, signed.Hash())
	if err != nil {
		return domain.MintResult{}, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.MintResult{}, fmt.Errorf("contract: mint %s reverted in block %s", signed.Hash().Hex(), receipt.BlockNumber)
	}

	result := domain.MintResult{
		Asset:  strings.ToLower(a.Address),
		TxHash: signed.Hash().Hex(),
	}
	for _, lg := range receipt.Logs {
		if lg == nil || lg.Address != c.address {
			continue
		}
		if ev, ok := decodeDiscovered(*lg); ok {
			result.TokenID = ev.TokenID
			break
		}
	}
	logger.Info("mint confirmed", slog.String("token_id", result.TokenID.String()))
	return result, nil
}

func (c *Client) buildTx(ctx context.Context, data []byte) (*types.Transaction, error) {
	from := c.signer.Address()

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("contract: nonce: %w", err)
	}
	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("contract: gas tip: %w", err)
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("contract: head: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &c.address, Data: data})
	if err != nil {
		return nil, fmt.Errorf("contract: estimate gas: %w", err)
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(c.chainID),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas * gasHeadroom / 10,
		To:        &c.address,
		Data:      data,
	}), nil
}

func (c *Client) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(c.receiptPoll)
	defer ticker.Stop()
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("contract: receipt %s: %w", hash.Hex(), err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("contract: waiting for receipt %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// scoreUint rounds a [0,100] score to the integer stored on chain.
func scoreUint(v float64) *big.Int {
	return big.NewInt(int64(math.Round(max(v, 0))))
}
