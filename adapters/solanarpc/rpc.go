// Package solanarpc broadcasts transactions and reads balances through a
// Solana JSON-RPC node.
package solanarpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"

	"github.com/layer-3/solgate"
	"github.com/layer-3/solgate/core"
	"github.com/layer-3/solgate/internal/txwire"
	"github.com/layer-3/solgate/ports"
)

// lamportsExp converts lamports to SOL
const lamportsExp = -9

// ErrBlockhashExpired is returned by Confirm when the network moved past the
// transaction's last valid block height without confirming it
var ErrBlockhashExpired = errors.New("blockhash expired before confirmation")

// Config controls how the RPC client confirms transactions
type Config struct {
	Endpoint   string             `help:"Solana JSON-RPC endpoint." env:"SOLGATE_RPC" default:"https://api.devnet.solana.com"`
	Commitment rpc.CommitmentType `help:"Commitment level awaited on confirmation." env:"SOLGATE_COMMITMENT" default:"confirmed"`
	PollMin    time.Duration      `help:"Initial confirmation poll interval." default:"250ms"`
	PollMax    time.Duration      `help:"Maximum confirmation poll interval." default:"2s"`
}

// RPC implements Broadcaster and BalanceSource over a Solana node
type RPC struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
	pollMin    time.Duration
	pollMax    time.Duration
	logger     watermill.LoggerAdapter
}

var (
	_ ports.Broadcaster   = (*RPC)(nil)
	_ ports.BalanceSource = (*RPC)(nil)
)

// New creates an RPC adapter for cfg.Endpoint
func New(cfg Config, logger watermill.LoggerAdapter) *RPC {
	return NewWithClient(rpc.New(cfg.Endpoint), cfg, logger)
}

// NewWithClient wraps an existing rpc client
func NewWithClient(client *rpc.Client, cfg Config, logger watermill.LoggerAdapter) *RPC {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	if cfg.PollMin <= 0 {
		cfg.PollMin = 250 * time.Millisecond
	}
	if cfg.PollMax < cfg.PollMin {
		cfg.PollMax = cfg.PollMin
	}

	return &RPC{
		client:     client,
		commitment: cfg.Commitment,
		pollMin:    cfg.PollMin,
		pollMax:    cfg.PollMax,
		logger:     logger.With(watermill.LogFields{"component": "solana_rpc"}),
	}
}

// SendTransaction submits a signed transaction with preflight checks enabled.
// When the node rejects it as already processed the transaction's own
// signature is still returned, since the network holds it under that
// signature. Other failures carry no signature.
func (r *RPC) SendTransaction(ctx context.Context, raw []byte) (string, error) {
	sig, err := r.client.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: r.commitment,
	})
	if err != nil {
		if solgate.IsAlreadyProcessedError(err) {
			return localSignature(raw), err
		}
		return "", err
	}

	return sig.String(), nil
}

// LatestBlockhash returns the recency context confirmation is measured against
func (r *RPC) LatestBlockhash(ctx context.Context) (core.BlockhashContext, error) {
	res, err := r.client.GetLatestBlockhash(ctx, r.commitment)
	if err != nil {
		return core.BlockhashContext{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	if res == nil || res.Value == nil {
		return core.BlockhashContext{}, errors.New("empty latest blockhash response")
	}

	return core.BlockhashContext{
		Blockhash:            res.Value.Blockhash.String(),
		LastValidBlockHeight: res.Value.LastValidBlockHeight,
	}, nil
}

// Confirm polls the signature status until the transaction reaches the
// configured commitment, fails on chain, or its blockhash expires
func (r *RPC) Confirm(ctx context.Context, signature string, recency core.BlockhashContext) error {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	b := &backoff.Backoff{
		Min:    r.pollMin,
		Max:    r.pollMax,
		Factor: 1.5,
		Jitter: true,
	}

	for {
		done, err := r.checkStatus(ctx, sig)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if recency.LastValidBlockHeight > 0 {
			height, err := r.client.GetBlockHeight(ctx, r.commitment)
			if err != nil {
				r.logger.Debug("Block height lookup failed", watermill.LogFields{"error": err.Error()})
			} else if height > recency.LastValidBlockHeight {
				return ErrBlockhashExpired
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
}

// checkStatus reports whether sig reached the configured commitment. Lookup
// failures are treated as "not yet" and polled again.
func (r *RPC) checkStatus(ctx context.Context, sig solana.Signature) (bool, error) {
	res, err := r.client.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		r.logger.Debug("Signature status lookup failed", watermill.LogFields{
			"signature": sig.String(),
			"error":     err.Error(),
		})
		return false, nil
	}
	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return false, nil
	}

	status := res.Value[0]
	if status.Err != nil {
		return false, fmt.Errorf("transaction failed: %v", status.Err)
	}

	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		return true, nil
	case rpc.ConfirmationStatusConfirmed:
		return r.commitment != rpc.CommitmentFinalized, nil
	case rpc.ConfirmationStatusProcessed:
		return r.commitment == rpc.CommitmentProcessed, nil
	}

	return false, nil
}

// Balance returns the account balance in SOL
func (r *RPC) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	account, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid address %q: %w", address, err)
	}

	res, err := r.client.GetBalance(ctx, account, r.commitment)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}

	return decimal.New(int64(res.Value), lamportsExp), nil
}

func localSignature(raw []byte) string {
	tx, _, err := txwire.Decode(raw)
	if err != nil || len(tx.Signatures) == 0 {
		return ""
	}

	sig := tx.Signatures[0]
	if sig == (solana.Signature{}) {
		return ""
	}
	return sig.String()
}
