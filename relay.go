package solgate

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/layer-3/solgate/core"
	"github.com/layer-3/solgate/internal/txwire"
	"github.com/layer-3/solgate/ports"
	"github.com/layer-3/solgate/wallet"
)

// Relayer signs server-built transactions with the wallet and broadcasts them
type Relayer struct {
	adapter *wallet.Adapter
	network ports.Broadcaster
	logger  watermill.LoggerAdapter
}

// NewRelayer creates a new relayer
func NewRelayer(adapter *wallet.Adapter, network ports.Broadcaster, logger watermill.LoggerAdapter) *Relayer {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	return &Relayer{
		adapter: adapter,
		network: network,
		logger:  logger.With(watermill.LogFields{"component": "relayer"}),
	}
}

// Relay decodes, signs, broadcasts and confirms a base64 transaction. It never
// fails outright: every problem is reported through the outcome, together with
// the transaction signature whenever the network assigned one.
func (r *Relayer) Relay(ctx context.Context, transactionBase64 string) core.RelayOutcome {
	tx, encoding, err := txwire.DecodeBase64(transactionBase64)
	if err != nil {
		return r.failed(err, "")
	}

	if !r.adapter.CanSignTransactions() {
		return r.failed(core.ErrUnsignableWallet, "")
	}
	if err := r.adapter.Connect(ctx); err != nil {
		return r.failed(fmt.Errorf("%w: %w", core.ErrUnsignableWallet, err), "")
	}

	signed, err := r.adapter.SignTransaction(ctx, tx)
	if err != nil {
		return r.failed(fmt.Errorf("wallet signing failed: %w", err), "")
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return r.failed(fmt.Errorf("failed to encode transaction: %w", err), "")
	}

	signature, err := r.network.SendTransaction(ctx, raw)
	if err != nil {
		return r.classify(fmt.Errorf("%w: %w", core.ErrBroadcastFailed, err), signature)
	}

	recency, err := r.network.LatestBlockhash(ctx)
	if err != nil {
		return r.classify(fmt.Errorf("%w: %w", core.ErrConfirmationFailed, err), signature)
	}
	if err := r.network.Confirm(ctx, signature, recency); err != nil {
		return r.classify(fmt.Errorf("%w: %w", core.ErrConfirmationFailed, err), signature)
	}

	r.logger.Info("Transaction confirmed", watermill.LogFields{
		"signature": signature,
		"encoding":  string(encoding),
	})

	return core.RelayOutcome{
		Kind:      core.OutcomeSuccess,
		Signature: signature,
	}
}

// classify turns a broadcast or confirmation failure into a warning when the
// network already processed the transaction, and into an error otherwise
func (r *Relayer) classify(err error, signature string) core.RelayOutcome {
	if IsAlreadyProcessedError(err) {
		r.logger.Info("Transaction already processed", watermill.LogFields{
			"signature": signature,
			"error":     err.Error(),
		})
		return core.RelayOutcome{
			Kind:      core.OutcomeWarning,
			Signature: signature,
			Message:   err.Error(),
			Err:       err,
		}
	}

	return r.failed(err, signature)
}

func (r *Relayer) failed(err error, signature string) core.RelayOutcome {
	r.logger.Error("Relay failed", err, watermill.LogFields{"signature": signature})

	return core.RelayOutcome{
		Kind:      core.OutcomeError,
		Signature: signature,
		Message:   err.Error(),
		Err:       err,
	}
}
