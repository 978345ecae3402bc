package main

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/layer-3/solgate/adapters/solanarpc"
	"github.com/layer-3/solgate/core"
)

type relayCmd struct {
	WalletFlags `embed:""`

	RPC         solanarpc.Config `embed:"" prefix:"rpc-"`
	Transaction string           `arg:"" help:"Base64 encoded transaction to sign and broadcast."`
}

func (c *relayCmd) Run(ctx context.Context, logger watermill.LoggerAdapter) error {
	gate, _, err := c.gate(solanarpc.New(c.RPC, logger), logger)
	if err != nil {
		return err
	}

	outcome := gate.Relay(ctx, c.Transaction)
	switch outcome.Kind {
	case core.OutcomeSuccess:
		fmt.Printf("confirmed %s\n", outcome.Signature)
	case core.OutcomeWarning:
		fmt.Printf("warning: %s\nsignature %s\n", outcome.Message, outcome.Signature)
	default:
		return outcome.Err
	}
	return nil
}
