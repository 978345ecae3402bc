package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/layer-3/solgate"
	"github.com/layer-3/solgate/adapters/httpapi"
	"github.com/layer-3/solgate/adapters/solanarpc"
	"github.com/layer-3/solgate/core"
	"github.com/layer-3/solgate/wallet"
)

// WalletFlags select the local keypair used as wallet
type WalletFlags struct {
	Keypair    string        `help:"Path to a solana-keygen JSON key file." env:"SOLGATE_KEYPAIR" xor:"key"`
	SecretKey  string        `help:"Base58 encoded secret key." env:"SOLGATE_SECRET_KEY" xor:"key"`
	Server     string        `help:"Base URL of the sign-in server." env:"SOLGATE_SERVER" default:"http://localhost:9000"`
	Domain     string        `help:"Domain named in the sign-in message, defaults to the server host."`
	Statement  string        `help:"Consent statement in the sign-in message." default:"Sign in to SolPredict."`
	SignInWait time.Duration `help:"How long to wait for the sign-in to finish." default:"1m"`
}

func (f WalletFlags) wallet() (*wallet.Keypair, error) {
	switch {
	case f.Keypair != "":
		return wallet.KeypairFromFile(f.Keypair)
	case f.SecretKey != "":
		return wallet.KeypairFromBase58(f.SecretKey)
	}
	return nil, errors.New("one of --keypair or --secret-key is required")
}

func (f WalletFlags) origin() (core.Origin, error) {
	u, err := url.Parse(f.Server)
	if err != nil {
		return core.Origin{}, fmt.Errorf("invalid server URL: %w", err)
	}

	domain := f.Domain
	if domain == "" {
		domain = u.Hostname()
	}
	return core.Origin{Domain: domain, URI: f.Server}, nil
}

// gate builds a client gate for the flags' wallet. network may be nil when
// the command never relays.
func (f WalletFlags) gate(network *solanarpc.RPC, logger watermill.LoggerAdapter) (*solgate.Gate, *wallet.Keypair, error) {
	k, err := f.wallet()
	if err != nil {
		return nil, nil, err
	}
	origin, err := f.origin()
	if err != nil {
		return nil, nil, err
	}
	api, err := httpapi.New(f.Server, nil)
	if err != nil {
		return nil, nil, err
	}

	services := solgate.Services{Nonces: api, Verifier: api, Identity: api, Logout: api}
	if network != nil {
		services.Network = network
	}

	gate := solgate.New(origin, k, services, logger).WithStatement(f.Statement)
	return gate, k, nil
}

type loginCmd struct {
	WalletFlags `embed:""`

	Logout bool `help:"Sign out again after printing the identity."`
}

func (c *loginCmd) Run(ctx context.Context, logger watermill.LoggerAdapter) error {
	gate, k, err := c.gate(nil, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.SignInWait)
	defer cancel()

	logger.Info("Signing in", watermill.LogFields{"address": k.Address(), "server": c.Server})
	if err := gate.SignIn(ctx); err != nil {
		return err
	}

	session := gate.Refresh(ctx)
	if !session.Authenticated() {
		return fmt.Errorf("server does not recognise the session (status %s)", session.Status)
	}
	fmt.Printf("address:  %s\nbalance:  %s SOL\nexpires:  %s\n",
		session.Identity.Address,
		session.Identity.Balance.String(),
		session.Identity.SessionExpiresAt.Format(time.RFC3339),
	)

	if c.Logout {
		return gate.SignOut(ctx)
	}
	return nil
}
