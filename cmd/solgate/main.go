package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/alecthomas/kong"
)

var cli struct {
	Debug bool `help:"Enable debug logging." env:"SOLGATE_DEBUG"`
	Trace bool `help:"Enable trace logging." env:"SOLGATE_TRACE"`

	Serve serveCmd `cmd:"" help:"Run the sign-in server."`
	Login loginCmd `cmd:"" help:"Sign in to a running server with a local keypair."`
	Relay relayCmd `cmd:"" help:"Sign and broadcast a base64 transaction with a local keypair."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Description(`solgate - Solana sign-in and transaction relay`),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := watermill.NewStdLogger(cli.Debug, cli.Trace)
	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.BindTo(logger, (*watermill.LoggerAdapter)(nil))

	err := kctx.Run()
	kctx.FatalIfErrorf(err)
}
