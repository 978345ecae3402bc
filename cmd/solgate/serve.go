package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/solgate/adapters/events"
	"github.com/layer-3/solgate/adapters/solanarpc"
	"github.com/layer-3/solgate/adapters/store"
	"github.com/layer-3/solgate/adapters/tokenizer"
	"github.com/layer-3/solgate/ports"
	"github.com/layer-3/solgate/service"
	httptransport "github.com/layer-3/solgate/transport/http"
)

type serveCmd struct {
	Bind       string `help:"Address to listen on." env:"SOLGATE_BIND" default:":9000"`
	RedisURL   string `name:"redis-url" help:"Redis URL for nonces, revocations and events. Empty keeps state in memory." env:"REDIS_URL"`
	SigningKey string `help:"PEM file with the ECDSA P-256 key signing session tokens. A fresh key is generated when empty." env:"SOLGATE_SIGNING_KEY"`
	Balances   bool   `help:"Look up account balances through the Solana RPC endpoint." env:"SOLGATE_BALANCES"`

	Auth service.Config       `embed:"" prefix:"auth-"`
	HTTP httptransport.Config `embed:"" prefix:"http-"`
	RPC  solanarpc.Config     `embed:"" prefix:"rpc-"`
}

func (c *serveCmd) Run(ctx context.Context, logger watermill.LoggerAdapter) error {
	signKey, err := loadSigningKey(c.SigningKey)
	if err != nil {
		return err
	}
	if c.SigningKey == "" {
		logger.Info("Generated an ephemeral signing key, sessions end on restart", nil)
	}

	var (
		st       ports.Store
		eventPub ports.EventPublisher
	)
	if c.RedisURL != "" {
		opts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			logger,
		)
		if err != nil {
			return fmt.Errorf("failed to create Redis publisher: %w", err)
		}
		defer publisher.Close()

		st = store.NewRedisStore(redisClient)
		eventPub = events.NewWatermillPublisher(publisher)
	} else {
		memory := store.NewMemoryStore()
		defer memory.Close()

		// Events stay in process when there is no Redis to carry them
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, logger)
		defer pubSub.Close()

		st = memory
		eventPub = events.NewWatermillPublisher(pubSub)
	}

	var balances ports.BalanceSource
	if c.Balances {
		balances = solanarpc.New(c.RPC, logger)
	}

	authService := service.NewAuthService(c.Auth, tokenizer.NewJWTTokenizer(signKey), st, eventPub, balances, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := &http.Server{
		Addr:              c.Bind,
		Handler:           httptransport.SetupRouter(authService, c.HTTP, reg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("Listening", watermill.LogFields{"addr": c.Bind, "domain": c.Auth.Domain})
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadSigningKey(path string) (*ecdsa.PrivateKey, error) {
	if path == "" {
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}

	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signing key is %T, want ECDSA", parsed)
	}
	return key, nil
}
