package main

import (
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/lox/fairjack/internal/config"
	"github.com/lox/fairjack/internal/server"
)

// ServeCmd runs the chain and HTTP API
type ServeCmd struct {
	Config string `kong:"default='fairjack.hcl',env='FAIRJACK_CONFIG',help='Path to HCL configuration'"`
	Addr   string `kong:"env='FAIRJACK_ADDR',help='Override the listen address'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
}

func (c *ServeCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if c.Debug {
		cfg.Server.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := setupLogger(cfg.Server.LogLevel)
	if err != nil {
		return err
	}

	n, err := newNode(cfg, logger, quartz.NewReal())
	if err != nil {
		return err
	}
	defer func() {
		if err := n.Close(); err != nil {
			logger.Error("Failed to close store", "error", err)
		}
	}()

	addr := cfg.Address()
	if c.Addr != "" {
		addr = c.Addr
	}
	api := server.New(n.chain, n.engine, logger)

	logger.Info("Starting fairjack",
		"address", addr,
		"store", cfg.Store.Driver,
		"block_interval", cfg.BlockInterval(),
		"accounts", len(cfg.Accounts))

	ctx, cancel := signalContext(logger)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.chain.Run(ctx) })
	g.Go(func() error { return api.Broadcast(ctx) })
	g.Go(func() error { return api.ListenAndServe(ctx, addr) })
	return g.Wait()
}
