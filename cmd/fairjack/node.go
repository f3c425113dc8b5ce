package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/fairjack/internal/chain"
	"github.com/lox/fairjack/internal/config"
	"github.com/lox/fairjack/internal/escrow"
	"github.com/lox/fairjack/internal/game"
	"github.com/lox/fairjack/internal/lobby"
	"github.com/lox/fairjack/internal/store"
)

// node wires the engine to its collaborators and the chain.
type node struct {
	store  store.Store
	funds  *escrow.Ledger
	lobby  *lobby.Lobby
	engine *game.Engine
	chain  *chain.Chain
}

func newNode(cfg *config.Config, logger *log.Logger, clock quartz.Clock) (*node, error) {
	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	n := &node{
		store: st,
		funds: escrow.NewLedger(logger),
		lobby: lobby.New(logger, lobby.WithClock(clock)),
	}
	for _, a := range cfg.Accounts {
		id, err := a.ResolveIdentity()
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("account %s: %w", a.Name, err)
		}
		n.funds.Deposit(id, a.Balance)
		logger.Debug("Account funded", "account", a.Name, "identity", id.Short(), "balance", a.Balance)
	}

	n.engine = game.NewEngine(st, n.funds, n.lobby, logger,
		game.WithHeightSource(game.HeightFunc(func() uint64 { return n.chain.Height() })))
	n.chain = chain.New(chain.NewGameExecutor(n.engine, n.lobby, logger), logger,
		chain.WithClock(clock),
		chain.WithBlockInterval(cfg.BlockInterval()),
		chain.WithMaxBlockTxs(cfg.Chain.MaxBlockTxs))
	return n, nil
}

func (n *node) Close() error {
	return n.store.Close()
}
