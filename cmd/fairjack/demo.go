package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/fairjack/internal/chain"
	"github.com/lox/fairjack/internal/config"
	"github.com/lox/fairjack/internal/deck"
	"github.com/lox/fairjack/internal/game"
	"github.com/lox/fairjack/internal/identity"
)

// DemoCmd plays one game against a shuffled deck entirely in-process
type DemoCmd struct {
	Seed  *int64 `kong:"help='Shuffle seed (random if unset)'"`
	Wager uint64 `kong:"default='10',help='Opening wager'"`
	Debug bool   `kong:"help='Enable debug logging'"`
}

func (c *DemoCmd) Run() error {
	level := "warn"
	if c.Debug {
		level = "debug"
	}
	logger, err := setupLogger(level)
	if err != nil {
		return err
	}

	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
	}
	_, err = runDemo(os.Stdout, logger, deck.Shuffled(seed), c.Wager)
	return err
}

// runDemo has the house commit to seq, then plays the player's side with a
// basic strategy until the game settles, and finally reveals and verifies
// the sequence.
func runDemo(w io.Writer, logger *log.Logger, seq deck.Sequence, wager uint64) (game.View, error) {
	player := identity.FromSeed([]byte("demo-player"))
	house := identity.FromSeed([]byte("demo-house"))

	cfg := config.Default()
	cfg.Accounts = []config.AccountConfig{
		{Name: "player", Seed: "demo-player", Balance: 1000},
		{Name: "house", Seed: "demo-house", Balance: 1000},
	}
	n, err := newNode(cfg, logger, quartz.NewReal())
	if err != nil {
		return game.View{}, err
	}
	defer n.Close()

	match, err := n.lobby.Create(player.Identity(), house.Identity(), wager)
	if err != nil {
		return game.View{}, err
	}

	commit, err := submitSealed(n.chain, house, chain.Tx{Kind: chain.KindCommit, GameID: match.ID, Sequence: seq})
	if err != nil {
		return game.View{}, err
	}
	fmt.Fprintf(w, "house committed %s at height %d\n", game.HashSequence(seq), commit.Height)

	if _, err := submitSealed(n.chain, player, chain.Tx{Kind: chain.KindStart, GameID: match.ID, Match: &match, Sequence: seq}); err != nil {
		return game.View{}, err
	}

	view, err := n.engine.View(match.ID)
	if err != nil {
		return game.View{}, err
	}
	for nonce := uint64(1); !view.Outcome.Finished(); nonce++ {
		kind := chooseAction(view)
		fmt.Fprintf(w, "player %s on %d\n", kind, view.PlayerHand.Value)
		if _, err := submitSealed(n.chain, player, chain.Tx{Kind: kind, GameID: match.ID, Sequence: seq, Nonce: nonce}); err != nil {
			return game.View{}, err
		}
		if view, err = n.engine.View(match.ID); err != nil {
			return game.View{}, err
		}
	}

	if _, err := submitSealed(n.chain, house, chain.Tx{Kind: chain.KindVerify, GameID: match.ID, Sequence: seq}); err != nil {
		return view, fmt.Errorf("verify: %w", err)
	}
	if err := n.chain.Ledger().Verify(); err != nil {
		return view, err
	}

	fmt.Fprintln(w, renderView(view))
	fmt.Fprintf(w, "balances: player %d, house %d\n",
		n.funds.Balance(player.Identity()), n.funds.Balance(house.Identity()))
	return view, nil
}

// chooseAction is a simplified basic strategy: double on 10 or 11, hit
// below 17, otherwise stand.
func chooseAction(v game.View) chain.Kind {
	total := v.PlayerHand.Value
	switch {
	case len(v.PlayerHand.Cards) == 2 && !v.PlayerHand.Soft && (total == 10 || total == 11):
		return chain.KindDouble
	case total < 17:
		return chain.KindHit
	default:
		return chain.KindStand
	}
}

// submitSealed signs tx, seals it into a block and returns its receipt. A
// failed receipt is returned as an error.
func submitSealed(c *chain.Chain, key *identity.KeyPair, tx chain.Tx) (chain.Receipt, error) {
	if err := tx.Sign(key); err != nil {
		return chain.Receipt{}, err
	}
	done, err := c.Enqueue(tx)
	if err != nil {
		return chain.Receipt{}, err
	}
	if _, err := c.Seal(); err != nil {
		return chain.Receipt{}, err
	}
	r := <-done
	if !r.OK() {
		return r, fmt.Errorf("%s %s: %s", tx.Kind, tx.GameID, r.Err)
	}
	return r, nil
}
