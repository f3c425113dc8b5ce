// Package escrow is an in-memory funds ledger that holds both parties'
// stakes while a game is in play.
package escrow

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/fairjack/internal/game"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyActive     = errors.New("identity already has an active game")
	ErrUnknownPot        = errors.New("no pot for game")
)

type pot struct {
	parties []game.Identity
	stake   uint64 // per party
	total   uint64
}

// Ledger tracks balances, the active game per identity and one pot per game.
type Ledger struct {
	mu       sync.Mutex
	balances map[game.Identity]uint64
	active   map[game.Identity]string
	pots     map[string]*pot
	logger   *log.Logger
}

// NewLedger creates an empty ledger.
func NewLedger(logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Ledger{
		balances: make(map[game.Identity]uint64),
		active:   make(map[game.Identity]string),
		pots:     make(map[string]*pot),
		logger:   logger.WithPrefix("escrow"),
	}
}

// Deposit credits an identity.
func (l *Ledger) Deposit(id game.Identity, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[id] += amount
}

// Balance returns the free balance of an identity.
func (l *Ledger) Balance(id game.Identity) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[id]
}

// ActiveGame returns the game an identity is playing, or "".
func (l *Ledger) ActiveGame(id game.Identity) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active[id]
}

// Pot returns the amount held for a game.
func (l *Ledger) Pot(gameID string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.pots[gameID]; ok {
		return p.total
	}
	return 0
}

// SetActiveGame implements game.Escrow. Setting a game registers the
// identity as a party to that game's pot.
func (l *Ledger) SetActiveGame(player game.Identity, gameID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if gameID == "" {
		// An unfunded pot is dropped with its last party.
		if p, ok := l.pots[l.active[player]]; ok && p.stake == 0 {
			p.parties = slices.DeleteFunc(p.parties, func(id game.Identity) bool { return id == player })
			if len(p.parties) == 0 {
				delete(l.pots, l.active[player])
			}
		}
		delete(l.active, player)
		return nil
	}
	if current, ok := l.active[player]; ok && current != gameID {
		return fmt.Errorf("%s playing %s: %w", player.Short(), current, ErrAlreadyActive)
	}

	l.active[player] = gameID
	p, ok := l.pots[gameID]
	if !ok {
		p = &pot{}
		l.pots[gameID] = p
	}
	for _, existing := range p.parties {
		if existing == player {
			return nil
		}
	}
	p.parties = append(p.parties, player)
	return nil
}

// Reserve implements game.Escrow. Each party pays the difference between
// amount and its current stake into the pot.
func (l *Ledger) Reserve(gameID string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.pots[gameID]
	if !ok || len(p.parties) != 2 {
		return fmt.Errorf("reserve %s: %w", gameID, ErrUnknownPot)
	}
	if amount < p.stake {
		return fmt.Errorf("reserve %s: stake cannot shrink from %d to %d", gameID, p.stake, amount)
	}

	delta := amount - p.stake
	for _, id := range p.parties {
		if l.balances[id] < delta {
			return fmt.Errorf("%s needs %d, has %d: %w", id.Short(), delta, l.balances[id], ErrInsufficientFunds)
		}
	}
	for _, id := range p.parties {
		l.balances[id] -= delta
	}
	p.stake = amount
	p.total += delta * uint64(len(p.parties))

	l.logger.Debug("Stake reserved", "game", gameID, "stake", amount, "pot", p.total)
	return nil
}

// Release implements game.Escrow. Each party is refunded the difference
// between its current stake and amount.
func (l *Ledger) Release(gameID string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.pots[gameID]
	if !ok {
		return fmt.Errorf("release %s: %w", gameID, ErrUnknownPot)
	}
	if amount > p.stake {
		return fmt.Errorf("release %s: stake cannot grow from %d to %d", gameID, p.stake, amount)
	}

	delta := p.stake - amount
	for _, id := range p.parties {
		l.balances[id] += delta
	}
	p.stake = amount
	p.total -= delta * uint64(len(p.parties))

	l.logger.Debug("Stake released", "game", gameID, "stake", amount, "pot", p.total)
	return nil
}

// AcquireFunds implements game.Escrow. The pot is split by units and
// closed; any rounding remainder goes to the winner.
func (l *Ledger) AcquireFunds(gameID string, winner, loser game.Identity, winnerUnits, loserUnits, totalUnits uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.pots[gameID]
	if !ok {
		return fmt.Errorf("acquire %s: %w", gameID, ErrUnknownPot)
	}
	if totalUnits == 0 || winnerUnits+loserUnits != totalUnits {
		return fmt.Errorf("acquire %s: invalid split %d+%d of %d", gameID, winnerUnits, loserUnits, totalUnits)
	}
	if !p.has(winner) || !p.has(loser) {
		return fmt.Errorf("acquire %s: payees are not parties to the game", gameID)
	}

	loserShare := p.total * loserUnits / totalUnits
	winnerShare := p.total - loserShare
	l.balances[winner] += winnerShare
	l.balances[loser] += loserShare
	delete(l.pots, gameID)

	l.logger.Info("Pot disbursed", "game", gameID,
		"winner", winner.Short(), "winner_share", winnerShare,
		"loser", loser.Short(), "loser_share", loserShare)
	return nil
}

func (p *pot) has(id game.Identity) bool {
	for _, party := range p.parties {
		if party == id {
			return true
		}
	}
	return false
}
