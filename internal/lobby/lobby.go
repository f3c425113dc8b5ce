// Package lobby pairs a player with a dealer, issues the game id and tracks
// which matches are still open.
package lobby

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/fairjack/internal/game"
	"github.com/lox/fairjack/internal/gameid"
)

var (
	ErrUnknownMatch = errors.New("unknown match")
	ErrBusy         = errors.New("identity already in an open match")
)

// Entry is a match and its lifecycle.
type Entry struct {
	Match     game.Match `json:"match"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   time.Time  `json:"ended_at,omitzero"`
	Finished  bool       `json:"finished"`
}

// Lobby is an in-memory match registry. It implements game.Lobby.
type Lobby struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	open    map[game.Identity]string
	ids     *gameid.Generator
	clock   quartz.Clock
	logger  *log.Logger
}

// Option configures a Lobby.
type Option func(*Lobby)

// WithClock sets the clock used for timestamps.
func WithClock(c quartz.Clock) Option {
	return func(l *Lobby) { l.clock = c }
}

// WithIDGenerator sets the game id source.
func WithIDGenerator(g *gameid.Generator) Option {
	return func(l *Lobby) { l.ids = g }
}

// New creates an empty lobby.
func New(logger *log.Logger, opts ...Option) *Lobby {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	l := &Lobby{
		entries: make(map[string]*Entry),
		open:    make(map[game.Identity]string),
		ids:     gameid.NewGenerator(nil),
		clock:   quartz.NewReal(),
		logger:  logger.WithPrefix("lobby"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create opens a match between player and dealer with a fresh game id.
func (l *Lobby) Create(player, dealer game.Identity, wager uint64) (game.Match, error) {
	if player == "" || dealer == "" || player == dealer {
		return game.Match{}, fmt.Errorf("match needs two distinct participants")
	}
	if wager == 0 {
		return game.Match{}, fmt.Errorf("wager must be positive")
	}

	id, err := l.ids.Generate()
	if err != nil {
		return game.Match{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range []game.Identity{player, dealer} {
		if current, ok := l.open[p]; ok {
			return game.Match{}, fmt.Errorf("%s in %s: %w", p.Short(), current, ErrBusy)
		}
	}

	m := game.Match{ID: id, Players: [2]game.Identity{player, dealer}, Wager: wager}
	l.entries[id] = &Entry{Match: m, CreatedAt: l.clock.Now()}
	l.open[player] = id
	l.open[dealer] = id

	l.logger.Info("Match created", "game", id, "player", player.Short(), "dealer", dealer.Short(), "wager", wager)
	return m, nil
}

// Get returns a copy of the entry for id.
func (l *Lobby) Get(id string) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Open returns the open match id for an identity, if any.
func (l *Lobby) Open(p game.Identity) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.open[p]
	return id, ok
}

// OnGameEnd implements game.Lobby. Ending a match frees both participants.
func (l *Lobby) OnGameEnd(gameID string, finished bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[gameID]
	if !ok {
		return fmt.Errorf("%s: %w", gameID, ErrUnknownMatch)
	}
	e.Finished = finished
	e.EndedAt = l.clock.Now()
	for _, p := range e.Match.Players {
		if l.open[p] == gameID {
			delete(l.open, p)
		}
	}

	l.logger.Debug("Match ended", "game", gameID, "finished", finished)
	return nil
}
