package chain

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/lox/fairjack/internal/game"
	"github.com/lox/fairjack/internal/lobby"
)

// ErrUnauthorized is returned when the sender of a start transaction is
// not a participant of the match, or is the player starting a game whose
// sequence the dealer has not committed to.
var ErrUnauthorized = errors.New("sender is not a participant")

// Executor applies a verified transaction. It returns the game id the
// transaction touched, which may be newly assigned.
type Executor interface {
	Execute(tx Tx) (string, error)
}

// GameExecutor dispatches transactions to a game engine. When a start
// transaction carries a match without an id, the lobby assigns one.
//
// The dealer supplies the deck: a start signed by the player is only
// accepted when the dealer committed the sequence beforehand.
type GameExecutor struct {
	engine *game.Engine
	lobby  *lobby.Lobby
	logger *log.Logger

	// committers records who sent each successful commit. Execute is only
	// called from the sealing goroutine.
	committers map[string]game.Identity
}

// NewGameExecutor creates an executor. The lobby may be nil, in which case
// start transactions must name their game id.
func NewGameExecutor(engine *game.Engine, l *lobby.Lobby, logger *log.Logger) *GameExecutor {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &GameExecutor{
		engine:     engine,
		lobby:      l,
		logger:     logger.WithPrefix("executor"),
		committers: make(map[string]game.Identity),
	}
}

func (x *GameExecutor) Execute(tx Tx) (string, error) {
	switch tx.Kind {
	case KindCommit:
		if _, err := x.engine.Commit(tx.GameID, tx.Sequence); err != nil {
			return tx.GameID, err
		}
		x.committers[tx.GameID] = tx.Sender
		return tx.GameID, nil
	case KindStart:
		return x.start(tx)
	case KindHit:
		return tx.GameID, x.engine.Hit(tx.GameID, tx.Sender, tx.Sequence)
	case KindStand:
		return tx.GameID, x.engine.Stand(tx.GameID, tx.Sender, tx.Sequence)
	case KindDouble:
		return tx.GameID, x.engine.DoubleDown(tx.GameID, tx.Sender, tx.Sequence)
	case KindVerify:
		return tx.GameID, x.engine.VerifySequence(tx.GameID, tx.Sequence)
	default:
		return tx.GameID, fmt.Errorf("%w: unknown kind %q", ErrMalformedTx, tx.Kind)
	}
}

func (x *GameExecutor) start(tx Tx) (string, error) {
	match := *tx.Match
	if match.ID == "" {
		match.ID = tx.GameID
	}
	if tx.Sender != match.Player() && tx.Sender != match.Dealer() {
		return match.ID, fmt.Errorf("start %s by %s: %w", match.ID, tx.Sender.Short(), ErrUnauthorized)
	}
	if tx.Sender != match.Dealer() && (match.ID == "" || x.committers[match.ID] != match.Dealer()) {
		return match.ID, fmt.Errorf("start %s by the player needs a sequence committed by the dealer: %w", match.ID, ErrUnauthorized)
	}

	fromLobby := false
	if match.ID == "" {
		if x.lobby == nil {
			return "", fmt.Errorf("start without game id: %w", game.ErrInvalidGameID)
		}
		m, err := x.lobby.Create(match.Player(), match.Dealer(), match.Wager)
		if err != nil {
			return "", fmt.Errorf("%w: %v", game.ErrIllegalAction, err)
		}
		match = m
		fromLobby = true
	}

	if err := x.engine.Start(match, tx.Sequence); err != nil {
		if fromLobby {
			if lerr := x.lobby.OnGameEnd(match.ID, false); lerr != nil {
				x.logger.Error("Failed to release match", "game", match.ID, "error", lerr)
			}
		}
		return match.ID, err
	}
	return match.ID, nil
}
