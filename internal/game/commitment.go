package game

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/lox/fairjack/internal/deck"
)

// HashSequence commits to the ordered sequence: SHA-256 over the big-endian
// uint16 encoding (suit*100+rank) of every card.
func HashSequence(seq deck.Sequence) Hash {
	h := sha256.New()
	var buf [2]byte
	for _, v := range seq.Encode() {
		binary.BigEndian.PutUint16(buf[:], v)
		h.Write(buf[:])
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Commit binds the sequence to the game id before the game starts. It fails
// with ErrIllegalAction if the id already has a commitment or a game.
func (e *Engine) Commit(gameID string, seq deck.Sequence) (Hash, error) {
	if gameID == "" {
		return Hash{}, fmt.Errorf("empty game id: %w", ErrInvalidGameID)
	}
	if err := seq.Validate(); err != nil {
		return Hash{}, fmt.Errorf("%w: %v", ErrIllegalAction, err)
	}
	if _, _, err := e.store.LoadGame(gameID); err == nil {
		return Hash{}, fmt.Errorf("game %s already started: %w", gameID, ErrIllegalAction)
	} else if !errors.Is(err, ErrRecordNotFound) {
		return Hash{}, err
	}
	if _, err := e.store.LoadCommitment(gameID); err == nil {
		return Hash{}, fmt.Errorf("game %s already committed: %w", gameID, ErrIllegalAction)
	} else if !errors.Is(err, ErrRecordNotFound) {
		return Hash{}, err
	}

	commitment := HashSequence(seq)
	if err := e.store.SaveCommitment(gameID, commitment); err != nil {
		return Hash{}, fmt.Errorf("save commitment: %w", err)
	}
	e.logger.Info("Sequence committed", "game", gameID, "commitment", commitment, "cards", len(seq))
	return commitment, nil
}

// VerifySequence audits a finished game against the revealed sequence. The
// sequence must hash to the stored commitment, and every card dealt during
// the game must equal the card at the position it was drawn from.
func (e *Engine) VerifySequence(gameID string, revealed deck.Sequence) error {
	info, hand, err := e.load(gameID)
	if err != nil {
		return err
	}
	if !info.Outcome.Finished() {
		return fmt.Errorf("game %s: %w", gameID, ErrGameNotFinished)
	}

	if got := HashSequence(revealed); got != hand.SequenceCommitment {
		e.logger.Warn("Commitment mismatch", "game", gameID, "want", hand.SequenceCommitment, "got", got)
		return fmt.Errorf("game %s: %w", gameID, ErrHashMismatch)
	}

	drawn := hand.drawn()
	if uint64(len(drawn)) != hand.Cursor || hand.Cursor > uint64(len(revealed)) {
		return fmt.Errorf("game %s: cursor %d inconsistent with %d dealt cards: %w",
			gameID, hand.Cursor, len(drawn), ErrHashMismatch)
	}
	for i, c := range drawn {
		if revealed[i] != c {
			return fmt.Errorf("game %s: card %d dealt as %s, revealed as %s: %w",
				gameID, i, c, revealed[i], ErrHashMismatch)
		}
	}
	return nil
}
