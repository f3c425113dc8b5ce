package chain

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lox/fairjack/internal/deck"
	"github.com/lox/fairjack/internal/game"
	"github.com/lox/fairjack/internal/identity"
)

// Kind names the engine operation a transaction invokes.
type Kind string

const (
	KindCommit Kind = "commit"
	KindStart  Kind = "start"
	KindHit    Kind = "hit"
	KindStand  Kind = "stand"
	KindDouble Kind = "double"
	KindVerify Kind = "verify"
)

var (
	ErrMalformedTx = errors.New("malformed transaction")
	ErrDuplicateTx = errors.New("duplicate transaction")
)

// Tx is a signed request to apply one engine operation. Sender signs the
// canonical JSON encoding of every other field; Nonce distinguishes
// otherwise identical actions such as two consecutive hits.
type Tx struct {
	Kind      Kind          `json:"kind"`
	GameID    string        `json:"game_id,omitempty"`
	Sender    game.Identity `json:"sender"`
	Match     *game.Match   `json:"match,omitempty"`
	Sequence  deck.Sequence `json:"sequence,omitempty"`
	Nonce     uint64        `json:"nonce,omitempty"`
	Signature []byte        `json:"signature,omitempty"`
}

// SigningBytes returns the bytes covered by the signature.
func (t Tx) SigningBytes() ([]byte, error) {
	t.Signature = nil
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode tx: %w", err)
	}
	return b, nil
}

// Hash identifies the transaction independently of its signature, so a
// re-signed copy of the same action is still a duplicate.
func (t Tx) Hash() (game.Hash, error) {
	b, err := t.SigningBytes()
	if err != nil {
		return game.Hash{}, err
	}
	return game.Hash(sha256.Sum256(b)), nil
}

// Sign sets Sender to the key's identity and signs the transaction.
func (t *Tx) Sign(key *identity.KeyPair) error {
	t.Sender = key.Identity()
	b, err := t.SigningBytes()
	if err != nil {
		return err
	}
	sig, err := key.Sign(b)
	if err != nil {
		return err
	}
	t.Signature = sig
	return nil
}

// Verify checks the transaction is well formed and signed by Sender.
func (t Tx) Verify() error {
	if err := t.Validate(); err != nil {
		return err
	}
	b, err := t.SigningBytes()
	if err != nil {
		return err
	}
	return identity.Verify(t.Sender, b, t.Signature)
}

// Validate checks the fields required by Kind are present.
func (t Tx) Validate() error {
	if err := identity.Validate(t.Sender); err != nil {
		return fmt.Errorf("%w: sender: %v", ErrMalformedTx, err)
	}
	if len(t.Signature) == 0 {
		return fmt.Errorf("%w: missing signature", ErrMalformedTx)
	}
	if len(t.Sequence) == 0 {
		return fmt.Errorf("%w: %s needs a card sequence", ErrMalformedTx, t.Kind)
	}

	switch t.Kind {
	case KindStart:
		if t.Match == nil {
			return fmt.Errorf("%w: start needs a match", ErrMalformedTx)
		}
		if t.GameID != "" && t.Match.ID != "" && t.GameID != t.Match.ID {
			return fmt.Errorf("%w: game id %s does not match %s", ErrMalformedTx, t.GameID, t.Match.ID)
		}
	case KindCommit, KindHit, KindStand, KindDouble, KindVerify:
		if t.GameID == "" {
			return fmt.Errorf("%w: %s needs a game id", ErrMalformedTx, t.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedTx, t.Kind)
	}
	return nil
}
