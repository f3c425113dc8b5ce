package game

import (
	"encoding/hex"
	"fmt"

	"github.com/lox/fairjack/internal/deck"
)

// Identity names a participant. In practice this is the hex encoding of the
// participant's public key.
type Identity string

// Short returns an abbreviated identity for logs.
func (id Identity) Short() string {
	if len(id) <= 10 {
		return string(id)
	}
	return string(id[:10])
}

// Role is the side whose turn it is.
type Role uint8

const (
	RolePlayer Role = iota
	RoleDealer
)

func (r Role) String() string {
	switch r {
	case RolePlayer:
		return "player"
	case RoleDealer:
		return "dealer"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *Role) UnmarshalText(b []byte) error {
	switch string(b) {
	case "player":
		*r = RolePlayer
	case "dealer":
		*r = RoleDealer
	default:
		return fmt.Errorf("unknown role %q", b)
	}
	return nil
}

// Outcome is the result of a game. Anything other than Ongoing is terminal.
type Outcome uint8

const (
	Ongoing Outcome = iota
	PlayerWon
	DealerWon
	Tie
)

func (o Outcome) String() string {
	switch o {
	case Ongoing:
		return "ongoing"
	case PlayerWon:
		return "player_won"
	case DealerWon:
		return "dealer_won"
	case Tie:
		return "tie"
	default:
		return "unknown"
	}
}

// Finished reports whether the outcome is terminal.
func (o Outcome) Finished() bool {
	return o != Ongoing
}

// MarshalText implements encoding.TextMarshaler
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (o *Outcome) UnmarshalText(b []byte) error {
	for _, candidate := range []Outcome{Ongoing, PlayerWon, DealerWon, Tie} {
		if candidate.String() == string(b) {
			*o = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", b)
}

// Hash is a SHA-256 commitment to a card sequence.
type Hash [32]byte

// IsZero reports whether the hash is unset.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalText implements encoding.TextMarshaler
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (h *Hash) UnmarshalText(b []byte) error {
	parsed, err := ParseHash(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash decodes a hex encoded hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("decode hash: %w", err)
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("hash must be %d bytes, got %d", len(h), len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// Match is the lobby record a game is started from.
type Match struct {
	ID      string      `json:"id"`
	Players [2]Identity `json:"players"` // player, dealer
	Wager   uint64      `json:"wager"`
}

// Player returns the identity playing against the house.
func (m Match) Player() Identity { return m.Players[0] }

// Dealer returns the identity acting as the house.
func (m Match) Dealer() Identity { return m.Players[1] }

// GameInfo holds the parties, turn, wager and outcome of one game.
type GameInfo struct {
	Player           Identity `json:"player"`
	Dealer           Identity `json:"dealer"`
	CurrentTurn      Role     `json:"current_turn"`
	LastActionHeight uint64   `json:"last_action_height"`
	Wager            uint64   `json:"wager"`
	Outcome          Outcome  `json:"outcome"`
}

// GameHand holds both hands, the sequence commitment and the shared draw
// cursor. Cursor only ever increases.
type GameHand struct {
	PlayerHand         Hand   `json:"player_hand"`
	DealerHand         Hand   `json:"dealer_hand"`
	SequenceCommitment Hash   `json:"sequence_commitment"`
	Cursor             uint64 `json:"cursor"`
}

// drawn returns the cards in the order they were taken from the sequence:
// the initial deal, then every player draw, then every dealer draw.
func (gh GameHand) drawn() []deck.Card {
	p, d := gh.PlayerHand.Dealt(), gh.DealerHand.Dealt()
	out := make([]deck.Card, 0, len(p)+len(d))
	out = append(out, p[:min(2, len(p))]...)
	out = append(out, d[:min(2, len(d))]...)
	if len(p) > 2 {
		out = append(out, p[2:]...)
	}
	if len(d) > 2 {
		out = append(out, d[2:]...)
	}
	return out
}
