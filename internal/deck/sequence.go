package deck

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSequenceExhausted is returned when a draw is attempted past the end of
// a card sequence.
var ErrSequenceExhausted = errors.New("card sequence exhausted")

// Sequence is a fixed, externally supplied ordering of cards. It is never
// shuffled or mutated by the engine; consumers track their own cursor.
type Sequence []Card

// Draw returns seq[cursor]. It never returns a zero card in place of a
// missing one.
func Draw(seq Sequence, cursor uint64) (Card, error) {
	if cursor >= uint64(len(seq)) {
		return Card{}, fmt.Errorf("draw at %d of %d: %w", cursor, len(seq), ErrSequenceExhausted)
	}
	return seq[cursor], nil
}

// Encode returns the commitment encoding of every card, in order.
func (s Sequence) Encode() []uint16 {
	out := make([]uint16, len(s))
	for i, c := range s {
		out[i] = c.Encode()
	}
	return out
}

// Validate checks every card in the sequence is a real card.
func (s Sequence) Validate() error {
	for i, c := range s {
		if !c.Valid() {
			return fmt.Errorf("card %d is invalid: suit=%d rank=%d", i, c.Suit, c.Rank)
		}
	}
	return nil
}

// String renders the sequence as space separated cards.
func (s Sequence) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

// Codes renders the sequence in the form ParseSequence accepts.
func (s Sequence) Codes() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.Code()
	}
	return strings.Join(parts, " ")
}

// ParseSequence parses whitespace or comma separated cards, e.g.
// "As 9h 7d 6c".
func ParseSequence(s string) (Sequence, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n'
	})
	seq := make(Sequence, 0, len(fields))
	for _, f := range fields {
		c, err := ParseCard(f)
		if err != nil {
			return nil, err
		}
		seq = append(seq, c)
	}
	return seq, nil
}

// MustParseSequence is like ParseSequence but panics on error.
func MustParseSequence(s string) Sequence {
	seq, err := ParseSequence(s)
	if err != nil {
		panic(err)
	}
	return seq
}
