package game

import (
	"fmt"
	"strings"

	"github.com/lox/fairjack/internal/deck"
)

const (
	// MaxHandSize is the most cards either hand may hold.
	MaxHandSize = 5
	// Blackjack is the target total; anything above it is a bust.
	Blackjack = 21
	// DealerStandsOn is the total at which the dealer stops drawing.
	DealerStandsOn = 17
)

// Hand is a fixed-capacity, append-only list of cards. Slots at index >=
// Count are unused.
type Hand struct {
	Cards [MaxHandSize]deck.Card `json:"cards"`
	Count uint8                  `json:"count"`
}

// NewHand builds a hand from the given cards. It panics if more than
// MaxHandSize cards are supplied.
func NewHand(cards ...deck.Card) Hand {
	var h Hand
	for _, c := range cards {
		if err := h.Add(c); err != nil {
			panic(err)
		}
	}
	return h
}

// Add appends a card at index Count.
func (h *Hand) Add(c deck.Card) error {
	if h.Count >= MaxHandSize {
		return fmt.Errorf("hand already holds %d cards: %w", MaxHandSize, ErrIllegalAction)
	}
	h.Cards[h.Count] = c
	h.Count++
	return nil
}

// Dealt returns the occupied slots.
func (h Hand) Dealt() []deck.Card {
	return h.Cards[:h.Count]
}

// Full reports whether the hand has reached MaxHandSize.
func (h Hand) Full() bool {
	return h.Count >= MaxHandSize
}

// Value returns the best blackjack total of the hand.
func (h Hand) Value() int {
	total, _ := h.evaluate()
	return total
}

// Soft reports whether an ace is currently counted as 11.
func (h Hand) Soft() bool {
	_, soft := h.evaluate()
	return soft
}

// Bust reports whether the hand exceeds Blackjack.
func (h Hand) Bust() bool {
	return h.Value() > Blackjack
}

// evaluate runs two passes. The first sums every non-ace (faces count 10)
// and counts aces. The second resolves each ace once, in turn: it counts 11
// if that still leaves room for every remaining ace at 1, otherwise 1.
func (h Hand) evaluate() (total int, soft bool) {
	aces := 0
	for _, c := range h.Dealt() {
		switch {
		case c.IsAce():
			aces++
		case c.IsFaceCard():
			total += 10
		default:
			total += int(c.Rank)
		}
	}

	for remaining := aces - 1; remaining >= 0; remaining-- {
		if total+11+remaining <= Blackjack {
			total += 11
			soft = true
		} else {
			total++
		}
	}
	return total, soft
}

func (h Hand) String() string {
	parts := make([]string, 0, h.Count)
	for _, c := range h.Dealt() {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, " ")
}
