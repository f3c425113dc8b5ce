package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/fairjack/internal/deck"
)

func hand(cards ...string) Hand {
	var h Hand
	for _, c := range cards {
		if err := h.Add(deck.MustParseCard(c)); err != nil {
			panic(err)
		}
	}
	return h
}

func TestHandValue(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		cards []string
		want  int
		soft  bool
	}{
		{"empty", nil, 0, false},
		{"ten king", []string{"Ts", "Kh"}, 20, false},
		{"ace king", []string{"As", "Kh"}, 21, true},
		{"ace ace nine", []string{"As", "Ah", "9d"}, 21, true},
		{"nine ace ace", []string{"9d", "As", "Ah"}, 21, true},
		{"pair of aces", []string{"As", "Ah"}, 12, true},
		{"hard seventeen", []string{"Ts", "6h", "As"}, 17, false},
		{"soft seventeen", []string{"6h", "As"}, 17, true},
		{"faces", []string{"Js", "Qh", "Kd"}, 30, false},
		{"four aces and eight", []string{"As", "Ah", "Ad", "Ac", "8s"}, 12, false},
		{"four aces and seven", []string{"As", "Ah", "Ad", "Ac", "7s"}, 21, true},
		{"five small", []string{"2s", "3h", "2d", "3c", "4s"}, 14, false},
		{"bust", []string{"Ts", "6h", "Kd"}, 26, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := hand(tt.cards...)
			assert.Equal(t, tt.want, h.Value())
			assert.Equal(t, tt.soft, h.Soft())
			assert.Equal(t, tt.want > Blackjack, h.Bust())
		})
	}
}

func TestHandValueIsOrderIndependent(t *testing.T) {
	t.Parallel()
	// Every ordering of the same cards has the same total.
	orderings := [][]string{
		{"As", "Ah", "Ad", "Ac", "8s"},
		{"8s", "As", "Ah", "Ad", "Ac"},
		{"As", "8s", "Ah", "Ad", "Ac"},
		{"As", "Ah", "8s", "Ad", "Ac"},
	}
	for _, cards := range orderings {
		assert.Equal(t, 12, hand(cards...).Value(), "cards %v", cards)
	}

	assert.Equal(t, hand("As", "Ah", "9d").Value(), hand("Ah", "9d", "As").Value())
}

func TestHandAddIsCapped(t *testing.T) {
	t.Parallel()
	h := hand("2s", "3s", "4s", "5s", "6s")
	require.True(t, h.Full())

	err := h.Add(deck.MustParseCard("7s"))
	require.ErrorIs(t, err, ErrIllegalAction)
	assert.Equal(t, uint8(MaxHandSize), h.Count)
	assert.Equal(t, "2♠ 3♠ 4♠ 5♠ 6♠", h.String())
}

func TestHandIgnoresUnusedSlots(t *testing.T) {
	t.Parallel()
	h := hand("Ts", "9s")
	h.Cards[3] = deck.MustParseCard("Ks")
	assert.Equal(t, 19, h.Value())
	assert.Len(t, h.Dealt(), 2)
}

func TestDrawnOrder(t *testing.T) {
	t.Parallel()
	gh := GameHand{
		PlayerHand: hand("As", "9h", "2c"),
		DealerHand: hand("7d", "6c", "5s", "Kd"),
		Cursor:     7,
	}
	got := Hand{}
	for _, c := range gh.drawn()[:5] {
		require.NoError(t, got.Add(c))
	}
	assert.Equal(t, "A♠ 9♥ 7♦ 6♣ 2♣", got.String())
	assert.Len(t, gh.drawn(), 7)
}

func TestDecide(t *testing.T) {
	t.Parallel()
	assert.Equal(t, PlayerWon, decide(18, 22))
	assert.Equal(t, PlayerWon, decide(20, 18))
	assert.Equal(t, DealerWon, decide(17, 19))
	assert.Equal(t, Tie, decide(17, 17))
	assert.Equal(t, Tie, decide(21, 21))
}

func TestHashSequence(t *testing.T) {
	t.Parallel()
	seq := deck.MustParseSequence("As 9h 7d 6c 5s Kd")
	h := HashSequence(seq)
	assert.Equal(t, h, HashSequence(deck.MustParseSequence("As 9h 7d 6c 5s Kd")))
	assert.False(t, h.IsZero())

	altered := append(deck.Sequence(nil), seq...)
	altered[5] = deck.MustParseCard("Qd")
	assert.NotEqual(t, h, HashSequence(altered))

	reordered := append(deck.Sequence(nil), seq...)
	reordered[0], reordered[1] = reordered[1], reordered[0]
	assert.NotEqual(t, h, HashSequence(reordered))

	// Same cards in a different suit encode differently.
	assert.NotEqual(t, HashSequence(deck.MustParseSequence("As")), HashSequence(deck.MustParseSequence("Ah")))

	parsed, err := ParseHash(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestPayoutFor(t *testing.T) {
	t.Parallel()
	info := GameInfo{Player: "alice", Dealer: "house"}

	info.Outcome = PlayerWon
	p, err := PayoutFor(info)
	require.NoError(t, err)
	assert.Equal(t, Payout{Winner: "alice", Loser: "house", WinnerUnits: 2, LoserUnits: 0, TotalUnits: 2}, p)

	info.Outcome = DealerWon
	p, err = PayoutFor(info)
	require.NoError(t, err)
	assert.Equal(t, Payout{Winner: "house", Loser: "alice", WinnerUnits: 2, LoserUnits: 0, TotalUnits: 2}, p)

	info.Outcome = Tie
	p, err = PayoutFor(info)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.WinnerUnits)
	assert.Equal(t, uint64(1), p.LoserUnits)

	info.Outcome = Ongoing
	_, err = PayoutFor(info)
	require.ErrorIs(t, err, ErrGameNotFinished)
}

func TestCode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", Code(nil))
	assert.Equal(t, "sequence_exhausted", Code(ErrSequenceExhausted))
	assert.Equal(t, "not_your_turn", Code(ErrNotYourTurn))
	assert.Equal(t, "internal", Code(assert.AnError))
}
