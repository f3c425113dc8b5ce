package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/fairjack/internal/deck"
	"github.com/lox/fairjack/internal/game"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := Open("sqlite", filepath.Join(t.TempDir(), "fairjack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func sampleRecords() (game.GameInfo, game.GameHand) {
	seq := deck.MustParseSequence("As 9h 7d 6c Kd")
	info := game.GameInfo{
		Player:           "alice",
		Dealer:           "house",
		CurrentTurn:      game.RolePlayer,
		LastActionHeight: 7,
		Wager:            25,
		Outcome:          game.Ongoing,
	}
	hand := game.GameHand{
		PlayerHand:         game.NewHand(seq[0], seq[1]),
		DealerHand:         game.NewHand(seq[2], seq[3]),
		SequenceCommitment: game.HashSequence(seq),
		Cursor:             4,
	}
	return info, hand
}

func TestStoreRoundTrip(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			info, hand := sampleRecords()

			_, _, err := s.LoadGame("g1")
			require.ErrorIs(t, err, game.ErrRecordNotFound)

			require.NoError(t, s.SaveGame("g1", info, hand))
			gotInfo, gotHand, err := s.LoadGame("g1")
			require.NoError(t, err)
			assert.Equal(t, info, gotInfo)
			assert.Equal(t, hand, gotHand)

			// Overwrite with a finished game.
			info.Outcome = game.PlayerWon
			info.CurrentTurn = game.RoleDealer
			info.LastActionHeight = 9
			require.NoError(t, hand.DealerHand.Add(deck.MustParseCard("Kd")))
			hand.Cursor = 5
			require.NoError(t, s.SaveGame("g1", info, hand))

			gotInfo, gotHand, err = s.LoadGame("g1")
			require.NoError(t, err)
			assert.Equal(t, info, gotInfo)
			assert.Equal(t, hand, gotHand)

			ids, err := s.GameIDs()
			require.NoError(t, err)
			assert.Equal(t, []string{"g1"}, ids)
		})
	}
}

func TestStoreCommitments(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.LoadCommitment("g2")
			require.ErrorIs(t, err, game.ErrRecordNotFound)

			h := game.HashSequence(deck.Standard())
			require.NoError(t, s.SaveCommitment("g2", h))

			got, err := s.LoadCommitment("g2")
			require.NoError(t, err)
			assert.Equal(t, h, got)
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("postgres", "")
	require.Error(t, err)
}
