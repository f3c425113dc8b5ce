// Package game implements the authoritative blackjack rules engine for games
// played against a pre-committed card sequence.
//
// The main type is Engine, which owns two records per game id: GameInfo
// (parties, turn, wager, outcome) and GameHand (both hands, the sequence
// commitment and the draw cursor). Records live in a Store and every action
// loads them, mutates local copies and writes them back only when the whole
// transition succeeded.
//
// # Basic Usage
//
//	e := game.NewEngine(store, escrow, lobby, logger)
//	seq := deck.MustParseSequence("As 9h 7d 6c 5s Kd")
//	_ = e.Start(game.Match{ID: id, Players: [2]game.Identity{alice, house}, Wager: 10}, seq)
//	_ = e.Stand(id, alice, seq)
//	_ = e.VerifySequence(id, seq)
//
// # Determinism
//
// The engine never generates randomness. Every draw takes the card at the
// cursor of the supplied sequence and advances the cursor by one, so the
// same sequence and the same actions always produce the same game. The
// ordering layer supplies heights through a HeightSource; they are recorded
// in GameInfo.LastActionHeight for audit but no rule reads them.
package game
