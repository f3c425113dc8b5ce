package game

import "fmt"

// Payout is the split of the pot between the two parties, in units of
// TotalUnits.
type Payout struct {
	Winner      Identity
	Loser       Identity
	WinnerUnits uint64
	LoserUnits  uint64
	TotalUnits  uint64
}

// PayoutFor maps a terminal outcome to its payout. A tie returns each stake,
// reported with the player in the winner slot.
func PayoutFor(info GameInfo) (Payout, error) {
	switch info.Outcome {
	case PlayerWon:
		return Payout{Winner: info.Player, Loser: info.Dealer, WinnerUnits: 2, LoserUnits: 0, TotalUnits: 2}, nil
	case DealerWon:
		return Payout{Winner: info.Dealer, Loser: info.Player, WinnerUnits: 2, LoserUnits: 0, TotalUnits: 2}, nil
	case Tie:
		return Payout{Winner: info.Player, Loser: info.Dealer, WinnerUnits: 1, LoserUnits: 1, TotalUnits: 2}, nil
	default:
		return Payout{}, fmt.Errorf("outcome %s has no payout: %w", info.Outcome, ErrGameNotFinished)
	}
}

// settle disburses the pot, releases both parties and tells the lobby the
// game is over. It is only reached on the single transition out of Ongoing.
func (e *Engine) settle(gameID string, info GameInfo) error {
	payout, err := PayoutFor(info)
	if err != nil {
		return err
	}

	if err := e.escrow.AcquireFunds(gameID, payout.Winner, payout.Loser,
		payout.WinnerUnits, payout.LoserUnits, payout.TotalUnits); err != nil {
		e.logger.Error("Failed to disburse funds", "game", gameID, "error", err)
		return fmt.Errorf("acquire funds: %w", err)
	}

	// The pot is closed at this point, so the release steps below only log.
	for _, id := range []Identity{info.Player, info.Dealer} {
		if err := e.escrow.SetActiveGame(id, ""); err != nil {
			e.logger.Error("Failed to clear active game", "game", gameID, "identity", id.Short(), "error", err)
		}
	}
	if e.lobby != nil {
		if err := e.lobby.OnGameEnd(gameID, true); err != nil {
			e.logger.Warn("Lobby did not accept game end", "game", gameID, "error", err)
		}
	}

	e.logger.Info("Game settled",
		"game", gameID,
		"outcome", info.Outcome,
		"winner", payout.Winner.Short(),
		"split", fmt.Sprintf("%d:%d", payout.WinnerUnits, payout.LoserUnits),
		"wager", info.Wager)
	return nil
}
