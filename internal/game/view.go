package game

import "github.com/lox/fairjack/internal/deck"

// HandView is a hand as presented to clients.
type HandView struct {
	Cards []deck.Card `json:"cards"`
	Value int         `json:"value"`
	Soft  bool        `json:"soft"`
}

// View is the public state of a game.
type View struct {
	ID                 string   `json:"id"`
	Player             Identity `json:"player"`
	Dealer             Identity `json:"dealer"`
	CurrentTurn        Role     `json:"current_turn"`
	LastActionHeight   uint64   `json:"last_action_height"`
	Wager              uint64   `json:"wager"`
	Outcome            Outcome  `json:"outcome"`
	PlayerHand         HandView `json:"player_hand"`
	DealerHand         HandView `json:"dealer_hand"`
	SequenceCommitment Hash     `json:"sequence_commitment"`
	Cursor             uint64   `json:"cursor"`
}

// NewView combines the two records of a game.
func NewView(id string, info GameInfo, hand GameHand) View {
	return View{
		ID:                 id,
		Player:             info.Player,
		Dealer:             info.Dealer,
		CurrentTurn:        info.CurrentTurn,
		LastActionHeight:   info.LastActionHeight,
		Wager:              info.Wager,
		Outcome:            info.Outcome,
		PlayerHand:         handView(hand.PlayerHand),
		DealerHand:         handView(hand.DealerHand),
		SequenceCommitment: hand.SequenceCommitment,
		Cursor:             hand.Cursor,
	}
}

func handView(h Hand) HandView {
	return HandView{Cards: h.Dealt(), Value: h.Value(), Soft: h.Soft()}
}

// View returns the public state of a game.
func (e *Engine) View(gameID string) (View, error) {
	info, hand, err := e.load(gameID)
	if err != nil {
		return View{}, err
	}
	return NewView(gameID, info, hand), nil
}
