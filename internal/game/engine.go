package game

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/lox/fairjack/internal/deck"
)

// initialDeal is the number of cards consumed when a game starts.
const initialDeal = 4

// Engine applies blackjack transitions to the records held in a Store. It
// does no locking of its own: callers must apply at most one transition per
// game id at a time, which the ordering layer guarantees.
type Engine struct {
	store  Store
	escrow Escrow
	lobby  Lobby
	height HeightSource
	logger *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithHeightSource sets where LastActionHeight values come from.
func WithHeightSource(h HeightSource) Option {
	return func(e *Engine) {
		e.height = h
	}
}

// NewEngine creates an engine over the given store and collaborators. The
// lobby may be nil.
func NewEngine(store Store, escrow Escrow, lobby Lobby, logger *log.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	e := &Engine{
		store:  store,
		escrow: escrow,
		lobby:  lobby,
		height: HeightFunc(func() uint64 { return 0 }),
		logger: logger.WithPrefix("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Game returns copies of the records for a game.
func (e *Engine) Game(gameID string) (GameInfo, GameHand, error) {
	return e.load(gameID)
}

// Start deals the opening hands from the committed sequence. If a
// commitment was registered for the id beforehand the sequence must match
// it, otherwise the sequence is committed now.
func (e *Engine) Start(match Match, seq deck.Sequence) error {
	if err := validateMatch(match); err != nil {
		return err
	}
	if err := seq.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalAction, err)
	}

	if info, _, err := e.store.LoadGame(match.ID); err == nil {
		if info.Outcome.Finished() {
			return fmt.Errorf("game %s: %w", match.ID, ErrGameAlreadyFinished)
		}
		return fmt.Errorf("game %s already started: %w", match.ID, ErrIllegalAction)
	} else if !errors.Is(err, ErrRecordNotFound) {
		return err
	}

	commitment := HashSequence(seq)
	preCommitted := false
	if stored, err := e.store.LoadCommitment(match.ID); err == nil {
		if stored != commitment {
			return fmt.Errorf("game %s: %w", match.ID, ErrHashMismatch)
		}
		preCommitted = true
	} else if !errors.Is(err, ErrRecordNotFound) {
		return err
	}

	hand := GameHand{SequenceCommitment: commitment}
	for i := 0; i < initialDeal; i++ {
		card, err := deck.Draw(seq, hand.Cursor)
		if err != nil {
			return fmt.Errorf("initial deal: %w", err)
		}
		target := &hand.PlayerHand
		if i >= initialDeal/2 {
			target = &hand.DealerHand
		}
		if err := target.Add(card); err != nil {
			return err
		}
		hand.Cursor++
	}

	info := GameInfo{
		Player:           match.Player(),
		Dealer:           match.Dealer(),
		CurrentTurn:      RolePlayer,
		LastActionHeight: e.height.Height(),
		Wager:            match.Wager,
		Outcome:          Ongoing,
	}

	if err := e.openEscrow(match); err != nil {
		return err
	}
	if !preCommitted {
		if err := e.store.SaveCommitment(match.ID, commitment); err != nil {
			e.closeEscrow(match)
			return fmt.Errorf("save commitment: %w", err)
		}
	}
	if err := e.store.SaveGame(match.ID, info, hand); err != nil {
		e.closeEscrow(match)
		return fmt.Errorf("save game: %w", err)
	}

	e.logger.Info("Game started",
		"game", match.ID,
		"player", info.Player.Short(),
		"dealer", info.Dealer.Short(),
		"wager", info.Wager,
		"height", info.LastActionHeight,
		"player_hand", hand.PlayerHand.String())
	return nil
}

// openEscrow registers both parties and reserves the wager, undoing the
// registrations if a later step fails.
func (e *Engine) openEscrow(match Match) error {
	var registered []Identity
	rollback := func() {
		for _, id := range registered {
			if err := e.escrow.SetActiveGame(id, ""); err != nil {
				e.logger.Error("Failed to roll back active game", "game", match.ID, "identity", id.Short(), "error", err)
			}
		}
	}

	for _, id := range match.Players {
		if err := e.escrow.SetActiveGame(id, match.ID); err != nil {
			rollback()
			return fmt.Errorf("set active game for %s: %w", id.Short(), err)
		}
		registered = append(registered, id)
	}
	if err := e.escrow.Reserve(match.ID, match.Wager); err != nil {
		rollback()
		return fmt.Errorf("reserve wager: %w", err)
	}
	return nil
}

// closeEscrow returns the reserved wager and releases both parties after a
// start that could not be recorded.
func (e *Engine) closeEscrow(match Match) {
	if err := e.escrow.Release(match.ID, 0); err != nil {
		e.logger.Error("Failed to release wager", "game", match.ID, "error", err)
	}
	for _, id := range match.Players {
		if err := e.escrow.SetActiveGame(id, ""); err != nil {
			e.logger.Error("Failed to roll back active game", "game", match.ID, "identity", id.Short(), "error", err)
		}
	}
}

// Hit draws one card for the player. A bust ends the game for the dealer
// without any dealer draws. Reaching 21 or a full hand hands over to the
// dealer.
func (e *Engine) Hit(gameID string, caller Identity, seq deck.Sequence) error {
	info, hand, err := e.loadForPlayer(gameID, caller, seq)
	if err != nil {
		return err
	}
	prev := snapshot{info, hand}

	if err := drawInto(&hand.PlayerHand, &hand, seq); err != nil {
		return err
	}
	info.LastActionHeight = e.height.Height()

	total := hand.PlayerHand.Value()
	e.logger.Debug("Player hit", "game", gameID, "hand", hand.PlayerHand.String(), "total", total)

	switch {
	case total > Blackjack:
		info.Outcome = DealerWon
	case total == Blackjack || hand.PlayerHand.Full():
		info.CurrentTurn = RoleDealer
		if err := dealerAutoPlay(&info, &hand, seq); err != nil {
			return err
		}
	}
	return e.apply(gameID, prev, snapshot{info, hand})
}

// Stand ends the player's turn; the dealer plays out immediately.
func (e *Engine) Stand(gameID string, caller Identity, seq deck.Sequence) error {
	info, hand, err := e.loadForPlayer(gameID, caller, seq)
	if err != nil {
		return err
	}
	prev := snapshot{info, hand}

	info.CurrentTurn = RoleDealer
	info.LastActionHeight = e.height.Height()
	if err := dealerAutoPlay(&info, &hand, seq); err != nil {
		return err
	}
	return e.apply(gameID, prev, snapshot{info, hand})
}

// DoubleDown doubles the wager on the opening two-card hand, draws exactly
// one card for the player and hands over to the dealer.
func (e *Engine) DoubleDown(gameID string, caller Identity, seq deck.Sequence) error {
	info, hand, err := e.loadForPlayer(gameID, caller, seq)
	if err != nil {
		return err
	}
	prev := snapshot{info, hand}
	if hand.PlayerHand.Count != 2 {
		return fmt.Errorf("double down with %d cards: %w", hand.PlayerHand.Count, ErrIllegalAction)
	}

	if err := drawInto(&hand.PlayerHand, &hand, seq); err != nil {
		return err
	}
	info.Wager *= 2
	info.LastActionHeight = e.height.Height()

	if hand.PlayerHand.Bust() {
		info.Outcome = DealerWon
	} else {
		info.CurrentTurn = RoleDealer
		if err := dealerAutoPlay(&info, &hand, seq); err != nil {
			return err
		}
	}
	return e.apply(gameID, prev, snapshot{info, hand})
}

// dealerAutoPlay draws for the dealer while below DealerStandsOn and the
// hand has room, then decides the outcome.
func dealerAutoPlay(info *GameInfo, hand *GameHand, seq deck.Sequence) error {
	for hand.DealerHand.Value() < DealerStandsOn && !hand.DealerHand.Full() {
		if err := drawInto(&hand.DealerHand, hand, seq); err != nil {
			return fmt.Errorf("dealer draw: %w", err)
		}
	}
	info.Outcome = decide(hand.PlayerHand.Value(), hand.DealerHand.Value())
	return nil
}

func decide(player, dealer int) Outcome {
	switch {
	case dealer > Blackjack || player > dealer:
		return PlayerWon
	case dealer > player:
		return DealerWon
	default:
		return Tie
	}
}

// drawInto takes the card at the cursor and appends it to target.
func drawInto(target *Hand, hand *GameHand, seq deck.Sequence) error {
	card, err := deck.Draw(seq, hand.Cursor)
	if err != nil {
		return err
	}
	if err := target.Add(card); err != nil {
		return err
	}
	hand.Cursor++
	return nil
}

// snapshot is a game's pair of records at one point in time.
type snapshot struct {
	info GameInfo
	hand GameHand
}

// apply moves a game from prev to next. A raised wager is reserved first,
// then the records are saved and a finished game is settled. Any failure
// restores the stake and the stored records to prev.
func (e *Engine) apply(gameID string, prev, next snapshot) error {
	raised := next.info.Wager > prev.info.Wager
	if raised {
		if err := e.escrow.Reserve(gameID, next.info.Wager); err != nil {
			e.logger.Error("Failed to reserve doubled wager", "game", gameID, "wager", next.info.Wager, "error", err)
			return fmt.Errorf("reserve wager: %w", err)
		}
	}
	restoreStake := func() {
		if !raised {
			return
		}
		if err := e.escrow.Release(gameID, prev.info.Wager); err != nil {
			e.logger.Error("Failed to restore stake", "game", gameID, "wager", prev.info.Wager, "error", err)
		}
	}

	if err := e.store.SaveGame(gameID, next.info, next.hand); err != nil {
		restoreStake()
		return fmt.Errorf("save game: %w", err)
	}
	if !next.info.Outcome.Finished() {
		return nil
	}
	if err := e.settle(gameID, next.info); err != nil {
		if rerr := e.store.SaveGame(gameID, prev.info, prev.hand); rerr != nil {
			e.logger.Error("Failed to restore game after settlement failure", "game", gameID, "error", rerr)
		}
		restoreStake()
		return err
	}
	return nil
}

func (e *Engine) load(gameID string) (GameInfo, GameHand, error) {
	info, hand, err := e.store.LoadGame(gameID)
	if errors.Is(err, ErrRecordNotFound) {
		return GameInfo{}, GameHand{}, fmt.Errorf("game %q: %w", gameID, ErrInvalidGameID)
	}
	if err != nil {
		return GameInfo{}, GameHand{}, fmt.Errorf("load game: %w", err)
	}
	return info, hand, nil
}

// loadForPlayer loads a game, checks it is waiting on caller and that seq
// is the committed sequence.
func (e *Engine) loadForPlayer(gameID string, caller Identity, seq deck.Sequence) (GameInfo, GameHand, error) {
	info, hand, err := e.load(gameID)
	if err != nil {
		return info, hand, err
	}
	if info.Outcome.Finished() {
		return info, hand, fmt.Errorf("game %s is %s: %w", gameID, info.Outcome, ErrGameAlreadyFinished)
	}
	if info.CurrentTurn != RolePlayer {
		return info, hand, fmt.Errorf("game %s waiting on %s: %w", gameID, info.CurrentTurn, ErrNotYourTurn)
	}
	if caller != info.Player {
		return info, hand, fmt.Errorf("game %s: %s is not the player: %w", gameID, caller.Short(), ErrNotYourTurn)
	}
	if HashSequence(seq) != hand.SequenceCommitment {
		return info, hand, fmt.Errorf("game %s: sequence does not match commitment: %w", gameID, ErrHashMismatch)
	}
	return info, hand, nil
}

func validateMatch(m Match) error {
	switch {
	case m.ID == "":
		return fmt.Errorf("empty game id: %w", ErrInvalidGameID)
	case m.Player() == "" || m.Dealer() == "":
		return fmt.Errorf("match %s needs two participants: %w", m.ID, ErrIllegalAction)
	case m.Player() == m.Dealer():
		return fmt.Errorf("match %s: player and dealer are the same identity: %w", m.ID, ErrIllegalAction)
	case m.Wager == 0:
		return fmt.Errorf("match %s: wager must be positive: %w", m.ID, ErrIllegalAction)
	}
	return nil
}
