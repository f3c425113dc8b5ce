package game

// Store persists the per-game records. The three mappings share the game id
// as key. LoadGame and LoadCommitment return ErrRecordNotFound for unknown
// ids. SaveGame must write both records atomically.
type Store interface {
	LoadGame(id string) (GameInfo, GameHand, error)
	SaveGame(id string, info GameInfo, hand GameHand) error
	LoadCommitment(id string) (Hash, error)
	SaveCommitment(id string, h Hash) error
}

// Escrow is the funds ledger holding both parties' stakes.
type Escrow interface {
	// Reserve sets the per-party stake for the game to amount.
	Reserve(gameID string, amount uint64) error
	// Release lowers the per-party stake to amount and refunds the
	// difference. It undoes a Reserve that could not be followed through.
	Release(gameID string, amount uint64) error
	// AcquireFunds disburses the pot: each side receives its units out of
	// totalUnits.
	AcquireFunds(gameID string, winner, loser Identity, winnerUnits, loserUnits, totalUnits uint64) error
	// SetActiveGame records the game an identity is playing. An empty
	// gameID clears it.
	SetActiveGame(player Identity, gameID string) error
}

// Lobby is notified when a game it created has ended.
type Lobby interface {
	OnGameEnd(gameID string, finished bool) error
}

// HeightSource reports the ordering index of the transition being applied.
type HeightSource interface {
	Height() uint64
}

// HeightFunc adapts a function to HeightSource.
type HeightFunc func() uint64

// Height implements HeightSource
func (f HeightFunc) Height() uint64 { return f() }
