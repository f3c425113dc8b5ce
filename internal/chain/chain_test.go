package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/fairjack/internal/deck"
	"github.com/lox/fairjack/internal/escrow"
	"github.com/lox/fairjack/internal/game"
	"github.com/lox/fairjack/internal/gameid"
	"github.com/lox/fairjack/internal/identity"
	"github.com/lox/fairjack/internal/lobby"
	"github.com/lox/fairjack/internal/store"
)

var testSeq = deck.MustParseSequence("As 9h 7d 6c 5s Kd")

type harness struct {
	chain  *Chain
	engine *game.Engine
	ledger *escrow.Ledger
	lobby  *lobby.Lobby
	player *identity.KeyPair
	dealer *identity.KeyPair
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		ledger: escrow.NewLedger(nil),
		lobby:  lobby.New(nil),
		player: identity.FromSeed([]byte("player")),
		dealer: identity.FromSeed([]byte("dealer")),
	}
	h.ledger.Deposit(h.player.Identity(), 100)
	h.ledger.Deposit(h.dealer.Identity(), 100)

	var c *Chain
	h.engine = game.NewEngine(store.NewMemory(), h.ledger, h.lobby, nil,
		game.WithHeightSource(game.HeightFunc(func() uint64 { return c.Height() })))
	c = New(NewGameExecutor(h.engine, h.lobby, nil), nil, opts...)
	h.chain = c
	return h
}

func (h *harness) signed(t *testing.T, key *identity.KeyPair, tx Tx) Tx {
	t.Helper()
	require.NoError(t, tx.Sign(key))
	return tx
}

func (h *harness) startTx(t *testing.T, gameID string) Tx {
	t.Helper()
	return h.signed(t, h.dealer, Tx{
		Kind:     KindStart,
		GameID:   gameID,
		Match:    &game.Match{ID: gameID, Players: [2]game.Identity{h.player.Identity(), h.dealer.Identity()}, Wager: 10},
		Sequence: testSeq,
	})
}

func (h *harness) seal(t *testing.T) {
	t.Helper()
	sealed, err := h.chain.Seal()
	require.NoError(t, err)
	require.True(t, sealed)
}

func TestTxSignature(t *testing.T) {
	t.Parallel()
	key := identity.FromSeed([]byte("player"))

	tx := Tx{Kind: KindHit, GameID: "g1", Sequence: testSeq, Nonce: 1}
	require.NoError(t, tx.Sign(key))
	assert.Equal(t, key.Identity(), tx.Sender)
	require.NoError(t, tx.Verify())

	first, err := tx.Hash()
	require.NoError(t, err)
	require.NoError(t, tx.Sign(key))
	second, err := tx.Hash()
	require.NoError(t, err)
	assert.Equal(t, first, second, "hash ignores the signature")

	tampered := tx
	tampered.GameID = "g2"
	require.ErrorIs(t, tampered.Verify(), identity.ErrBadSignature)

	impostor := tx
	impostor.Sender = identity.FromSeed([]byte("mallory")).Identity()
	require.ErrorIs(t, impostor.Verify(), identity.ErrBadSignature)
}

func TestTxValidate(t *testing.T) {
	t.Parallel()
	key := identity.FromSeed([]byte("player"))

	tests := []struct {
		name string
		tx   Tx
	}{
		{"unknown kind", Tx{Kind: "split", GameID: "g1", Sequence: testSeq}},
		{"hit without game", Tx{Kind: KindHit, Sequence: testSeq}},
		{"start without match", Tx{Kind: KindStart, GameID: "g1", Sequence: testSeq}},
		{"start with conflicting ids", Tx{Kind: KindStart, GameID: "g1", Match: &game.Match{ID: "g2"}, Sequence: testSeq}},
		{"no sequence", Tx{Kind: KindStand, GameID: "g1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := tt.tx
			require.NoError(t, tx.Sign(key))
			require.ErrorIs(t, tx.Verify(), ErrMalformedTx)
		})
	}

	unsigned := Tx{Kind: KindHit, GameID: "g1", Sender: key.Identity(), Sequence: testSeq}
	require.ErrorIs(t, unsigned.Verify(), ErrMalformedTx)
}

func TestSealAppliesTransactionsInOrder(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	start, err := h.chain.Enqueue(h.startTx(t, "g1"))
	require.NoError(t, err)
	stand, err := h.chain.Enqueue(h.signed(t, h.player, Tx{Kind: KindStand, GameID: "g1", Sequence: testSeq}))
	require.NoError(t, err)
	assert.Equal(t, 2, h.chain.Pending())

	h.seal(t)
	assert.Equal(t, 0, h.chain.Pending())

	r1, r2 := <-start, <-stand
	assert.True(t, r1.OK(), r1.Err)
	assert.True(t, r2.OK(), r2.Err)
	assert.Equal(t, uint64(1), r1.Height)
	assert.Equal(t, 0, r1.Index)
	assert.Equal(t, 1, r2.Index)

	info, _, err := h.engine.Game("g1")
	require.NoError(t, err)
	assert.Equal(t, game.PlayerWon, info.Outcome)
	assert.Equal(t, uint64(1), info.LastActionHeight)
	assert.Equal(t, uint64(110), h.ledger.Balance(h.player.Identity()))

	block, err := h.chain.Ledger().Block(1)
	require.NoError(t, err)
	assert.Len(t, block.Txs, 2)
	require.NoError(t, h.chain.Ledger().Verify())
	assert.Len(t, h.chain.Ledger().Receipts("g1"), 2)
}

func TestHeightAdvancesPerBlock(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, err := h.chain.Enqueue(h.startTx(t, "g1"))
	require.NoError(t, err)
	h.seal(t)

	_, err = h.chain.Enqueue(h.signed(t, h.player, Tx{Kind: KindHit, GameID: "g1", Sequence: testSeq, Nonce: 1}))
	require.NoError(t, err)
	h.seal(t)

	info, hand, err := h.engine.Game("g1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.LastActionHeight)
	assert.Equal(t, uint64(5), hand.Cursor)
	assert.Equal(t, uint64(2), h.chain.Height())

	sealed, err := h.chain.Seal()
	require.NoError(t, err)
	assert.False(t, sealed)
}

func TestFailedTransactionsAreRecorded(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, err := h.chain.Enqueue(h.startTx(t, "g1"))
	require.NoError(t, err)
	dealerHit, err := h.chain.Enqueue(h.signed(t, h.dealer, Tx{Kind: KindHit, GameID: "g1", Sequence: testSeq}))
	require.NoError(t, err)
	early, err := h.chain.Enqueue(h.signed(t, h.dealer, Tx{Kind: KindVerify, GameID: "g1", Sequence: testSeq}))
	require.NoError(t, err)
	h.seal(t)

	r := <-dealerHit
	assert.False(t, r.OK())
	assert.Equal(t, "not_your_turn", r.Code)
	r = <-early
	assert.Equal(t, "game_not_finished", r.Code)

	_, hand, err := h.engine.Game("g1")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), hand.Cursor)
}

func TestRejectsBadSignatureAndDuplicates(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	tx := h.startTx(t, "g1")
	forged := tx
	forged.Match = &game.Match{ID: "g1", Players: tx.Match.Players, Wager: 90}
	_, err := h.chain.Enqueue(forged)
	require.ErrorIs(t, err, identity.ErrBadSignature)

	_, err = h.chain.Enqueue(tx)
	require.NoError(t, err)
	_, err = h.chain.Enqueue(tx)
	require.ErrorIs(t, err, ErrDuplicateTx)

	resigned := h.signed(t, h.dealer, tx)
	_, err = h.chain.Enqueue(resigned)
	require.ErrorIs(t, err, ErrDuplicateTx)
	assert.Equal(t, 1, h.chain.Pending())
}

func TestStartRequiresParticipant(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	outsider := identity.FromSeed([]byte("outsider"))

	tx := Tx{
		Kind:     KindStart,
		GameID:   "g1",
		Match:    &game.Match{ID: "g1", Players: [2]game.Identity{h.player.Identity(), h.dealer.Identity()}, Wager: 10},
		Sequence: testSeq,
	}
	done, err := h.chain.Enqueue(h.signed(t, outsider, tx))
	require.NoError(t, err)
	h.seal(t)

	r := <-done
	assert.Contains(t, r.Err, ErrUnauthorized.Error())
	_, _, err = h.engine.Game("g1")
	require.ErrorIs(t, err, game.ErrInvalidGameID)
}

func TestPlayerStartNeedsDealerCommitment(t *testing.T) {
	t.Parallel()
	match := func(h *harness, id string) *game.Match {
		return &game.Match{ID: id, Players: [2]game.Identity{h.player.Identity(), h.dealer.Identity()}, Wager: 10}
	}

	cases := []struct {
		name      string
		committer func(h *harness) *identity.KeyPair
		ok        bool
	}{
		{"uncommitted", nil, false},
		{"committed by player", func(h *harness) *identity.KeyPair { return h.player }, false},
		{"committed by dealer", func(h *harness) *identity.KeyPair { return h.dealer }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			if tc.committer != nil {
				done, err := h.chain.Enqueue(h.signed(t, tc.committer(h), Tx{Kind: KindCommit, GameID: "g1", Sequence: testSeq}))
				require.NoError(t, err)
				h.seal(t)
				require.True(t, (<-done).OK())
			}

			done, err := h.chain.Enqueue(h.signed(t, h.player, Tx{Kind: KindStart, GameID: "g1", Match: match(h, "g1"), Sequence: testSeq}))
			require.NoError(t, err)
			h.seal(t)

			r := <-done
			_, _, err = h.engine.Game("g1")
			if tc.ok {
				assert.True(t, r.OK(), r.Err)
				require.NoError(t, err)
				return
			}
			assert.Equal(t, "unauthorized", r.Code)
			assert.Contains(t, r.Err, ErrUnauthorized.Error())
			require.ErrorIs(t, err, game.ErrInvalidGameID)
			assert.Equal(t, uint64(100), h.ledger.Balance(h.player.Identity()))
		})
	}

	t.Run("lobby id", func(t *testing.T) {
		h := newHarness(t)
		done, err := h.chain.Enqueue(h.signed(t, h.player, Tx{Kind: KindStart, Match: match(h, ""), Sequence: testSeq}))
		require.NoError(t, err)
		h.seal(t)
		assert.Contains(t, (<-done).Err, ErrUnauthorized.Error())
		_, open := h.lobby.Open(h.player.Identity())
		assert.False(t, open)
	})
}

func TestLobbyAssignsGameID(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	tx := h.startTx(t, "")
	done, err := h.chain.Enqueue(tx)
	require.NoError(t, err)
	h.seal(t)

	r := <-done
	require.True(t, r.OK(), r.Err)
	require.NoError(t, gameid.Validate(r.GameID))

	entry, ok := h.lobby.Get(r.GameID)
	require.True(t, ok)
	assert.False(t, entry.Finished)

	stand := h.signed(t, h.player, Tx{Kind: KindStand, GameID: r.GameID, Sequence: testSeq})
	done, err = h.chain.Enqueue(stand)
	require.NoError(t, err)
	h.seal(t)
	require.True(t, (<-done).OK())

	entry, _ = h.lobby.Get(r.GameID)
	assert.True(t, entry.Finished)
	_, open := h.lobby.Open(h.player.Identity())
	assert.False(t, open)
}

func TestMaxBlockTxsSealsEarly(t *testing.T) {
	t.Parallel()
	h := newHarness(t, WithMaxBlockTxs(2))

	_, err := h.chain.Enqueue(h.startTx(t, "g1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), h.chain.Ledger().Latest().Height)

	done, err := h.chain.Enqueue(h.signed(t, h.player, Tx{Kind: KindStand, GameID: "g1", Sequence: testSeq}))
	require.NoError(t, err)

	select {
	case r := <-done:
		assert.True(t, r.OK(), r.Err)
	default:
		t.Fatal("full block was not sealed")
	}
	assert.Equal(t, uint64(1), h.chain.Ledger().Latest().Height)
}

func TestBlocksSealOnTick(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mClock := quartz.NewMock(t)
	h := newHarness(t, WithClock(mClock), WithBlockInterval(time.Second))
	blocks, unsubscribe := h.chain.Subscribe()
	defer unsubscribe()

	h.chain.Start(ctx)

	done, err := h.chain.Enqueue(h.startTx(t, "g1"))
	require.NoError(t, err)

	mClock.Advance(time.Second).MustWait(ctx)

	r := <-done
	assert.True(t, r.OK(), r.Err)

	b := <-blocks
	assert.Equal(t, uint64(1), b.Height)
	assert.Equal(t, mClock.Now().UTC(), b.Timestamp)

	// Empty intervals produce no blocks.
	mClock.Advance(time.Second).MustWait(ctx)
	assert.Equal(t, uint64(1), h.chain.Ledger().Latest().Height)
}

func TestSubmitWaitsForReceipt(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mClock := quartz.NewMock(t)
	h := newHarness(t, WithClock(mClock), WithBlockInterval(time.Second))
	h.chain.Start(ctx)

	result := make(chan Receipt, 1)
	go func() {
		r, err := h.chain.Submit(ctx, h.startTx(t, "g1"))
		assert.NoError(t, err)
		result <- r
	}()

	require.Eventually(t, func() bool { return h.chain.Pending() == 1 }, time.Second, time.Millisecond)
	mClock.Advance(time.Second).MustWait(ctx)

	r := <-result
	assert.True(t, r.OK(), r.Err)
	assert.Equal(t, "g1", r.GameID)
}

func TestSubmitHonoursContext(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.chain.Submit(ctx, h.startTx(t, "g1"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestUnsealedBlockStillAnswersSenders(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.chain.appendBlock = func(time.Time, []Tx, []Receipt) (Block, error) {
		return Block{}, errors.New("ledger full")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result := make(chan Receipt, 1)
	go func() {
		r, err := h.chain.Submit(ctx, h.startTx(t, "g1"))
		assert.NoError(t, err)
		result <- r
	}()

	require.Eventually(t, func() bool { return h.chain.Pending() == 1 }, time.Second, time.Millisecond)
	sealed, err := h.chain.Seal()
	require.Error(t, err)
	assert.False(t, sealed)

	r := <-result
	assert.False(t, r.OK())
	assert.Equal(t, CodeUnsealed, r.Code)
	assert.Contains(t, r.Err, "ledger full")
	assert.Equal(t, uint64(0), h.chain.Height())
	assert.Equal(t, uint64(0), h.chain.Ledger().Latest().Height)
}

func TestDedupWindowForgetsOldBlocks(t *testing.T) {
	t.Parallel()
	h := newHarness(t, WithDedupWindow(2))

	// A verify tx for an unknown game fails but still occupies the window.
	verify := h.signed(t, h.player, Tx{Kind: KindVerify, GameID: "g1", Sequence: testSeq})
	_, err := h.chain.Enqueue(verify)
	require.NoError(t, err)
	h.seal(t)

	_, err = h.chain.Enqueue(verify)
	require.ErrorIs(t, err, ErrDuplicateTx)

	for nonce := uint64(1); nonce <= 2; nonce++ {
		_, err := h.chain.Enqueue(h.signed(t, h.player, Tx{Kind: KindVerify, GameID: "g1", Sequence: testSeq, Nonce: nonce}))
		require.NoError(t, err)
		h.seal(t)
	}

	_, err = h.chain.Enqueue(verify)
	require.NoError(t, err)
	h.chain.mu.Lock()
	defer h.chain.mu.Unlock()
	assert.Len(t, h.chain.seen, 3)
	assert.Len(t, h.chain.recent, 2)
}

func TestLedgerVerifyDetectsTampering(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, err := h.chain.Enqueue(h.startTx(t, "g1"))
	require.NoError(t, err)
	h.seal(t)
	_, err = h.chain.Enqueue(h.signed(t, h.player, Tx{Kind: KindStand, GameID: "g1", Sequence: testSeq}))
	require.NoError(t, err)
	h.seal(t)

	l := h.chain.Ledger()
	require.NoError(t, l.Verify())

	l.blocks[1].Receipts[0].Err = "rewritten"
	require.ErrorIs(t, l.Verify(), ErrLedgerCorrupt)
	l.blocks[1].Receipts[0].Err = ""
	require.NoError(t, l.Verify())

	l.blocks[2].PrevHash = game.Hash{}
	require.ErrorIs(t, l.Verify(), ErrLedgerCorrupt)

	_, err = l.Block(9)
	require.ErrorIs(t, err, ErrBlockNotFound)
}
