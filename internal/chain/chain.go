// Package chain orders transactions into blocks. It stands in for the
// consensus layer the engine runs under: transactions are applied one at a
// time in block order, and the height of the block being applied is what
// the engine records as LastActionHeight.
package chain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/fairjack/internal/game"
)

const (
	DefaultBlockInterval = 200 * time.Millisecond
	DefaultMaxBlockTxs   = 256
	// DefaultDedupWindow is how many recent blocks' transaction hashes are
	// remembered for duplicate rejection.
	DefaultDedupWindow = 4096
)

type pendingTx struct {
	tx   Tx
	hash game.Hash
	done chan Receipt
}

// Chain batches submitted transactions and seals them into blocks on a
// fixed interval, or as soon as a block is full.
type Chain struct {
	exec     Executor
	ledger   *Ledger
	clock    quartz.Clock
	interval time.Duration
	maxTxs   int
	logger   *log.Logger

	mu      sync.Mutex
	pending []pendingTx
	seen    map[game.Hash]struct{}
	recent  [][]game.Hash // hashes per sealed block, oldest first
	window  int

	// appendBlock is ledger.Append, swapped out in tests.
	appendBlock func(time.Time, []Tx, []Receipt) (Block, error)

	sealMu sync.Mutex
	height atomic.Uint64

	subsMu sync.Mutex
	subs   map[chan Block]struct{}
}

// Option configures a Chain.
type Option func(*Chain)

// WithClock sets the clock that drives block production.
func WithClock(c quartz.Clock) Option {
	return func(ch *Chain) { ch.clock = c }
}

// WithBlockInterval sets how often pending transactions are sealed.
func WithBlockInterval(d time.Duration) Option {
	return func(ch *Chain) {
		if d > 0 {
			ch.interval = d
		}
	}
}

// WithMaxBlockTxs caps the number of transactions per block.
func WithMaxBlockTxs(n int) Option {
	return func(ch *Chain) {
		if n > 0 {
			ch.maxTxs = n
		}
	}
}

// WithDedupWindow sets how many recent blocks are checked for duplicate
// transactions.
func WithDedupWindow(blocks int) Option {
	return func(ch *Chain) {
		if blocks > 0 {
			ch.window = blocks
		}
	}
}

// New creates a chain that applies transactions with exec.
func New(exec Executor, logger *log.Logger, opts ...Option) *Chain {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	c := &Chain{
		exec:     exec,
		ledger:   NewLedger(),
		clock:    quartz.NewReal(),
		interval: DefaultBlockInterval,
		maxTxs:   DefaultMaxBlockTxs,
		window:   DefaultDedupWindow,
		logger:   logger.WithPrefix("chain"),
		seen:     make(map[game.Hash]struct{}),
		subs:     make(map[chan Block]struct{}),
	}
	c.appendBlock = c.ledger.Append
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Height returns the height of the block being applied, or of the latest
// sealed block between blocks. It implements game.HeightSource.
func (c *Chain) Height() uint64 {
	return c.height.Load()
}

// Ledger returns the chain's block history.
func (c *Chain) Ledger() *Ledger {
	return c.ledger
}

// Pending returns the number of transactions waiting for a block.
func (c *Chain) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Enqueue verifies tx and queues it for the next block. The returned
// channel receives the receipt once the block is sealed.
func (c *Chain) Enqueue(tx Tx) (<-chan Receipt, error) {
	if err := tx.Verify(); err != nil {
		c.logger.Warn("Rejected transaction", "kind", tx.Kind, "game", tx.GameID, "error", err)
		return nil, err
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if _, dup := c.seen[hash]; dup {
		c.mu.Unlock()
		return nil, fmt.Errorf("tx %s: %w", hash, ErrDuplicateTx)
	}
	c.seen[hash] = struct{}{}
	done := make(chan Receipt, 1)
	c.pending = append(c.pending, pendingTx{tx: tx, hash: hash, done: done})
	full := len(c.pending) >= c.maxTxs
	c.mu.Unlock()

	if full {
		if _, err := c.Seal(); err != nil {
			return nil, err
		}
	}
	return done, nil
}

// Submit queues tx and waits for its receipt.
func (c *Chain) Submit(ctx context.Context, tx Tx) (Receipt, error) {
	done, err := c.Enqueue(tx)
	if err != nil {
		return Receipt{}, err
	}
	select {
	case r := <-done:
		return r, nil
	case <-ctx.Done():
		return Receipt{}, ctx.Err()
	}
}

// Seal applies up to one block's worth of pending transactions in order
// and appends the block to the ledger. It returns false when nothing was
// pending.
func (c *Chain) Seal() (bool, error) {
	c.sealMu.Lock()
	defer c.sealMu.Unlock()

	c.mu.Lock()
	n := min(len(c.pending), c.maxTxs)
	batch := c.pending[:n:n]
	c.pending = c.pending[n:]
	c.mu.Unlock()

	if len(batch) == 0 {
		return false, nil
	}

	height := c.ledger.Latest().Height + 1
	c.height.Store(height)

	txs := make([]Tx, len(batch))
	receipts := make([]Receipt, len(batch))
	for i, p := range batch {
		txs[i] = p.tx
		receipts[i] = c.apply(height, i, p)
	}

	c.remember(batch)

	block, err := c.appendBlock(c.clock.Now(), txs, receipts)
	if err != nil {
		// The transactions were applied but have no block; their senders
		// are told so instead of waiting for a receipt that never comes.
		c.logger.Error("Failed to seal block", "height", height, "error", err)
		c.height.Store(height - 1)
		for i, p := range batch {
			r := receipts[i]
			r.Code = CodeUnsealed
			r.Err = fmt.Sprintf("block %d not sealed: %v", height, err)
			p.done <- r
		}
		return false, fmt.Errorf("seal block %d: %w", height, err)
	}

	for i, p := range batch {
		p.done <- receipts[i]
	}
	c.logger.Debug("Block sealed", "height", block.Height, "txs", len(txs), "hash", block.Hash)
	c.publish(block)
	return true, nil
}

// remember moves a batch's hashes into the dedup window and forgets the
// hashes of blocks that fell out of it.
func (c *Chain) remember(batch []pendingTx) {
	hashes := make([]game.Hash, len(batch))
	for i, p := range batch {
		hashes[i] = p.hash
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.recent = append(c.recent, hashes)
	for len(c.recent) > c.window {
		for _, h := range c.recent[0] {
			delete(c.seen, h)
		}
		c.recent = c.recent[1:]
	}
}

func (c *Chain) apply(height uint64, index int, p pendingTx) Receipt {
	r := Receipt{TxHash: p.hash, Height: height, Index: index, Kind: p.tx.Kind, GameID: p.tx.GameID}
	gameID, err := c.exec.Execute(p.tx)
	if gameID != "" {
		r.GameID = gameID
	}
	if err != nil {
		r.Code = game.Code(err)
		if errors.Is(err, ErrUnauthorized) {
			r.Code = "unauthorized"
		}
		r.Err = err.Error()
		c.logger.Warn("Transaction failed", "height", height, "kind", p.tx.Kind, "game", r.GameID, "code", r.Code, "error", err)
	}
	return r
}

// Start begins sealing blocks every interval until ctx is cancelled.
func (c *Chain) Start(ctx context.Context) quartz.Waiter {
	return c.clock.TickerFunc(ctx, c.interval, func() error {
		_, err := c.Seal()
		return err
	}, "chain", "seal")
}

// Run seals blocks until ctx is cancelled.
func (c *Chain) Run(ctx context.Context) error {
	c.logger.Info("Chain running", "interval", c.interval, "max_block_txs", c.maxTxs)
	err := c.Start(ctx).Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Subscribe returns a channel of sealed blocks and a function that
// unsubscribes it. Slow subscribers miss blocks rather than stall the chain.
func (c *Chain) Subscribe() (<-chan Block, func()) {
	ch := make(chan Block, 16)
	c.subsMu.Lock()
	c.subs[ch] = struct{}{}
	c.subsMu.Unlock()

	return ch, func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
}

func (c *Chain) publish(b Block) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- b:
		default:
			c.logger.Warn("Dropping block for slow subscriber", "height", b.Height)
		}
	}
}
