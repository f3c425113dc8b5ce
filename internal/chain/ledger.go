package chain

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lox/fairjack/internal/game"
)

var (
	ErrBlockNotFound = errors.New("block not found")
	ErrLedgerCorrupt = errors.New("ledger corrupt")
)

// Receipt is the result of applying one transaction.
type Receipt struct {
	TxHash game.Hash `json:"tx_hash"`
	Height uint64    `json:"height"`
	Index  int       `json:"index"`
	Kind   Kind      `json:"kind"`
	GameID string    `json:"game_id,omitempty"`
	Code   string    `json:"code,omitempty"`
	Err    string    `json:"error,omitempty"`
}

// CodeUnsealed marks a receipt whose transaction was applied but whose
// block could not be appended to the ledger.
const CodeUnsealed = "unsealed"

// OK reports whether the transaction was applied.
func (r Receipt) OK() bool { return r.Err == "" }

// Block is a sealed batch of transactions together with their receipts.
// Hash covers every other field, PrevHash links to the previous block.
type Block struct {
	Height    uint64    `json:"height"`
	Timestamp time.Time `json:"timestamp"`
	PrevHash  game.Hash `json:"prev_hash"`
	Hash      game.Hash `json:"hash"`
	Txs       []Tx      `json:"txs"`
	Receipts  []Receipt `json:"receipts"`
}

func (b Block) computeHash() (game.Hash, error) {
	b.Hash = game.Hash{}
	raw, err := json.Marshal(b)
	if err != nil {
		return game.Hash{}, fmt.Errorf("encode block %d: %w", b.Height, err)
	}
	return game.Hash(sha256.Sum256(raw)), nil
}

// Ledger is an append-only hash chain of blocks starting at a genesis block
// of height zero.
type Ledger struct {
	mu     sync.RWMutex
	blocks []Block
}

// NewLedger creates a ledger holding only the genesis block.
func NewLedger() *Ledger {
	genesis := Block{Txs: []Tx{}, Receipts: []Receipt{}}
	h, err := genesis.computeHash()
	if err != nil {
		panic(err)
	}
	genesis.Hash = h
	return &Ledger{blocks: []Block{genesis}}
}

// Append seals a new block on top of the latest one.
func (l *Ledger) Append(ts time.Time, txs []Tx, receipts []Receipt) (Block, error) {
	if len(txs) != len(receipts) {
		return Block{}, fmt.Errorf("%d txs with %d receipts", len(txs), len(receipts))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	latest := l.blocks[len(l.blocks)-1]
	b := Block{
		Height:    latest.Height + 1,
		Timestamp: ts.UTC(),
		PrevHash:  latest.Hash,
		Txs:       txs,
		Receipts:  receipts,
	}
	h, err := b.computeHash()
	if err != nil {
		return Block{}, err
	}
	b.Hash = h
	l.blocks = append(l.blocks, b)
	return b, nil
}

// Latest returns the most recent block.
func (l *Ledger) Latest() Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.blocks[len(l.blocks)-1]
}

// Block returns the block at height.
func (l *Ledger) Block(height uint64) (Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if height >= uint64(len(l.blocks)) {
		return Block{}, fmt.Errorf("height %d: %w", height, ErrBlockNotFound)
	}
	return l.blocks[height], nil
}

// Receipts returns every receipt recorded for gameID, oldest first.
func (l *Ledger) Receipts(gameID string) []Receipt {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Receipt
	for _, b := range l.blocks {
		for _, r := range b.Receipts {
			if r.GameID == gameID {
				out = append(out, r)
			}
		}
	}
	return out
}

// Verify walks the chain checking heights, hashes and links.
func (l *Ledger) Verify() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i, b := range l.blocks {
		if b.Height != uint64(i) {
			return fmt.Errorf("block %d has height %d: %w", i, b.Height, ErrLedgerCorrupt)
		}
		h, err := b.computeHash()
		if err != nil {
			return err
		}
		if h != b.Hash {
			return fmt.Errorf("block %d hash mismatch: %w", i, ErrLedgerCorrupt)
		}
		if len(b.Txs) != len(b.Receipts) {
			return fmt.Errorf("block %d has %d txs and %d receipts: %w", i, len(b.Txs), len(b.Receipts), ErrLedgerCorrupt)
		}
		if i == 0 {
			if !b.PrevHash.IsZero() {
				return fmt.Errorf("genesis has a parent: %w", ErrLedgerCorrupt)
			}
			continue
		}
		if b.PrevHash != l.blocks[i-1].Hash {
			return fmt.Errorf("block %d does not link to block %d: %w", i, i-1, ErrLedgerCorrupt)
		}
	}
	return nil
}
