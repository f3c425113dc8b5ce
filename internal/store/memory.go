package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lox/fairjack/internal/game"
)

type record struct {
	info game.GameInfo
	hand game.GameHand
}

// Memory keeps records in maps guarded by a mutex. Values are copied in and
// out, so callers never share state with the store.
type Memory struct {
	mu          sync.RWMutex
	games       map[string]record
	commitments map[string]game.Hash
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		games:       make(map[string]record),
		commitments: make(map[string]game.Hash),
	}
}

// LoadGame implements game.Store
func (m *Memory) LoadGame(id string) (game.GameInfo, game.GameHand, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.games[id]
	if !ok {
		return game.GameInfo{}, game.GameHand{}, fmt.Errorf("game %q: %w", id, game.ErrRecordNotFound)
	}
	return rec.info, rec.hand, nil
}

// SaveGame implements game.Store
func (m *Memory) SaveGame(id string, info game.GameInfo, hand game.GameHand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[id] = record{info: info, hand: hand}
	return nil
}

// LoadCommitment implements game.Store
func (m *Memory) LoadCommitment(id string) (game.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.commitments[id]
	if !ok {
		return game.Hash{}, fmt.Errorf("commitment %q: %w", id, game.ErrRecordNotFound)
	}
	return h, nil
}

// SaveCommitment implements game.Store
func (m *Memory) SaveCommitment(id string, h game.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitments[id] = h
	return nil
}

// GameIDs returns every stored game id in sorted order.
func (m *Memory) GameIDs() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.games))
	for id := range m.games {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
