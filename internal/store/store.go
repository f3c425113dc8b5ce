// Package store provides game.Store implementations: an in-memory map for
// tests and single-process runs, and SQLite for durable state.
package store

import (
	"fmt"
	"io"

	"github.com/lox/fairjack/internal/game"
)

// Supported drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Store is a game.Store that can also enumerate the games it holds.
type Store interface {
	game.Store
	io.Closer
	GameIDs() ([]string, error)
}

// Open returns the store for the configured driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		s, err := NewSQLite(path)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
