package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lox/fairjack/internal/game"
	_ "modernc.org/sqlite"
)

// SQLite stores records in three tables keyed by game id.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; the engine is serialized anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Migrate creates the tables if they do not exist.
func (s *SQLite) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			player TEXT NOT NULL,
			dealer TEXT NOT NULL,
			current_turn INTEGER NOT NULL,
			last_action_height INTEGER NOT NULL,
			wager INTEGER NOT NULL,
			outcome INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS hands (
			id TEXT PRIMARY KEY,
			player_hand TEXT NOT NULL,
			dealer_hand TEXT NOT NULL,
			sequence_commitment TEXT NOT NULL,
			cursor INTEGER NOT NULL,
			FOREIGN KEY (id) REFERENCES games(id)
		)`,
		`CREATE TABLE IF NOT EXISTS commitments (
			id TEXT PRIMARY KEY,
			hash TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_games_outcome ON games(outcome)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// LoadGame implements game.Store
func (s *SQLite) LoadGame(id string) (game.GameInfo, game.GameHand, error) {
	var (
		info                   game.GameInfo
		hand                   game.GameHand
		player, dealer         string
		turn, outcome          int
		height, wager, cursor  int64
		playerJSON, dealerJSON string
		commitment             string
	)

	row := s.db.QueryRow(`
		SELECT g.player, g.dealer, g.current_turn, g.last_action_height, g.wager, g.outcome,
		       h.player_hand, h.dealer_hand, h.sequence_commitment, h.cursor
		FROM games g JOIN hands h ON h.id = g.id
		WHERE g.id = ?`, id)
	err := row.Scan(&player, &dealer, &turn, &height, &wager, &outcome,
		&playerJSON, &dealerJSON, &commitment, &cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return info, hand, fmt.Errorf("game %q: %w", id, game.ErrRecordNotFound)
	}
	if err != nil {
		return info, hand, fmt.Errorf("failed to load game: %w", err)
	}

	info.Player = game.Identity(player)
	info.Dealer = game.Identity(dealer)
	info.CurrentTurn = game.Role(turn)
	info.LastActionHeight = uint64(height)
	info.Wager = uint64(wager)
	info.Outcome = game.Outcome(outcome)

	if err := json.Unmarshal([]byte(playerJSON), &hand.PlayerHand); err != nil {
		return info, hand, fmt.Errorf("failed to decode player hand: %w", err)
	}
	if err := json.Unmarshal([]byte(dealerJSON), &hand.DealerHand); err != nil {
		return info, hand, fmt.Errorf("failed to decode dealer hand: %w", err)
	}
	if hand.SequenceCommitment, err = game.ParseHash(commitment); err != nil {
		return info, hand, err
	}
	hand.Cursor = uint64(cursor)
	return info, hand, nil
}

// SaveGame implements game.Store. Both rows are written in one transaction.
func (s *SQLite) SaveGame(id string, info game.GameInfo, hand game.GameHand) error {
	playerJSON, err := json.Marshal(hand.PlayerHand)
	if err != nil {
		return fmt.Errorf("failed to encode player hand: %w", err)
	}
	dealerJSON, err := json.Marshal(hand.DealerHand)
	if err != nil {
		return fmt.Errorf("failed to encode dealer hand: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO games (id, player, dealer, current_turn, last_action_height, wager, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_turn = excluded.current_turn,
			last_action_height = excluded.last_action_height,
			wager = excluded.wager,
			outcome = excluded.outcome`,
		id, string(info.Player), string(info.Dealer), int(info.CurrentTurn),
		int64(info.LastActionHeight), int64(info.Wager), int(info.Outcome))
	if err != nil {
		return fmt.Errorf("failed to save game: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO hands (id, player_hand, dealer_hand, sequence_commitment, cursor)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			player_hand = excluded.player_hand,
			dealer_hand = excluded.dealer_hand,
			cursor = excluded.cursor`,
		id, string(playerJSON), string(dealerJSON), hand.SequenceCommitment.String(), int64(hand.Cursor))
	if err != nil {
		return fmt.Errorf("failed to save hands: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// LoadCommitment implements game.Store
func (s *SQLite) LoadCommitment(id string) (game.Hash, error) {
	var hash string
	err := s.db.QueryRow(`SELECT hash FROM commitments WHERE id = ?`, id).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Hash{}, fmt.Errorf("commitment %q: %w", id, game.ErrRecordNotFound)
	}
	if err != nil {
		return game.Hash{}, fmt.Errorf("failed to load commitment: %w", err)
	}
	return game.ParseHash(hash)
}

// SaveCommitment implements game.Store
func (s *SQLite) SaveCommitment(id string, h game.Hash) error {
	_, err := s.db.Exec(`
		INSERT INTO commitments (id, hash) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET hash = excluded.hash`, id, h.String())
	if err != nil {
		return fmt.Errorf("failed to save commitment: %w", err)
	}
	return nil
}

// GameIDs returns every stored game id in sorted order.
func (s *SQLite) GameIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM games ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
