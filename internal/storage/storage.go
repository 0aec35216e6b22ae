package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Storage handles all database operations
type Storage struct {
	db *sql.DB
}

// New creates a new Storage instance and initializes the database
func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &Storage{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			chat_id INTEGER NOT NULL,
			payload TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS wallets (
			user_id INTEGER PRIMARY KEY,
			balance INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS payments (
			charge_id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			amount INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_chat_id ON chat_messages(chat_id, id)`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}

	return nil
}

// --- Users ---

// UserExists reports whether a user with the given id is registered
func (s *Storage) UserExists(ctx context.Context, userID int64) (bool, error) {
	return s.exists(ctx, "SELECT 1 FROM users WHERE id = ?", userID)
}

// PayloadExists reports whether an invite payload is already bound to a user
func (s *Storage) PayloadExists(ctx context.Context, payload string) (bool, error) {
	return s.exists(ctx, "SELECT 1 FROM users WHERE payload = ?", payload)
}

func (s *Storage) exists(ctx context.Context, query string, arg any) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateUser inserts a new user. Returns ErrAlreadyExists if the id or the
// payload is already taken.
func (s *Storage) CreateUser(ctx context.Context, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, chat_id, payload, name, username, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.ChatID, u.Payload, u.Name, u.Username, u.CreatedAt.Unix(),
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// GetUser returns a user by id
func (s *Storage) GetUser(ctx context.Context, userID int64) (*User, error) {
	var u User
	var createdAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, chat_id, payload, name, username, created_at
		 FROM users WHERE id = ?`,
		userID,
	).Scan(&u.ID, &u.ChatID, &u.Payload, &u.Name, &u.Username, &createdAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	u.CreatedAt = time.Unix(createdAt, 0)
	return &u, nil
}

// --- Wallets ---

// Balance returns the wallet balance in micro-units, zero for unknown users
func (s *Storage) Balance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx,
		"SELECT balance FROM wallets WHERE user_id = ?",
		userID,
	).Scan(&balance)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}

// AddBalance adds delta (possibly negative) to the user's wallet
func (s *Storage) AddBalance(ctx context.Context, userID, delta int64) error {
	return addBalance(ctx, s.db, userID, delta)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func addBalance(ctx context.Context, db execer, userID, delta int64) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO wallets (user_id, balance, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			balance = balance + excluded.balance,
			updated_at = excluded.updated_at`,
		userID, delta, time.Now().Unix(),
	)
	return err
}

// --- Payments ---

// CreditPayment records a payment and credits the wallet in one transaction.
// Returns false if the charge was already recorded.
func (s *Storage) CreditPayment(ctx context.Context, chargeID string, userID, amount int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO payments (charge_id, user_id, amount, created_at)
		 VALUES (?, ?, ?, ?)`,
		chargeID, userID, amount, time.Now().Unix(),
	)
	if err != nil {
		return false, err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return false, nil
	}

	if err := addBalance(ctx, tx, userID, amount); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// --- Chat history ---

// AppendMessages stores conversation turns for a chat
func (s *Storage) AppendMessages(ctx context.Context, msgs ...ChatMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, m := range msgs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chat_messages (chat_id, user_id, role, content, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			m.ChatID, m.UserID, m.Role, m.Content, now,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentMessages returns up to limit latest messages of a chat, oldest first
func (s *Storage) RecentMessages(ctx context.Context, chatID int64, limit int) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, user_id, role, content, created_at FROM (
			SELECT id, chat_id, user_id, role, content, created_at
			FROM chat_messages WHERE chat_id = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		chatID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var createdAt int64

		if err := rows.Scan(&m.ID, &m.ChatID, &m.UserID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, err
		}

		m.CreatedAt = time.Unix(createdAt, 0)
		msgs = append(msgs, m)
	}

	return msgs, rows.Err()
}

// CleanChat removes the conversation history of a chat
func (s *Storage) CleanChat(ctx context.Context, chatID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chat_messages WHERE chat_id = ?", chatID)
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
