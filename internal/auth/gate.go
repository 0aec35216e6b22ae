package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/suspectuso/gpt-gateway/internal/storage"
)

// Outcome is the result of an invite redemption
type Outcome int

const (
	Welcomed Outcome = iota
	AlreadyRegistered
	NoCode
	InvalidCode
	CodeExhausted
)

func (o Outcome) String() string {
	switch o {
	case Welcomed:
		return "welcomed"
	case AlreadyRegistered:
		return "already_registered"
	case NoCode:
		return "no_code"
	case InvalidCode:
		return "invalid_code"
	case CodeExhausted:
		return "code_exhausted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// UserStore is the part of storage the gate needs
type UserStore interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	GetUser(ctx context.Context, userID int64) (*storage.User, error)
	PayloadExists(ctx context.Context, payload string) (bool, error)
	CreateUser(ctx context.Context, u *storage.User) error
}

// Decoder turns an invite code into its payload
type Decoder interface {
	Decode(code string) (payload string, ok bool)
}

// Gate binds invite payloads to Telegram accounts
type Gate struct {
	users   UserStore
	decoder Decoder
	log     *slog.Logger
}

// NewGate creates a new Gate
func NewGate(users UserStore, decoder Decoder, log *slog.Logger) *Gate {
	return &Gate{
		users:   users,
		decoder: decoder,
		log:     log,
	}
}

// Register redeems rawCode for the given account
func (g *Gate) Register(ctx context.Context, userID, chatID int64, rawCode, name, username string) (Outcome, error) {
	exists, err := g.users.UserExists(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("check user: %w", err)
	}
	if exists {
		return AlreadyRegistered, nil
	}

	if rawCode == "" {
		return NoCode, nil
	}

	payload, ok := g.decoder.Decode(rawCode)
	if !ok {
		return InvalidCode, nil
	}

	used, err := g.users.PayloadExists(ctx, payload)
	if err != nil {
		return 0, fmt.Errorf("check payload: %w", err)
	}
	if used {
		return CodeExhausted, nil
	}

	err = g.users.CreateUser(ctx, &storage.User{
		ID:       userID,
		ChatID:   chatID,
		Payload:  payload,
		Name:     name,
		Username: username,
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		return g.resolveConflict(ctx, userID, payload)
	}
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}

	g.log.Info("user registered", "user_id", userID, "payload", payload)
	return Welcomed, nil
}

// resolveConflict handles a lost insert race. A parallel /start from the same
// account already created the user; otherwise someone else took the payload.
func (g *Gate) resolveConflict(ctx context.Context, userID int64, payload string) (Outcome, error) {
	exists, err := g.users.UserExists(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("check user: %w", err)
	}
	if exists {
		g.log.Debug("duplicate registration ignored", "user_id", userID)
		return Welcomed, nil
	}

	g.log.Info("invite payload taken concurrently", "user_id", userID, "payload", payload)
	return CodeExhausted, nil
}

// Authorize returns the account record, or nil when the account has not
// redeemed an invite
func (g *Gate) Authorize(ctx context.Context, userID int64) (*storage.User, error) {
	u, err := g.users.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// IsAuthorized reports whether the account has redeemed an invite
func (g *Gate) IsAuthorized(ctx context.Context, userID int64) (bool, error) {
	u, err := g.Authorize(ctx, userID)
	return u != nil, err
}
