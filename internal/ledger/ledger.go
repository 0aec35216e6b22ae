package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

const (
	// MicroPerUnit is the number of ledger micro-units in one dollar
	MicroPerUnit = 1_000_000

	// microPerCent converts the payment provider's hundredths to micro-units
	microPerCent = MicroPerUnit / 100
)

// WalletStore is the part of storage the ledger needs
type WalletStore interface {
	Balance(ctx context.Context, userID int64) (int64, error)
	AddBalance(ctx context.Context, userID, delta int64) error
	CreditPayment(ctx context.Context, chargeID string, userID, amount int64) (bool, error)
}

// Ledger records balance changes of user wallets
type Ledger struct {
	wallets WalletStore
	log     *slog.Logger
}

// New creates a new Ledger
func New(wallets WalletStore, log *slog.Logger) *Ledger {
	return &Ledger{
		wallets: wallets,
		log:     log,
	}
}

// Credit adds amount micro-units to the user's wallet. Negative amounts debit.
func (l *Ledger) Credit(ctx context.Context, userID, amount int64) error {
	if err := l.wallets.AddBalance(ctx, userID, amount); err != nil {
		return fmt.Errorf("add balance: %w", err)
	}
	return nil
}

// CreditPayment credits a confirmed payment whose total is reported in
// hundredths of a dollar. A charge that was already credited is skipped.
func (l *Ledger) CreditPayment(ctx context.Context, chargeID string, userID int64, total int) (bool, error) {
	amount := int64(total) * microPerCent

	credited, err := l.wallets.CreditPayment(ctx, chargeID, userID, amount)
	if err != nil {
		return false, fmt.Errorf("credit payment: %w", err)
	}

	if credited {
		l.log.Info("payment credited", "user_id", userID, "charge_id", chargeID, "amount", amount)
	} else {
		l.log.Warn("payment already credited", "user_id", userID, "charge_id", chargeID)
	}
	return credited, nil
}

// Balance returns the wallet balance in micro-units
func (l *Ledger) Balance(ctx context.Context, userID int64) (int64, error) {
	balance, err := l.wallets.Balance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// Format renders a balance as "+$2.50" or "-$1.00"
func Format(balance int64) string {
	sign := "+"
	if balance < 0 {
		sign = "-"
	}

	abs := decimal.New(balance, -6).Abs()
	return sign + "$" + abs.StringFixed(2)
}

// FormatPayment renders a provider total in whole dollars, as "$5.00"
func FormatPayment(total int) string {
	return "$" + decimal.NewFromInt(int64(total / 100)).StringFixed(2)
}
