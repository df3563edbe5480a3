package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInsufficientMargin is returned when a reservation would push the
// available balance below zero.
var ErrInsufficientMargin = errors.New("insufficient margin")

// DefaultStartingBalance is the equity a freshly created demo wallet holds.
var DefaultStartingBalance = decimal.NewFromInt(10000)

// Wallet is the per-account ledger: total equity plus the slice of it not
// currently reserved as order or position margin. Invariant: Available never
// exceeds Balance and never ends an engine transaction negative.
type Wallet struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	Available decimal.Decimal `json:"available_balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Reserve sets margin aside for an order. It pre-checks so a failed
// reservation leaves the wallet untouched.
func (w *Wallet) Reserve(amount decimal.Decimal) error {
	if w.Available.LessThan(amount) {
		return ErrInsufficientMargin
	}
	w.Available = w.Available.Sub(amount)
	return nil
}

// Release returns previously reserved margin to the spendable balance.
func (w *Wallet) Release(amount decimal.Decimal) {
	w.Available = w.Available.Add(amount)
}

// ApplyPnL credits (or debits, for losses) both total and available balance.
func (w *Wallet) ApplyPnL(amount decimal.Decimal) {
	w.Balance = w.Balance.Add(amount)
	w.Available = w.Available.Add(amount)
}

// DeductCommission charges a fee against both total and available balance.
func (w *Wallet) DeductCommission(amount decimal.Decimal) {
	w.Balance = w.Balance.Sub(amount)
	w.Available = w.Available.Sub(amount)
}
