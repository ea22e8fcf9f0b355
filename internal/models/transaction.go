package models

import (
	"time"
)

// TransactionEntry is one immutable record in an account's ledger. Balance
// is the snapshot immediately after the entry committed, so for consecutive
// completed entries balance(N) == balance(N-1) + amount(N).
type TransactionEntry struct {
	ID          int64     `json:"id" db:"id"`
	AccountID   string    `json:"account_id" db:"account_id"`
	ReferenceID string    `json:"reference_id" db:"reference_id"`
	Type        string    `json:"type" db:"type"`
	Amount      int64     `json:"amount" db:"amount"` // signed, minor units
	Balance     int64     `json:"balance" db:"balance"`
	Status      string    `json:"status" db:"status"`
	Details     Metadata  `json:"details,omitempty" db:"details"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Transaction types
const (
	TxTypeDeposit       = "deposit"
	TxTypeWithdraw      = "withdraw"
	TxTypeBonus         = "bonus"
	TxTypeReferralBonus = "referral-bonus"
	TxTypeWelcomeBonus  = "welcome-bonus"
	TxTypePlanPurchase  = "plan-purchase"
	TxTypeTokenPurchase = "token-purchase"
)

// Entry statuses
const (
	StatusCompleted = "completed"
	StatusRejected  = "rejected"
)

// DebitClass reports whether entries of this type must not overdraw the
// account. Credit-class types are caller-trusted and never reject on
// balance grounds.
func DebitClass(txType string) bool {
	switch txType {
	case TxTypeWithdraw, TxTypePlanPurchase, TxTypeTokenPurchase:
		return true
	}
	return false
}
