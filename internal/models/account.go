package models

import (
	"time"
)

// Account is a user's balance-holding record. The account id is issued by
// the external identity provider and trusted as given. Balance is kept in
// integer minor units and only ever changes through the balance engine;
// Version backs the optimistic-locking update.
type Account struct {
	AccountID           string    `json:"account_id" db:"account_id"`
	Name                string    `json:"name" db:"name"`
	Email               string    `json:"email" db:"email"`
	Balance             int64     `json:"balance" db:"balance"`
	Version             int       `json:"-" db:"version"`
	ReferralCode        string    `json:"referral_code" db:"referral_code"`
	ReferredBy          string    `json:"referred_by,omitempty" db:"referred_by"`
	WelcomeBonusGranted bool      `json:"welcome_bonus_granted" db:"welcome_bonus_granted"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}
