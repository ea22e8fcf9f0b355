package models

// ReferralMapping points a referral code at its owning account. Written
// exactly once, at account creation, never updated or deleted.
type ReferralMapping struct {
	Code      string `json:"code" db:"code"`
	AccountID string `json:"account_id" db:"account_id"`
}
