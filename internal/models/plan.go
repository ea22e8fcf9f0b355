package models

import (
	"time"
)

// Plan is an immutable catalog entry.
type Plan struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	DurationDays int    `json:"duration_days"`
	Benefits     string `json:"benefits"`
}

// PlanSubscription is created by a successful plan purchase. Expiry is
// advisory metadata; nothing here enforces it.
type PlanSubscription struct {
	AccountID   string    `json:"account_id" db:"account_id"`
	PlanID      string    `json:"plan_id" db:"plan_id"`
	PurchasedAt time.Time `json:"purchased_at" db:"purchased_at"`
	ExpiresAt   time.Time `json:"expires_at" db:"expires_at"`
	Status      string    `json:"status" db:"status"`
}

const SubscriptionActive = "active"

// DefaultPlans is the static catalog. A real deployment would manage these
// in the database behind an admin surface.
func DefaultPlans() []Plan {
	return []Plan{
		{ID: "basic", Name: "Basic Plan", Price: 100, DurationDays: 30, Benefits: "Access to basic content"},
		{ID: "premium", Name: "Premium Plan", Price: 500, DurationDays: 90, Benefits: "All content, faster support"},
		{ID: "vip", Name: "VIP Plan", Price: 1000, DurationDays: 180, Benefits: "Exclusive content, priority support"},
	}
}
