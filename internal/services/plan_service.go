package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/takagor/wallet-backend/internal/models"
)

// PlanService serves the static plan catalog and handles purchases.
type PlanService struct {
	db      *sql.DB
	balance *BalanceService
	plans   []models.Plan
	log     *logrus.Logger
}

func NewPlanService(db *sql.DB, balance *BalanceService, log *logrus.Logger) *PlanService {
	return &PlanService{
		db:      db,
		balance: balance,
		plans:   models.DefaultPlans(),
		log:     log,
	}
}

// Plans returns the catalog.
func (s *PlanService) Plans() []models.Plan {
	return s.plans
}

func (s *PlanService) find(planID string) (models.Plan, bool) {
	for _, p := range s.plans {
		if p.ID == planID {
			return p, true
		}
	}
	return models.Plan{}, false
}

// Purchase debits the plan price and records the subscription. The
// subscription insert after the debit is best effort: if it fails, the
// account stays debited with no subscription row and the failure is logged.
// TODO: credit a compensating plan-purchase refund here once an operator
// review flow exists for failed subscription writes.
func (s *PlanService) Purchase(ctx context.Context, accountID, planID string) (*models.PlanSubscription, int64, error) {
	plan, ok := s.find(planID)
	if !ok {
		return nil, 0, fmt.Errorf("plan %s: %w", planID, ErrNotFound)
	}

	newBalance, err := s.balance.ApplyBalanceChange(ctx, accountID, -plan.Price, models.TxTypePlanPurchase, models.Metadata{
		"plan_id": plan.ID,
	})
	if err != nil {
		return nil, 0, err
	}

	sub := &models.PlanSubscription{
		AccountID:   accountID,
		PlanID:      plan.ID,
		PurchasedAt: time.Now(),
		Status:      models.SubscriptionActive,
	}
	sub.ExpiresAt = sub.PurchasedAt.Add(time.Duration(plan.DurationDays) * 24 * time.Hour)

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO plan_subscriptions (account_id, plan_id, purchased_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5)`,
		sub.AccountID, sub.PlanID, sub.PurchasedAt, sub.ExpiresAt, sub.Status); err != nil {
		s.log.WithFields(logrus.Fields{
			"account_id": accountID,
			"plan_id":    planID,
		}).WithError(err).Error("subscription record failed after debit")
		return nil, newBalance, fmt.Errorf("record subscription: %w", err)
	}

	return sub, newBalance, nil
}
