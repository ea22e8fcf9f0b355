package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/takagor/wallet-backend/internal/config"
	"github.com/takagor/wallet-backend/internal/models"
)

// RegistrationService composes account creation with referral resolution
// and the signup bonuses. Each step is independently atomic; there is no
// enclosing transaction across accounts, so a later step failing never
// rolls an earlier one back. Failures after creation are logged and left
// for the reconciliation sweep.
type RegistrationService struct {
	accounts  *AccountStore
	referrals *ReferralService
	balance   *BalanceService
	policy    *config.Policy
	log       *logrus.Logger
}

func NewRegistrationService(accounts *AccountStore, referrals *ReferralService, balance *BalanceService, policy *config.Policy, log *logrus.Logger) *RegistrationService {
	return &RegistrationService{
		accounts:  accounts,
		referrals: referrals,
		balance:   balance,
		policy:    policy,
		log:       log,
	}
}

// Register creates the account, its referral-code mapping and the signup
// bonus credits. An inbound referral code is resolved first; an unknown
// code rejects the whole registration before anything is written.
func (s *RegistrationService) Register(ctx context.Context, accountID, name, email, inboundCode string) (*models.Account, error) {
	if _, err := s.accounts.Get(ctx, accountID); err == nil {
		return nil, fmt.Errorf("account %s: %w", accountID, ErrAlreadyExists)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	referrerID := ""
	if code := NormalizeCode(inboundCode); code != "" {
		owner, err := s.referrals.Resolve(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("referral code %s: %w", code, ErrInvalidReferralCode)
		}
		if err != nil {
			return nil, err
		}
		if owner == accountID {
			return nil, fmt.Errorf("code %s belongs to the registering account: %w", code, ErrSelfReferral)
		}
		referrerID = owner
	}

	if name == "" {
		name = email
	}

	created := false
	for attempt := 0; attempt < s.policy.CodeMaxRetries && !created; attempt++ {
		err := s.accounts.Create(ctx, CreateAccountParams{
			AccountID:    accountID,
			Name:         name,
			Email:        email,
			ReferralCode: GenerateReferralCode(),
			ReferredBy:   referrerID,
		})
		switch {
		case err == nil:
			created = true
		case errors.Is(err, ErrAlreadyExists):
			// Either a referral-code collision or a duplicate-registration
			// race. A fresh code resolves the former; the latter keeps
			// failing and is surfaced after the retries.
			s.log.WithField("account_id", accountID).WithError(err).
				Warn("account create collision, retrying with fresh code")
		default:
			return nil, err
		}
	}
	if !created {
		return nil, fmt.Errorf("account %s: %w", accountID, ErrAlreadyExists)
	}

	// Creation is the one trigger point for the welcome bonus; login never
	// re-applies it.
	if _, err := s.balance.ApplyBalanceChange(ctx, accountID, s.policy.WelcomeBonus, models.TxTypeWelcomeBonus, nil); err != nil {
		s.log.WithField("account_id", accountID).WithError(err).
			Error("welcome bonus credit failed")
	}

	if referrerID != "" {
		if _, err := s.balance.ApplyBalanceChange(ctx, accountID, s.policy.ReferralBonus, models.TxTypeReferralBonus, models.Metadata{
			"referrer_id": referrerID,
		}); err != nil {
			s.log.WithFields(logrus.Fields{
				"account_id":  accountID,
				"referrer_id": referrerID,
			}).WithError(err).Error("referee bonus credit failed")
		}

		// Idempotency key makes a retried registration credit the referrer
		// at most once.
		if _, err := s.balance.ApplyIdempotent(ctx, "referrer-credit:"+accountID, referrerID, s.policy.ReferrerBonus, models.TxTypeReferralBonus, models.Metadata{
			"referred_account": accountID,
		}); err != nil {
			s.log.WithFields(logrus.Fields{
				"account_id":  accountID,
				"referrer_id": referrerID,
			}).WithError(err).Error("referrer credit failed")
		}
	}

	return s.accounts.Get(ctx, accountID)
}
