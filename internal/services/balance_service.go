package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/takagor/wallet-backend/internal/config"
	"github.com/takagor/wallet-backend/internal/models"
)

const idemKeyTTL = 24 * time.Hour

// maxTokensPerPurchase keeps count * unit price far below int64 overflow;
// an unbounded count would wrap the cost negative and turn the debit into
// a credit.
const maxTokensPerPurchase = 1_000_000

// BalanceService is the balance engine: it atomically adjusts an account
// balance through the account store and appends the resulting event to the
// ledger. Every money-moving action in the system goes through
// ApplyBalanceChange, so the overdraft invariant is enforced in one place.
type BalanceService struct {
	accounts *AccountStore
	ledger   *LedgerService
	redis    *redis.Client
	policy   *config.Policy
	log      *logrus.Logger
}

func NewBalanceService(accounts *AccountStore, ledger *LedgerService, redisClient *redis.Client, policy *config.Policy, log *logrus.Logger) *BalanceService {
	return &BalanceService{
		accounts: accounts,
		ledger:   ledger,
		redis:    redisClient,
		policy:   policy,
		log:      log,
	}
}

// ApplyBalanceChange commits current+amount against the account and appends
// a completed ledger entry carrying the post-mutation balance snapshot.
// Debit-class types reject with ErrInsufficientFunds when the result would
// go negative; credit-class types never reject on that ground. On any
// abort or store failure nothing is written to the ledger.
func (s *BalanceService) ApplyBalanceChange(ctx context.Context, accountID string, amount int64, txType string, details models.Metadata) (int64, error) {
	newBalance, err := s.accounts.CompareAndSetBalance(ctx, accountID, func(current int64) (int64, error) {
		next := current + amount
		if next < 0 && models.DebitClass(txType) {
			return 0, fmt.Errorf("balance %d, change %d: %w", current, amount, ErrInsufficientFunds)
		}
		return next, nil
	})
	if err != nil {
		return 0, err
	}

	entry := &models.TransactionEntry{
		AccountID: accountID,
		Type:      txType,
		Amount:    amount,
		Balance:   newBalance,
		Status:    models.StatusCompleted,
		Details:   details,
	}
	if _, err := s.ledger.Append(ctx, entry); err != nil {
		// The balance is already committed, so the mutation stands; the
		// reconciliation sweep surfaces the missing entry as drift.
		s.log.WithFields(logrus.Fields{
			"account_id": accountID,
			"type":       txType,
			"amount":     amount,
		}).WithError(err).Warn("ledger append failed after balance commit")
	}

	return newBalance, nil
}

// ApplyIdempotent guards a credit against double application when a caller
// retries after an ambiguous timeout. A duplicate key returns the current
// balance without a second credit.
func (s *BalanceService) ApplyIdempotent(ctx context.Context, key, accountID string, amount int64, txType string, details models.Metadata) (int64, error) {
	if s.redis == nil || key == "" {
		return s.ApplyBalanceChange(ctx, accountID, amount, txType, details)
	}

	set, err := s.redis.SetNX(ctx, "idem:"+key, accountID, idemKeyTTL).Result()
	if err != nil {
		s.log.WithError(err).Warn("idempotency guard unavailable, applying without it")
		return s.ApplyBalanceChange(ctx, accountID, amount, txType, details)
	}
	if !set {
		s.log.WithFields(logrus.Fields{
			"account_id":      accountID,
			"idempotency_key": key,
		}).Info("duplicate credit suppressed")
		account, err := s.accounts.Get(ctx, accountID)
		if err != nil {
			return 0, err
		}
		return account.Balance, nil
	}

	newBalance, err := s.ApplyBalanceChange(ctx, accountID, amount, txType, details)
	if err != nil {
		// Nothing committed, so the key must not outlive the attempt or a
		// retry of the same credit would be suppressed.
		if delErr := s.redis.Del(ctx, "idem:"+key).Err(); delErr != nil {
			s.log.WithFields(logrus.Fields{
				"account_id":      accountID,
				"idempotency_key": key,
			}).WithError(delErr).Warn("failed to release idempotency key")
		}
		return 0, err
	}
	return newBalance, nil
}

// PurchaseTokens debits count tokens at the configured unit price.
func (s *BalanceService) PurchaseTokens(ctx context.Context, accountID string, count int64) (int64, error) {
	if count <= 0 {
		return 0, fmt.Errorf("token count must be positive, got %d", count)
	}
	if count > maxTokensPerPurchase {
		return 0, fmt.Errorf("token count %d exceeds the per-purchase limit of %d", count, maxTokensPerPurchase)
	}
	cost := count * s.policy.TokenPrice
	return s.ApplyBalanceChange(ctx, accountID, -cost, models.TxTypeTokenPurchase, models.Metadata{
		"tokens": count,
		"cost":   cost,
	})
}
