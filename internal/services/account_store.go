package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/takagor/wallet-backend/internal/models"
)

// AccountStore owns the accounts table. CompareAndSetBalance is the sole
// balance mutation primitive; everything money-moving funnels through it.
type AccountStore struct {
	db         *sql.DB
	maxRetries int
	log        *logrus.Logger
}

func NewAccountStore(db *sql.DB, maxRetries int, log *logrus.Logger) *AccountStore {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &AccountStore{
		db:         db,
		maxRetries: maxRetries,
		log:        log,
	}
}

type CreateAccountParams struct {
	AccountID    string
	Name         string
	Email        string
	ReferralCode string
	ReferredBy   string
}

// Create inserts the account row and its referral-code mapping in one
// transaction, so a code collision cannot leave a half-created account.
// The welcome-bonus flag is set here: creation is the single trigger point
// for that bonus.
func (s *AccountStore) Create(ctx context.Context, p CreateAccountParams) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create account: %v: %w", err, ErrUnavailable)
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (account_id, name, email, balance, version, referral_code, referred_by, welcome_bonus_granted, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 1, $4, NULLIF($5, ''), TRUE, $6, $6)`,
		p.AccountID, p.Name, p.Email, p.ReferralCode, p.ReferredBy, now); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account %s: %w", p.AccountID, ErrAlreadyExists)
		}
		return fmt.Errorf("insert account: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO referral_codes (code, account_id) VALUES ($1, $2)`,
		p.ReferralCode, p.AccountID); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("referral code %s: %w", p.ReferralCode, ErrAlreadyExists)
		}
		return fmt.Errorf("insert referral code: %w", err)
	}

	return tx.Commit()
}

func (s *AccountStore) Get(ctx context.Context, accountID string) (*models.Account, error) {
	var a models.Account
	var referredBy sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT account_id, name, email, balance, version, referral_code, referred_by, welcome_bonus_granted, created_at, updated_at
		FROM accounts WHERE account_id = $1`, accountID).
		Scan(&a.AccountID, &a.Name, &a.Email, &a.Balance, &a.Version, &a.ReferralCode,
			&referredBy, &a.WelcomeBonusGranted, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	a.ReferredBy = referredBy.String
	return &a, nil
}

// CompareAndSetBalance applies mutate to the latest balance and writes the
// result only if no other writer got there first, retrying on conflict.
// mutate returning an error aborts with no write. Retry budget exhausted
// reports ErrUnavailable.
func (s *AccountStore) CompareAndSetBalance(ctx context.Context, accountID string, mutate func(current int64) (int64, error)) (int64, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var balance int64
		var version int
		err := s.db.QueryRowContext(ctx,
			`SELECT balance, version FROM accounts WHERE account_id = $1`, accountID).
			Scan(&balance, &version)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
		}
		if err != nil {
			return 0, fmt.Errorf("read balance: %v: %w", err, ErrUnavailable)
		}

		next, err := mutate(balance)
		if err != nil {
			return 0, err
		}

		result, err := s.db.ExecContext(ctx, `
			UPDATE accounts SET balance = $1, version = version + 1, updated_at = $2
			WHERE account_id = $3 AND version = $4`,
			next, time.Now(), accountID, version)
		if err != nil {
			return 0, fmt.Errorf("write balance: %v: %w", err, ErrUnavailable)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("write balance: %v: %w", err, ErrUnavailable)
		}
		if rowsAffected == 1 {
			return next, nil
		}

		s.log.WithFields(logrus.Fields{
			"account_id": accountID,
			"attempt":    attempt + 1,
		}).Debug("balance version conflict, retrying")
	}

	return 0, fmt.Errorf("balance update contention on %s: %w", accountID, ErrUnavailable)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
