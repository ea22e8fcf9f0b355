package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/takagor/wallet-backend/internal/models"
)

// LedgerService owns the append-only per-account transaction log. Entries
// are written solely by the balance engine and never edited or removed.
type LedgerService struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewLedgerService(db *sql.DB, log *logrus.Logger) *LedgerService {
	return &LedgerService{
		db:  db,
		log: log,
	}
}

// Append stores one entry, ordered after everything previously written for
// the account, and returns the assigned id.
func (s *LedgerService) Append(ctx context.Context, entry *models.TransactionEntry) (int64, error) {
	if entry.ReferenceID == "" {
		entry.ReferenceID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO ledger_entries (account_id, reference_id, type, amount, balance, status, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		entry.AccountID, entry.ReferenceID, entry.Type, entry.Amount, entry.Balance,
		entry.Status, entry.Details, entry.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append ledger entry: %w", err)
	}

	entry.ID = id
	return id, nil
}

// List returns every entry for the account, newest first. Each call is a
// fresh snapshot, so callers can re-display it on navigation.
func (s *LedgerService) List(ctx context.Context, accountID string) ([]models.TransactionEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, reference_id, type, amount, balance, status, details, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []models.TransactionEntry{}
	for rows.Next() {
		var e models.TransactionEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.ReferenceID, &e.Type, &e.Amount,
			&e.Balance, &e.Status, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SumCompleted re-derives the balance from the ledger: the sum of amounts
// over all completed entries for the account.
func (s *LedgerService) SumCompleted(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM ledger_entries
		WHERE account_id = $1 AND status = $2`,
		accountID, models.StatusCompleted).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum ledger entries: %w", err)
	}
	return sum, nil
}
