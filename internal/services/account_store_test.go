package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestAccountStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := NewAccountStore(db, 5, logrus.New())

	t.Run("creates account and referral mapping atomically", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO accounts").
			WithArgs("user1", "Ada", "ada@example.com", "ABC123", "", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO referral_codes").
			WithArgs("ABC123", "user1").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := store.Create(context.Background(), CreateAccountParams{
			AccountID:    "user1",
			Name:         "Ada",
			Email:        "ada@example.com",
			ReferralCode: "ABC123",
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate account id", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		err := store.Create(context.Background(), CreateAccountParams{
			AccountID:    "user1",
			Email:        "ada@example.com",
			ReferralCode: "ABC123",
		})
		assert.ErrorIs(t, err, ErrAlreadyExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("referral code collision rolls everything back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO referral_codes").
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		err := store.Create(context.Background(), CreateAccountParams{
			AccountID:    "user2",
			Email:        "bea@example.com",
			ReferralCode: "ABC123",
		})
		assert.ErrorIs(t, err, ErrAlreadyExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountStore_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := NewAccountStore(db, 5, logrus.New())
	cols := []string{"account_id", "name", "email", "balance", "version", "referral_code", "referred_by", "welcome_bonus_granted", "created_at", "updated_at"}

	t.Run("existing account", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM accounts WHERE account_id = \\$1").
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow("user1", "Ada", "ada@example.com", 70, 3, "ABC123", nil, true, time.Now(), time.Now()))

		account, err := store.Get(context.Background(), "user1")
		assert.NoError(t, err)
		assert.Equal(t, int64(70), account.Balance)
		assert.Equal(t, "ABC123", account.ReferralCode)
		assert.Empty(t, account.ReferredBy)
		assert.True(t, account.WelcomeBonusGranted)
	})

	t.Run("unknown account", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM accounts WHERE account_id = \\$1").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(cols))

		_, err := store.Get(context.Background(), "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestAccountStore_CompareAndSetBalance(t *testing.T) {
	t.Run("applies mutator", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		store := NewAccountStore(db, 5, logrus.New())

		mock.ExpectQuery("SELECT balance, version FROM accounts WHERE account_id = \\$1").
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows([]string{"balance", "version"}).AddRow(100, 1))
		mock.ExpectExec("UPDATE accounts SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE account_id = \\$3 AND version = \\$4").
			WithArgs(150, sqlmock.AnyArg(), "user1", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		newBalance, err := store.CompareAndSetBalance(context.Background(), "user1", func(current int64) (int64, error) {
			return current + 50, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(150), newBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retries on version conflict with a fresh read", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		store := NewAccountStore(db, 5, logrus.New())

		// First round: another writer bumped the version between our read
		// and write.
		mock.ExpectQuery("SELECT balance, version FROM accounts").
			WillReturnRows(sqlmock.NewRows([]string{"balance", "version"}).AddRow(100, 1))
		mock.ExpectExec("UPDATE accounts").
			WithArgs(110, sqlmock.AnyArg(), "user1", 1).
			WillReturnResult(sqlmock.NewResult(0, 0))

		// Second round re-reads and sees the concurrent withdrawal.
		mock.ExpectQuery("SELECT balance, version FROM accounts").
			WillReturnRows(sqlmock.NewRows([]string{"balance", "version"}).AddRow(40, 2))
		mock.ExpectExec("UPDATE accounts").
			WithArgs(50, sqlmock.AnyArg(), "user1", 2).
			WillReturnResult(sqlmock.NewResult(0, 1))

		newBalance, err := store.CompareAndSetBalance(context.Background(), "user1", func(current int64) (int64, error) {
			return current + 10, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(50), newBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mutator abort writes nothing", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		store := NewAccountStore(db, 5, logrus.New())

		mock.ExpectQuery("SELECT balance, version FROM accounts").
			WillReturnRows(sqlmock.NewRows([]string{"balance", "version"}).AddRow(40, 7))

		_, err = store.CompareAndSetBalance(context.Background(), "user1", func(current int64) (int64, error) {
			return 0, ErrInsufficientFunds
		})
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retry budget exhausted", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		store := NewAccountStore(db, 2, logrus.New())

		for i := 0; i < 2; i++ {
			mock.ExpectQuery("SELECT balance, version FROM accounts").
				WillReturnRows(sqlmock.NewRows([]string{"balance", "version"}).AddRow(100, 1))
			mock.ExpectExec("UPDATE accounts").
				WillReturnResult(sqlmock.NewResult(0, 0))
		}

		_, err = store.CompareAndSetBalance(context.Background(), "user1", func(current int64) (int64, error) {
			return current + 1, nil
		})
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown account", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		store := NewAccountStore(db, 5, logrus.New())

		mock.ExpectQuery("SELECT balance, version FROM accounts").
			WillReturnRows(sqlmock.NewRows([]string{"balance", "version"}))

		_, err = store.CompareAndSetBalance(context.Background(), "ghost", func(current int64) (int64, error) {
			return current, nil
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
