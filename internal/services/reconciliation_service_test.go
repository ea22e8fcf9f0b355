package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/takagor/wallet-backend/internal/models"
)

func newReconciliationService(t *testing.T) (*ReconciliationService, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	log := logrus.New()
	service := NewReconciliationService(db, NewLedgerService(db, log), log)
	return service, mock, func() { db.Close() }
}

func TestReconciliationService_CheckAccount(t *testing.T) {
	t.Run("balance matching the ledger has zero drift", func(t *testing.T) {
		service, mock, done := newReconciliationService(t)
		defer done()

		mock.ExpectQuery("SELECT balance FROM accounts").
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(70))
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM ledger_entries").
			WithArgs("user1", models.StatusCompleted).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(70))

		drift, err := service.CheckAccount(context.Background(), "user1")
		assert.NoError(t, err)
		assert.Equal(t, int64(0), drift)
	})

	t.Run("missing ledger entry surfaces as positive drift", func(t *testing.T) {
		service, mock, done := newReconciliationService(t)
		defer done()

		mock.ExpectQuery("SELECT balance FROM accounts").
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(100))
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM ledger_entries").
			WithArgs("user1", models.StatusCompleted).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(50))

		drift, err := service.CheckAccount(context.Background(), "user1")
		assert.NoError(t, err)
		assert.Equal(t, int64(50), drift)
	})

	t.Run("unknown account", func(t *testing.T) {
		service, mock, done := newReconciliationService(t)
		defer done()

		mock.ExpectQuery("SELECT balance FROM accounts").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}))

		_, err := service.CheckAccount(context.Background(), "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestReconciliationService_Run(t *testing.T) {
	t.Run("sweeps every account", func(t *testing.T) {
		service, mock, done := newReconciliationService(t)
		defer done()

		mock.ExpectQuery("SELECT account_id FROM accounts").
			WillReturnRows(sqlmock.NewRows([]string{"account_id"}).AddRow("user1").AddRow("user2"))

		mock.ExpectQuery("SELECT balance FROM accounts").
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(70))
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM ledger_entries").
			WithArgs("user1", models.StatusCompleted).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(70))

		// Drifting account does not stop the sweep.
		mock.ExpectQuery("SELECT balance FROM accounts").
			WithArgs("user2").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(30))
		mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM ledger_entries").
			WithArgs("user2", models.StatusCompleted).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(10))

		err := service.Run(context.Background())
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no accounts is a clean pass", func(t *testing.T) {
		service, mock, done := newReconciliationService(t)
		defer done()

		mock.ExpectQuery("SELECT account_id FROM accounts").
			WillReturnRows(sqlmock.NewRows([]string{"account_id"}))

		assert.NoError(t, service.Run(context.Background()))
	})
}
