package handlers

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"tipcast/pkg/models"
)

func TestRecordTransactionCreditChainsBalance(t *testing.T) {
	mock := setupTest(t)
	userID := "11111111-1111-1111-1111-111111111111"

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT balance_after_cents").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance_after_cents"}).AddRow(int64(1000)))
	mock.ExpectQuery("INSERT INTO bursar.transactions").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow("tx-1", time.Now()))
	mock.ExpectCommit()

	donationID := "donation-1"
	txn, err := RecordTransaction(userID, models.TxDonationReceived,
		5000, 150, 4850, models.MethodPix, &donationID, "donation", "Donation from Alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if txn.BalanceAfterCents != 5850 {
		t.Errorf("balance_after: expected 5850, got %d", txn.BalanceAfterCents)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecordTransactionFirstWriteStartsAtZero(t *testing.T) {
	mock := setupTest(t)
	userID := "11111111-1111-1111-1111-111111111111"

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT balance_after_cents").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance_after_cents"}))
	mock.ExpectQuery("INSERT INTO bursar.transactions").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow("tx-1", time.Now()))
	mock.ExpectCommit()

	txn, err := RecordTransaction(userID, models.TxDonationReceived,
		5000, 150, 4850, models.MethodPix, nil, "", "First donation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if txn.BalanceAfterCents != 4850 {
		t.Errorf("balance_after: expected 4850, got %d", txn.BalanceAfterCents)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecordTransactionWithdrawalDebitsBalance(t *testing.T) {
	mock := setupTest(t)
	userID := "11111111-1111-1111-1111-111111111111"

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT balance_after_cents").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance_after_cents"}).AddRow(int64(10000)))
	mock.ExpectQuery("INSERT INTO bursar.transactions").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow("tx-2", time.Now()))
	mock.ExpectCommit()

	txn, err := RecordTransaction(userID, models.TxWithdrawal,
		4000, 0, 4000, models.MethodPix, nil, "", "Withdrawal via PIX")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if txn.BalanceAfterCents != 6000 {
		t.Errorf("balance_after: expected 6000, got %d", txn.BalanceAfterCents)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
