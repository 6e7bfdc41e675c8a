package handlers

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
)

// setupTest swaps the package-level DB for a sqlmock and resets the ambient
// state the handlers read.
func setupTest(t *testing.T) sqlmock.Sqlmock {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db = mockDB
	logger = logrus.New()
	metrics = nil
	producer = nil
	withdrawTZ = time.UTC

	minWithdrawCents = 1000
	dailyCapCents = 200000
	monthlyCapCents = 2000000

	t.Cleanup(func() {
		db = nil
		mockDB.Close()
	})

	return mock
}
