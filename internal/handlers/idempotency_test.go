package handlers

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestProcessOnceReplaySkipsEffect(t *testing.T) {
	mock := setupTest(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bursar.webhook_events").
		WithArgs("pix", "p1_paid", "paid").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	effectRan := false
	already, err := ProcessOnce("pix", "p1_paid", "paid", func(tx *sql.Tx) error {
		effectRan = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !already {
		t.Error("expected alreadyProcessed=true")
	}
	if effectRan {
		t.Error("effect must not run for a replay")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProcessOnceEffectFailureReleasesClaim(t *testing.T) {
	mock := setupTest(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bursar.webhook_events").
		WithArgs("pix", "p1_paid", "paid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("effect failed")
	already, err := ProcessOnce("pix", "p1_paid", "paid", func(tx *sql.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected effect error to propagate, got %v", err)
	}
	if already {
		t.Error("expected alreadyProcessed=false")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProcessOnceSealsClaimOnSuccess(t *testing.T) {
	mock := setupTest(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bursar.webhook_events").
		WithArgs("pix", "p1_paid", "paid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	effectRan := false
	already, err := ProcessOnce("pix", "p1_paid", "paid", func(tx *sql.Tx) error {
		effectRan = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if already {
		t.Error("expected alreadyProcessed=false")
	}
	if !effectRan {
		t.Error("effect must run exactly once on first delivery")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
