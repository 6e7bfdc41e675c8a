package handlers

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"tipcast/pkg/models"
)

func TestApplyPollVoteWeighted(t *testing.T) {
	mock := setupTest(t)
	optionID := "opt-a"
	d := &models.Donation{
		ID:               "dn-1",
		RecipientUserID:  "user-1",
		GrossAmountCents: 2000,
		PollOptionID:     &optionID,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT poll_id").
		WithArgs(optionID).
		WillReturnRows(sqlmock.NewRows([]string{"poll_id"}).AddRow("poll-1"))
	mock.ExpectQuery("SELECT weighted, status, expires_at").
		WithArgs("poll-1").
		WillReturnRows(sqlmock.NewRows([]string{"weighted", "status", "expires_at"}).
			AddRow(true, "ACTIVE", nil))
	mock.ExpectExec("INSERT INTO bursar.poll_votes").
		WithArgs("poll-1", optionID, d.ID, int64(2000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bursar.poll_options").
		WithArgs(optionID, int64(2000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bursar.polls").
		WithArgs("poll-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := applyPollVote(d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyPollVoteUniqueWeighsOne(t *testing.T) {
	mock := setupTest(t)
	optionID := "opt-a"
	d := &models.Donation{
		ID:               "dn-1",
		GrossAmountCents: 2000,
		PollOptionID:     &optionID,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT poll_id").
		WithArgs(optionID).
		WillReturnRows(sqlmock.NewRows([]string{"poll_id"}).AddRow("poll-1"))
	mock.ExpectQuery("SELECT weighted, status, expires_at").
		WithArgs("poll-1").
		WillReturnRows(sqlmock.NewRows([]string{"weighted", "status", "expires_at"}).
			AddRow(false, "ACTIVE", nil))
	mock.ExpectExec("INSERT INTO bursar.poll_votes").
		WithArgs("poll-1", optionID, d.ID, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bursar.poll_options").
		WithArgs(optionID, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bursar.polls").
		WithArgs("poll-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := applyPollVote(d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyPollVoteClosedPollIsNoop(t *testing.T) {
	mock := setupTest(t)
	optionID := "opt-a"
	d := &models.Donation{
		ID:               "dn-1",
		GrossAmountCents: 2000,
		PollOptionID:     &optionID,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT poll_id").
		WithArgs(optionID).
		WillReturnRows(sqlmock.NewRows([]string{"poll_id"}).AddRow("poll-1"))
	mock.ExpectQuery("SELECT weighted, status, expires_at").
		WithArgs("poll-1").
		WillReturnRows(sqlmock.NewRows([]string{"weighted", "status", "expires_at"}).
			AddRow(true, "CLOSED", nil))
	mock.ExpectRollback()

	if err := applyPollVote(d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyPollVoteNoOptionReference(t *testing.T) {
	mock := setupTest(t)

	if err := applyPollVote(&models.Donation{ID: "dn-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
