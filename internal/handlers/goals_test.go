package handlers

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"tipcast/pkg/models"
)

func TestApplyGoalContributionReachesTarget(t *testing.T) {
	mock := setupTest(t)
	goalID := "goal-1"
	d := &models.Donation{
		ID:               "dn-1",
		RecipientUserID:  "user-1",
		GrossAmountCents: 2000,
		GoalID:           &goalID,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT title, target_amount_cents").
		WithArgs(goalID).
		WillReturnRows(sqlmock.NewRows([]string{"title", "target_amount_cents", "current_amount_cents", "is_active"}).
			AddRow("New microphone", int64(10000), int64(9000), true))
	mock.ExpectExec("INSERT INTO bursar.goal_contributions").
		WithArgs(goalID, d.ID, int64(2000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bursar.goals").
		WithArgs(goalID, int64(11000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM bursar.rewards").
		WithArgs(goalID, int64(11000)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rw-1"))
	mock.ExpectExec("INSERT INTO bursar.reward_claims").
		WithArgs("rw-1", d.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bursar.rewards").
		WithArgs("rw-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	// crossing the target emits the goal-reached notification after commit
	mock.ExpectExec("INSERT INTO bursar.notifications").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := applyGoalContribution(d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyGoalContributionInactiveGoalIsNoop(t *testing.T) {
	mock := setupTest(t)
	goalID := "goal-1"
	d := &models.Donation{
		ID:               "dn-1",
		RecipientUserID:  "user-1",
		GrossAmountCents: 2000,
		GoalID:           &goalID,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT title, target_amount_cents").
		WithArgs(goalID).
		WillReturnRows(sqlmock.NewRows([]string{"title", "target_amount_cents", "current_amount_cents", "is_active"}).
			AddRow("Old goal", int64(10000), int64(0), false))
	mock.ExpectRollback()

	if err := applyGoalContribution(d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyGoalContributionNoGoalReference(t *testing.T) {
	mock := setupTest(t)

	if err := applyGoalContribution(&models.Donation{ID: "dn-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApplyGoalContributionDuplicateIsNoop(t *testing.T) {
	mock := setupTest(t)
	goalID := "goal-1"
	d := &models.Donation{
		ID:               "dn-1",
		RecipientUserID:  "user-1",
		GrossAmountCents: 2000,
		GoalID:           &goalID,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT title, target_amount_cents").
		WithArgs(goalID).
		WillReturnRows(sqlmock.NewRows([]string{"title", "target_amount_cents", "current_amount_cents", "is_active"}).
			AddRow("New microphone", int64(10000), int64(9000), true))
	mock.ExpectExec("INSERT INTO bursar.goal_contributions").
		WithArgs(goalID, d.ID, int64(2000)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	if err := applyGoalContribution(d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
