package handlers

import (
	"database/sql"
	"fmt"

	"tipcast/pkg/logging"
	"tipcast/pkg/models"
)

// applyGoalContribution credits a settled donation against its referenced
// goal: contribution row, goal progress, reward unlocks, and a goal-reached
// notification the first time the target is crossed. Runs in its own
// transaction as one fan-out task.
func applyGoalContribution(d *models.Donation) error {
	if d.GoalID == nil {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin goal transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var title string
	var targetCents, currentCents int64
	var isActive bool
	err = tx.QueryRow(`
		SELECT title, target_amount_cents, current_amount_cents, is_active
		FROM bursar.goals
		WHERE id = $1
		FOR UPDATE
	`, *d.GoalID).Scan(&title, &targetCents, &currentCents, &isActive)
	if err == sql.ErrNoRows {
		logger.WithFields(logging.Fields{
			"donation_id": d.ID,
			"goal_id":     *d.GoalID,
		}).Warn("Donation references a missing goal")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load goal: %w", err)
	}
	if !isActive {
		return nil
	}

	// The unique index on donation_id makes a duplicate contribution a no-op.
	result, err := tx.Exec(`
		INSERT INTO bursar.goal_contributions (goal_id, donation_id, amount_cents)
		VALUES ($1, $2, $3)
		ON CONFLICT (donation_id) DO NOTHING
	`, *d.GoalID, d.ID, d.GrossAmountCents)
	if err != nil {
		return fmt.Errorf("failed to insert goal contribution: %w", err)
	}
	if inserted, _ := result.RowsAffected(); inserted == 0 {
		return nil
	}

	newCurrent := currentCents + d.GrossAmountCents
	_, err = tx.Exec(`
		UPDATE bursar.goals
		SET current_amount_cents = $2, updated_at = NOW()
		WHERE id = $1
	`, *d.GoalID, newCurrent)
	if err != nil {
		return fmt.Errorf("failed to update goal progress: %w", err)
	}

	if err := unlockRewardsTx(tx, *d.GoalID, d.ID, newCurrent); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit goal contribution: %w", err)
	}

	// First crossing of the target emits the goal-reached notification.
	if currentCents < targetCents && newCurrent >= targetCents {
		if err := sendGoalReachedNotification(d.RecipientUserID, *d.GoalID, title); err != nil {
			logger.WithError(err).WithField("goal_id", *d.GoalID).Warn("Failed to notify goal reached")
		}
		emitGoalReached(d, *d.GoalID)
	}

	return nil
}

// unlockRewardsTx claims every active reward whose threshold the goal's new
// total meets and whose claim cap is not exhausted. A claim cap of zero means
// unlimited.
func unlockRewardsTx(tx *sql.Tx, goalID, donationID string, currentCents int64) error {
	rows, err := tx.Query(`
		SELECT id
		FROM bursar.rewards
		WHERE goal_id = $1
		  AND is_active = TRUE
		  AND threshold_cents <= $2
		  AND (claim_cap = 0 OR claimed_count < claim_cap)
		FOR UPDATE
	`, goalID, currentCents)
	if err != nil {
		return fmt.Errorf("failed to fetch unlockable rewards: %w", err)
	}
	defer rows.Close()

	var rewardIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan reward: %w", err)
		}
		rewardIDs = append(rewardIDs, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read rewards: %w", err)
	}

	for _, rewardID := range rewardIDs {
		_, err = tx.Exec(`
			INSERT INTO bursar.reward_claims (reward_id, donation_id)
			VALUES ($1, $2)
		`, rewardID, donationID)
		if err != nil {
			return fmt.Errorf("failed to claim reward %s: %w", rewardID, err)
		}

		_, err = tx.Exec(`
			UPDATE bursar.rewards SET claimed_count = claimed_count + 1 WHERE id = $1
		`, rewardID)
		if err != nil {
			return fmt.Errorf("failed to bump reward claim count: %w", err)
		}
	}

	return nil
}
