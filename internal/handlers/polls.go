package handlers

import (
	"database/sql"
	"fmt"
	"time"

	"tipcast/pkg/logging"
	"tipcast/pkg/models"
)

// applyPollVote tallies a settled donation's poll vote: weight 1 for
// unique-vote polls, the gross amount for weighted polls. The poll must
// still be ACTIVE and unexpired. Runs in its own transaction as one fan-out
// task.
func applyPollVote(d *models.Donation) error {
	if d.PollOptionID == nil {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin poll transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var pollID string
	err = tx.QueryRow(`
		SELECT poll_id FROM bursar.poll_options WHERE id = $1
	`, *d.PollOptionID).Scan(&pollID)
	if err == sql.ErrNoRows {
		logger.WithFields(logging.Fields{
			"donation_id":    d.ID,
			"poll_option_id": *d.PollOptionID,
		}).Warn("Donation references a missing poll option")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve poll option: %w", err)
	}

	var weighted bool
	var status string
	var expiresAt sql.NullTime
	err = tx.QueryRow(`
		SELECT weighted, status, expires_at
		FROM bursar.polls
		WHERE id = $1
		FOR UPDATE
	`, pollID).Scan(&weighted, &status, &expiresAt)
	if err != nil {
		return fmt.Errorf("failed to load poll: %w", err)
	}

	if status != models.PollActive {
		return nil
	}
	if expiresAt.Valid && expiresAt.Time.Before(time.Now()) {
		return nil
	}

	weight := int64(1)
	if weighted {
		weight = d.GrossAmountCents
	}

	// The unique index on donation_id makes a duplicate vote a no-op.
	result, err := tx.Exec(`
		INSERT INTO bursar.poll_votes (poll_id, option_id, donation_id, weight)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (donation_id) DO NOTHING
	`, pollID, *d.PollOptionID, d.ID, weight)
	if err != nil {
		return fmt.Errorf("failed to insert poll vote: %w", err)
	}
	if inserted, _ := result.RowsAffected(); inserted == 0 {
		return nil
	}

	_, err = tx.Exec(`
		UPDATE bursar.poll_options
		SET vote_count = vote_count + 1, vote_weight = vote_weight + $2
		WHERE id = $1
	`, *d.PollOptionID, weight)
	if err != nil {
		return fmt.Errorf("failed to tally poll option: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE bursar.polls SET total_votes = total_votes + 1 WHERE id = $1
	`, pollID)
	if err != nil {
		return fmt.Errorf("failed to tally poll total: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit poll vote: %w", err)
	}

	return nil
}
