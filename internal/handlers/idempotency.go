package handlers

import (
	"database/sql"
	"fmt"
)

// ProcessOnce runs effect exactly once for a given (provider, eventKey).
//
// The claim row is inserted inside the same transaction the effect runs in:
// if the effect fails, the rollback releases the claim so the provider's
// retry can re-attempt it; if the process crashes mid-effect, the open
// transaction dies with it and the claim is released. A concurrent duplicate
// delivery blocks on the claim row's primary key until the first delivery
// commits or rolls back, then sees the outcome.
//
// Returns alreadyProcessed=true without invoking effect when the event was
// previously sealed.
func ProcessOnce(provider, eventKey, eventType string, effect func(tx *sql.Tx) error) (bool, error) {
	tx, err := db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin idempotency transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.Exec(`
		INSERT INTO bursar.webhook_events (provider, event_key, event_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, event_key) DO NOTHING
	`, provider, eventKey, eventType)
	if err != nil {
		return false, fmt.Errorf("failed to claim webhook event: %w", err)
	}

	claimed, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	if claimed == 0 {
		return true, nil
	}

	if err := effect(tx); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to seal webhook event: %w", err)
	}

	return false, nil
}
