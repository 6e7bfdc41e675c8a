package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tipcast/pkg/models"
)

var (
	ErrDonationNotFound = errors.New("donation not found")
	ErrAlreadyTerminal  = errors.New("donation already in a terminal status")
)

// findDonationByProviderPayment resolves the donation a provider signal
// refers to.
func findDonationByProviderPayment(provider models.PaymentProvider, providerPaymentID string) (*models.Donation, error) {
	d := &models.Donation{}
	err := db.QueryRow(`
		SELECT id, recipient_user_id, donor_name, message, gross_amount_cents,
		       payment_provider, provider_payment_id, status, paid_at,
		       goal_id, poll_option_id, created_at, updated_at
		FROM bursar.donations
		WHERE payment_provider = $1 AND provider_payment_id = $2
	`, string(provider), providerPaymentID).Scan(
		&d.ID, &d.RecipientUserID, &d.DonorName, &d.Message, &d.GrossAmountCents,
		&d.PaymentProvider, &d.ProviderPaymentID, &d.Status, &d.PaidAt,
		&d.GoalID, &d.PollOptionID, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrDonationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up donation: %w", err)
	}
	return d, nil
}

// getDonationTx loads a donation for update within a transaction.
func getDonationTx(tx *sql.Tx, donationID string) (*models.Donation, error) {
	d := &models.Donation{}
	err := tx.QueryRow(`
		SELECT id, recipient_user_id, donor_name, message, gross_amount_cents,
		       payment_provider, provider_payment_id, status, paid_at,
		       goal_id, poll_option_id, created_at, updated_at
		FROM bursar.donations
		WHERE id = $1
		FOR UPDATE
	`, donationID).Scan(
		&d.ID, &d.RecipientUserID, &d.DonorName, &d.Message, &d.GrossAmountCents,
		&d.PaymentProvider, &d.ProviderPaymentID, &d.Status, &d.PaidAt,
		&d.GoalID, &d.PollOptionID, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrDonationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load donation: %w", err)
	}
	return d, nil
}

// transitionDonationTx performs a guarded status flip: the UPDATE only
// matches rows whose current status is a legal predecessor of the target, so
// an illegal or repeated transition affects zero rows.
func transitionDonationTx(tx *sql.Tx, donationID string, to models.DonationStatus) (bool, error) {
	predecessors := models.PredecessorsOf(to)
	if len(predecessors) == 0 {
		return false, fmt.Errorf("status %s has no legal predecessors", to)
	}

	placeholders := make([]string, len(predecessors))
	args := []interface{}{donationID, string(to)}
	for i, p := range predecessors {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, string(p))
	}

	query := fmt.Sprintf(`
		UPDATE bursar.donations
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status IN (%s)
	`, strings.Join(placeholders, ", "))

	result, err := tx.Exec(query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to transition donation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read transition result: %w", err)
	}
	return affected == 1, nil
}

// MarkDonationPending moves a donation to PENDING once the provider has
// opened a charge, attaching the provider payment ID. A no-op when the
// donation already progressed past CREATED.
func MarkDonationPending(donationID, providerPaymentID string) error {
	result, err := db.Exec(`
		UPDATE bursar.donations
		SET status = $2, provider_payment_id = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, donationID, string(models.DonationPending), providerPaymentID, string(models.DonationCreated))
	if err != nil {
		return fmt.Errorf("failed to mark donation pending: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		logger.WithField("donation_id", donationID).Debug("Donation already past CREATED, pending flip skipped")
	}
	return nil
}
