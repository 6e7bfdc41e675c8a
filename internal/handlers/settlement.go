package handlers

import (
	"database/sql"
	"fmt"

	"tipcast/pkg/logging"
	"tipcast/pkg/models"
)

// settleDonationPaidTx is the atomic settlement core: status flip to PAID,
// CREDIT ledger entry for the gross amount, and a QUEUED alert, all in the
// caller's transaction. Either all three commit or none do. Returns the
// loaded donation for the post-commit fan-out.
func settleDonationPaidTx(tx *sql.Tx, donationID string) (*models.Donation, error) {
	d, err := getDonationTx(tx, donationID)
	if err != nil {
		return nil, err
	}

	if d.Status.Terminal() {
		return nil, fmt.Errorf("%w: donation %s is %s", ErrAlreadyTerminal, d.ID, d.Status)
	}

	flipped, err := transitionDonationTx(tx, d.ID, models.DonationPaid)
	if err != nil {
		return nil, err
	}
	if !flipped {
		return nil, fmt.Errorf("%w: donation %s is %s", ErrAlreadyTerminal, d.ID, d.Status)
	}

	err = tx.QueryRow(`
		UPDATE bursar.donations SET paid_at = NOW() WHERE id = $1
		RETURNING paid_at
	`, d.ID).Scan(&d.PaidAt)
	if err != nil {
		return nil, fmt.Errorf("failed to stamp paid_at: %w", err)
	}
	d.Status = models.DonationPaid

	_, err = tx.Exec(`
		INSERT INTO bursar.ledger_entries (user_id, entry_type, source, amount_cents, reference_id)
		VALUES ($1, $2, $3, $4, $5)
	`, d.RecipientUserID, string(models.LedgerCredit), string(models.SourceDonation),
		d.GrossAmountCents, d.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to credit ledger: %w", err)
	}

	if err := createAlertTx(tx, d); err != nil {
		return nil, err
	}

	return d, nil
}

// HandleDonationPaid settles a paid donation: the atomic core commits in the
// given transaction, and the returned donation drives the caller's
// post-commit fan-out. Intended to run as a ProcessOnce effect.
func HandleDonationPaid(tx *sql.Tx, donationID string) (*models.Donation, error) {
	d, err := settleDonationPaidTx(tx, donationID)
	if err != nil {
		if metrics != nil {
			metrics.SettlementConsistent.Inc()
		}
		return nil, err
	}

	logger.WithFields(logging.Fields{
		"donation_id": d.ID,
		"user_id":     d.RecipientUserID,
		"amount":      d.GrossAmountCents,
		"provider":    d.PaymentProvider,
	}).Info("Donation settled")

	return d, nil
}

// HandleDonationFailed moves a donation to FAILED. No fan-out.
func HandleDonationFailed(tx *sql.Tx, donationID string) error {
	return terminateDonation(tx, donationID, models.DonationFailed)
}

// HandleDonationExpired moves a donation to EXPIRED. No fan-out.
func HandleDonationExpired(tx *sql.Tx, donationID string) error {
	return terminateDonation(tx, donationID, models.DonationExpired)
}

func terminateDonation(tx *sql.Tx, donationID string, to models.DonationStatus) error {
	flipped, err := transitionDonationTx(tx, donationID, to)
	if err != nil {
		return err
	}
	if !flipped {
		logger.WithFields(logging.Fields{
			"donation_id": donationID,
			"target":      to,
		}).Warn("Terminal flip skipped, donation already terminal")
		return nil
	}

	logger.WithFields(logging.Fields{
		"donation_id": donationID,
		"status":      to,
	}).Info("Donation terminated")
	return nil
}
