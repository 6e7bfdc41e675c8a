package handlers

import (
	"context"
	"database/sql"
	"time"

	"tipcast/pkg/config"
	"tipcast/pkg/logging"
	"tipcast/pkg/models"
)

// JobManager handles background settlement jobs
type JobManager struct {
	db          *sql.DB
	logger      logging.Logger
	stopCh      chan struct{}
	donationTTL time.Duration
	alertTTL    time.Duration
}

// NewJobManager creates a new job manager
func NewJobManager(database *sql.DB, log logging.Logger) *JobManager {
	return &JobManager{
		db:          database,
		logger:      log,
		stopCh:      make(chan struct{}),
		donationTTL: time.Duration(config.GetEnvInt("DONATION_TTL_MINUTES", 60)) * time.Minute,
		alertTTL:    time.Duration(config.GetEnvInt("ALERT_RETRY_MINUTES", 5)) * time.Minute,
	}
}

// Start begins all background jobs
func (jm *JobManager) Start(ctx context.Context) {
	jm.logger.Info("Starting settlement job manager")

	go jm.runDonationExpiry(ctx)
	go jm.runAlertRetry(ctx)
}

// Stop stops all background jobs
func (jm *JobManager) Stop() {
	jm.logger.Info("Stopping settlement job manager")
	close(jm.stopCh)
}

// runDonationExpiry sweeps pending donations past their TTL into EXPIRED.
func (jm *JobManager) runDonationExpiry(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	jm.logger.Info("Starting donation expiry job")

	for {
		select {
		case <-ctx.Done():
			return
		case <-jm.stopCh:
			return
		case <-ticker.C:
			jm.expireStaleDonations()
		}
	}
}

// expireStaleDonations moves each stale donation through the guarded
// transition, one transaction per donation so a single failure does not hold
// up the sweep.
func (jm *JobManager) expireStaleDonations() {
	cutoff := time.Now().Add(-jm.donationTTL)

	rows, err := jm.db.Query(`
		SELECT id FROM bursar.donations
		WHERE status = $1 AND created_at < $2
	`, string(models.DonationPending), cutoff)
	if err != nil {
		jm.logger.WithError(err).Error("Failed to fetch stale donations")
		return
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			jm.logger.WithError(err).Error("Error scanning stale donation")
			continue
		}
		ids = append(ids, id)
	}

	var expired int
	for _, id := range ids {
		tx, err := jm.db.Begin()
		if err != nil {
			jm.logger.WithError(err).Error("Failed to begin expiry transaction")
			continue
		}

		if err := HandleDonationExpired(tx, id); err != nil {
			_ = tx.Rollback()
			jm.logger.WithError(err).WithField("donation_id", id).Error("Failed to expire donation")
			continue
		}
		if err := tx.Commit(); err != nil {
			jm.logger.WithError(err).WithField("donation_id", id).Error("Failed to commit expiry")
			continue
		}
		expired++
	}

	if expired > 0 {
		jm.logger.WithField("expired", expired).Info("Expired stale donations")
	}
}

// runAlertRetry re-drives alerts stuck in QUEUED.
func (jm *JobManager) runAlertRetry(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	jm.logger.Info("Starting alert retry job")

	for {
		select {
		case <-ctx.Done():
			return
		case <-jm.stopCh:
			return
		case <-ticker.C:
			RetryStaleAlerts(jm.alertTTL)
		}
	}
}
