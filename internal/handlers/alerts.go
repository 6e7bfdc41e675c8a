package handlers

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"tipcast/pkg/config"
	"tipcast/pkg/logging"
	"tipcast/pkg/models"
)

// createAlertTx queues an overlay alert for a settled donation inside the
// settlement transaction.
func createAlertTx(tx *sql.Tx, d *models.Donation) error {
	_, err := tx.Exec(`
		INSERT INTO bursar.alerts (user_id, donation_id, donor_name, message, amount_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, d.RecipientUserID, d.ID, d.DonorName, d.Message, d.GrossAmountCents, models.AlertQueued)
	if err != nil {
		return fmt.Errorf("failed to queue alert: %w", err)
	}
	return nil
}

// ttsResponse is the speech-synthesis collaborator's reply.
type ttsResponse struct {
	AudioURL string `json:"audio_url"`
}

// triggerAlertAudio asks the speech-synthesis collaborator to render the
// alert's message. On any failure the alert still goes READY, just without
// audio, so the overlay never starves waiting on TTS.
func triggerAlertAudio(d *models.Donation) error {
	var alertID string
	err := db.QueryRow(`
		SELECT id FROM bursar.alerts
		WHERE donation_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, d.ID, models.AlertQueued).Scan(&alertID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find queued alert: %w", err)
	}

	audioURL := requestSpeechAudio(d)
	return markAlertReady(alertID, audioURL)
}

// requestSpeechAudio calls the TTS service and returns the audio URL, or ""
// when TTS is unconfigured or fails.
func requestSpeechAudio(d *models.Donation) string {
	ttsURL := config.GetEnv("TTS_SERVICE_URL", "")
	if ttsURL == "" || d.Message == "" {
		return ""
	}

	client := resty.New().SetTimeout(10 * time.Second)
	var result ttsResponse
	resp, err := client.R().
		SetBody(map[string]interface{}{
			"text":       d.Message,
			"donor_name": d.DonorName,
		}).
		SetResult(&result).
		Post(ttsURL + "/synthesize")

	if err != nil || resp.IsError() || result.AudioURL == "" {
		logger.WithFields(logging.Fields{
			"donation_id": d.ID,
			"error":       err,
		}).Warn("Speech synthesis failed, alert goes ready without audio")
		return ""
	}

	return result.AudioURL
}

func markAlertReady(alertID, audioURL string) error {
	var audio interface{}
	if audioURL != "" {
		audio = audioURL
	}
	_, err := db.Exec(`
		UPDATE bursar.alerts
		SET status = $2, audio_url = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, alertID, models.AlertReady, audio, models.AlertQueued)
	if err != nil {
		return fmt.Errorf("failed to mark alert ready: %w", err)
	}
	return nil
}

// RetryStaleAlerts re-drives alerts stuck in QUEUED past the given age.
// Called by the background job; each alert goes READY with or without audio.
func RetryStaleAlerts(olderThan time.Duration) {
	rows, err := db.Query(`
		SELECT a.id, a.donation_id, a.user_id, a.donor_name, a.message, a.amount_cents
		FROM bursar.alerts a
		WHERE a.status = $1 AND a.created_at < $2
	`, models.AlertQueued, time.Now().Add(-olderThan))
	if err != nil {
		logger.WithError(err).Error("Failed to fetch stale alerts")
		return
	}
	defer rows.Close()

	var retried int
	for rows.Next() {
		var alertID string
		d := &models.Donation{}
		if err := rows.Scan(&alertID, &d.ID, &d.RecipientUserID, &d.DonorName, &d.Message, &d.GrossAmountCents); err != nil {
			logger.WithError(err).Error("Error scanning stale alert")
			continue
		}

		audioURL := requestSpeechAudio(d)
		if err := markAlertReady(alertID, audioURL); err != nil {
			logger.WithError(err).WithField("alert_id", alertID).Error("Failed to retry stale alert")
			continue
		}
		retried++
	}

	if retried > 0 {
		logger.WithField("retried", retried).Info("Re-drove stale alerts")
	}
}
