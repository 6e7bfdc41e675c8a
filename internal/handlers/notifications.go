package handlers

import (
	"fmt"

	"tipcast/pkg/models"
)

func createNotification(userID, notificationType, title, body string, referenceID *string) error {
	_, err := db.Exec(`
		INSERT INTO bursar.notifications (user_id, notification_type, title, body, reference_id)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, notificationType, title, body, referenceID)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// sendDonationNotification notifies the recipient of a settled donation.
func sendDonationNotification(d *models.Donation) error {
	title := fmt.Sprintf("New donation from %s", d.DonorName)
	return createNotification(d.RecipientUserID, models.NotificationDonation, title, d.Message, &d.ID)
}

// sendGoalReachedNotification notifies the streamer that a goal hit its target.
func sendGoalReachedNotification(userID, goalID, goalTitle string) error {
	title := fmt.Sprintf("Goal reached: %s", goalTitle)
	return createNotification(userID, models.NotificationGoalReached, title, "", &goalID)
}
