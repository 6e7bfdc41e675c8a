package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tipcast/pkg/kafka"
	"tipcast/pkg/models"
)

// emitSettlementEvent publishes one settlement event, best-effort. A missing
// producer or a publish failure is logged and swallowed; downstream surfaces
// are enrichment, never correctness.
func emitSettlementEvent(event *kafka.SettlementEvent) {
	if producer == nil {
		return
	}

	event.EventID = uuid.New().String()
	event.Timestamp = time.Now()

	if err := producer.PublishSettlementEvent(context.Background(), event); err != nil {
		logger.WithError(err).WithField("event_type", event.EventType).Warn("Failed to emit settlement event")
	}
}

func emitDonationSettled(d *models.Donation) error {
	fees := CalculateFee(d.GrossAmountCents, models.NormalizeMethod(models.PaymentMethod(d.PaymentProvider)))
	emitSettlementEvent(&kafka.SettlementEvent{
		EventType:   kafka.EventDonationSettled,
		UserID:      d.RecipientUserID,
		DonationID:  d.ID,
		AmountCents: d.GrossAmountCents,
		NetCents:    fees.NetCents,
		Method:      string(d.PaymentProvider),
	})
	return nil
}

func emitDonationTerminated(d *models.Donation, eventType string) {
	emitSettlementEvent(&kafka.SettlementEvent{
		EventType:   eventType,
		UserID:      d.RecipientUserID,
		DonationID:  d.ID,
		AmountCents: d.GrossAmountCents,
		Method:      string(d.PaymentProvider),
	})
}

func emitWithdrawRequested(w *models.WithdrawRequest) {
	emitSettlementEvent(&kafka.SettlementEvent{
		EventType:   kafka.EventWithdrawRequested,
		UserID:      w.UserID,
		WithdrawID:  w.ID,
		AmountCents: w.AmountCents,
		Method:      string(w.Method),
	})
}

func emitGoalReached(d *models.Donation, goalID string) {
	emitSettlementEvent(&kafka.SettlementEvent{
		EventType:  kafka.EventGoalReached,
		UserID:     d.RecipientUserID,
		DonationID: d.ID,
		GoalID:     goalID,
	})
}
