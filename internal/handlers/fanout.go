package handlers

import (
	"fmt"

	"tipcast/pkg/logging"
	"tipcast/pkg/models"
)

// fanoutTask is one post-settlement enrichment step. Tasks are independent:
// none reads another's output, and a failure in one never rolls back the
// settlement core or blocks the remaining tasks.
type fanoutTask struct {
	name string
	run  func(d *models.Donation) error
}

// settlementFanout lists the downstream steps run after the atomic core
// commits. Overridable in tests to inject failures into a single step.
var settlementFanout = []fanoutTask{
	{name: "alert_audio", run: triggerAlertAudio},
	{name: "record_transaction", run: recordDonationTransaction},
	{name: "goal_contribution", run: applyGoalContribution},
	{name: "poll_vote", run: applyPollVote},
	{name: "donation_notification", run: sendDonationNotification},
	{name: "settlement_event", run: emitDonationSettled},
}

// RunSettlementFanout executes every post-settlement task with per-task
// error isolation. Each failure is logged with donation context, counted,
// and swallowed.
func RunSettlementFanout(d *models.Donation) {
	for _, task := range settlementFanout {
		if err := runFanoutTask(task, d); err != nil {
			if metrics != nil {
				metrics.FanoutFailures.WithLabelValues(task.name).Inc()
			}
			logger.WithError(err).WithFields(logging.Fields{
				"task":        task.name,
				"donation_id": d.ID,
				"user_id":     d.RecipientUserID,
			}).Error("Settlement fan-out task failed")
		}
	}
}

func runFanoutTask(task fanoutTask, d *models.Donation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task.run(d)
}

// recordDonationTransaction logs the donation's fee split on the user-facing
// transaction ledger.
func recordDonationTransaction(d *models.Donation) error {
	method := models.NormalizeMethod(models.PaymentMethod(d.PaymentProvider))
	fees := CalculateFee(d.GrossAmountCents, method)

	description := fmt.Sprintf("Donation from %s", d.DonorName)
	_, err := RecordTransaction(d.RecipientUserID, models.TxDonationReceived,
		fees.GrossCents, fees.FeeCents, fees.NetCents, method,
		&d.ID, "donation", description)
	return err
}
