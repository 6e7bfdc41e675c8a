package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"

	"tipcast/pkg/config"
	"tipcast/pkg/logging"
	"tipcast/pkg/models"
)

// Withdrawal limits in minor currency units, env-tunable.
var (
	minWithdrawCents int64 = 1000
	dailyCapCents    int64 = 200000
	monthlyCapCents  int64 = 2000000
)

func loadWithdrawLimits() {
	minWithdrawCents = config.GetEnvInt64("MIN_WITHDRAW_CENTS", 1000)
	dailyCapCents = config.GetEnvInt64("WITHDRAW_DAILY_CAP_CENTS", 200000)
	monthlyCapCents = config.GetEnvInt64("WITHDRAW_MONTHLY_CAP_CENTS", 2000000)
}

// Validation rejection reasons, stable for API consumers and metrics.
const (
	ReasonInvalidAmount         = "invalid_amount"
	ReasonBelowMinimum          = "below_minimum"
	ReasonDestinationUnresolved = "destination_unresolved"
	ReasonInsufficientBalance   = "insufficient_balance"
	ReasonDailyCapExceeded      = "daily_cap_exceeded"
	ReasonMonthlyCapExceeded    = "monthly_cap_exceeded"
)

// ValidationError is a user-facing withdrawal rejection. Never retried
// automatically; the message is safe to show to the requesting user.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func asValidationError(err error, target **ValidationError) bool {
	return errors.As(err, target)
}

func rejectWithdrawal(reason, format string, args ...interface{}) error {
	if metrics != nil {
		metrics.WithdrawalsRejected.WithLabelValues(reason).Inc()
	}
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// cardManualMarker flags card withdrawals for manual payout processing.
const cardManualMarker = "MANUAL_PROCESSING"

// resolveDestination resolves the payout destination snapshot for a
// withdrawal: the user's stored pix key, a validated lightning invoice, or
// the manual-processing marker for card.
func resolveDestination(userID string, method models.WithdrawMethod, destinationInput string) (string, error) {
	switch method {
	case models.WithdrawPix:
		var pixKey sql.NullString
		err := db.QueryRow(`
			SELECT pix_key FROM bursar.payout_settings WHERE user_id = $1
		`, userID).Scan(&pixKey)
		if err == sql.ErrNoRows || (err == nil && (!pixKey.Valid || pixKey.String == "")) {
			return "", rejectWithdrawal(ReasonDestinationUnresolved, "No pix key configured; set one in payout settings first")
		}
		if err != nil {
			return "", fmt.Errorf("failed to read payout settings: %w", err)
		}
		return pixKey.String, nil

	case models.WithdrawLightning:
		invoice := strings.ToLower(strings.TrimSpace(destinationInput))
		if invoice == "" {
			return "", rejectWithdrawal(ReasonDestinationUnresolved, "A lightning invoice is required")
		}
		hrp, _, err := bech32.DecodeNoLimit(invoice)
		if err != nil || !strings.HasPrefix(hrp, "ln") {
			return "", rejectWithdrawal(ReasonDestinationUnresolved, "Invalid lightning invoice")
		}
		return invoice, nil

	case models.WithdrawCard:
		return cardManualMarker, nil
	}

	return "", rejectWithdrawal(ReasonDestinationUnresolved, "Unsupported withdrawal method %q", method)
}

// RequestWithdrawal validates and records a withdrawal: amount floor,
// destination resolution, per-method balance, and daily/monthly caps, then
// the request row plus its debit transaction and ledger entry committed
// atomically under the user's ledger lock. The balance and window checks run
// inside the same transaction, so two concurrent requests cannot both pass
// against the same snapshot.
func RequestWithdrawal(userID string, method models.WithdrawMethod, amountCents int64, destinationInput string) (*models.WithdrawRequest, error) {
	if amountCents <= 0 {
		return nil, rejectWithdrawal(ReasonInvalidAmount, "Withdrawal amount must be a positive integer")
	}
	if amountCents < minWithdrawCents {
		return nil, rejectWithdrawal(ReasonBelowMinimum, "Minimum withdrawal is %d cents", minWithdrawCents)
	}

	balanceMethod := method.BalanceMethod()
	if balanceMethod == "" {
		return nil, rejectWithdrawal(ReasonDestinationUnresolved, "Unsupported withdrawal method %q", method)
	}

	destination, err := resolveDestination(userID, method, destinationInput)
	if err != nil {
		return nil, err
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin withdrawal transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockUserLedger(tx, userID); err != nil {
		return nil, err
	}

	balances, err := getBalancesByMethod(tx, userID)
	if err != nil {
		return nil, err
	}
	available := methodBalance(balances, balanceMethod)
	if amountCents > available {
		return nil, rejectWithdrawal(ReasonInsufficientBalance,
			"Insufficient %s balance: %d cents available", balanceMethod, available)
	}

	daily, err := DailyWithdrawn(tx, userID)
	if err != nil {
		return nil, err
	}
	if daily+amountCents > dailyCapCents {
		return nil, rejectWithdrawal(ReasonDailyCapExceeded,
			"Daily withdrawal cap of %d cents exceeded", dailyCapCents)
	}

	monthly, err := MonthlyWithdrawn(tx, userID)
	if err != nil {
		return nil, err
	}
	if monthly+amountCents > monthlyCapCents {
		return nil, rejectWithdrawal(ReasonMonthlyCapExceeded,
			"Monthly withdrawal cap of %d cents exceeded", monthlyCapCents)
	}

	request := &models.WithdrawRequest{
		UserID:      userID,
		Method:      method,
		AmountCents: amountCents,
		Destination: destination,
		Status:      models.WithdrawRequested,
	}
	err = tx.QueryRow(`
		INSERT INTO bursar.withdraw_requests (user_id, method, amount_cents, destination, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, userID, string(method), amountCents, destination,
		string(models.WithdrawRequested)).Scan(&request.ID, &request.CreatedAt, &request.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert withdrawal request: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO bursar.ledger_entries (user_id, entry_type, source, amount_cents, reference_id)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, string(models.LedgerDebit), string(models.SourceWithdraw), amountCents, request.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to debit ledger: %w", err)
	}

	description := fmt.Sprintf("Withdrawal via %s", method)
	_, err = recordTransactionTx(tx, userID, models.TxWithdrawal,
		amountCents, 0, amountCents, balanceMethod,
		&request.ID, "withdraw_request", description)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit withdrawal: %w", err)
	}

	if metrics != nil {
		metrics.WithdrawalsCreated.WithLabelValues(string(method)).Inc()
	}
	logger.WithFields(logging.Fields{
		"withdraw_id": request.ID,
		"user_id":     userID,
		"method":      method,
		"amount":      amountCents,
	}).Info("Withdrawal requested")

	emitWithdrawRequested(request)

	return request, nil
}

func methodBalance(b *models.MethodBalances, method models.PaymentMethod) int64 {
	switch method {
	case models.MethodPix:
		return b.PixCents
	case models.MethodCard:
		return b.CardCents
	case models.MethodLightning:
		return b.LightningCents
	}
	return 0
}
