package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"tipcast/pkg/config"
	"tipcast/pkg/kafka"
	"tipcast/pkg/logging"
	"tipcast/pkg/middleware"
	"tipcast/pkg/models"
	"tipcast/pkg/monitoring"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	db       *sql.DB
	logger   logging.Logger
	metrics  *Metrics
	producer *kafka.Producer

	withdrawTZ *time.Location
)

// Metrics holds the settlement core's Prometheus metrics
type Metrics struct {
	DonationsSettled     *prometheus.CounterVec
	WebhookReplays       *prometheus.CounterVec
	SignatureFailures    *prometheus.CounterVec
	FanoutFailures       *prometheus.CounterVec
	WithdrawalsCreated   *prometheus.CounterVec
	WithdrawalsRejected  *prometheus.CounterVec
	SettlementConsistent prometheus.Counter
}

// NewMetrics registers the settlement metrics on the service collector
func NewMetrics(mc *monitoring.MetricsCollector) *Metrics {
	settled := mc.NewCounter("donations_settled_total", "Donations moved to a terminal status", []string{"provider", "status"})
	replays := mc.NewCounter("webhook_replays_total", "Webhook deliveries skipped as already processed", []string{"provider"})
	sigFail := mc.NewCounter("webhook_signature_failures_total", "Webhook deliveries rejected for bad signatures", []string{"provider"})
	fanout := mc.NewCounter("settlement_fanout_failures_total", "Post-settlement fan-out task failures", []string{"task"})
	wdCreated := mc.NewCounter("withdrawals_created_total", "Withdrawal requests accepted", []string{"method"})
	wdRejected := mc.NewCounter("withdrawals_rejected_total", "Withdrawal requests rejected by validation", []string{"reason"})
	consistency := mc.NewCounter("settlement_consistency_failures_total", "Atomic settlement commits that failed", nil)

	return &Metrics{
		DonationsSettled:     settled,
		WebhookReplays:       replays,
		SignatureFailures:    sigFail,
		FanoutFailures:       fanout,
		WithdrawalsCreated:   wdCreated,
		WithdrawalsRejected:  wdRejected,
		SettlementConsistent: consistency.WithLabelValues(),
	}
}

// Init initializes the handlers with database, logger, metrics and the
// optional Kafka producer for settlement events.
func Init(database *sql.DB, log logging.Logger, m *Metrics, prod *kafka.Producer) {
	db = database
	logger = log
	metrics = m
	producer = prod

	loadFeeRates()
	loadWithdrawLimits()

	tzName := config.GetEnv("WITHDRAW_TZ", "America/Sao_Paulo")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.WithError(err).WithField("tz", tzName).Warn("Invalid withdrawal timezone, falling back to UTC")
		loc = time.UTC
	}
	withdrawTZ = loc
}

// Wallet API Endpoints

// GetBalances returns the per-method available balance for the authenticated user
func GetBalances(c middleware.Context) {
	userID := c.GetString("user_id")

	balances, err := GetBalancesByMethod(userID)
	if err != nil {
		logger.WithError(err).WithField("user_id", userID).Error("Failed to compute balances")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Failed to fetch balances"})
		return
	}

	c.JSON(http.StatusOK, balances)
}

// GetBalance returns the total available balance for the authenticated user
func GetBalance(c middleware.Context) {
	userID := c.GetString("user_id")

	total, err := GetTotalBalance(userID)
	if err != nil {
		logger.WithError(err).WithField("user_id", userID).Error("Failed to compute balance")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Failed to fetch balance"})
		return
	}

	c.JSON(http.StatusOK, middleware.H{"total_cents": total})
}

// GetLimits returns the withdrawal limits and current window usage
func GetLimits(c middleware.Context) {
	userID := c.GetString("user_id")

	daily, err := DailyWithdrawn(db, userID)
	if err != nil {
		logger.WithError(err).WithField("user_id", userID).Error("Failed to compute daily withdrawn")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Failed to fetch limits"})
		return
	}

	monthly, err := MonthlyWithdrawn(db, userID)
	if err != nil {
		logger.WithError(err).WithField("user_id", userID).Error("Failed to compute monthly withdrawn")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Failed to fetch limits"})
		return
	}

	c.JSON(http.StatusOK, middleware.H{
		"min_withdraw_cents":      minWithdrawCents,
		"daily_cap_cents":         dailyCapCents,
		"monthly_cap_cents":       monthlyCapCents,
		"daily_withdrawn_cents":   daily,
		"monthly_withdrawn_cents": monthly,
		"daily_remaining_cents":   maxInt64(0, dailyCapCents-daily),
		"monthly_remaining_cents": maxInt64(0, monthlyCapCents-monthly),
	})
}

// GetTransactions returns the authenticated user's transaction history
func GetTransactions(c middleware.Context) {
	userID := c.GetString("user_id")

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	rows, err := db.Query(`
		SELECT id, user_id, tx_type, status, gross_amount_cents, fee_amount_cents,
		       net_amount_cents, balance_after_cents, payment_method, description,
		       reference_id, reference_type, created_at
		FROM bursar.transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		logger.WithError(err).WithField("user_id", userID).Error("Failed to fetch transactions")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Failed to fetch transactions"})
		return
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var txn models.Transaction
		err := rows.Scan(&txn.ID, &txn.UserID, &txn.Type, &txn.Status,
			&txn.GrossAmountCents, &txn.FeeAmountCents, &txn.NetAmountCents,
			&txn.BalanceAfterCents, &txn.PaymentMethod, &txn.Description,
			&txn.ReferenceID, &txn.ReferenceType, &txn.CreatedAt)
		if err != nil {
			logger.WithError(err).Error("Error scanning transaction")
			continue
		}
		transactions = append(transactions, txn)
	}

	c.JSON(http.StatusOK, middleware.H{"transactions": transactions})
}

// CreateWithdrawal handles POST /wallet/withdrawals
func CreateWithdrawal(c middleware.Context) {
	userID := c.GetString("user_id")

	var req struct {
		Method      string `json:"method" binding:"required"`
		AmountCents int64  `json:"amount_cents" binding:"required"`
		Destination string `json:"destination"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.H{"error": "Invalid request body"})
		return
	}

	withdrawal, err := RequestWithdrawal(userID, models.WithdrawMethod(req.Method), req.AmountCents, req.Destination)
	if err != nil {
		var verr *ValidationError
		if asValidationError(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, middleware.H{
				"error":  verr.Message,
				"reason": verr.Reason,
			})
			return
		}
		logger.WithError(err).WithFields(logging.Fields{
			"user_id": userID,
			"method":  req.Method,
			"amount":  req.AmountCents,
		}).Error("Failed to create withdrawal")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Failed to create withdrawal"})
		return
	}

	c.JSON(http.StatusCreated, withdrawal)
}

// GetWithdrawals returns the authenticated user's withdrawal requests
func GetWithdrawals(c middleware.Context) {
	userID := c.GetString("user_id")

	rows, err := db.Query(`
		SELECT id, user_id, method, amount_cents, destination, status, created_at, updated_at
		FROM bursar.withdraw_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 100
	`, userID)
	if err != nil {
		logger.WithError(err).WithField("user_id", userID).Error("Failed to fetch withdrawals")
		c.JSON(http.StatusInternalServerError, middleware.H{"error": "Failed to fetch withdrawals"})
		return
	}
	defer rows.Close()

	withdrawals := []models.WithdrawRequest{}
	for rows.Next() {
		var w models.WithdrawRequest
		err := rows.Scan(&w.ID, &w.UserID, &w.Method, &w.AmountCents,
			&w.Destination, &w.Status, &w.CreatedAt, &w.UpdatedAt)
		if err != nil {
			logger.WithError(err).Error("Error scanning withdrawal")
			continue
		}
		withdrawals = append(withdrawals, w)
	}

	c.JSON(http.StatusOK, middleware.H{"withdrawals": withdrawals})
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
