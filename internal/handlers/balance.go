package handlers

import (
	"database/sql"
	"fmt"
	"time"

	"tipcast/pkg/models"
)

// querier abstracts *sql.DB and *sql.Tx so balance reads can participate in
// the withdrawal transaction's in-tx re-check.
type querier interface {
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// GetBalancesByMethod derives the per-method available balance from the
// transaction log. Per method: credits minus withdrawals, floored at zero,
// with the legacy "crypto" label folded into lightning. Never stored; always
// recomputed on read.
func GetBalancesByMethod(userID string) (*models.MethodBalances, error) {
	return getBalancesByMethod(db, userID)
}

func getBalancesByMethod(q querier, userID string) (*models.MethodBalances, error) {
	rows, err := q.Query(`
		SELECT payment_method, tx_type, COALESCE(SUM(net_amount_cents), 0)
		FROM bursar.transactions
		WHERE user_id = $1
		  AND status = 'completed'
		  AND tx_type IN ('donation_received', 'withdrawal')
		GROUP BY payment_method, tx_type
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate balances: %w", err)
	}
	defer rows.Close()

	sums := map[models.PaymentMethod]int64{}
	for rows.Next() {
		var method models.PaymentMethod
		var txType models.TransactionType
		var total int64
		if err := rows.Scan(&method, &txType, &total); err != nil {
			return nil, fmt.Errorf("failed to scan balance row: %w", err)
		}
		if txType.IsDebit() {
			total = -total
		}
		sums[models.NormalizeMethod(method)] += total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read balance rows: %w", err)
	}

	balances := &models.MethodBalances{
		PixCents:       floorZero(sums[models.MethodPix]),
		CardCents:      floorZero(sums[models.MethodCard]),
		LightningCents: floorZero(sums[models.MethodLightning]),
	}
	balances.TotalCents = floorZero(balances.PixCents + balances.CardCents + balances.LightningCents)

	return balances, nil
}

// GetTotalBalance returns the user's total available balance across methods.
func GetTotalBalance(userID string) (int64, error) {
	balances, err := GetBalancesByMethod(userID)
	if err != nil {
		return 0, err
	}
	return balances.TotalCents, nil
}

// DailyWithdrawn sums completed withdrawal transactions since local midnight.
func DailyWithdrawn(q querier, userID string) (int64, error) {
	return withdrawnSince(q, userID, startOfDay(time.Now()))
}

// MonthlyWithdrawn sums completed withdrawal transactions since the first of
// the current month.
func MonthlyWithdrawn(q querier, userID string) (int64, error) {
	return withdrawnSince(q, userID, startOfMonth(time.Now()))
}

func withdrawnSince(q querier, userID string, since time.Time) (int64, error) {
	var total int64
	err := q.QueryRow(`
		SELECT COALESCE(SUM(net_amount_cents), 0)
		FROM bursar.transactions
		WHERE user_id = $1
		  AND tx_type = 'withdrawal'
		  AND status = 'completed'
		  AND created_at >= $2
	`, userID, since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum withdrawals: %w", err)
	}
	return total, nil
}

func startOfDay(now time.Time) time.Time {
	local := now.In(withdrawTZ)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, withdrawTZ)
}

func startOfMonth(now time.Time) time.Time {
	local := now.In(withdrawTZ)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, withdrawTZ)
}

func floorZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
