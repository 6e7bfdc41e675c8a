package handlers

import (
	"database/sql"
	"fmt"

	"tipcast/pkg/models"
)

// lockUserLedger takes the per-user advisory lock that serializes every
// ledger-affecting write for that user within the surrounding transaction.
// Row-level locking on "the latest transaction" cannot serialize a user's
// first-ever write, so the advisory lock is the enforcement point.
func lockUserLedger(tx *sql.Tx, userID string) error {
	if _, err := tx.Exec(`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, userID); err != nil {
		return fmt.Errorf("failed to lock user ledger: %w", err)
	}
	return nil
}

// recordTransactionTx appends a transaction row inside an existing storage
// transaction. The caller must already hold the user's ledger lock. The new
// row's balance_after is the previous row's balance_after plus netAmount for
// credits, minus netAmount for withdrawal/fee.
func recordTransactionTx(tx *sql.Tx, userID string, txType models.TransactionType,
	grossCents, feeCents, netCents int64, method models.PaymentMethod,
	referenceID *string, referenceType, description string) (*models.Transaction, error) {

	var previousBalance int64
	err := tx.QueryRow(`
		SELECT balance_after_cents
		FROM bursar.transactions
		WHERE user_id = $1 AND status = 'completed'
		ORDER BY created_at DESC
		LIMIT 1
	`, userID).Scan(&previousBalance)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read previous balance: %w", err)
	}

	balanceChange := netCents
	if txType.IsDebit() {
		balanceChange = -netCents
	}
	balanceAfter := previousBalance + balanceChange

	txn := &models.Transaction{
		UserID:            userID,
		Type:              txType,
		Status:            "completed",
		GrossAmountCents:  grossCents,
		FeeAmountCents:    feeCents,
		NetAmountCents:    netCents,
		BalanceAfterCents: balanceAfter,
		PaymentMethod:     method,
		Description:       description,
		ReferenceID:       referenceID,
	}
	if referenceType != "" {
		txn.ReferenceType = &referenceType
	}

	err = tx.QueryRow(`
		INSERT INTO bursar.transactions (
			user_id, tx_type, status, gross_amount_cents, fee_amount_cents,
			net_amount_cents, balance_after_cents, payment_method, description,
			reference_id, reference_type
		) VALUES ($1, $2, 'completed', $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`, userID, txType, grossCents, feeCents, netCents, balanceAfter,
		string(method), description, referenceID, txn.ReferenceType).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	return txn, nil
}

// RecordTransaction appends a transaction row for a user, serialized against
// the user's other ledger writes.
func RecordTransaction(userID string, txType models.TransactionType,
	grossCents, feeCents, netCents int64, method models.PaymentMethod,
	referenceID *string, referenceType, description string) (*models.Transaction, error) {

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockUserLedger(tx, userID); err != nil {
		return nil, err
	}

	txn, err := recordTransactionTx(tx, userID, txType, grossCents, feeCents, netCents,
		method, referenceID, referenceType, description)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return txn, nil
}
