package models

import "time"

// PaymentProvider identifies the external payment rail that opened a charge.
type PaymentProvider string

const (
	ProviderPix       PaymentProvider = "pix"
	ProviderCard      PaymentProvider = "card"
	ProviderLightning PaymentProvider = "lightning"
)

// PaymentMethod is the rail class used for fee rates and balance segmentation.
// "crypto" is a legacy label still present in old transaction rows; reads fold
// it into lightning.
type PaymentMethod string

const (
	MethodPix       PaymentMethod = "pix"
	MethodCard      PaymentMethod = "card"
	MethodLightning PaymentMethod = "lightning"
	MethodCrypto    PaymentMethod = "crypto"
)

// NormalizeMethod folds legacy method labels into their current class.
func NormalizeMethod(m PaymentMethod) PaymentMethod {
	if m == MethodCrypto {
		return MethodLightning
	}
	return m
}

// Donation represents one donor-to-streamer payment intent.
type Donation struct {
	ID                string          `json:"id" db:"id"`
	RecipientUserID   string          `json:"recipient_user_id" db:"recipient_user_id"`
	DonorName         string          `json:"donor_name" db:"donor_name"`
	Message           string          `json:"message" db:"message"`
	GrossAmountCents  int64           `json:"gross_amount_cents" db:"gross_amount_cents"`
	PaymentProvider   PaymentProvider `json:"payment_provider" db:"payment_provider"`
	ProviderPaymentID *string         `json:"provider_payment_id,omitempty" db:"provider_payment_id"`
	Status            DonationStatus  `json:"status" db:"status"`
	PaidAt            *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	GoalID            *string         `json:"goal_id,omitempty" db:"goal_id"`
	PollOptionID      *string         `json:"poll_option_id,omitempty" db:"poll_option_id"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// LedgerEntry is an append-only signed monetary entry; the raw source of truth
// for a user's balance.
type LedgerEntry struct {
	ID          string          `json:"id" db:"id"`
	UserID      string          `json:"user_id" db:"user_id"`
	EntryType   LedgerEntryType `json:"entry_type" db:"entry_type"`
	Source      LedgerSource    `json:"source" db:"source"`
	AmountCents int64           `json:"amount_cents" db:"amount_cents"`
	ReferenceID string          `json:"reference_id" db:"reference_id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// LedgerEntryType is the sign of a ledger entry; amounts are always positive
// magnitudes.
type LedgerEntryType string

const (
	LedgerCredit LedgerEntryType = "CREDIT"
	LedgerDebit  LedgerEntryType = "DEBIT"
)

// LedgerSource identifies what caused a ledger entry.
type LedgerSource string

const (
	SourceDonation   LedgerSource = "DONATION"
	SourceWithdraw   LedgerSource = "WITHDRAW"
	SourceAdjustment LedgerSource = "ADJUSTMENT"
)

// TransactionType classifies user-facing ledger rows.
type TransactionType string

const (
	TxDonationReceived TransactionType = "donation_received"
	TxWithdrawal       TransactionType = "withdrawal"
	TxFee              TransactionType = "fee"
	TxRefund           TransactionType = "refund"
)

// IsDebit reports whether the type reduces the running balance.
func (t TransactionType) IsDebit() bool {
	return t == TxWithdrawal || t == TxFee
}

// Transaction is a user-facing ledger row with fee accounting and a
// materialized running balance.
type Transaction struct {
	ID                string          `json:"id" db:"id"`
	UserID            string          `json:"user_id" db:"user_id"`
	Type              TransactionType `json:"type" db:"tx_type"`
	Status            string          `json:"status" db:"status"`
	GrossAmountCents  int64           `json:"gross_amount_cents" db:"gross_amount_cents"`
	FeeAmountCents    int64           `json:"fee_amount_cents" db:"fee_amount_cents"`
	NetAmountCents    int64           `json:"net_amount_cents" db:"net_amount_cents"`
	BalanceAfterCents int64           `json:"balance_after_cents" db:"balance_after_cents"`
	PaymentMethod     PaymentMethod   `json:"payment_method" db:"payment_method"`
	Description       string          `json:"description" db:"description"`
	ReferenceID       *string         `json:"reference_id,omitempty" db:"reference_id"`
	ReferenceType     *string         `json:"reference_type,omitempty" db:"reference_type"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// WithdrawMethod is the payout rail for a withdrawal request.
type WithdrawMethod string

const (
	WithdrawPix       WithdrawMethod = "PIX"
	WithdrawCard      WithdrawMethod = "CARD"
	WithdrawLightning WithdrawMethod = "LIGHTNING"
)

// BalanceMethod maps a withdrawal rail to its balance segment.
func (m WithdrawMethod) BalanceMethod() PaymentMethod {
	switch m {
	case WithdrawPix:
		return MethodPix
	case WithdrawCard:
		return MethodCard
	case WithdrawLightning:
		return MethodLightning
	}
	return ""
}

// WithdrawRequest is a user-initiated debit intent. The destination is an
// immutable snapshot taken at request time; later payout execution never
// re-reads the user's settings.
type WithdrawRequest struct {
	ID          string         `json:"id" db:"id"`
	UserID      string         `json:"user_id" db:"user_id"`
	Method      WithdrawMethod `json:"method" db:"method"`
	AmountCents int64          `json:"amount_cents" db:"amount_cents"`
	Destination string         `json:"destination" db:"destination"`
	Status      WithdrawStatus `json:"status" db:"status"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// Alert is a queued overlay notification for a settled donation. The overlay
// collaborator flips it to READY once rendered (with or without audio).
type Alert struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	DonationID  string    `json:"donation_id" db:"donation_id"`
	DonorName   string    `json:"donor_name" db:"donor_name"`
	Message     string    `json:"message" db:"message"`
	AmountCents int64     `json:"amount_cents" db:"amount_cents"`
	Status      string    `json:"status" db:"status"`
	AudioURL    *string   `json:"audio_url,omitempty" db:"audio_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Alert statuses
const (
	AlertQueued = "QUEUED"
	AlertReady  = "READY"
)

// Goal is a streamer fundraising target.
type Goal struct {
	ID                 string    `json:"id" db:"id"`
	UserID             string    `json:"user_id" db:"user_id"`
	Title              string    `json:"title" db:"title"`
	TargetAmountCents  int64     `json:"target_amount_cents" db:"target_amount_cents"`
	CurrentAmountCents int64     `json:"current_amount_cents" db:"current_amount_cents"`
	IsActive           bool      `json:"is_active" db:"is_active"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// GoalContribution records a donation's contribution to a goal.
type GoalContribution struct {
	ID          string    `json:"id" db:"id"`
	GoalID      string    `json:"goal_id" db:"goal_id"`
	DonationID  string    `json:"donation_id" db:"donation_id"`
	AmountCents int64     `json:"amount_cents" db:"amount_cents"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Reward is a goal perk unlocked at a contribution threshold. ClaimCap of 0
// means unlimited claims.
type Reward struct {
	ID             string    `json:"id" db:"id"`
	GoalID         string    `json:"goal_id" db:"goal_id"`
	Title          string    `json:"title" db:"title"`
	ThresholdCents int64     `json:"threshold_cents" db:"threshold_cents"`
	ClaimCap       int       `json:"claim_cap" db:"claim_cap"`
	ClaimedCount   int       `json:"claimed_count" db:"claimed_count"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Poll statuses
const (
	PollActive = "ACTIVE"
	PollClosed = "CLOSED"
)

// Poll is a viewer poll whose votes arrive via paid donations. Weighted polls
// count the donation's gross amount as vote weight; unique polls weigh 1.
type Poll struct {
	ID         string     `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	Question   string     `json:"question" db:"question"`
	Weighted   bool       `json:"weighted" db:"weighted"`
	Status     string     `json:"status" db:"status"`
	TotalVotes int64      `json:"total_votes" db:"total_votes"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// PollOption is one choice within a poll.
type PollOption struct {
	ID         string `json:"id" db:"id"`
	PollID     string `json:"poll_id" db:"poll_id"`
	Label      string `json:"label" db:"label"`
	VoteCount  int64  `json:"vote_count" db:"vote_count"`
	VoteWeight int64  `json:"vote_weight" db:"vote_weight"`
}

// Notification is an in-app notification row consumed by the dashboard.
type Notification struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	Type        string     `json:"type" db:"notification_type"`
	Title       string     `json:"title" db:"title"`
	Body        string     `json:"body" db:"body"`
	ReferenceID *string    `json:"reference_id,omitempty" db:"reference_id"`
	ReadAt      *time.Time `json:"read_at,omitempty" db:"read_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// Notification types emitted by the settlement core
const (
	NotificationDonation    = "donation"
	NotificationGoalReached = "goal_reached"
)

// MethodBalances is the derived per-rail balance read model.
type MethodBalances struct {
	PixCents       int64 `json:"pix_cents"`
	CardCents      int64 `json:"card_cents"`
	LightningCents int64 `json:"lightning_cents"`
	TotalCents     int64 `json:"total_cents"`
}
