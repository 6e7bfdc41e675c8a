package models

// DonationStatus is the donation lifecycle state. PAID, FAILED and EXPIRED
// are terminal; a donation reaches PAID at most once.
type DonationStatus string

const (
	DonationCreated DonationStatus = "CREATED"
	DonationPending DonationStatus = "PENDING"
	DonationPaid    DonationStatus = "PAID"
	DonationFailed  DonationStatus = "FAILED"
	DonationExpired DonationStatus = "EXPIRED"
)

// donationTransitions lists the legal predecessor states per target state.
var donationTransitions = map[DonationStatus][]DonationStatus{
	DonationPending: {DonationCreated},
	DonationPaid:    {DonationCreated, DonationPending},
	DonationFailed:  {DonationCreated, DonationPending},
	DonationExpired: {DonationCreated, DonationPending},
}

// CanTransition reports whether a donation may move from one status to
// another. Terminal states have no outgoing transitions.
func (s DonationStatus) CanTransition(to DonationStatus) bool {
	for _, from := range donationTransitions[to] {
		if from == s {
			return true
		}
	}
	return false
}

// Terminal reports whether the status ends the donation lifecycle.
func (s DonationStatus) Terminal() bool {
	switch s {
	case DonationPaid, DonationFailed, DonationExpired:
		return true
	}
	return false
}

// PredecessorsOf returns the legal predecessor states for a target status.
// Guarded UPDATE statements use this to make illegal transitions no-ops.
func PredecessorsOf(to DonationStatus) []DonationStatus {
	return donationTransitions[to]
}

// WithdrawStatus is the withdrawal request lifecycle state. The settlement
// core only ever creates REQUESTED rows; payout execution owns the rest.
type WithdrawStatus string

const (
	WithdrawRequested  WithdrawStatus = "REQUESTED"
	WithdrawProcessing WithdrawStatus = "PROCESSING"
	WithdrawPaid       WithdrawStatus = "PAID"
	WithdrawRejected   WithdrawStatus = "REJECTED"
)

var withdrawTransitions = map[WithdrawStatus][]WithdrawStatus{
	WithdrawProcessing: {WithdrawRequested},
	WithdrawPaid:       {WithdrawProcessing},
	WithdrawRejected:   {WithdrawRequested, WithdrawProcessing},
}

// CanTransition reports whether a withdrawal may move between two states.
func (s WithdrawStatus) CanTransition(to WithdrawStatus) bool {
	for _, from := range withdrawTransitions[to] {
		if from == s {
			return true
		}
	}
	return false
}
