package settlement

import "errors"

// Failure taxonomy for the settlement flow. The HTTP layer maps these to
// status codes; the distinctions matter to the caller:
//
//   - not-found errors are never retried;
//   - conflicts resolve themselves once the existing intent settles;
//   - a missing creator wallet requires the *creator* to act, not the
//     payer, so it is kept separate from conflicts.
var (
	ErrBillNotFound        = errors.New("bill not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrAlreadyPaid         = errors.New("already paid")
	ErrPaymentInProgress   = errors.New("payment in progress")
	ErrWalletNotConfigured = errors.New("creator wallet not configured")
	ErrForbidden           = errors.New("access denied")
	ErrUnknownStatus       = errors.New("unknown payment status")
)
