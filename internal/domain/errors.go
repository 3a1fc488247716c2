package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTokenMissing = errors.New("bearer token missing")
	ErrTokenInvalid = errors.New("bearer token invalid")

	ErrUnknownVoter     = errors.New("unknown voter")
	ErrAlreadyVoted     = errors.New("already voted")
	ErrAlreadyEnrolled  = errors.New("already enrolled")
	ErrInvalidLogin     = errors.New("invalid email or password")
	ErrInvalidChoice    = errors.New("invalid choice")
	ErrVoteRejected     = errors.New("vote rejected")
	ErrSubmissionFailed = errors.New("vote submission failed")

	ErrLedgerUnavailable   = errors.New("ledger unavailable")
	ErrContractNotDeployed = errors.New("voting contract not deployed on connected chain")

	ErrNotFound = errors.New("not found")
)

// OutcomeUnknownError reports a submission that was broadcast to the
// ledger but not mined before the deadline. The eligibility flag is left
// untouched; the transaction may still confirm asynchronously.
type OutcomeUnknownError struct {
	TxHash string
}

func (e *OutcomeUnknownError) Error() string {
	return fmt.Sprintf("ledger outcome unknown for tx %s", e.TxHash)
}

// ReconciliationError reports a ledger-confirmed vote whose eligibility
// write failed. The ledger holds the vote; the store does not know.
// Resolving it is an operator action, never an automatic resubmission.
type ReconciliationError struct {
	VoterID string
	TxHash  string
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("vote %s confirmed for voter %s but eligibility write failed", e.TxHash, e.VoterID)
}

// RejectionReasons carries policy deny reasons alongside ErrVoteRejected.
type RejectionReasons struct {
	Reasons []string
}

func (e *RejectionReasons) Error() string {
	return "vote rejected by election policy"
}

func (e *RejectionReasons) Unwrap() error {
	return ErrVoteRejected
}
