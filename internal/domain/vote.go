package domain

import "time"

type VoteStatus string

const (
	VoteStatusConfirmed VoteStatus = "confirmed"
	VoteStatusRejected  VoteStatus = "rejected"
	VoteStatusUnknown   VoteStatus = "unknown"
)

// VoteReceipt is the ledger's evidence for a submitted vote. Immutable
// once returned by the ledger client.
type VoteReceipt struct {
	TxHash      string
	Status      VoteStatus
	Choice      uint64
	SubmittedAt time.Time
}

type AttemptStatus string

const (
	AttemptConfirmed    AttemptStatus = "confirmed"
	AttemptRejected     AttemptStatus = "rejected"
	AttemptFailed       AttemptStatus = "failed"
	AttemptUnknown      AttemptStatus = "unknown"
	AttemptUnreconciled AttemptStatus = "unreconciled"
	AttemptReconciled   AttemptStatus = "reconciled"
)

// VoteAttempt is one append-only audit row per coordinator run that
// reached the ledger (or tried to). Unreconciled rows are the operator
// queue for manual reconciliation.
type VoteAttempt struct {
	ID        int64
	VoterID   string
	Choice    uint64
	Status    AttemptStatus
	ErrorCode string
	TxHash    string
	CreatedAt time.Time
}
