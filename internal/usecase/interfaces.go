package usecase

import (
	"context"

	"ballotd/internal/domain"
)

type VoterRepository interface {
	Create(ctx context.Context, voter domain.Voter) error
	GetByID(ctx context.Context, id string) (*domain.Voter, error)
	GetByEmail(ctx context.Context, email string) (*domain.Voter, error)
	MarkVoted(ctx context.Context, id string) error
}

// LedgerClient is the gateway to the external vote ledger. Submit blocks
// until confirmation, rejection, or the bounded timeout; Tally and
// CandidateCount are free reads.
type LedgerClient interface {
	Submit(ctx context.Context, choice uint64) (domain.VoteReceipt, error)
	Tally(ctx context.Context, choice uint64) (uint64, error)
	CandidateCount(ctx context.Context) (uint64, error)
}

// AttemptRecorder persists the audit trail of coordinator runs.
type AttemptRecorder interface {
	Append(ctx context.Context, attempt domain.VoteAttempt) error
}

type AttemptRepository interface {
	AttemptRecorder
	ListUnreconciled(ctx context.Context) ([]domain.VoteAttempt, error)
	GetByID(ctx context.Context, id int64) (*domain.VoteAttempt, error)
	MarkReconciled(ctx context.Context, id int64) error
}

type PolicyEngine interface {
	Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyResult, error)
}
