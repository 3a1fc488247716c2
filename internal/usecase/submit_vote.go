package usecase

import (
	"context"
	"errors"
	"fmt"

	"ballotd/internal/domain"

	"github.com/rs/zerolog"
)

type SubmitVoteRequest struct {
	VoterID string
	Choice  uint64
}

type SubmitVoteResponse struct {
	TxHash string
	Status domain.VoteStatus
}

// SubmitVote coordinates one vote across the two systems of record: the
// eligibility store (has_voted flag) and the external ledger. The whole
// read-decide-submit-write sequence runs under a per-voter lock, so at
// most one ledger submission can ever be issued for an identity from
// this process.
type SubmitVote struct {
	Voters   VoterRepository
	Ledger   LedgerClient
	Attempts AttemptRecorder
	Policy   PolicyEngine
	Log      zerolog.Logger

	locks *voterLocks
	now   nowFunc
}

func NewSubmitVote(voters VoterRepository, ledger LedgerClient, attempts AttemptRecorder, policy PolicyEngine, log zerolog.Logger) *SubmitVote {
	return &SubmitVote{
		Voters:   voters,
		Ledger:   ledger,
		Attempts: attempts,
		Policy:   policy,
		Log:      log.With().Str("component", "coordinator").Logger(),
		locks:    newVoterLocks(),
	}
}

func (uc *SubmitVote) Execute(ctx context.Context, req SubmitVoteRequest) (*SubmitVoteResponse, error) {
	if req.VoterID == "" {
		return nil, domain.ErrUnknownVoter
	}
	if req.Choice == 0 {
		return nil, domain.ErrInvalidChoice
	}

	release := uc.locks.acquire(req.VoterID)
	defer release()

	voter, err := uc.Voters.GetByID(ctx, req.VoterID)
	if err != nil {
		return nil, err
	}
	// Primary duplicate-vote defense: checked before any network call.
	if voter.HasVoted {
		return nil, domain.ErrAlreadyVoted
	}

	if err := uc.checkPolicy(ctx, req); err != nil {
		return nil, err
	}

	receipt, err := uc.Ledger.Submit(ctx, req.Choice)
	if err != nil {
		return uc.handleSubmitError(ctx, req, receipt, err)
	}

	if err := uc.Voters.MarkVoted(ctx, req.VoterID); err != nil {
		return uc.handleStoreFailure(ctx, req, receipt, err)
	}

	uc.recordAttempt(ctx, req, domain.AttemptConfirmed, receipt.TxHash, "")
	uc.Log.Info().
		Str("voter_id", req.VoterID).
		Str("tx_hash", receipt.TxHash).
		Msg("vote confirmed and recorded")
	return &SubmitVoteResponse{TxHash: receipt.TxHash, Status: domain.VoteStatusConfirmed}, nil
}

func (uc *SubmitVote) checkPolicy(ctx context.Context, req SubmitVoteRequest) error {
	if uc.Policy == nil {
		return nil
	}
	count, err := uc.Ledger.CandidateCount(ctx)
	if err != nil {
		// The contract enforces the range anyway; an unreadable count
		// must not block the window checks.
		uc.Log.Warn().Err(err).Msg("candidate count unavailable for policy input")
		count = 0
	}
	result, err := uc.Policy.Evaluate(ctx, domain.PolicyInput{
		VoterID:        req.VoterID,
		Choice:         req.Choice,
		CandidateCount: count,
		Now:            uc.clock(),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, err)
	}
	if !result.Allow {
		return &domain.RejectionReasons{Reasons: result.Reasons}
	}
	return nil
}

func (uc *SubmitVote) handleSubmitError(ctx context.Context, req SubmitVoteRequest, receipt domain.VoteReceipt, err error) (*SubmitVoteResponse, error) {
	var unknown *domain.OutcomeUnknownError
	switch {
	case errors.As(err, &unknown):
		// Broadcast but unmined: has_voted stays false. Marking it true
		// could disenfranchise on a dropped transaction; leaving it false
		// risks at worst a contract-side rejection on retry.
		uc.recordAttempt(ctx, req, domain.AttemptUnknown, unknown.TxHash, "outcome_unknown")
		uc.Log.Warn().
			Str("voter_id", req.VoterID).
			Str("tx_hash", unknown.TxHash).
			Msg("ledger outcome unknown; eligibility left unchanged")
		return nil, err
	case errors.Is(err, domain.ErrVoteRejected):
		uc.recordAttempt(ctx, req, domain.AttemptRejected, receipt.TxHash, "ledger_rejected")
		return nil, err
	default:
		// Nothing reached the ledger; safe to retry.
		uc.recordAttempt(ctx, req, domain.AttemptFailed, "", errorCode(err))
		return nil, err
	}
}

func (uc *SubmitVote) handleStoreFailure(ctx context.Context, req SubmitVoteRequest, receipt domain.VoteReceipt, err error) (*SubmitVoteResponse, error) {
	if errors.Is(err, domain.ErrAlreadyVoted) {
		// Conditional write lost to another writer after our ledger
		// confirmation: the flag is already true, nothing to reconcile.
		uc.recordAttempt(ctx, req, domain.AttemptConfirmed, receipt.TxHash, "flag_preset")
		return &SubmitVoteResponse{TxHash: receipt.TxHash, Status: domain.VoteStatusConfirmed}, nil
	}
	// The ledger holds a confirmed vote the store does not know about.
	// Durably queued for the operator; never resubmitted to the ledger.
	uc.recordAttempt(ctx, req, domain.AttemptUnreconciled, receipt.TxHash, "store_write_failed")
	uc.Log.Error().
		Str("voter_id", req.VoterID).
		Str("tx_hash", receipt.TxHash).
		Err(err).
		Msg("vote confirmed on ledger but eligibility write failed; manual reconciliation required")
	return nil, &domain.ReconciliationError{VoterID: req.VoterID, TxHash: receipt.TxHash}
}

func (uc *SubmitVote) recordAttempt(ctx context.Context, req SubmitVoteRequest, status domain.AttemptStatus, txHash, code string) {
	if uc.Attempts == nil {
		return
	}
	err := uc.Attempts.Append(ctx, domain.VoteAttempt{
		VoterID:   req.VoterID,
		Choice:    req.Choice,
		Status:    status,
		ErrorCode: code,
		TxHash:    txHash,
	})
	if err != nil {
		uc.Log.Error().
			Str("voter_id", req.VoterID).
			Str("status", string(status)).
			Str("tx_hash", txHash).
			Err(err).
			Msg("failed to persist vote attempt")
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrContractNotDeployed):
		return "contract_not_deployed"
	case errors.Is(err, domain.ErrLedgerUnavailable):
		return "ledger_unavailable"
	default:
		return "submission_failed"
	}
}
