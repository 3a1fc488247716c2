package usecase

import (
	"context"
	"errors"

	"ballotd/internal/domain"

	"github.com/rs/zerolog"
)

// Reconcile is the operator-side closure of a confirmed-but-unrecorded
// vote: it applies the idempotent eligibility write the coordinator
// could not, and closes the audit row. It never touches the ledger —
// resubmitting there would risk a true double vote.
type Reconcile struct {
	Voters   VoterRepository
	Attempts AttemptRepository
	Log      zerolog.Logger
}

func NewReconcile(voters VoterRepository, attempts AttemptRepository, log zerolog.Logger) *Reconcile {
	return &Reconcile{
		Voters:   voters,
		Attempts: attempts,
		Log:      log.With().Str("component", "reconcile").Logger(),
	}
}

func (uc *Reconcile) Pending(ctx context.Context) ([]domain.VoteAttempt, error) {
	return uc.Attempts.ListUnreconciled(ctx)
}

func (uc *Reconcile) Resolve(ctx context.Context, attemptID int64) error {
	attempt, err := uc.Attempts.GetByID(ctx, attemptID)
	if err != nil {
		return err
	}
	if attempt.Status != domain.AttemptUnreconciled {
		return domain.ErrNotFound
	}

	if err := uc.Voters.MarkVoted(ctx, attempt.VoterID); err != nil {
		// The flag already being set is the expected state when a
		// retry of the original request won the write in the meantime.
		if !errors.Is(err, domain.ErrAlreadyVoted) {
			return err
		}
	}
	if err := uc.Attempts.MarkReconciled(ctx, attemptID); err != nil {
		return err
	}
	uc.Log.Info().
		Int64("attempt_id", attemptID).
		Str("voter_id", attempt.VoterID).
		Str("tx_hash", attempt.TxHash).
		Msg("unreconciled vote resolved")
	return nil
}
