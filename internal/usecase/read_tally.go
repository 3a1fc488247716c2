package usecase

import (
	"context"
	"time"

	"ballotd/internal/domain"

	"github.com/rs/zerolog"
)

// ReadTally aggregates per-choice counts from the ledger for display.
// Partial results are favored over total failure: a choice whose query
// fails is logged and omitted.
type ReadTally struct {
	Ledger LedgerClient
	Log    zerolog.Logger
}

func NewReadTally(ledger LedgerClient, log zerolog.Logger) *ReadTally {
	return &ReadTally{
		Ledger: ledger,
		Log:    log.With().Str("component", "tally").Logger(),
	}
}

func (uc *ReadTally) Execute(ctx context.Context) (*domain.TallySnapshot, error) {
	count, err := uc.Ledger.CandidateCount(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &domain.TallySnapshot{
		Counts:  make(map[uint64]uint64, count),
		TakenAt: time.Now().UTC(),
	}
	for choice := uint64(1); choice <= count; choice++ {
		votes, err := uc.Ledger.Tally(ctx, choice)
		if err != nil {
			uc.Log.Warn().Uint64("choice", choice).Err(err).Msg("tally query failed; omitting choice")
			snapshot.Omitted = append(snapshot.Omitted, choice)
			continue
		}
		snapshot.Counts[choice] = votes
	}
	return snapshot, nil
}
