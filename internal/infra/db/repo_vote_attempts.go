package db

import (
	"context"
	"errors"
	"time"

	"ballotd/internal/domain"

	"gorm.io/gorm"
)

// VoteAttemptRepository is the append-only audit trail of coordinator
// runs. Unreconciled rows are the operator queue for manual
// reconciliation after a confirmed-but-unrecorded vote.
type VoteAttemptRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewVoteAttemptRepository(db *gorm.DB) *VoteAttemptRepository {
	return &VoteAttemptRepository{db: db, now: time.Now}
}

func (r *VoteAttemptRepository) Append(ctx context.Context, attempt domain.VoteAttempt) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := VoteAttemptModel{
		VoterID:   attempt.VoterID,
		Choice:    int64(attempt.Choice),
		Status:    string(attempt.Status),
		ErrorCode: attempt.ErrorCode,
		TxHash:    attempt.TxHash,
		CreatedAt: r.now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *VoteAttemptRepository) ListUnreconciled(ctx context.Context) ([]domain.VoteAttempt, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []VoteAttemptModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.AttemptUnreconciled)).
		Order("created_at asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	attempts := make([]domain.VoteAttempt, 0, len(models))
	for _, model := range models {
		attempts = append(attempts, toDomainAttempt(model))
	}
	return attempts, nil
}

func (r *VoteAttemptRepository) GetByID(ctx context.Context, id int64) (*domain.VoteAttempt, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model VoteAttemptModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	attempt := toDomainAttempt(model)
	return &attempt, nil
}

// MarkReconciled is the one permitted mutation of the trail: it closes
// an unreconciled row after the operator has applied the eligibility
// write by hand.
func (r *VoteAttemptRepository) MarkReconciled(ctx context.Context, id int64) error {
	if r.db == nil {
		return errDBUnavailable
	}
	res := r.db.WithContext(ctx).
		Model(&VoteAttemptModel{}).
		Where("id = ? AND status = ?", id, string(domain.AttemptUnreconciled)).
		Update("status", string(domain.AttemptReconciled))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func toDomainAttempt(model VoteAttemptModel) domain.VoteAttempt {
	return domain.VoteAttempt{
		ID:        model.ID,
		VoterID:   model.VoterID,
		Choice:    uint64(model.Choice),
		Status:    domain.AttemptStatus(model.Status),
		ErrorCode: model.ErrorCode,
		TxHash:    model.TxHash,
		CreatedAt: model.CreatedAt,
	}
}
