package db

import (
	"context"
	"errors"
	"strings"

	"ballotd/internal/domain"

	"gorm.io/gorm"
)

type VoterRepository struct {
	db *gorm.DB
}

func NewVoterRepository(db *gorm.DB) *VoterRepository {
	return &VoterRepository{db: db}
}

func (r *VoterRepository) Create(ctx context.Context, voter domain.Voter) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := VoterModel{
		ID:             voter.ID,
		FullName:       voter.FullName,
		Email:          voter.Email,
		VoterCardID:    voter.VoterCardID,
		NationalID:     voter.NationalID,
		PasswordHash:   voter.PasswordHash,
		FaceDescriptor: voter.FaceDescriptor,
		HasVoted:       voter.HasVoted,
		CreatedAt:      voter.CreatedAt,
	}
	err := r.db.WithContext(ctx).Create(&model).Error
	if err != nil && isUniqueViolation(err) {
		return domain.ErrAlreadyEnrolled
	}
	return err
}

func (r *VoterRepository) GetByID(ctx context.Context, id string) (*domain.Voter, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model VoterModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUnknownVoter
		}
		return nil, err
	}
	return toDomainVoter(model), nil
}

func (r *VoterRepository) GetByEmail(ctx context.Context, email string) (*domain.Voter, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model VoterModel
	err := r.db.WithContext(ctx).First(&model, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUnknownVoter
		}
		return nil, err
	}
	return toDomainVoter(model), nil
}

// MarkVoted flips has_voted false -> true with a conditional update.
// Matching zero rows while the voter exists means the flag was already
// true: surfaced as ErrAlreadyVoted so a concurrent writer loses cleanly
// even across coordinator instances sharing one database.
func (r *VoterRepository) MarkVoted(ctx context.Context, id string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	res := r.db.WithContext(ctx).
		Model(&VoterModel{}).
		Where("id = ? AND has_voted = ?", id, false).
		Update("has_voted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&VoterModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrUnknownVoter
		}
		return domain.ErrAlreadyVoted
	}
	return nil
}

func toDomainVoter(model VoterModel) *domain.Voter {
	return &domain.Voter{
		ID:             model.ID,
		FullName:       model.FullName,
		Email:          model.Email,
		VoterCardID:    model.VoterCardID,
		NationalID:     model.NationalID,
		PasswordHash:   model.PasswordHash,
		FaceDescriptor: model.FaceDescriptor,
		HasVoted:       model.HasVoted,
		CreatedAt:      model.CreatedAt,
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// pgx surfaces SQLSTATE 23505 in the error string when the gorm
	// translator is not active.
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key")
}
