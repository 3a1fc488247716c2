package usecase

import (
	"context"
	"errors"
	"strings"

	"ballotd/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

type EnrollVoterRequest struct {
	FullName       string
	Email          string
	VoterCardID    string
	NationalID     string
	Password       string
	FaceDescriptor string
}

// EnrollVoter registers a voting identity with has_voted=false. The
// coordinator only ever consumes these records; it never creates them.
type EnrollVoter struct {
	Voters VoterRepository
	Log    zerolog.Logger

	now nowFunc
}

func NewEnrollVoter(voters VoterRepository, log zerolog.Logger) *EnrollVoter {
	return &EnrollVoter{
		Voters: voters,
		Log:    log.With().Str("component", "enrollment").Logger(),
	}
}

func (uc *EnrollVoter) Execute(ctx context.Context, req EnrollVoterRequest) (*domain.Voter, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.FullName == "" || req.Email == "" || req.VoterCardID == "" ||
		req.NationalID == "" || req.Password == "" {
		return nil, errors.New("all enrollment fields are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, err
	}

	voter := domain.Voter{
		ID:             uuid.NewString(),
		FullName:       req.FullName,
		Email:          req.Email,
		VoterCardID:    req.VoterCardID,
		NationalID:     req.NationalID,
		PasswordHash:   string(hash),
		FaceDescriptor: req.FaceDescriptor,
		HasVoted:       false,
		CreatedAt:      uc.now.orNow().UTC(),
	}
	if err := uc.Voters.Create(ctx, voter); err != nil {
		return nil, err
	}

	uc.Log.Info().Str("voter_id", voter.ID).Msg("voter enrolled")
	voter.PasswordHash = ""
	return &voter, nil
}

// AuthenticateVoter resolves an email/password pair to a voter. Failures
// collapse to ErrInvalidLogin so callers cannot probe which part failed.
type AuthenticateVoter struct {
	Voters VoterRepository
}

func (uc *AuthenticateVoter) Execute(ctx context.Context, email, password string) (*domain.Voter, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, domain.ErrInvalidLogin
	}
	voter, err := uc.Voters.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownVoter) {
			return nil, domain.ErrInvalidLogin
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(voter.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidLogin
	}
	return voter, nil
}
