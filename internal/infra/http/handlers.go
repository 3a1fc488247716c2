package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"ballotd/internal/domain"
	"ballotd/internal/usecase"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

type enrollRequest struct {
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	VoterCardID    string `json:"voter_card_id"`
	NationalID     string `json:"national_id"`
	Password       string `json:"password"`
	FaceDescriptor string `json:"face_descriptor,omitempty"`
}

type enrollResponse struct {
	VoterID   string `json:"voter_id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	VoterID  string `json:"voter_id"`
	HasVoted bool   `json:"has_voted"`
}

type profileResponse struct {
	VoterID  string `json:"voter_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	HasVoted bool   `json:"has_voted"`
}

type voteRequest struct {
	Choice uint64 `json:"choice"`
}

type voteResponse struct {
	TxHash string `json:"tx_hash"`
	Status string `json:"status"`
}

type tallyResponse struct {
	Counts  map[string]uint64 `json:"counts"`
	Omitted []uint64          `json:"omitted,omitempty"`
	TakenAt string            `json:"taken_at"`
}

type attemptResponse struct {
	ID        int64  `json:"id"`
	VoterID   string `json:"voter_id"`
	Choice    uint64 `json:"choice"`
	Status    string `json:"status"`
	ErrorCode string `json:"error_code,omitempty"`
	TxHash    string `json:"tx_hash,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleEnroll(c *gin.Context) {
	if s.enroll == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	voter, err := s.enroll.Execute(c.Request.Context(), usecase.EnrollVoterRequest{
		FullName:       req.FullName,
		Email:          req.Email,
		VoterCardID:    req.VoterCardID,
		NationalID:     req.NationalID,
		Password:       req.Password,
		FaceDescriptor: req.FaceDescriptor,
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyEnrolled) {
			writeErrorCode(c, http.StatusConflict, "ALREADY_ENROLLED", "voter already enrolled")
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, enrollResponse{
		VoterID:   voter.ID,
		Email:     voter.Email,
		CreatedAt: voter.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	if s.authn == nil || s.verifier == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if !s.enforceRateLimit(c, "sessions:"+c.ClientIP()) {
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	voter, err := s.authn.Execute(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidLogin) {
			writeErrorCode(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
			return
		}
		writeError(c, err)
		return
	}
	minted, err := s.verifier.Issue(voter.ID, voter.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{
		Token:    minted,
		VoterID:  voter.ID,
		HasVoted: voter.HasVoted,
	})
}

func (s *Server) handleProfile(c *gin.Context) {
	principal, ok := s.requireVoter(c)
	if !ok {
		return
	}
	if s.voters == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	voter, err := s.voters.GetByID(c.Request.Context(), principal.VoterID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileResponse{
		VoterID:  voter.ID,
		FullName: voter.FullName,
		Email:    voter.Email,
		HasVoted: voter.HasVoted,
	})
}

func (s *Server) handleSubmitVote(c *gin.Context) {
	principal, ok := s.requireVoter(c)
	if !ok {
		return
	}
	if s.submit == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if !s.enforceRateLimit(c, "votes:"+principal.VoterID) {
		return
	}
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	resp, err := s.submit.Execute(c.Request.Context(), usecase.SubmitVoteRequest{
		VoterID: principal.VoterID,
		Choice:  req.Choice,
	})
	if err != nil {
		writeVoteError(c, err)
		return
	}
	c.JSON(http.StatusOK, voteResponse{
		TxHash: resp.TxHash,
		Status: string(resp.Status),
	})
}

func (s *Server) handleTally(c *gin.Context) {
	if s.tally == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	snapshot, err := s.tally.Execute(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	counts := make(map[string]uint64, len(snapshot.Counts))
	for choice, votes := range snapshot.Counts {
		counts[strconv.FormatUint(choice, 10)] = votes
	}
	c.JSON(http.StatusOK, tallyResponse{
		Counts:  counts,
		Omitted: snapshot.Omitted,
		TakenAt: snapshot.TakenAt.Format(time.RFC3339),
	})
}

func (s *Server) handleAdminPending(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.reconcile == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	attempts, err := s.reconcile.Pending(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]attemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		out = append(out, attemptResponse{
			ID:        attempt.ID,
			VoterID:   attempt.VoterID,
			Choice:    attempt.Choice,
			Status:    string(attempt.Status),
			ErrorCode: attempt.ErrorCode,
			TxHash:    attempt.TxHash,
			CreatedAt: attempt.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"attempts": out})
}

func (s *Server) handleAdminResolve(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.reconcile == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	attemptID, err := strconv.ParseInt(c.Param("attempt_id"), 10, 64)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid attempt id")
		return
	}
	if err := s.reconcile.Resolve(c.Request.Context(), attemptID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeVoteError maps coordinator outcomes onto the wire. The two typed
// errors carry state a client needs: the unknown outcome keeps its tx
// hash so the voter can check the chain, and the reconciliation case
// says explicitly that the vote is recorded and must not be resubmitted.
func writeVoteError(c *gin.Context, err error) {
	var unknown *domain.OutcomeUnknownError
	if errors.As(err, &unknown) {
		c.JSON(http.StatusAccepted, gin.H{
			"code":    "OUTCOME_UNKNOWN",
			"message": "submission broadcast but not yet confirmed",
			"tx_hash": unknown.TxHash,
			"status":  string(domain.VoteStatusUnknown),
		})
		return
	}
	var recon *domain.ReconciliationError
	if errors.As(err, &recon) {
		c.JSON(http.StatusInternalServerError, errorResponse{
			Code:    "RECONCILIATION_PENDING",
			Message: "vote recorded on ledger; eligibility update pending operator action",
			Details: map[string]any{"tx_hash": recon.TxHash},
		})
		return
	}
	var reasons *domain.RejectionReasons
	if errors.As(err, &reasons) {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Code:    "VOTE_REJECTED",
			Message: "vote rejected by election policy",
			Details: map[string]any{"reasons": reasons.Reasons},
		})
		return
	}
	switch {
	case errors.Is(err, domain.ErrVoteRejected):
		writeErrorCode(c, http.StatusUnprocessableEntity, "VOTE_REJECTED", "vote rejected by the ledger")
	case errors.Is(err, domain.ErrSubmissionFailed):
		writeRetryable(c, http.StatusServiceUnavailable, "SUBMISSION_FAILED", "submission failed before broadcast; safe to retry")
	case errors.Is(err, domain.ErrLedgerUnavailable), errors.Is(err, domain.ErrContractNotDeployed):
		writeRetryable(c, http.StatusServiceUnavailable, "LEDGER_UNAVAILABLE", "ledger unavailable")
	default:
		writeError(c, err)
	}
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrTokenMissing):
		status, code = http.StatusUnauthorized, "TOKEN_MISSING"
	case errors.Is(err, domain.ErrTokenInvalid):
		status, code = http.StatusUnauthorized, "TOKEN_INVALID"
	case errors.Is(err, domain.ErrUnknownVoter):
		status, code = http.StatusNotFound, "UNKNOWN_VOTER"
	case errors.Is(err, domain.ErrAlreadyVoted):
		status, code = http.StatusConflict, "ALREADY_VOTED"
	case errors.Is(err, domain.ErrAlreadyEnrolled):
		status, code = http.StatusConflict, "ALREADY_ENROLLED"
	case errors.Is(err, domain.ErrInvalidLogin):
		status, code = http.StatusUnauthorized, "INVALID_CREDENTIALS"
	case errors.Is(err, domain.ErrInvalidChoice):
		status, code = http.StatusBadRequest, "INVALID_CHOICE"
	case errors.Is(err, domain.ErrLedgerUnavailable), errors.Is(err, domain.ErrContractNotDeployed):
		status, code = http.StatusServiceUnavailable, "LEDGER_UNAVAILABLE"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}

func writeRetryable(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:      code,
		Message:   message,
		Retryable: true,
	})
}
