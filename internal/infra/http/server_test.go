package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ballotd/internal/config"
	"ballotd/internal/domain"
	"ballotd/internal/infra/auth/token"
	"ballotd/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type stubVoters struct {
	mu     sync.Mutex
	voters map[string]*domain.Voter
}

func newStubVoters() *stubVoters {
	return &stubVoters{voters: make(map[string]*domain.Voter)}
}

func (s *stubVoters) Create(ctx context.Context, voter domain.Voter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.voters {
		if existing.Email == voter.Email {
			return domain.ErrAlreadyEnrolled
		}
	}
	s.voters[voter.ID] = &voter
	return nil
}

func (s *stubVoters) GetByID(ctx context.Context, id string) (*domain.Voter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	voter, ok := s.voters[id]
	if !ok {
		return nil, domain.ErrUnknownVoter
	}
	copied := *voter
	return &copied, nil
}

func (s *stubVoters) GetByEmail(ctx context.Context, email string) (*domain.Voter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, voter := range s.voters {
		if voter.Email == email {
			copied := *voter
			return &copied, nil
		}
	}
	return nil, domain.ErrUnknownVoter
}

func (s *stubVoters) MarkVoted(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	voter, ok := s.voters[id]
	if !ok {
		return domain.ErrUnknownVoter
	}
	if voter.HasVoted {
		return domain.ErrAlreadyVoted
	}
	voter.HasVoted = true
	return nil
}

type stubLedger struct {
	mu          sync.Mutex
	submissions int
	submitErr   error
	txHash      string
	count       uint64
	tallies     map[uint64]uint64
}

func (l *stubLedger) Submit(ctx context.Context, choice uint64) (domain.VoteReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submissions++
	if l.submitErr != nil {
		return domain.VoteReceipt{}, l.submitErr
	}
	return domain.VoteReceipt{TxHash: l.txHash, Status: domain.VoteStatusConfirmed, Choice: choice}, nil
}

func (l *stubLedger) Tally(ctx context.Context, choice uint64) (uint64, error) {
	return l.tallies[choice], nil
}

func (l *stubLedger) CandidateCount(ctx context.Context) (uint64, error) {
	return l.count, nil
}

type stubAttempts struct {
	mu       sync.Mutex
	attempts []domain.VoteAttempt
}

func (a *stubAttempts) Append(ctx context.Context, attempt domain.VoteAttempt) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	attempt.ID = int64(len(a.attempts) + 1)
	attempt.CreatedAt = time.Now().UTC()
	a.attempts = append(a.attempts, attempt)
	return nil
}

func (a *stubAttempts) ListUnreconciled(ctx context.Context) ([]domain.VoteAttempt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.VoteAttempt
	for _, attempt := range a.attempts {
		if attempt.Status == domain.AttemptUnreconciled {
			out = append(out, attempt)
		}
	}
	return out, nil
}

func (a *stubAttempts) GetByID(ctx context.Context, id int64) (*domain.VoteAttempt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, attempt := range a.attempts {
		if attempt.ID == id {
			copied := attempt
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (a *stubAttempts) MarkReconciled(ctx context.Context, id int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.attempts {
		if a.attempts[i].ID == id {
			if a.attempts[i].Status != domain.AttemptUnreconciled {
				return domain.ErrNotFound
			}
			a.attempts[i].Status = domain.AttemptReconciled
			return nil
		}
	}
	return domain.ErrNotFound
}

type allowPolicy struct{}

func (allowPolicy) Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyResult, error) {
	return domain.PolicyResult{Allow: true}, nil
}

type testEnv struct {
	server   *Server
	voters   *stubVoters
	ledger   *stubLedger
	attempts *stubAttempts
	verifier *token.Verifier
}

func newTestServer(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	voters := newStubVoters()
	ledger := &stubLedger{txHash: "0xabc", count: 3, tallies: map[uint64]uint64{1: 5, 2: 3, 3: 0}}
	attempts := &stubAttempts{}

	verifier, err := token.NewVerifier("test-secret", time.Hour, time.Minute)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	log := zerolog.Nop()
	server := NewServerWithDeps(cfg, ServerDeps{
		Submit:      usecase.NewSubmitVote(voters, ledger, attempts, allowPolicy{}, log),
		Tally:       usecase.NewReadTally(ledger, log),
		Enroll:      usecase.NewEnrollVoter(voters, log),
		Authn:       &usecase.AuthenticateVoter{Voters: voters},
		Reconcile:   usecase.NewReconcile(voters, attempts, log),
		Voters:      voters,
		Verifier:    verifier,
		AdminAPIKey: cfg.AdminAPIKey,
	})
	return &testEnv{server: server, voters: voters, ledger: ledger, attempts: attempts, verifier: verifier}
}

func (e *testEnv) seedVoter(t *testing.T, id, email, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	e.voters.voters[id] = &domain.Voter{
		ID:           id,
		FullName:     "Test Voter",
		Email:        email,
		VoterCardID:  "card-" + id,
		NationalID:   "nat-" + id,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	bearer, err := e.verifier.Issue(id, email)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return bearer
}

func (e *testEnv) do(method, path, bearer string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.server.r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	env := newTestServer(t, config.Config{})
	w := env.do(http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decode(t, w); body["mode"] != "no-db" {
		t.Fatalf("mode = %v", body["mode"])
	}
}

func TestSubmitVote_ConfirmThenConflict(t *testing.T) {
	env := newTestServer(t, config.Config{})
	bearer := env.seedVoter(t, "v1", "v1@example.org", "pw")

	w := env.do(http.MethodPost, "/v1/votes", bearer, gin.H{"choice": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("first vote status = %d body=%s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["tx_hash"] != "0xabc" || body["status"] != "confirmed" {
		t.Fatalf("unexpected body: %v", body)
	}

	w = env.do(http.MethodPost, "/v1/votes", bearer, gin.H{"choice": 2})
	if w.Code != http.StatusConflict {
		t.Fatalf("second vote status = %d", w.Code)
	}
	if body := decode(t, w); body["code"] != "ALREADY_VOTED" {
		t.Fatalf("code = %v", body["code"])
	}
	if env.ledger.submissions != 1 {
		t.Fatalf("submissions = %d, want 1", env.ledger.submissions)
	}
}

func TestSubmitVote_AuthRequired(t *testing.T) {
	env := newTestServer(t, config.Config{})

	w := env.do(http.MethodPost, "/v1/votes", "", gin.H{"choice": 1})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decode(t, w); body["code"] != "TOKEN_MISSING" {
		t.Fatalf("code = %v", body["code"])
	}

	w = env.do(http.MethodPost, "/v1/votes", "not.a.token", gin.H{"choice": 1})
	if body := decode(t, w); w.Code != http.StatusUnauthorized || body["code"] != "TOKEN_INVALID" {
		t.Fatalf("status = %d code = %v", w.Code, body["code"])
	}
	if env.ledger.submissions != 0 {
		t.Fatalf("unauthenticated requests must not reach the ledger")
	}
}

func TestSubmitVote_OutcomeUnknownIsAccepted(t *testing.T) {
	env := newTestServer(t, config.Config{})
	bearer := env.seedVoter(t, "v1", "v1@example.org", "pw")
	env.ledger.submitErr = &domain.OutcomeUnknownError{TxHash: "0xdead"}

	w := env.do(http.MethodPost, "/v1/votes", bearer, gin.H{"choice": 1})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["code"] != "OUTCOME_UNKNOWN" || body["tx_hash"] != "0xdead" {
		t.Fatalf("unexpected body: %v", body)
	}
	voter, _ := env.voters.GetByID(context.Background(), "v1")
	if voter.HasVoted {
		t.Fatal("eligibility must be untouched while the outcome is unknown")
	}
}

func TestSubmitVote_RetryableFailure(t *testing.T) {
	env := newTestServer(t, config.Config{})
	bearer := env.seedVoter(t, "v1", "v1@example.org", "pw")
	env.ledger.submitErr = domain.ErrSubmissionFailed

	w := env.do(http.MethodPost, "/v1/votes", bearer, gin.H{"choice": 1})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	if body["code"] != "SUBMISSION_FAILED" || body["retryable"] != true {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestEnrollLoginProfile(t *testing.T) {
	env := newTestServer(t, config.Config{})

	enrollment := gin.H{
		"full_name":     "Ada Voter",
		"email":         "ada@example.org",
		"voter_card_id": "card-1",
		"national_id":   "nat-1",
		"password":      "hunter22",
	}
	w := env.do(http.MethodPost, "/v1/voters", "", enrollment)
	if w.Code != http.StatusCreated {
		t.Fatalf("enroll status = %d body=%s", w.Code, w.Body.String())
	}

	w = env.do(http.MethodPost, "/v1/voters", "", enrollment)
	if body := decode(t, w); w.Code != http.StatusConflict || body["code"] != "ALREADY_ENROLLED" {
		t.Fatalf("duplicate enroll: status = %d code = %v", w.Code, body["code"])
	}

	w = env.do(http.MethodPost, "/v1/sessions", "", gin.H{"email": "ada@example.org", "password": "wrong"})
	if body := decode(t, w); w.Code != http.StatusUnauthorized || body["code"] != "INVALID_CREDENTIALS" {
		t.Fatalf("bad login: status = %d code = %v", w.Code, body["code"])
	}

	w = env.do(http.MethodPost, "/v1/sessions", "", gin.H{"email": "ada@example.org", "password": "hunter22"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", w.Code, w.Body.String())
	}
	bearer, _ := decode(t, w)["token"].(string)
	if bearer == "" {
		t.Fatal("login returned no token")
	}

	w = env.do(http.MethodGet, "/v1/voters/me", bearer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("profile status = %d", w.Code)
	}
	body := decode(t, w)
	if body["email"] != "ada@example.org" || body["has_voted"] != false {
		t.Fatalf("unexpected profile: %v", body)
	}
}

func TestTallyEndpoint(t *testing.T) {
	env := newTestServer(t, config.Config{})

	w := env.do(http.MethodGet, "/v1/tallies", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	counts, ok := body["counts"].(map[string]any)
	if !ok || counts["1"] != float64(5) || counts["2"] != float64(3) || counts["3"] != float64(0) {
		t.Fatalf("unexpected counts: %v", body["counts"])
	}
}

func TestAdminReconciliation(t *testing.T) {
	env := newTestServer(t, config.Config{AdminAPIKey: "ops-key"})
	env.seedVoter(t, "v1", "v1@example.org", "pw")
	_ = env.attempts.Append(context.Background(), domain.VoteAttempt{
		VoterID: "v1",
		Choice:  2,
		Status:  domain.AttemptUnreconciled,
		TxHash:  "0xfeed",
	})

	w := env.do(http.MethodGet, "/v1/admin/reconciliation", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no key: status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/reconciliation", nil)
	req.Header.Set("X-Admin-Key", "ops-key")
	w = httptest.NewRecorder()
	env.server.r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d body=%s", w.Code, w.Body.String())
	}
	var listed struct {
		Attempts []attemptResponse `json:"attempts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed.Attempts) != 1 || listed.Attempts[0].TxHash != "0xfeed" {
		t.Fatalf("unexpected queue: %+v", listed.Attempts)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/admin/reconciliation/1/resolve", nil)
	req.Header.Set("X-Admin-Key", "ops-key")
	w = httptest.NewRecorder()
	env.server.r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve status = %d body=%s", w.Code, w.Body.String())
	}
	voter, _ := env.voters.GetByID(context.Background(), "v1")
	if !voter.HasVoted {
		t.Fatal("resolve must set the eligibility flag")
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/admin/reconciliation/1/resolve", nil)
	req.Header.Set("X-Admin-Key", "ops-key")
	w = httptest.NewRecorder()
	env.server.r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second resolve status = %d", w.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	env := newTestServer(t, config.Config{
		RateLimitRequests:      1,
		RateLimitWindowSeconds: 60,
	})

	first := env.do(http.MethodPost, "/v1/sessions", "", gin.H{"email": "x@example.org", "password": "pw"})
	if first.Code != http.StatusUnauthorized {
		t.Fatalf("first attempt status = %d", first.Code)
	}
	second := env.do(http.MethodPost, "/v1/sessions", "", gin.H{"email": "x@example.org", "password": "pw"})
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second attempt status = %d", second.Code)
	}
	if body := decode(t, second); body["code"] != "RATE_LIMITED" {
		t.Fatalf("code = %v", body["code"])
	}
}
