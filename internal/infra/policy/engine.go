package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"ballotd/internal/config"
	"ballotd/internal/domain"

	"github.com/open-policy-agent/opa/rego"
)

const defaultQuery = "data.ballotd.election.result"

// defaultPolicy gates every submission before the ledger is touched:
// the election window must be open and the choice must be in range.
// Operators can replace it wholesale via POLICY_PATH.
const defaultPolicy = `package ballotd.election

default allow = false

allow {
	count(reasons) == 0
}

reasons["election has not opened"] {
	input.opens_at_ns > 0
	input.now_ns < input.opens_at_ns
}

reasons["election is closed"] {
	input.closes_at_ns > 0
	input.now_ns >= input.closes_at_ns
}

reasons["choice is out of range"] {
	input.choice < 1
}

reasons["choice is out of range"] {
	input.candidate_count > 0
	input.choice > input.candidate_count
}

result := {"allow": allow, "reasons": reasons}
`

type Engine struct {
	query    rego.PreparedEvalQuery
	opensAt  time.Time
	closesAt time.Time
}

func NewEngine(ctx context.Context, cfg config.Config) (*Engine, error) {
	src := defaultPolicy
	if cfg.PolicyPath != "" {
		raw, err := os.ReadFile(cfg.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("read policy: %w", err)
		}
		src = string(raw)
	}

	r := rego.New(
		rego.Query(defaultQuery),
		rego.Module("election.rego", src),
		rego.StrictBuiltinErrors(true),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare election policy: %w", err)
	}

	engine := &Engine{query: prepared}
	if cfg.ElectionOpensAt != "" {
		engine.opensAt, err = time.Parse(time.RFC3339, cfg.ElectionOpensAt)
		if err != nil {
			return nil, fmt.Errorf("parse ELECTION_OPENS_AT: %w", err)
		}
	}
	if cfg.ElectionClosesAt != "" {
		engine.closesAt, err = time.Parse(time.RFC3339, cfg.ElectionClosesAt)
		if err != nil {
			return nil, fmt.Errorf("parse ELECTION_CLOSES_AT: %w", err)
		}
	}
	return engine, nil
}

func (e *Engine) Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyResult, error) {
	if e == nil {
		return domain.PolicyResult{}, errors.New("policy engine is nil")
	}
	in := map[string]any{
		"voter_id":        input.VoterID,
		"choice":          input.Choice,
		"candidate_count": input.CandidateCount,
		"now_ns":          input.Now.UnixNano(),
		"opens_at_ns":     unixNanoOrZero(e.opensAt),
		"closes_at_ns":    unixNanoOrZero(e.closesAt),
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(in))
	if err != nil {
		return domain.PolicyResult{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.PolicyResult{}, errors.New("empty policy result")
	}
	result, err := decodeResult(results[0].Expressions[0].Value)
	if err != nil {
		return domain.PolicyResult{}, err
	}
	sort.Strings(result.Reasons)
	return result, nil
}

func decodeResult(value any) (domain.PolicyResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return domain.PolicyResult{}, err
	}
	var result domain.PolicyResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.PolicyResult{}, err
	}
	return result, nil
}

func unixNanoOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
