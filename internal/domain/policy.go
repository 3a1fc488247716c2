package domain

import "time"

// PolicyInput is what the election policy sees for one submission.
type PolicyInput struct {
	VoterID        string    `json:"voter_id"`
	Choice         uint64    `json:"choice"`
	CandidateCount uint64    `json:"candidate_count"`
	Now            time.Time `json:"now"`
}

type PolicyResult struct {
	Allow   bool     `json:"allow"`
	Reasons []string `json:"reasons"`
}
