package domain

import "time"

// Voter is the eligibility record for a registered voting identity.
// HasVoted transitions false -> true at most once and never reverses;
// the vote submission coordinator is its only writer.
type Voter struct {
	ID             string
	FullName       string
	Email          string
	VoterCardID    string
	NationalID     string
	PasswordHash   string
	FaceDescriptor string
	HasVoted       bool
	CreatedAt      time.Time
}

// Principal is the identity extracted from a verified bearer token.
type Principal struct {
	VoterID   string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
