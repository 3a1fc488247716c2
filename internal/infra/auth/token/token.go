package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"ballotd/internal/domain"
)

// Verifier mints and verifies the HS256 bearer credentials voters carry.
// Verification is pure aside from clock reads; the clock is injectable.
type Verifier struct {
	secret    []byte
	ttl       time.Duration
	clockSkew time.Duration
	now       func() time.Time
}

type Option func(*Verifier)

func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

func NewVerifier(secret string, ttl, clockSkew time.Duration, opts ...Option) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}
	v := &Verifier{
		secret:    []byte(secret),
		ttl:       ttl,
		clockSkew: clockSkew,
		now:       time.Now,
	}
	if v.ttl <= 0 {
		v.ttl = time.Hour
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

type claims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Iat   int64  `json:"iat"`
	Exp   int64  `json:"exp"`
}

// Issue mints a credential for a voter identity at login.
func (v *Verifier) Issue(voterID, email string) (string, error) {
	if voterID == "" {
		return "", errors.New("voter id is required")
	}
	now := v.now()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body, err := json.Marshal(claims{
		Sub:   voterID,
		Email: email,
		Iat:   now.Unix(),
		Exp:   now.Add(v.ttl).Unix(),
	})
	if err != nil {
		return "", err
	}
	signingInput := header + "." + base64.RawURLEncoding.EncodeToString(body)
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(v.sign(signingInput)), nil
}

// Verify validates the credential and extracts the voter identity.
// Failures collapse to domain.ErrTokenInvalid: callers get no oracle for
// which check failed.
func (v *Verifier) Verify(token string) (domain.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Principal{}, domain.ErrTokenMissing
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return domain.Principal{}, domain.ErrTokenInvalid
	}
	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return domain.Principal{}, domain.ErrTokenInvalid
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerBytes, &header); err != nil || header.Alg != "HS256" {
		return domain.Principal{}, domain.ErrTokenInvalid
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return domain.Principal{}, domain.ErrTokenInvalid
	}
	signingInput := parts[0] + "." + parts[1]
	expected := v.sign(signingInput)
	if subtle.ConstantTimeCompare(signature, expected) != 1 {
		return domain.Principal{}, domain.ErrTokenInvalid
	}
	claimBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return domain.Principal{}, domain.ErrTokenInvalid
	}
	var c claims
	if err := json.Unmarshal(claimBytes, &c); err != nil {
		return domain.Principal{}, domain.ErrTokenInvalid
	}
	if c.Sub == "" || c.Exp == 0 {
		return domain.Principal{}, domain.ErrTokenInvalid
	}
	now := v.now()
	expiresAt := time.Unix(c.Exp, 0)
	if !now.Before(expiresAt.Add(v.clockSkew)) {
		return domain.Principal{}, domain.ErrTokenInvalid
	}
	return domain.Principal{
		VoterID:   c.Sub,
		Email:     c.Email,
		IssuedAt:  time.Unix(c.Iat, 0),
		ExpiresAt: expiresAt,
	}, nil
}

func (v *Verifier) sign(input string) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(input))
	return mac.Sum(nil)
}
