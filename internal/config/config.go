package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	TokenSecret        string
	TokenTTLMinutes    int
	TokenClockSkewSecs int

	LedgerRPCURL          string
	LedgerPrivateKeyHex   string
	LedgerArtifactPath    string
	LedgerContractAddress string
	LedgerSubmitTimeout   int
	LedgerDialTimeout     int

	ElectionOpensAt  string
	ElectionClosesAt string
	PolicyPath       string

	AdminAPIKey string

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitFailClosed    bool
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8000"
	}
	return Config{
		HTTPAddr:               addr,
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		LogLevel:               envDefault("LOG_LEVEL", "info"),
		TokenSecret:            os.Getenv("TOKEN_SECRET"),
		TokenTTLMinutes:        envIntDefault("TOKEN_TTL_MINUTES", 60),
		TokenClockSkewSecs:     envIntDefault("TOKEN_CLOCK_SKEW_SECONDS", 60),
		LedgerRPCURL:           envDefault("LEDGER_RPC_URL", "http://127.0.0.1:8545"),
		LedgerPrivateKeyHex:    os.Getenv("LEDGER_PRIVATE_KEY_HEX"),
		LedgerArtifactPath:     os.Getenv("LEDGER_ARTIFACT_PATH"),
		LedgerContractAddress:  os.Getenv("LEDGER_CONTRACT_ADDRESS"),
		LedgerSubmitTimeout:    envIntDefault("LEDGER_SUBMIT_TIMEOUT_SECONDS", 90),
		LedgerDialTimeout:      envIntDefault("LEDGER_DIAL_TIMEOUT_SECONDS", 10),
		ElectionOpensAt:        os.Getenv("ELECTION_OPENS_AT"),
		ElectionClosesAt:       os.Getenv("ELECTION_CLOSES_AT"),
		PolicyPath:             os.Getenv("POLICY_PATH"),
		AdminAPIKey:            os.Getenv("ADMIN_API_KEY"),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitFailClosed:    envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RateLimitMaxKeys:       envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

func (c Config) TokenTTL() time.Duration {
	if c.TokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

func (c Config) TokenClockSkew() time.Duration {
	if c.TokenClockSkewSecs <= 0 {
		return 0
	}
	return time.Duration(c.TokenClockSkewSecs) * time.Second
}

func (c Config) SubmitTimeout() time.Duration {
	if c.LedgerSubmitTimeout <= 0 {
		return 90 * time.Second
	}
	return time.Duration(c.LedgerSubmitTimeout) * time.Second
}

func (c Config) DialTimeout() time.Duration {
	if c.LedgerDialTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.LedgerDialTimeout) * time.Second
}
