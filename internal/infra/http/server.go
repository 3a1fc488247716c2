package http

import (
	"context"
	"net/http"
	"time"

	"ballotd/internal/config"
	"ballotd/internal/domain"
	"ballotd/internal/infra/auth/token"
	"ballotd/internal/infra/db"
	"ballotd/internal/infra/ledger"
	"ballotd/internal/infra/policy"
	"ballotd/internal/infra/ratelimit"
	"ballotd/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine
	log   zerolog.Logger

	submit    *usecase.SubmitVote
	tally     *usecase.ReadTally
	enroll    *usecase.EnrollVoter
	authn     *usecase.AuthenticateVoter
	reconcile *usecase.Reconcile
	voters    usecase.VoterRepository

	verifier    *token.Verifier
	adminAPIKey string
	initErr     error

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

func NewServer(cfg config.Config, store *db.Store, log zerolog.Logger) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, store: store, r: r, log: log.With().Str("component", "http").Logger()}
	s.initDeps()
	s.routes()
	return s
}

type ServerDeps struct {
	Submit      *usecase.SubmitVote
	Tally       *usecase.ReadTally
	Enroll      *usecase.EnrollVoter
	Authn       *usecase.AuthenticateVoter
	Reconcile   *usecase.Reconcile
	Voters      usecase.VoterRepository
	Verifier    *token.Verifier
	AdminAPIKey string
	RateLimiter domain.RateLimiter
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:         cfg,
		r:           r,
		log:         zerolog.Nop(),
		submit:      deps.Submit,
		tally:       deps.Tally,
		enroll:      deps.Enroll,
		authn:       deps.Authn,
		reconcile:   deps.Reconcile,
		voters:      deps.Voters,
		verifier:    deps.Verifier,
		adminAPIKey: deps.AdminAPIKey,
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initDeps() {
	s.adminAPIKey = s.cfg.AdminAPIKey

	verifier, err := token.NewVerifier(s.cfg.TokenSecret, s.cfg.TokenTTL(), s.cfg.TokenClockSkew())
	if err != nil {
		s.initErr = err
		return
	}
	s.verifier = verifier

	ledgerClient, err := ledger.NewClient(s.cfg, s.log)
	if err != nil {
		s.initErr = err
		return
	}
	engine, err := policy.NewEngine(context.Background(), s.cfg)
	if err != nil {
		s.initErr = err
		return
	}

	var gormDB *gorm.DB
	if s.store != nil {
		gormDB = s.store.DB
	}
	voterRepo := db.NewVoterRepository(gormDB)
	attemptRepo := db.NewVoteAttemptRepository(gormDB)

	s.voters = voterRepo
	s.submit = usecase.NewSubmitVote(voterRepo, ledgerClient, attemptRepo, engine, s.log)
	s.tally = usecase.NewReadTally(ledgerClient, s.log)
	s.enroll = usecase.NewEnrollVoter(voterRepo, s.log)
	s.authn = &usecase.AuthenticateVoter{Voters: voterRepo}
	s.reconcile = usecase.NewReconcile(voterRepo, attemptRepo, s.log)

	s.initRateLimit(nil)
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	if s.cfg.RateLimitWindowSeconds > 0 {
		s.rateLimitWindow = time.Duration(s.cfg.RateLimitWindowSeconds) * time.Second
	}
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		dbMode := "no-db"
		if s.store != nil && s.store.DB != nil {
			dbMode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": dbMode})
	})

	v1 := s.r.Group("/v1")
	{
		v1.POST("/voters", s.handleEnroll)
		v1.POST("/sessions", s.handleLogin)
		v1.GET("/voters/me", s.handleProfile)
		v1.POST("/votes", s.handleSubmitVote)
		v1.GET("/tallies", s.handleTally)

		v1.GET("/admin/reconciliation", s.handleAdminPending)
		v1.POST("/admin/reconciliation/:attempt_id/resolve", s.handleAdminResolve)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) Run() error {
	if s.initErr != nil {
		return s.initErr
	}
	return s.r.Run(s.cfg.HTTPAddr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.r
}
