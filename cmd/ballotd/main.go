package main

import (
	"os"

	"ballotd/internal/config"
	"ballotd/internal/infra/db"
	httpinfra "ballotd/internal/infra/http"

	"github.com/rs/zerolog"
)

func main() {
	cfg := config.FromEnv()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	store, err := db.NewStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init store")
	}

	srv := httpinfra.NewServer(cfg, store, log)
	log.Info().Str("addr", cfg.HTTPAddr).Msg("starting ballotd")
	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
