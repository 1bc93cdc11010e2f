package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/routing-advisor/node-advisor/cmd/node-advisor/cli"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("failed to load .env file")
	}
}

func main() {
	// log.Ctx falls back to the global logger for contexts without one
	zerolog.DefaultContextLogger = &log.Logger

	if err := cli.Setup(); err != nil {
		log.Err(err).Msg("node-advisor failed")
		os.Exit(1)
	}
}
