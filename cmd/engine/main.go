package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"binarymlm/cmd/engine/cli"
)

func main() {
	if err := cli.Setup(); err != nil {
		log.Error().Err(err).Msg("engine exited")
		os.Exit(1)
	}
}
