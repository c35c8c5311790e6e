package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"unichatclient/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Error().Err(err).Msg("unichatclient failed")
		os.Exit(1)
	}
}
