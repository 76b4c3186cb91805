// Package main is the fhirschema CLI: a thin cobra command tree over the
// library's Validator, for ad hoc use and CI pipelines.
package main

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/gofhir/fhirschema/cmd/fhirschema/internal/cli"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	if err := cli.NewRootCmd(log).Execute(); err != nil {
		os.Exit(1)
	}
}
