// Package cli wires the fhirschema command tree: persistent flags shared by
// every verb (package refs, definition files, cache dir), plus the
// validate/load/recognize subcommands themselves.
package cli

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// rootFlags holds the persistent flags every subcommand reads, following
// the same "flags into a shared struct, not package globals" shape as the
// teacher CLI's Config.
type rootFlags struct {
	packages          []string
	files             []string
	cacheDir          string
	workerCount       int
	refinementTimeout time.Duration
	trackPositions    bool
}

// NewRootCmd builds the fhirschema command tree.
func NewRootCmd(log zerolog.Logger) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "fhirschema",
		Short:         "Compile FHIR definitions and validate resources against them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringSliceVar(&flags.packages, "package", nil,
		`FHIR package(s) to load, as name, name!version, or name@version (repeatable)`)
	root.PersistentFlags().StringSliceVar(&flags.files, "file", nil,
		"standalone definition file(s) to load (repeatable)")
	root.PersistentFlags().StringVar(&flags.cacheDir, "cache-dir", "",
		"package cache directory override (default $HOME/.fhir/packages)")
	root.PersistentFlags().IntVar(&flags.workerCount, "worker-count", 0,
		"fan-out width for batch/bundle validation (default runtime.NumCPU())")
	root.PersistentFlags().DurationVar(&flags.refinementTimeout, "refinement-timeout", 0,
		"bound a single refinement's evaluation (0 means no timeout)")
	root.PersistentFlags().BoolVar(&flags.trackPositions, "positions", false,
		"capture best-effort line/column positions on issues")

	root.AddCommand(newValidateCmd(log, flags))
	root.AddCommand(newLoadCmd(log, flags))
	root.AddCommand(newRecognizeCmd(log, flags))
	root.AddCommand(newBatchCmd(log, flags))
	root.AddCommand(newBundleCmd(log, flags))

	return root
}
