package cli

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/gofhir/fhirschema"
)

// buildValidator constructs a Validator and loads whatever --package/--file
// flags named, logging each compile-log entry at the level its kind implies
// (cycles and unresolved deps are warnings; malformed definitions are
// errors) so a CI run's log output surfaces degraded compilation instead of
// silently falling back to Any everywhere.
func buildValidator(ctx context.Context, log zerolog.Logger, flags *rootFlags) (*fhirschema.Validator, error) {
	opts := fhirschema.DefaultOptions()
	if flags.cacheDir != "" {
		opts.CacheDir = flags.cacheDir
	}
	if flags.workerCount > 0 {
		opts.WorkerCount = flags.workerCount
	}
	opts.RefinementTimeout = flags.refinementTimeout
	opts.TrackPositions = flags.trackPositions

	v, err := fhirschema.NewValidator(ctx, opts)
	if err != nil {
		return nil, err
	}

	if len(flags.packages) > 0 {
		log.Info().Strs("packages", flags.packages).Msg("loading packages")
		if err := v.LoadPackages(ctx, flags.packages...); err != nil {
			return nil, err
		}
	}
	if len(flags.files) > 0 {
		log.Info().Strs("files", flags.files).Msg("loading files")
		if err := v.LoadFiles(ctx, flags.files...); err != nil {
			return nil, err
		}
	}

	logCompileEntries(log, v.CompileLog())
	return v, nil
}

func logCompileEntries(log zerolog.Logger, entries []fhirschema.LogEntry) {
	for _, e := range entries {
		ev := log.Warn()
		if e.Kind == fhirschema.CompileMalformedDefinition {
			ev = log.Error()
		}
		ev.Str("kind", string(e.Kind)).Str("url", e.URL).Msg(e.Msg)
	}
}
