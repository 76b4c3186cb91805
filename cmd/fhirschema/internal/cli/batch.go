package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gofhir/fhirschema/worker"
)

// newBatchCmd validates many files concurrently through worker.Pool,
// reporting aggregate counts the way spec §5's "fan-out cooperative"
// runtime concurrency model intends a large directory of resources to be
// checked: each file's subtree validation runs independently of the rest.
func newBatchCmd(log zerolog.Logger, flags *rootFlags) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "batch <file>...",
		Short: "Validate many FHIR resources concurrently and report aggregate counts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			v, err := buildValidator(ctx, log, flags)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("workers") {
				workers = v.WorkerCount()
			}

			resources := make([][]byte, 0, len(args))
			names := make([]string, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					log.Error().Err(err).Str("file", path).Msg("failed to read file")
					continue
				}
				resources = append(resources, data)
				names = append(names, path)
			}

			validateFunc := func(ctx context.Context, resource []byte) (worker.ValidationResult, error) {
				return v.ValidateBytes(ctx, resource)
			}
			bv := worker.NewBatchValidator(validateFunc, workers)
			batch := bv.ValidateBatch(ctx, resources)

			// ValidateBatch preserves the input order in batch.Results (both
			// its sequential and parallel paths fill results by index), so
			// position lines results back up with names without needing to
			// decode JobResult.ID.
			out := cmd.OutOrStdout()
			for i, r := range batch.Results {
				path := "?"
				if i < len(names) {
					path = names[i]
				}
				switch {
				case r.Error != nil:
					fmt.Fprintf(out, "%s: error: %v\n", path, r.Error)
				case r.Result != nil && r.Result.HasErrors():
					fmt.Fprintf(out, "%s: INVALID (%d errors)\n", path, r.Result.ErrorCount())
				default:
					fmt.Fprintf(out, "%s: VALID\n", path)
				}
			}
			fmt.Fprintf(out, "\n%d/%d validated, %d failed\n", batch.CompletedJobs, batch.TotalJobs, batch.ErrorCount())

			if batch.HasErrors() {
				return fmt.Errorf("batch validation found errors")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent validation workers (defaults to the validator's configured WorkerCount)")
	return cmd
}
