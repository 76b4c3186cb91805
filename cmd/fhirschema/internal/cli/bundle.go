package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gofhir/fhirschema/stream"
)

// newBundleCmd validates a single Bundle resource entry-by-entry via
// stream.BundleValidator, so a large transaction/collection Bundle never
// has to be held as one decoded tree the way validate's os.ReadFile-then-
// Validate path does.
func newBundleCmd(log zerolog.Logger, flags *rootFlags) *cobra.Command {
	var parallel bool

	cmd := &cobra.Command{
		Use:   "bundle <file>",
		Short: "Validate a FHIR Bundle's entries in streaming fashion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			v, err := buildValidator(ctx, log, flags)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			validateEntry := func(ctx context.Context, resource []byte) (stream.Result, error) {
				result, err := v.ValidateBytes(ctx, resource)
				if err != nil {
					return nil, err
				}
				return result, nil
			}

			bv := stream.NewBundleValidator(validateEntry).WithWorkerCount(v.WorkerCount())

			var results <-chan *stream.EntryResult
			if parallel {
				results = bv.ValidateStreamParallel(ctx, f)
			} else {
				results = bv.ValidateStream(ctx, f)
			}

			out := cmd.OutOrStdout()
			for r := range results {
				if r.Error != nil {
					fmt.Fprintf(out, "entry %d: error: %v\n", r.Index, r.Error)
					continue
				}
				status := "no resource"
				if r.Result != nil {
					errs, warnings := r.Result.IssueCounts()
					status = fmt.Sprintf("%d errors, %d warnings", errs, warnings)
				}
				fmt.Fprintf(out, "entry %d [%s %s]: %s\n", r.Index, r.ResourceType, r.ResourceID, status)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&parallel, "parallel", false, "validate entries concurrently (output still ordered)")
	return cmd
}
