package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gofhir/fhirschema"
)

func newValidateCmd(log zerolog.Logger, flags *rootFlags) *cobra.Command {
	var profiles []string
	var ignoreSelfDeclared bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate one or more FHIR resources against loaded definitions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			v, err := buildValidator(ctx, log, flags)
			if err != nil {
				return err
			}

			hadErrors := false
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					log.Error().Err(err).Str("file", path).Msg("failed to read file")
					hadErrors = true
					continue
				}

				result := v.Validate(ctx, data, fhirschema.ValidateOptions{
					Profiles:                   profiles,
					IgnoreSelfDeclaredProfiles: ignoreSelfDeclared,
				})
				if !result.Success {
					hadErrors = true
				}

				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					if err := enc.Encode(result); err != nil {
						return err
					}
					continue
				}
				printResult(cmd, path, result)
			}

			if hadErrors {
				return fmt.Errorf("validation found errors")
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&profiles, "profile", nil, "profile URL(s) to validate against (repeatable)")
	cmd.Flags().BoolVar(&ignoreSelfDeclared, "ignore-self-declared", false, "ignore meta.profile on the document")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit one JSON ValidationResult per file instead of text")

	return cmd
}

func printResult(cmd *cobra.Command, path string, result fhirschema.ValidationResult) {
	out := cmd.OutOrStdout()
	status := "VALID"
	if !result.Success {
		status = "INVALID"
	}
	fmt.Fprintf(out, "== %s ==\nStatus: %s\n", path, status)
	for _, iss := range result.Issues {
		if iss.Line > 0 {
			fmt.Fprintf(out, "  [%s] %s (line %d, col %d)\n", iss.Code, iss.String(), iss.Line, iss.Column)
			continue
		}
		fmt.Fprintf(out, "  [%s] %s\n", iss.Code, iss.String())
	}
	fmt.Fprintln(out)
}
