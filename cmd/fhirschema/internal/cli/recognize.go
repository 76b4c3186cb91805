package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRecognizeCmd(log zerolog.Logger, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "recognize <url-or-name>...",
		Short: "Report whether a canonical URL or Built-in Catalog name has a compiled schema",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			v, err := buildValidator(ctx, log, flags)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			unrecognized := 0
			for _, name := range args {
				if v.Recognizes(name) {
					fmt.Fprintf(out, "%s: recognized\n", name)
				} else {
					fmt.Fprintf(out, "%s: not recognized\n", name)
					unrecognized++
				}
			}
			if unrecognized > 0 {
				return fmt.Errorf("%d of %d names not recognized", unrecognized, len(args))
			}
			return nil
		},
	}
}
