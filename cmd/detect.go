// -- cmd/detect.go --
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Badis-tech/autoapply/api/schemas"
	"github.com/Badis-tech/autoapply/internal/observability"
	"github.com/Badis-tech/autoapply/internal/profiling"
)

// newDetectCmd creates and configures the `detect` command.
func newDetectCmd() *cobra.Command {
	var showProfile bool

	detectCmd := &cobra.Command{
		Use:   "detect <url>",
		Short: "Scans a URL and prints the inferred form schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Shutdown(ctx)

			schema, data, err := components.Engine.Detect(ctx, normalizeURL(args[0]))
			if err != nil {
				// An empty form still yields the scanned schema; show it so the
				// operator can see what the page looked like.
				var kerr *schemas.Error
				if errors.As(err, &kerr) && kerr.Kind == schemas.KindEmptyForm && schema != nil {
					printJSON(cmd, schema)
				}
				return err
			}

			printJSON(cmd, schema)
			if showProfile && data != nil {
				fmt.Fprintln(cmd.OutOrStdout(), profiling.FormatReport(data))
			}
			return nil
		},
	}

	detectCmd.Flags().BoolVar(&showProfile, "profile", false, "print the phase-level profiling report")
	return detectCmd
}

func normalizeURL(raw string) string {
	if len(raw) >= 7 && (raw[:7] == "http://" || (len(raw) >= 8 && raw[:8] == "https://")) {
		return raw
	}
	return "https://" + raw
}

func printJSON(cmd *cobra.Command, v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "failed to render output: %v\n", err)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
}
