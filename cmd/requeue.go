// -- cmd/requeue.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Badis-tech/autoapply/internal/observability"
)

// newRequeueCmd creates the `requeue` command, which returns a quarantined
// application to the pending queue after its challenge was resolved by hand.
func newRequeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <application-id>",
		Short: "Returns a quarantined application to pending after manual challenge resolution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Shutdown(ctx)

			rec, err := components.Engine.Requeue(ctx, args[0])
			if err != nil {
				return err
			}
			printJSON(cmd, rec)
			fmt.Fprintf(cmd.OutOrStdout(), "\nApplication %s re-queued.\n", rec.ID)
			return nil
		},
	}
}
