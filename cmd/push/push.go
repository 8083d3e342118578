// Package push implements the command that delivers stored, not yet pushed
// articles to the configured notifiers.
package push

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/fincrawl/cmd/common"
	"github.com/jonesrussell/fincrawl/internal/logger"
)

// Command returns the push command.
func Command() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Send pending articles to every notifier and mark them pushed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}
			app, err := common.NewApp(cmd.Context(), deps)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			pending, err := app.Store.PendingForPush(ctx, limit)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to push")
				return nil
			}

			var errs []error
			for _, n := range app.Notifiers {
				if notifyErr := n.Notify(ctx, pending); notifyErr != nil {
					deps.Logger.Warn("Notifier failed", logger.String("notifier", n.Name()), logger.Error(notifyErr))
					errs = append(errs, fmt.Errorf("%s: %w", n.Name(), notifyErr))
				}
			}
			// Leave everything pending so the next push retries.
			if len(errs) > 0 {
				return errors.Join(errs...)
			}

			ids := make([]int64, 0, len(pending))
			for _, a := range pending {
				ids = append(ids, a.ID)
			}
			if err = app.Store.MarkPushed(ctx, ids); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d articles to %d notifiers\n", len(pending), len(app.Notifiers))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum articles to push (0 for all)")
	return cmd
}
