// Package runonce implements the command that performs a single crawl run.
package runonce

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/fincrawl/cmd/common"
)

// Command returns the run-once command.
func Command() *cobra.Command {
	var showArticles bool

	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Crawl every enabled source once, then store and notify",
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

			batch, err := app.Scheduler.RunOnce(cmd.Context())
			if batch == nil {
				return err
			}

			out := cmd.OutOrStdout()
			common.RenderOutcomes(out, batch.Outcomes)
			if showArticles {
				common.RenderArticles(out, batch.Articles)
			}
			fmt.Fprintf(out, "Run %s: %d new articles, %d sources ok, %d failed, took %s\n",
				batch.RunID, len(batch.Articles), batch.Succeeded(), batch.Failed(), batch.Duration().Round(time.Millisecond))
			return err
		},
	}

	cmd.Flags().BoolVar(&showArticles, "articles", false, "print the new articles")
	return cmd
}
