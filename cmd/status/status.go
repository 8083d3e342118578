// Package status implements commands that report on stored articles and
// crawl history.
package status

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/fincrawl/cmd/common"
	"github.com/jonesrussell/fincrawl/internal/logger"
)

const defaultHistoryRows = 20

// Command returns the status command.
func Command() *cobra.Command {
	var history int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store statistics and recent crawl outcomes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}
			st, err := common.OpenStore(cmd.Context(), deps)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			common.RenderStatistics(out, stats)

			if history <= 0 {
				return nil
			}
			outcomes, err := st.RecentOutcomes(cmd.Context(), history)
			if err != nil {
				return err
			}
			common.RenderOutcomes(out, outcomes)
			return nil
		},
	}

	cmd.Flags().IntVar(&history, "history", defaultHistoryRows, "number of crawl history rows to show (0 hides them)")
	return cmd
}

// ArticlesCommand lists articles crawled on one day.
func ArticlesCommand() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "articles",
		Short: "List articles crawled on a given day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}

			day := time.Now().In(deps.Config.Location())
			if date != "" {
				day, err = time.ParseInLocation(time.DateOnly, date, deps.Config.Location())
				if err != nil {
					return fmt.Errorf("invalid --date %q: %w", date, err)
				}
			}

			st, err := common.OpenStore(cmd.Context(), deps)
			if err != nil {
				return err
			}
			defer st.Close()

			articles, err := st.ByDate(cmd.Context(), day)
			if err != nil {
				return err
			}
			common.RenderArticles(cmd.OutOrStdout(), articles)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "day to list, YYYY-MM-DD (default today)")
	return cmd
}

// PurgeCommand deletes old articles and history.
func PurgeCommand() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete articles and crawl history older than --days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}
			st, err := common.OpenStore(cmd.Context(), deps)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.PurgeOlderThan(cmd.Context(), days)
			if err != nil {
				return err
			}
			deps.Logger.Info("Purged old articles", logger.Int64("deleted", n), logger.Int("days", days))
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d articles older than %d days\n", n, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 90, "age in days beyond which data is deleted")
	return cmd
}
