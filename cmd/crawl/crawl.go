// Package crawl implements the command that crawls a single source.
package crawl

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/fincrawl/cmd/common"
	"github.com/jonesrussell/fincrawl/internal/domain"
	"github.com/jonesrussell/fincrawl/internal/logger"
)

// Command returns the crawl command.
func Command() *cobra.Command {
	var (
		sourceName string
		save       bool
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl one source and print what it produced",
		Long: `Crawl a single configured source, even a disabled one, and print the
articles its spider produced. Nothing is stored unless --save is given.`,
		Example: `  fincrawl crawl --source "Sina Finance"`,
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

			articles, outcome, err := app.Orchestrator.CrawlSource(cmd.Context(), sourceName)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			common.RenderOutcomes(out, []domain.CrawlOutcome{outcome})
			common.RenderArticles(out, articles)

			if !save {
				stored := 0
				for _, a := range articles {
					exists, existsErr := app.Store.Exists(cmd.Context(), a.URL)
					if existsErr != nil {
						return existsErr
					}
					if exists {
						stored++
					}
				}
				fmt.Fprintf(out, "%d of %d articles are already stored\n", stored, len(articles))
				return nil
			}
			saved, err := app.Store.Save(cmd.Context(), articles)
			if err != nil {
				return fmt.Errorf("save articles: %w", err)
			}
			deps.Logger.Info("Saved articles", logger.String("source", sourceName), logger.Int("saved", saved))
			fmt.Fprintf(out, "Saved %d new of %d articles\n", saved, len(articles))
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceName, "source", "s", "", "name of the source to crawl")
	cmd.Flags().BoolVar(&save, "save", false, "store the crawled articles")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}
