// Package sources implements commands for inspecting configured sources.
package sources

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/fincrawl/cmd/common"
	"github.com/jonesrussell/fincrawl/internal/domain"
	"github.com/jonesrussell/fincrawl/internal/extractor"
	"github.com/jonesrussell/fincrawl/internal/fetcher"
	internalsources "github.com/jonesrussell/fincrawl/internal/sources"
	"github.com/jonesrussell/fincrawl/internal/spider"
)

// Command returns the sources command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Inspect configured sources",
	}
	cmd.AddCommand(listCommand(), discoverCommand())
	return cmd
}

func listCommand() *cobra.Command {
	var showDisabled bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}

			list, err := internalsources.LoadFile(deps.Config.Sources.File)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sources configured")
				return nil
			}

			RenderTable(cmd.OutOrStdout(), list, showDisabled)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&showDisabled, "all", "a", false, "include disabled sources")
	return cmd
}

// RenderTable prints the sources, skipping disabled ones unless all is set.
func RenderTable(w io.Writer, list []domain.SourceDescriptor, all bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Category", "Group", "Type", "List / Feed URL", "Max Items", "Enabled"})

	shown := 0
	for _, s := range list {
		if !s.Enabled && !all {
			continue
		}
		target := s.ListTarget()
		if s.Kind == domain.KindFeed {
			target = s.FeedURL
			if target == "" {
				target = "auto: " + s.BaseURL
			}
		}
		maxItems := "default"
		if s.MaxItems > 0 {
			maxItems = fmt.Sprint(s.MaxItems)
		}
		t.AppendRow(table.Row{s.Name, s.Category, s.Group, s.Kind, target, maxItems, s.Enabled})
		shown++
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", shown, ""})
	t.Render()
}

func discoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "discover <site-url>",
		Short: "Find the RSS or Atom feed of a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}

			transport := fetcher.New(deps.Config.Crawler.Config, deps.Logger)
			feed := spider.NewFeed(transport, extractor.New(), spider.Options{}, deps.Logger)

			base := strings.TrimRight(args[0], "/")
			found := feed.Discover(cmd.Context(), base)
			if found == "" {
				return fmt.Errorf("%w at %s (tried %s)", spider.ErrNoFeed, base, strings.Join(spider.FeedProbePaths, ", "))
			}
			fmt.Fprintln(cmd.OutOrStdout(), found)
			return nil
		},
	}
}
