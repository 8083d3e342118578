// Package cmd implements the fincrawl command-line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/fincrawl/cmd/crawl"
	"github.com/jonesrussell/fincrawl/cmd/push"
	"github.com/jonesrussell/fincrawl/cmd/runonce"
	cmdscheduler "github.com/jonesrussell/fincrawl/cmd/scheduler"
	cmdsources "github.com/jonesrussell/fincrawl/cmd/sources"
	"github.com/jonesrussell/fincrawl/cmd/status"
	"github.com/jonesrussell/fincrawl/internal/config"
)

// Version is set at build time.
var Version = "dev"

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// Debug enables debug logging for all commands.
	Debug bool

	rootCmd = &cobra.Command{
		Use:   "fincrawl",
		Short: "Financial news crawler",
		Long: `fincrawl collects articles from financial news sites, feeds and
JavaScript-rendered pages, drops duplicates, and stores the rest.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	cobra.OnInitialize(func() {
		if err := initConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	})
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fincrawl version %s\n", Version)
		},
	})

	rootCmd.AddCommand(crawl.Command())
	rootCmd.AddCommand(runonce.Command())
	rootCmd.AddCommand(cmdscheduler.Command(Version))
	rootCmd.AddCommand(cmdsources.Command())
	rootCmd.AddCommand(status.Command())
	rootCmd.AddCommand(status.ArticlesCommand())
	rootCmd.AddCommand(status.PurgeCommand())
	rootCmd.AddCommand(push.Command())
}

// initConfig reads the config file and environment.
func initConfig() error {
	// A missing .env is normal.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	config.SetDefaults(viper.GetViper())
	if err := config.BindEnv(viper.GetViper()); err != nil {
		return err
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if err := viper.BindPFlag("app.debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("bind debug flag: %w", err)
	}
	return nil
}
