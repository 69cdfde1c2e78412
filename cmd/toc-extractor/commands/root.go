// Package commands implements the TOC extractor CLI commands.
package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lexatlas/toc-extractor/cmd/toc-extractor/ui"
	"github.com/lexatlas/toc-extractor/internal/config"
	"github.com/lexatlas/toc-extractor/internal/observability"
)

var (
	cfgFile string
	verbose bool
	noColor bool

	cfg    *config.Config
	logger *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "toc-extractor",
	Short: "Extract tables of contents from legal PDF documents",
	Long: `The TOC extractor renders the leading pages of a legal PDF document to
images, sends them to a vision-capable language model, and saves the
table of contents it finds as structured JSON plus raw text.

Use "extract" for one-shot extraction from a local file or URL, and
"purge" to clean up old asynchronous job records.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Optional .env file for local development
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.Observability.LogLevel
		if verbose {
			level = "debug"
		}
		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      "console",
			ServiceName: "toc-extractor",
		})

		ui.InitUI(noColor, verbose)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
