package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/edge-cli/internal/config"
)

var (
	cfg   *config.Config
	quiet bool
)

var rootCmd = &cobra.Command{
	Use:   "edge-cli",
	Short: "Scrape corporate disclosures from the PSE EDGE portal",
	Long: "Searches the PSE EDGE disclosure portal for companies, extracts structured data " +
		"from matching reports, reconciles amended filings and writes CSV, JSON or XLSX.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if quiet {
			c.Log.Level = "warn"
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
