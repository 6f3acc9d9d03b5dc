package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var scrapeFlags runFlags

var scrapeCmd = &cobra.Command{
	Use:   "scrape COMPANY...",
	Short: "Scrape one report type for the given symbols or numeric company ids",
	Example: `  edge-cli scrape ALI BDO --type share_buyback
  edge-cli scrape 180 --type top_stockholders -f csv,xlsx`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		j, err := newJob(cfg, args, scrapeFlags)
		if err != nil {
			return err
		}
		portal, err := newPortal(cfg, j.req.UseProxies)
		if err != nil {
			return err
		}
		_, err = execute(ctx, portal, j, cmd.OutOrStdout())
		return err
	},
}

func init() {
	scrapeFlags.register(scrapeCmd)
	_ = scrapeCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(scrapeCmd)
}
