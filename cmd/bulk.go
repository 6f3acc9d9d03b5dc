package main

import (
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// maxBulkRange bounds how many company ids one bulk run may cover.
const maxBulkRange = 2000

var bulkFlags runFlags

var bulkCmd = &cobra.Command{
	Use:   "bulk START END",
	Short: "Scrape a range of numeric company ids",
	Example: `  edge-cli bulk 1 300 --type public_ownership
  edge-cli bulk 100 150 --type top_stockholders --workers 8`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ids, err := idRange(args[0], args[1])
		if err != nil {
			return err
		}
		zap.L().Info("bulk scrape", zap.String("from", args[0]), zap.String("to", args[1]), zap.Int("companies", len(ids)))

		j, err := newJob(cfg, ids, bulkFlags)
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
	bulkFlags.register(bulkCmd)
	_ = bulkCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(bulkCmd)
}

// idRange expands an inclusive range of positive company ids.
func idRange(start, end string) ([]string, error) {
	from, err := strconv.Atoi(start)
	if err != nil || from < 1 {
		return nil, eris.Errorf("invalid start id %q: must be a positive integer", start)
	}
	to, err := strconv.Atoi(end)
	if err != nil || to < 1 {
		return nil, eris.Errorf("invalid end id %q: must be a positive integer", end)
	}
	if to < from {
		return nil, eris.Errorf("end id %d is before start id %d", to, from)
	}
	if n := to - from + 1; n > maxBulkRange {
		return nil, eris.Errorf("range covers %d ids; at most %d per run", n, maxBulkRange)
	}

	ids := make([]string, 0, to-from+1)
	for id := from; id <= to; id++ {
		ids = append(ids, strconv.Itoa(id))
	}
	return ids, nil
}
