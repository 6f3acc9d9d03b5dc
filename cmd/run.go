package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/edge-cli/internal/config"
	"github.com/sells-group/edge-cli/internal/edge"
	"github.com/sells-group/edge-cli/internal/engine"
	"github.com/sells-group/edge-cli/internal/fetcher"
	"github.com/sells-group/edge-cli/internal/model"
	"github.com/sells-group/edge-cli/internal/output"
	"github.com/sells-group/edge-cli/internal/resilience"
)

// runFlags are the flags shared by every command that starts a run.
type runFlags struct {
	reportType string
	mode       string
	workers    int
	proxies    bool
	output     string
	dir        string
	formats    []string
	stdout     bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.reportType, "type", "t", "", "report type (see 'edge-cli types')")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "detailed, first_match or summary (default depends on type)")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "concurrent requests, 1-10 (default from config)")
	cmd.Flags().BoolVar(&f.proxies, "proxies", false, "rotate requests through the proxy file")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file basename (default <basename>_<type>)")
	cmd.Flags().StringVar(&f.dir, "dir", "", "output directory (default from config)")
	cmd.Flags().StringSliceVarP(&f.formats, "format", "f", nil, "output formats: csv, json, xlsx")
	cmd.Flags().BoolVar(&f.stdout, "stdout", false, "print rows as JSON on stdout")
}

// job is one fully resolved run plus where its results go.
type job struct {
	req      model.RunRequest
	dir      string
	basename string
	formats  []output.Format
	stdout   bool
}

// newJob resolves companies and flags against the loaded config.
func newJob(c *config.Config, companies []string, f runFlags) (job, error) {
	rt, err := model.ParseReportType(f.reportType)
	if err != nil {
		return job{}, err
	}
	mode, err := model.ParseMode(f.mode)
	if err != nil {
		return job{}, err
	}
	formats := f.formats
	if len(formats) == 0 {
		formats = c.Output.Formats
	}
	parsed, err := output.ParseFormats(formats)
	if err != nil {
		return job{}, err
	}

	workers := f.workers
	if workers == 0 {
		workers = c.Scrape.Workers
	}
	basename := f.output
	if basename == "" {
		basename = fmt.Sprintf("%s_%s", c.Output.Basename, rt)
	}
	dir := f.dir
	if dir == "" {
		dir = c.Output.Dir
	}

	return job{
		req: model.RunRequest{
			CompanyRefs: model.ParseCompanyRefs(companies),
			ReportType:  rt,
			Workers:     workers,
			UseProxies:  f.proxies || c.Scrape.UseProxies,
			Mode:        mode,
		},
		dir:      dir,
		basename: basename,
		formats:  parsed,
		stdout:   f.stdout,
	}, nil
}

// newPortal builds the portal client from config. Proxies are loaded only
// when asked for.
func newPortal(c *config.Config, useProxies bool) (*edge.Client, error) {
	opts := fetcher.HTTPOptions{
		UserAgent:  c.Portal.UserAgent,
		Timeout:    time.Duration(c.Portal.TimeoutSecs) * time.Second,
		MaxRetries: c.Portal.MaxRetries,
		RatePerSec: c.Portal.RatePerSec,
		Burst:      c.Portal.Burst,
		Backoff:    resilience.DefaultBackoff(),
	}

	if useProxies {
		addrs, err := fetcher.LoadProxies(c.Scrape.ProxyFile)
		if err != nil {
			return nil, err
		}
		pool, err := fetcher.NewProxyPool(addrs)
		if err != nil {
			return nil, err
		}
		zap.L().Info("proxy rotation enabled", zap.Int("proxies", pool.Len()))
		opts.Proxies = pool
	}

	return edge.NewClient(fetcher.NewHTTPTransport(opts), c.Portal.BaseURL)
}

// execute runs j and writes its results. Partial results of a cancelled run
// are written before the cancellation error is returned.
func execute(ctx context.Context, portal engine.Portal, j job, w io.Writer) (*engine.Result, error) {
	eng := engine.New(portal, nil, engine.WithProgress(logProgress))

	res, runErr := eng.Run(ctx, j.req)
	if res == nil {
		return nil, runErr
	}

	paths, err := output.WriteFiles(res.Table, j.dir, j.basename, j.formats)
	if err != nil {
		return res, eris.Wrap(err, "write results")
	}
	if j.stdout && res.Table.Len() > 0 {
		if err := output.WriteJSON(w, res.Table, false); err != nil {
			return res, err
		}
	}
	output.PrintSummary(summaryWriter(w, j.stdout), res.Summary, res.Table, paths)

	return res, runErr
}

// summaryWriter keeps stdout clean for JSON when --stdout is set.
func summaryWriter(w io.Writer, stdout bool) io.Writer {
	if stdout {
		return rootCmd.ErrOrStderr()
	}
	return w
}

func logProgress(ev model.ProgressEvent) {
	log := zap.L().With(
		zap.String("component", "progress"),
		zap.String("company", ev.Company),
		zap.String("kind", string(ev.Kind)),
		zap.String("key", ev.Key),
	)
	switch ev.State {
	case model.UnitFailed:
		log.Warn("unit failed", zap.String("reason", ev.Reason))
	case model.UnitCompleted:
		log.Debug("unit completed",
			zap.Int("found", ev.Found),
			zap.Int("completed", ev.Completed),
			zap.Int("failed", ev.Failed),
		)
	}
}
