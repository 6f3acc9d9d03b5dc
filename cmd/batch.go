package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/edge-cli/internal/config"
	"github.com/sells-group/edge-cli/internal/engine"
)

// batchFile is the YAML layout of a batch job file.
type batchFile struct {
	Jobs []batchJob `yaml:"jobs"`
}

// batchJob is one entry of a batch job file.
type batchJob struct {
	Type      string   `yaml:"type"`
	Mode      string   `yaml:"mode"`
	Companies []string `yaml:"companies"`
	Output    string   `yaml:"output"`
	Formats   []string `yaml:"formats"`
	Workers   int      `yaml:"workers"`
	Proxies   bool     `yaml:"proxies"`
}

var batchDir string

var batchCmd = &cobra.Command{
	Use:   "batch FILE",
	Short: "Run the scrape jobs listed in a YAML file",
	Example: `  edge-cli batch jobs.yaml

  # jobs.yaml
  jobs:
    - type: share_buyback
      companies: [ALI, BDO]
      output: buybacks
    - type: top_stockholders
      companies: ["180"]
      formats: [xlsx]`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		jobs, err := loadJobs(cfg, args[0], batchDir)
		if err != nil {
			return err
		}

		ps, err := newPortals(cfg, jobs)
		if err != nil {
			return err
		}
		return processBatch(ctx, ps, jobs, cmd.OutOrStdout())
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchDir, "dir", "", "output directory (default from config)")
	rootCmd.AddCommand(batchCmd)
}

// loadJobs reads and resolves every job in path. Any invalid job fails the
// whole file before a request is made.
func loadJobs(c *config.Config, path, dir string) ([]job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read batch file %s", path)
	}
	var bf batchFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, eris.Wrapf(err, "parse batch file %s", path)
	}
	if len(bf.Jobs) == 0 {
		return nil, eris.Errorf("batch file %s has no jobs", path)
	}

	validator := engine.New(nil, nil)
	jobs := make([]job, 0, len(bf.Jobs))
	for i, bj := range bf.Jobs {
		if len(bj.Companies) == 0 {
			return nil, eris.Errorf("job %d: no companies", i+1)
		}
		j, err := newJob(c, bj.Companies, runFlags{
			reportType: bj.Type,
			mode:       bj.Mode,
			workers:    bj.Workers,
			proxies:    bj.Proxies,
			output:     bj.Output,
			dir:        dir,
			formats:    bj.Formats,
		})
		if err != nil {
			return nil, eris.Wrapf(err, "job %d", i+1)
		}
		if _, _, err := validator.Validate(j.req); err != nil {
			return nil, eris.Wrapf(err, "job %d", i+1)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// portals holds one client without proxies and, when some job asks for
// them, one that rotates through the proxy file.
type portals struct {
	plain   engine.Portal
	proxied engine.Portal
}

func newPortals(c *config.Config, jobs []job) (portals, error) {
	plain, err := newPortal(c, false)
	if err != nil {
		return portals{}, err
	}
	ps := portals{plain: plain}
	for _, j := range jobs {
		if !j.req.UseProxies {
			continue
		}
		proxied, err := newPortal(c, true)
		if err != nil {
			return portals{}, err
		}
		ps.proxied = proxied
		break
	}
	return ps, nil
}

// pick returns the client for j.
func (ps portals) pick(j job) engine.Portal {
	if j.req.UseProxies && ps.proxied != nil {
		return ps.proxied
	}
	return ps.plain
}

// processBatch runs jobs one after another. A failed job is logged and the
// batch moves on; cancellation stops it.
func processBatch(ctx context.Context, ps portals, jobs []job, w io.Writer) error {
	var succeeded, failed int
	for i, j := range jobs {
		log := zap.L().With(
			zap.Int("job", i+1),
			zap.String("report_type", string(j.req.ReportType)),
		)
		log.Info("starting batch job",
			zap.Int("companies", len(j.req.CompanyRefs)),
			zap.Bool("proxies", j.req.UseProxies),
		)

		_, err := execute(ctx, ps.pick(j), j, w)
		if ctx.Err() != nil {
			log.Warn("batch cancelled", zap.Int("remaining", len(jobs)-i-1))
			return eris.Wrap(ctx.Err(), "batch cancelled")
		}
		if err != nil {
			failed++
			log.Error("batch job failed", zap.Error(err))
			continue
		}
		succeeded++
	}

	zap.L().Info("batch complete",
		zap.Int("jobs", len(jobs)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
	)
	if failed > 0 {
		return eris.Errorf("%d of %d batch jobs failed", failed, len(jobs))
	}
	return nil
}
