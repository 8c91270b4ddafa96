package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/goldcast/filmstrip-migration"
	"github.com/goldcast/filmstrip-migration/ffmpeg"
	"github.com/goldcast/filmstrip-migration/hls"
	"github.com/goldcast/filmstrip-migration/jobsource"
	"github.com/goldcast/filmstrip-migration/ledger"
	"github.com/goldcast/filmstrip-migration/objectstore"
	"github.com/goldcast/filmstrip-migration/providers"
	"github.com/goldcast/filmstrip-migration/store"
)

const lockFile = ".filmstrip.lock"

// A lister selects the jobs for one kind of batch.
type lister func(src *jobsource.Source, ctx context.Context, days int) ([]filmstrip.JobDescriptor, error)

func batchFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		&cli.IntFlag{Name: "days", Value: 7, Usage: "only consider content created in the last `N` days"},
		&cli.IntFlag{Name: "limit", Usage: "process at most `N` jobs"},
		&cli.BoolFlag{Name: "dry-run", Usage: "read from the bucket but keep every write in memory"},
	}, extra...)
}

func recordingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "recordings",
		Usage: "generate filmstrips for finished recordings",
		Flags: batchFlags(),
		Action: func(c *cli.Context) error {
			return runBatch(c, (*jobsource.Source).Recordings, false)
		},
	}
}

func uploadsCommand() *cli.Command {
	return &cli.Command{
		Name:  "uploads",
		Usage: "generate filmstrips for uploaded and imported videos",
		Flags: batchFlags(),
		Action: func(c *cli.Context) error {
			return runBatch(c, (*jobsource.Source).Uploads, false)
		},
	}
}

func preseedCommand() *cli.Command {
	return &cli.Command{
		Name:  "preseed",
		Usage: "copy the pre-seeded filmstrip to sample uploads",
		Flags: batchFlags(
			&cli.BoolFlag{Name: "copy-artifacts", Usage: "copy the template images too, instead of referencing them"},
		),
		Action: func(c *cli.Context) error {
			return runBatch(c, (*jobsource.Source).Preseeded, true)
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "show previous runs",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 10, Usage: "show at most `N` runs"},
			&cli.StringFlag{Name: "run", Usage: "show the job outcomes of run `ID`"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.Ledger == "" {
				return errors.New("ledger path is required")
			}
			runs, err := ledger.Open(cfg.Ledger)
			if err != nil {
				return err
			}
			defer runs.Close()

			if id := c.String("run"); id != "" {
				outcomes, err := runs.Outcomes(id)
				if err != nil {
					return err
				}
				printOutcomes(c.App.Writer, id, outcomes)
				return nil
			}
			list, err := runs.List(c.Int("limit"))
			if err != nil {
				return err
			}
			printRuns(c.App.Writer, list)
			return nil
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "print the effective configuration",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if err := cfg.ValidateLocal(); err != nil {
				return err
			}
			enc := yaml.NewEncoder(c.App.Writer)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg.redacted())
		},
	}
}

func runBatch(c *cli.Context, list lister, preseed bool) error {
	ctx := c.Context
	kind := c.Command.Name
	log := zap.S().Named(kind)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := filmstrip.EnsureWorkdir(cfg.Layout.WorkRoot); err != nil {
		return err
	}
	lock := flock.New(filepath.Join(cfg.Layout.WorkRoot, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", cfg.Layout.WorkRoot, err)
	}
	if !locked {
		return fmt.Errorf("another batch is already using %s", cfg.Layout.WorkRoot)
	}
	defer func() { _ = lock.Unlock() }()

	endpoint, err := cfg.StreamEndpoint()
	if err != nil {
		return err
	}
	db, err := jobsource.Open(ctx, cfg.Database, zap.L())
	if err != nil {
		return err
	}
	defer func() { _ = jobsource.Close(db) }()
	source := jobsource.New(db, filmstrip.SegmentedStream{Endpoint: endpoint, Env: cfg.Env}, jobsource.WithLogger(log))
	jobs, err := list(source, ctx, c.Int("days"))
	if err != nil {
		return err
	}
	if limit := c.Int("limit"); limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}

	var objects objectstore.Store
	objects, err = objectstore.NewMinioStore(cfg.ObjectStore)
	if err != nil {
		return err
	}
	if c.Bool("dry-run") {
		log.Warn("Dry run: nothing will be written to the bucket")
		objects = objectstore.NewDryRun(objects)
	}
	artifacts := store.New(objects, cfg.Bucket,
		store.WithUploadWorkers(cfg.UploadWorkers),
		store.WithArtifactCopy(c.Bool("copy-artifacts")),
		store.WithLogger(log),
	)

	opts := filmstrip.Options{
		Layout:    cfg.Layout,
		Workers:   cfg.JobWorkers,
		Publisher: artifacts,
		Logger:    log,
	}
	if !preseed {
		platforms, err := providers.NewRegistry(providers.Options{
			YouTubeNative: cfg.YouTubeNative,
			Executable:    cfg.YtDlp,
			Logger:        log,
		})
		if err != nil {
			return err
		}
		streams := hls.New(hls.WithWorkers(cfg.SegmentWorkers), hls.WithLogger(log))
		opts.Resolver = filmstrip.NewResolver(cfg.Layout, artifacts, platforms, streams, log)
		opts.Generator = ffmpeg.New(
			ffmpeg.WithBinary(cfg.FFmpeg),
			ffmpeg.WithFrameRate(cfg.FramesPerSecond),
			ffmpeg.WithFrameWidth(cfg.FrameWidth),
			ffmpeg.WithGrid(cfg.TileColumns, cfg.TileRows),
			ffmpeg.WithLogger(log),
		)
	}

	history, err := ledger.Open(cfg.Ledger)
	if err != nil {
		return err
	}
	defer history.Close()

	bar := newProgressBar(len(jobs), kind)
	opts.OnOutcome = func(o filmstrip.JobOutcome) {
		if err := history.RecordOutcome(o); err != nil {
			log.Warnw("Failed to record outcome", "error", err)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	orchestrator, err := filmstrip.NewOrchestrator(opts)
	if err != nil {
		return err
	}

	var report filmstrip.Report
	if preseed {
		report = orchestrator.Preseed(ctx, jobs)
	} else {
		report = orchestrator.Run(ctx, jobs)
	}
	report.Kind = kind
	if bar != nil {
		_ = bar.Finish()
	}
	if err := history.Record(report); err != nil {
		log.Warnw("Failed to record run", "error", err)
	}

	printSummary(c.App.Writer, report)
	if err := report.Err(); err != nil {
		log.Warnf("%d of %d jobs failed, see `filmstrip history --run %s`", report.Count(filmstrip.JobFailed),
			len(report.Outcomes), report.RunID)
	}
	return nil
}

// newProgressBar returns nil when stderr is not a terminal.
func newProgressBar(total int, description string) *progressbar.ProgressBar {
	fd := os.Stderr.Fd()
	if total == 0 || !(isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)) {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
