package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/iabetor/rssdigest/internal/config"
	"github.com/iabetor/rssdigest/internal/database"
	"github.com/iabetor/rssdigest/internal/gate"
	"github.com/iabetor/rssdigest/internal/logger"
	"github.com/iabetor/rssdigest/internal/pipeline"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
)

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "Skip the confirmation prompt and summarize right away",
			EnvVars: []string{"RSSDIGEST_YES"},
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Show what is new without touching the history file",
		},
		&cli.StringFlag{
			Name:  "since",
			Usage: "Ignore entries published before this point (2006-01-02, RFC3339, 7d or 36h)",
		},
	}
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Fetch new entries, advance the history and summarize",
		Description: `Fetch every feed, collect entries newer than the stored position,
		save the new positions and then summarize the batch.

		The history file is saved before the summary is requested. If the
		summary fails, the entries of this run are not offered again.`,
		Flags:  runFlags(),
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	if since := c.String("since"); since != "" {
		if _, err := config.ParseCutoff(since, time.Now()); err != nil {
			return err
		}
		cfg.Ingest.Cutoff = since
	}
	dryRun := c.Bool("dry-run")

	deps := pipeline.Deps{}
	if c.Bool("yes") {
		deps.Confirmer = gate.AutoConfirm(true)
	}
	if cfg.JournalEnabled() && !dryRun {
		if db, err := openJournal(cfg.Journal.Path); err != nil {
			// 运行日志不可用不影响本次运行
			logger.Warnf("[main] 运行日志不可用: %v", err)
		} else {
			defer db.Close()
			deps.Journal = db
		}
	}

	p, err := pipeline.New(cfg, deps)
	if err != nil {
		return err
	}

	report, err := p.Run(c.Context, pipeline.RunOptions{DryRun: dryRun})
	printReport(os.Stderr, report)
	return explainRunError(err)
}

// explainRunError 为摘要失败补充游标已前进的说明。
func explainRunError(err error) error {
	if errors.Is(err, pipeline.ErrSummaryFailed) {
		return fmt.Errorf("%w (history already advanced, these entries will not be offered again)", err)
	}
	return err
}

func openJournal(path string) (*database.DB, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// printReport 输出一次运行的结果。
func printReport(w io.Writer, r *pipeline.Report) {
	if r == nil {
		return
	}

	if r.Result != nil && len(r.Result.Counts) > 0 {
		urls := lo.Keys(r.Result.Counts)
		sort.Strings(urls)
		for _, u := range urls {
			n := r.Result.Counts[u]
			if n > 0 {
				color.New(color.FgGreen).Fprintf(w, "  %3d  %s\n", n, u)
			} else {
				fmt.Fprintf(w, "  %3d  %s\n", n, u)
			}
		}
		for _, warn := range r.Result.Warnings {
			color.New(color.FgYellow).Fprintf(w, "⚠ %s: %s\n", warn.URL, warn.Reason)
		}
	}

	switch r.Outcome {
	case pipeline.OutcomeSummarized:
		color.New(color.FgGreen).Fprintf(w, "✓ %d new entries summarized → %s\n", r.Total(), r.Artifact.Path)
		if r.Artifact.NotePath != "" {
			fmt.Fprintf(w, "  copied to %s\n", r.Artifact.NotePath)
		}
	case pipeline.OutcomeNoUpdates:
		color.New(color.FgCyan).Fprintln(w, "No new entries.")
	case pipeline.OutcomeDeclined:
		color.New(color.FgCyan).Fprintf(w, "Skipped summarization of %d entries.\n", r.Total())
	case pipeline.OutcomePrinted:
		color.New(color.FgCyan).Fprintf(w, "%d new entries printed.\n", r.Total())
	case pipeline.OutcomePreview:
		color.New(color.FgCyan).Fprintf(w, "%d new entries (dry run, history unchanged).\n", r.Total())
	case pipeline.OutcomeFailed:
		color.New(color.FgRed).Fprintf(w, "✗ run failed during %s: %v\n", r.LastStage(), r.Err)
	}
}
