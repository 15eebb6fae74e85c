package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/iabetor/rssdigest/internal/database"
	"github.com/iabetor/rssdigest/internal/history"
	"github.com/iabetor/rssdigest/internal/rss"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
)

func runsCmd() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List recent runs from the run journal",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Value:   20,
				Usage:   "Number of runs to show",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if !cfg.JournalEnabled() {
				fmt.Println("Run journal is disabled (journal.enabled: false).")
				return nil
			}
			if _, err := os.Stat(cfg.Journal.Path); os.IsNotExist(err) {
				fmt.Println("No runs recorded yet.")
				return nil
			}

			db, err := openJournal(cfg.Journal.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.RecentRuns(c.Context, c.Int("limit"))
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded yet.")
				return nil
			}

			rows := lo.Map(runs, func(r database.Run, _ int) []string {
				return []string{
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					r.Outcome,
					strconv.Itoa(r.Entries),
					strconv.Itoa(r.Warnings),
					r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
					lo.Ternary(r.Error != "", r.Error, r.Artifact),
				}
			})
			return renderTable(os.Stdout, []string{"Started", "Outcome", "Entries", "Warnings", "Took", "Artifact / Error"}, rows)
		},
	}
}

func cursorCmd() *cli.Command {
	return &cli.Command{
		Name:  "cursor",
		Usage: "Inspect or reset the per-feed history",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the stored position of every feed",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					cur := history.Load(cfg.History.Path)
					if len(cur) == 0 {
						fmt.Printf("History %s is empty.\n", cfg.History.Path)
						return nil
					}
					urls := lo.Keys(cur)
					sort.Strings(urls)
					rows := lo.Map(urls, func(u string, _ int) []string {
						return []string{u, cur[u]}
					})
					return renderTable(os.Stdout, []string{"Feed", "Last entry"}, rows)
				},
			},
			{
				Name:      "reset",
				Usage:     "Forget the stored position of the given feeds (all feeds when none given)",
				ArgsUsage: "[feed-url...]",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					removed, err := history.Reset(cfg.History.Path, c.Args().Slice()...)
					if err != nil {
						return err
					}
					color.New(color.FgGreen).Printf("✓ removed %d entries from %s\n", removed, cfg.History.Path)
					return nil
				},
			},
		},
	}
}

func sourcesCmd() *cli.Command {
	return &cli.Command{
		Name:  "sources",
		Usage: "List the feeds declared in the configured feed lists",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			sources, err := rss.LoadSources(cfg.Sources.Files...)
			if err != nil {
				return err
			}
			cur := history.Load(cfg.History.Path)
			rows := lo.Map(sources, func(s rss.Source, _ int) []string {
				last, ok := cur[s.URL]
				return []string{s.Collection, s.URL, lo.Ternary(ok && last != "", last, "(new)")}
			})
			return renderTable(os.Stdout, []string{"List", "Feed", "Last entry"}, rows)
		},
	}
}
