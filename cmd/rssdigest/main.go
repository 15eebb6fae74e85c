package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iabetor/rssdigest/internal/config"
	"github.com/iabetor/rssdigest/internal/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	// 监听系统信号，抓取阶段收到信号时不提交游标
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootApp().RunContext(ctx, os.Args)
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "rssdigest: %v\n", err)
		os.Exit(1)
	}
}

func rootApp() *cli.App {
	return &cli.App{
		Name:  "rssdigest",
		Usage: "Fetch new RSS/Atom entries and turn them into a digest",
		Description: `rssdigest reads one or more feed lists, fetches every feed and
		collects the entries published since the previous run. The position
		reached in each feed is stored in a history file, so every entry is
		offered exactly once.

		When an OpenAI-compatible endpoint is configured the new entries are
		summarized and written to a timestamped file, otherwise they are
		printed to stdout.

		Flags can generally be set via environment variables, e.g.:

		--config => RSSDIGEST_CONFIG=configs/rssdigest.yaml
		`,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/rssdigest.yaml",
				Usage:   "Path to the YAML configuration file",
				EnvVars: []string{"RSSDIGEST_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log at debug level",
				EnvVars: []string{"RSSDIGEST_VERBOSE"},
			},
		}, runFlags()...),
		Commands: []*cli.Command{
			runCmd(),
			runsCmd(),
			cursorCmd(),
			sourcesCmd(),
		},
		// 不带子命令时执行一次运行
		Action: runAction,
	}
}

// loadConfig 加载配置并按配置初始化日志。
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if c.Bool("verbose") {
		level = "debug"
	}
	if err := logger.Init(logger.Config{Level: level, File: cfg.Log.File}); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.Debugf("[main] 配置已加载: %s", c.String("config"))
	return cfg, nil
}
