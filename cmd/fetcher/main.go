package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/firstcredit/daxko-fetcher/internal/archive"
	"github.com/firstcredit/daxko-fetcher/internal/config"
	"github.com/firstcredit/daxko-fetcher/internal/daxko"
	"github.com/firstcredit/daxko-fetcher/internal/fetch"
	"github.com/firstcredit/daxko-fetcher/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "fetcher",
		Usage: "Fetch daily payment-report files from the Daxko bulk-data API",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "dates",
				Usage:    "Ordered target dates in MM-DD-YYYY form",
				Required: true,
				EnvVars:  []string{"TARGET_DATES"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	dates := c.StringSlice("dates")
	if err := config.ValidateDates(dates); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, logFile, err := logger.New(cfg.App.LogFile, cfg.App.LogLevel)
	if err != nil {
		return err
	}
	defer logFile.Close()

	client := daxko.NewClient(daxko.ClientConfig{
		AuthURL:      cfg.Auth.URL,
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Scope:        cfg.Auth.Scope,
	}, log)

	downloader := fetch.NewDownloader(cfg.App.OutputDir, log)

	var archiver fetch.Archiver
	if cfg.Archive.Enabled() {
		ac, err := archive.NewClient(archive.Config{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			UseSSL:    cfg.Archive.UseSSL,
		})
		if err != nil {
			return err
		}
		archiver = ac
	}

	runner := fetch.NewRunner(client, downloader, archiver, cfg.App.Prefix, log)

	// Run-level failures are already logged; the process still exits
	// normally so downstream schedulers treat partial runs as complete.
	_ = runner.Run(c.Context, dates)
	return nil
}
