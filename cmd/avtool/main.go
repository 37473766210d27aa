// Command avtool downloads historical bar CSV files from Alpha Vantage
// into a local storage directory, reusing previously downloaded files, and
// builds normalized bar exports from YAML configs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/indalsig/barfeed/internal/logger"
	"github.com/indalsig/barfeed/internal/types"
	"github.com/indalsig/barfeed/pkg/barfeed/alphavantage"
	"github.com/indalsig/barfeed/pkg/barfeed/writer"
)

// downloadAction is the core logic executed by the CLI command. It resolves
// the cache path for the symbol and downloads the file unless it is already
// present.
func downloadAction(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	symbol := cmd.String("symbol")
	storageRoot := cmd.String("storage")
	ignoreErrors := cmd.Bool("ignore-errors")

	freqName := cmd.String("frequency")
	if freqName != "daily" && freqName != "weekly" {
		return fmt.Errorf("invalid frequency %q, only daily or weekly are supported", freqName)
	}

	frequency, err := types.ParseFrequency(freqName)
	if err != nil {
		return err
	}

	storage := alphavantage.Storage{Root: storageRoot}
	if err := storage.EnsureRoot(); err != nil {
		return err
	}

	path := storage.Path(symbol)

	if !alphavantage.ShouldDownload(path, cmd.Bool("force-download")) {
		log.Info("file already downloaded", zap.String("symbol", symbol), zap.String("path", path))

		return nil
	}

	log.Info("downloading", zap.String("symbol", symbol), zap.String("path", path))

	client := alphavantage.NewClient(cmd.String("api-key"))
	client.SetLogger(log)

	if err := client.DownloadToFile(ctx, symbol, frequency, path); err != nil {
		if ignoreErrors {
			log.Error("download failed, ignoring", zap.String("symbol", symbol), zap.Error(err))

			return nil
		}

		return err
	}

	log.Info("download completed", zap.String("symbol", symbol), zap.String("path", path))

	return nil
}

// buildAction loads a YAML build config, builds a feed for every configured
// symbol and exports the normalized bars to a single output file.
func buildAction(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	config, err := alphavantage.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	opts, err := config.ToOptions()
	if err != nil {
		return err
	}

	client := alphavantage.NewClient(opts.APIKey)
	client.SetLogger(log)

	builder := alphavantage.NewBuilder(client, log)

	feed, skipped, err := builder.BuildFeed(ctx, opts)
	if err != nil {
		return err
	}

	for _, s := range skipped {
		log.Warn("symbol skipped", zap.String("symbol", s.Symbol), zap.Error(s.Err))
	}

	w, err := writer.NewBarWriter(writer.Format(cmd.String("format")), cmd.String("output"))
	if err != nil {
		return err
	}
	defer w.Close()

	outputPath, err := writer.Export(feed, w)
	if err != nil {
		return err
	}

	log.Info("feed exported",
		zap.Strings("symbols", feed.Symbols()),
		zap.String("output", outputPath),
	)

	return nil
}

// schemaAction prints the JSON schema of the build config, for editor
// integration and config validation tooling.
func schemaAction(_ context.Context, _ *cli.Command) error {
	schema, err := alphavantage.ConfigJSONSchema()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "avtool",
		Usage: "Download historical bars from Alpha Vantage",
		Commands: []*cli.Command{
			{
				Name:  "download",
				Usage: "Download the full bar history CSV for one symbol",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "api-key",
						Usage:    "Alpha Vantage API key, falls back to the rate-limited demo token",
						Required: false,
					},
					&cli.StringFlag{
						Name:     "symbol",
						Usage:    "The symbol to download",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "storage",
						Usage:    "The directory the files are downloaded to, created if absent",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "force-download",
						Usage: "Force downloading even if the file exists",
					},
					&cli.BoolFlag{
						Name:  "ignore-errors",
						Usage: "Log download errors and exit zero instead of failing",
					},
					&cli.StringFlag{
						Name:  "frequency",
						Usage: "The frequency of the bars, daily or weekly",
						Value: "daily",
					},
				},
				Action: downloadAction,
			},
			{
				Name:  "build",
				Usage: "Build a feed from a YAML config and export the bars",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Usage:    "Path to the YAML build config",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "output",
						Usage:    "Output file for the exported bars",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format, csv or json",
						Value: "csv",
					},
				},
				Action: buildAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the build config",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
