package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/quantrail/barfetch/internal/config"
	"github.com/quantrail/barfetch/internal/symbols"
	"github.com/quantrail/barfetch/pkg/marketdata"
	"github.com/quantrail/barfetch/pkg/marketdata/provider"
	"github.com/quantrail/barfetch/pkg/marketdata/writer"
)

// fetchAction runs a headless fetch without the web UI. Kite requires
// a pre-generated access token via KITE_ACCESS_TOKEN.
func fetchAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	if p := cmd.String("provider"); p != "" {
		cfg.Provider = p
	}

	if w := cmd.String("writer"); w != "" {
		cfg.Writer = w
	}

	if d := cmd.String("data"); d != "" {
		cfg.DataDir = d
	}

	symbolList, err := resolveSymbols(cmd)
	if err != nil {
		return err
	}

	client, err := marketdata.NewClient(marketdata.ClientConfig{
		ProviderType:    provider.ProviderType(cfg.Provider),
		WriterType:      marketdata.WriterType(cfg.Writer),
		DataPath:        cfg.DataDir,
		KiteAPIKey:      cfg.Kite.APIKey,
		KiteAPISecret:   cfg.Kite.APISecret,
		KiteAccessToken: os.Getenv("KITE_ACCESS_TOKEN"),
		KiteExchange:    cfg.Kite.Exchange,
		PolygonAPIKey:   cfg.Polygon.APIKey,
		FlushPolicy: writer.FlushPolicy{
			Interval: cfg.AutosaveInterval(),
			MaxRows:  cfg.Autosave.MaxRows,
		},
	})
	if err != nil {
		return err
	}

	params := marketdata.FetchParams{
		Symbols:    symbolList,
		StartDate:  cmd.Timestamp("start"),
		EndDate:    endOfDay(cmd.Timestamp("end")),
		OutputPath: cmd.String("output"),
	}

	bar := progressbar.Default(int64(len(symbolList)), "fetching")

	summary, err := client.Fetch(ctx, params, func(current, _ float64, message string) {
		_ = bar.Set(int(current))
		bar.Describe(message)
	})

	_ = bar.Finish()

	if err != nil {
		return err
	}

	log.Printf("Fetched %d bars (%d error rows) for %d symbols into %s",
		summary.Bars, summary.ErrorRows, summary.Symbols, summary.OutputPath)

	return nil
}

// resolveSymbols merges the --symbols list with an optional CSV file.
func resolveSymbols(cmd *cli.Command) ([]string, error) {
	var list []string

	if raw := cmd.String("symbols"); raw != "" {
		for _, symbol := range strings.Split(raw, ",") {
			symbol = strings.ToUpper(strings.TrimSpace(symbol))
			if symbol != "" {
				list = append(list, symbol)
			}
		}
	}

	if path := cmd.String("symbols-csv"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open symbols file: %w", err)
		}
		defer f.Close()

		fromFile, err := symbols.ParseCSV(f)
		if err != nil {
			return nil, err
		}

		list = append(list, fromFile...)
	}

	if len(list) == 0 {
		return nil, fmt.Errorf("no symbols given; use --symbols or --symbols-csv")
	}

	return dedupe(list), nil
}

func dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))

	for _, symbol := range list {
		if !seen[symbol] {
			seen[symbol] = true
			out = append(out, symbol)
		}
	}

	return out
}

// endOfDay makes the end date inclusive.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

func main() {
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "barfetch",
		Usage: "Fetch daily OHLCV bars for a list of symbols",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "symbols",
				Aliases: []string{"S"},
				Usage:   "Comma-separated symbol list",
			},
			&cli.StringFlag{
				Name:    "symbols-csv",
				Aliases: []string{"f"},
				Usage:   "Path to a CSV file with a symbol column",
			},
			&cli.TimestampFlag{
				Name:    "start",
				Aliases: []string{"s"},
				Usage:   "Start date in `YYYY-MM-DD` format",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
				Required: true,
			},
			&cli.TimestampFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End date in `YYYY-MM-DD` format. Defaults to today.",
				Value:   time.Now(),
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   fmt.Sprintf("Data provider (%s, %s, %s)", provider.ProviderKite, provider.ProviderPolygon, provider.ProviderBinance),
			},
			&cli.StringFlag{
				Name:    "writer",
				Aliases: []string{"w"},
				Usage:   fmt.Sprintf("Output format (%s, %s)", marketdata.WriterCSV, marketdata.WriterDuckDB),
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Output directory for generated files",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Exact output file path, overrides --data",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
		},
		Action: fetchAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
