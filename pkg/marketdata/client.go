package marketdata

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/quantrail/barfetch/internal/types"
	"github.com/quantrail/barfetch/pkg/errors"
	"github.com/quantrail/barfetch/pkg/marketdata/provider"
	"github.com/quantrail/barfetch/pkg/marketdata/writer"
)

// WriterType defines the type of output writer.
type WriterType string

const (
	WriterCSV    WriterType = "csv"
	WriterDuckDB WriterType = "duckdb"
)

// OnProgress is invoked after each symbol is processed.
type OnProgress = func(current float64, total float64, message string)

// ClientConfig holds the configuration for the market data client.
type ClientConfig struct {
	ProviderType    provider.ProviderType `validate:"required,oneof=kite polygon binance"`
	WriterType      WriterType            `validate:"required,oneof=csv duckdb"`
	DataPath        string                `validate:"required"`
	KiteAPIKey      string                `validate:"required_if=ProviderType kite"`
	KiteAPISecret   string                `validate:"required_if=ProviderType kite"`
	KiteAccessToken string
	KiteExchange    string
	PolygonAPIKey   string `validate:"required_if=ProviderType polygon"`
	FlushPolicy     writer.FlushPolicy
}

// FetchParams holds the parameters for one multi-symbol fetch.
type FetchParams struct {
	Symbols   []string  `validate:"required,min=1,dive,required"`
	StartDate time.Time `validate:"required"`
	EndDate   time.Time `validate:"required,gtfield=StartDate"`
	// OutputPath overrides the derived output file path. Pointing it
	// at the file of an interrupted fetch resumes that file.
	OutputPath string
}

// Summary describes the outcome of a fetch.
type Summary struct {
	Symbols    int    `json:"symbols"`
	Bars       int64  `json:"bars"`
	ErrorRows  int64  `json:"errorRows"`
	OutputPath string `json:"outputPath"`
}

// Client is the market data client responsible for fetching bars from a
// provider and persisting them through a writer.
type Client struct {
	provider provider.Provider
	config   ClientConfig
	validate *validator.Validate
}

// NewClient creates a new market data client with the given configuration.
func NewClient(config ClientConfig) (*Client, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid client configuration", err)
	}

	marketProvider, err := provider.NewProvider(config.ProviderType, provider.Config{
		KiteAPIKey:      config.KiteAPIKey,
		KiteAPISecret:   config.KiteAPISecret,
		KiteAccessToken: config.KiteAccessToken,
		KiteExchange:    config.KiteExchange,
		PolygonAPIKey:   config.PolygonAPIKey,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		provider: marketProvider,
		config:   config,
		validate: validate,
	}, nil
}

// NewClientWithProvider creates a client around an existing provider.
// The web server uses this to share one authenticated session across jobs.
func NewClientWithProvider(config ClientConfig, marketProvider provider.Provider) (*Client, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid client configuration", err)
	}

	return &Client{
		provider: marketProvider,
		config:   config,
		validate: validate,
	}, nil
}

// Provider returns the client's market data provider.
func (c *Client) Provider() provider.Provider {
	return c.provider
}

// Fetch downloads daily bars for every symbol in params and writes them
// through the configured writer. A failure on one symbol becomes an
// error row in the output and the loop continues. Cancelling the context
// stops the loop; rows fetched so far are still finalized to disk.
func (c *Client) Fetch(ctx context.Context, params FetchParams, onProgress OnProgress) (summary Summary, err error) {
	if err := c.validate.Struct(params); err != nil {
		return Summary{}, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid fetch parameters", err)
	}

	rowWriter, err := c.setupWriter(params)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to setup writer: %w", err)
	}

	defer func() {
		if cerr := rowWriter.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("error closing writer: %w", cerr)
		}
	}()

	summary = Summary{Symbols: len(params.Symbols)}
	total := float64(len(params.Symbols))

	for i, symbol := range params.Symbols {
		if ctx.Err() != nil {
			break
		}

		if err := c.fetchSymbol(ctx, rowWriter, symbol, params, &summary); err != nil {
			return Summary{}, err
		}

		if onProgress != nil {
			onProgress(float64(i+1), total, fmt.Sprintf("Fetched %s", symbol))
		}
	}

	outputPath, err := rowWriter.Finalize()
	if err != nil {
		return Summary{}, fmt.Errorf("failed to finalize writer: %w", err)
	}

	summary.OutputPath = outputPath

	if ctx.Err() != nil {
		return summary, ctx.Err()
	}

	return summary, nil
}

// fetchSymbol fetches one symbol's bars and writes them. Provider
// failures become an error row; only writer failures abort the fetch.
func (c *Client) fetchSymbol(ctx context.Context, rowWriter writer.RowWriter, symbol string, params FetchParams, summary *Summary) error {
	instrument, err := c.provider.Resolve(ctx, symbol)
	if err != nil {
		if ctx.Err() != nil {
			// Cancellation is not a per-symbol failure; the caller
			// reports it, the output stays free of spurious rows.
			return nil
		}

		summary.ErrorRows++

		return rowWriter.Write(types.ErrorRow(symbol, err))
	}

	bars, err := c.provider.DailyBars(ctx, instrument, params.StartDate, params.EndDate)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}

		summary.ErrorRows++

		return rowWriter.Write(types.ErrorRow(symbol, err))
	}

	for _, bar := range bars {
		if err := rowWriter.Write(types.BarRow(bar)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}

		summary.Bars++
	}

	return nil
}

// setupWriter initializes the output writer based on configuration.
func (c *Client) setupWriter(params FetchParams) (writer.RowWriter, error) {
	outputPath := params.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join(c.config.DataPath, c.outputFileName(params))
	}

	var rowWriter writer.RowWriter

	switch c.config.WriterType {
	case WriterCSV:
		rowWriter = writer.NewAutosaveCSVWriter(outputPath, c.config.FlushPolicy)
	case WriterDuckDB:
		rowWriter = writer.NewDuckDBWriter(outputPath, c.config.FlushPolicy)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidWriter, "unsupported writer type: %s", c.config.WriterType)
	}

	if err := rowWriter.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize writer at %s: %w", outputPath, err)
	}

	return rowWriter, nil
}

// outputFileName derives a unique name: ohlcv_START_END_SHORTID.EXT.
func (c *Client) outputFileName(params FetchParams) string {
	ext := "csv"
	if c.config.WriterType == WriterDuckDB {
		ext = "parquet"
	}

	shortID := uuid.New().String()[:8]

	return fmt.Sprintf("ohlcv_%s_%s_%s.%s",
		params.StartDate.Format("2006-01-02"),
		params.EndDate.Format("2006-01-02"),
		shortID,
		ext)
}
