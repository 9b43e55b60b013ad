package provider

import (
	"context"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"github.com/quantrail/barfetch/internal/types"
	"github.com/quantrail/barfetch/pkg/errors"
)

// binancePageSize is the kline count at which another page may follow.
const binancePageSize = 500

// BinanceClient fetches daily klines from Binance's public market data
// API, which needs no authentication. Pairs are addressed directly, so
// Resolve is an identity mapping.
type BinanceClient struct {
	client *binance.Client
}

// NewBinanceClient creates a Binance provider.
func NewBinanceClient() (*BinanceClient, error) {
	return &BinanceClient{
		client: binance.NewClient("", ""),
	}, nil
}

// Name implements Provider.
func (c *BinanceClient) Name() string {
	return string(ProviderBinance)
}

// Resolve implements Provider.
func (c *BinanceClient) Resolve(ctx context.Context, symbol string) (types.Instrument, error) {
	return types.Instrument{Symbol: symbol}, nil
}

// DailyBars implements Provider. Binance caps each response at 500
// klines, so the range is paged using the close time of the last kline.
func (c *BinanceClient) DailyBars(ctx context.Context, instrument types.Instrument, from, to time.Time) ([]types.Bar, error) {
	startMillis := startOfDay(from).UnixMilli()
	endMillis := endOfDay(to).UnixMilli()

	var bars []types.Bar

	currentStart := startMillis

	for {
		klines, err := c.client.NewKlinesService().
			Symbol(instrument.Symbol).
			Interval("1d").
			StartTime(currentStart).
			EndTime(endMillis).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeFetchFailed, err, "failed to fetch klines for %s", instrument.Symbol)
		}

		for _, k := range klines {
			bars = append(bars, klineToBar(instrument.Symbol, k))
		}

		if len(klines) < binancePageSize {
			break
		}

		lastKline := klines[len(klines)-1]
		currentStart = lastKline.CloseTime + 1

		if currentStart >= endMillis {
			break
		}
	}

	return bars, nil
}

func klineToBar(symbol string, k *binance.Kline) types.Bar {
	open, _ := strconv.ParseFloat(k.Open, 64)
	high, _ := strconv.ParseFloat(k.High, 64)
	low, _ := strconv.ParseFloat(k.Low, 64)
	closePrice, _ := strconv.ParseFloat(k.Close, 64)
	volume, _ := strconv.ParseFloat(k.Volume, 64)

	return types.Bar{
		Symbol: symbol,
		Date:   time.UnixMilli(k.OpenTime).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}
}

// Verify BinanceClient implements Provider.
var _ Provider = (*BinanceClient)(nil)
