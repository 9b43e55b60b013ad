package provider

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/quantrail/barfetch/internal/types"
	"github.com/quantrail/barfetch/pkg/errors"
)

// PolygonClient fetches daily aggregates from Polygon.io. Polygon
// addresses tickers directly, so Resolve is an identity mapping.
type PolygonClient struct {
	client *polygon.Client
}

// NewPolygonClient creates a Polygon provider.
func NewPolygonClient(apiKey string) (*PolygonClient, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "polygon provider requires an api key")
	}

	return &PolygonClient{
		client: polygon.New(apiKey),
	}, nil
}

// Name implements Provider.
func (c *PolygonClient) Name() string {
	return string(ProviderPolygon)
}

// Resolve implements Provider.
func (c *PolygonClient) Resolve(ctx context.Context, symbol string) (types.Instrument, error) {
	return types.Instrument{Symbol: symbol}, nil
}

// DailyBars implements Provider.
func (c *PolygonClient) DailyBars(ctx context.Context, instrument types.Instrument, from, to time.Time) ([]types.Bar, error) {
	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     instrument.Symbol,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(startOfDay(from)),
		To:         models.Millis(endOfDay(to)),
	}.WithLimit(50000)

	iter := c.client.ListAggs(ctx, params)

	var bars []types.Bar

	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, types.Bar{
			Symbol: instrument.Symbol,
			Date:   time.Time(agg.Timestamp),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		})
	}

	if iter.Err() != nil {
		return nil, errors.Wrapf(errors.ErrCodeFetchFailed, iter.Err(), "failed to fetch polygon aggregates for %s", instrument.Symbol)
	}

	return bars, nil
}

// Verify PolygonClient implements Provider.
var _ Provider = (*PolygonClient)(nil)
