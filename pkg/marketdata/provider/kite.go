package provider

import (
	"context"
	"sync"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"github.com/quantrail/barfetch/internal/instruments"
	"github.com/quantrail/barfetch/internal/types"
	"github.com/quantrail/barfetch/pkg/errors"
)

// DefaultKiteExchange is the exchange whose instrument dump backs
// symbol-to-token resolution.
const DefaultKiteExchange = "NSE"

const kiteDayInterval = "day"

// KiteClient fetches daily bars from the Kite Connect API. Symbols are
// resolved to instrument tokens through the exchange's instrument dump,
// which is cached for an hour.
type KiteClient struct {
	client    *kiteconnect.Client
	apiSecret string
	exchange  string
	cache     *instruments.Cache

	mu            sync.RWMutex
	authenticated bool
}

// NewKiteClient creates a Kite provider. accessToken may be empty; the
// login handshake can be completed later via CompleteLogin.
func NewKiteClient(apiKey, apiSecret, accessToken, exchange string) (*KiteClient, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "kite provider requires api key and api secret")
	}

	if exchange == "" {
		exchange = DefaultKiteExchange
	}

	client := kiteconnect.New(apiKey)

	kc := &KiteClient{
		client:    client,
		apiSecret: apiSecret,
		exchange:  exchange,
	}

	kc.cache = instruments.NewCache(kc.loadInstruments, instruments.DefaultTTL)

	if accessToken != "" {
		client.SetAccessToken(accessToken)

		kc.authenticated = true
	}

	return kc, nil
}

// Name implements Provider.
func (c *KiteClient) Name() string {
	return string(ProviderKite)
}

// LoginURL implements SessionProvider.
func (c *KiteClient) LoginURL() string {
	return c.client.GetLoginURL()
}

// CompleteLogin exchanges the request token from the post-login redirect
// for an access token and installs it on the client.
func (c *KiteClient) CompleteLogin(ctx context.Context, requestToken string) error {
	if requestToken == "" {
		return errors.New(errors.ErrCodeLoginFailed, "missing request token")
	}

	session, err := c.client.GenerateSession(requestToken, c.apiSecret)
	if err != nil {
		return errors.Wrap(errors.ErrCodeLoginFailed, "failed to generate kite session", err)
	}

	c.client.SetAccessToken(session.AccessToken)

	c.mu.Lock()
	c.authenticated = true
	c.mu.Unlock()

	return nil
}

// Authenticated implements SessionProvider.
func (c *KiteClient) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.authenticated
}

// Resolve implements Provider by looking the symbol up in the cached
// instrument dump.
func (c *KiteClient) Resolve(ctx context.Context, symbol string) (types.Instrument, error) {
	if !c.Authenticated() {
		return types.Instrument{}, errors.New(errors.ErrCodeSessionRequired, "kite session not established")
	}

	return c.cache.Lookup(ctx, symbol)
}

// DailyBars implements Provider.
func (c *KiteClient) DailyBars(ctx context.Context, instrument types.Instrument, from, to time.Time) ([]types.Bar, error) {
	if !c.Authenticated() {
		return nil, errors.New(errors.ErrCodeSessionRequired, "kite session not established")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Kite treats both dates as inclusive; widen to full days the way
	// the original range inputs behave.
	fromDay := startOfDay(from)
	toDay := endOfDay(to)

	data, err := c.client.GetHistoricalData(int(instrument.Token), kiteDayInterval, fromDay, toDay, false, false)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeFetchFailed, err, "failed to fetch historical data for %s", instrument.Symbol)
	}

	bars := make([]types.Bar, 0, len(data))
	for _, candle := range data {
		bars = append(bars, types.Bar{
			Symbol: instrument.Symbol,
			Date:   candle.Date.Time,
			Open:   candle.Open,
			High:   candle.High,
			Low:    candle.Low,
			Close:  candle.Close,
			Volume: float64(candle.Volume),
		})
	}

	return bars, nil
}

func (c *KiteClient) loadInstruments(ctx context.Context) ([]types.Instrument, error) {
	dump, err := c.client.GetInstrumentsByExchange(c.exchange)
	if err != nil {
		return nil, err
	}

	result := make([]types.Instrument, 0, len(dump))
	for _, instrument := range dump {
		result = append(result, types.Instrument{
			Token:    int64(instrument.InstrumentToken),
			Symbol:   instrument.Tradingsymbol,
			Exchange: instrument.Exchange,
			Name:     instrument.Name,
		})
	}

	return result, nil
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()

	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	year, month, day := t.Date()

	return time.Date(year, month, day, 23, 59, 59, 0, t.Location())
}

// Verify KiteClient implements both interfaces.
var (
	_ Provider        = (*KiteClient)(nil)
	_ SessionProvider = (*KiteClient)(nil)
)
