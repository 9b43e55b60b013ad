package provider

import (
	"context"
	"time"

	"github.com/quantrail/barfetch/internal/types"
	"github.com/quantrail/barfetch/pkg/errors"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderKite    ProviderType = "kite"
	ProviderPolygon ProviderType = "polygon"
	ProviderBinance ProviderType = "binance"
)

// Provider is a source of historical daily OHLCV bars.
type Provider interface {
	// Name returns the provider's registry name.
	Name() string
	// Resolve maps a trading symbol to the provider's instrument.
	// Providers that address symbols directly return an identity
	// instrument; Kite resolves through its instrument dump.
	Resolve(ctx context.Context, symbol string) (types.Instrument, error)
	// DailyBars fetches the daily bars for one instrument over the
	// inclusive date range. The context can cancel the fetch.
	DailyBars(ctx context.Context, instrument types.Instrument, from, to time.Time) ([]types.Bar, error)
}

// SessionProvider is implemented by providers whose API requires an
// interactive login handshake before data can be fetched.
type SessionProvider interface {
	// LoginURL returns the URL the user opens to authorize the app.
	LoginURL() string
	// CompleteLogin exchanges the request token from the redirect for
	// an access token and installs it on the client.
	CompleteLogin(ctx context.Context, requestToken string) error
	// Authenticated reports whether a session is established.
	Authenticated() bool
}

// Config carries the credentials providers may need.
type Config struct {
	KiteAPIKey      string
	KiteAPISecret   string
	KiteAccessToken string
	KiteExchange    string
	PolygonAPIKey   string
}

// NewProvider creates a market data provider of the given type.
func NewProvider(providerType ProviderType, config Config) (Provider, error) {
	switch providerType {
	case ProviderKite:
		return NewKiteClient(config.KiteAPIKey, config.KiteAPISecret, config.KiteAccessToken, config.KiteExchange)
	case ProviderPolygon:
		return NewPolygonClient(config.PolygonAPIKey)
	case ProviderBinance:
		return NewBinanceClient()
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %s", providerType)
	}
}
