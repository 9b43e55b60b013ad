package marketdata

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/quantrail/barfetch/pkg/errors"
	"github.com/quantrail/barfetch/pkg/marketdata/provider"
)

// ProviderInfo contains metadata about a market data provider.
type ProviderInfo struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Description  string `json:"description"`
	RequiresAuth bool   `json:"requiresAuth"`
	// RequiresLogin marks providers needing the interactive login
	// handshake rather than a static API key.
	RequiresLogin bool `json:"requiresLogin"`
}

// providerRegistry holds metadata about all supported providers.
var providerRegistry = map[provider.ProviderType]ProviderInfo{
	provider.ProviderKite: {
		Name:          string(provider.ProviderKite),
		DisplayName:   "Kite Connect",
		Description:   "Zerodha's brokerage API with historical OHLCV data for NSE instruments",
		RequiresAuth:  true,
		RequiresLogin: true,
	},
	provider.ProviderPolygon: {
		Name:         string(provider.ProviderPolygon),
		DisplayName:  "Polygon.io",
		Description:  "US stock market data provider with real-time and historical OHLCV data",
		RequiresAuth: true,
	},
	provider.ProviderBinance: {
		Name:        string(provider.ProviderBinance),
		DisplayName: "Binance",
		Description: "Cryptocurrency exchange with extensive market data for crypto trading pairs",
	},
}

// GetSupportedProviders returns a list of all supported provider names.
func GetSupportedProviders() []string {
	providers := make([]string, 0, len(providerRegistry))
	for providerType := range providerRegistry {
		providers = append(providers, string(providerType))
	}

	return providers
}

// GetProviderInfo returns metadata for a specific provider.
func GetProviderInfo(providerName string) (ProviderInfo, error) {
	info, exists := providerRegistry[provider.ProviderType(providerName)]
	if !exists {
		return ProviderInfo{}, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider: %s", providerName)
	}

	return info, nil
}

// GetFetchConfigSchema returns the JSON schema for a provider's fetch configuration.
func GetFetchConfigSchema(providerName string) (string, error) {
	switch provider.ProviderType(providerName) {
	case provider.ProviderKite:
		//nolint:exhaustruct // Empty struct is intentional for schema generation
		return toJSONSchema(KiteFetchConfig{})
	case provider.ProviderPolygon:
		//nolint:exhaustruct // Empty struct is intentional for schema generation
		return toJSONSchema(PolygonFetchConfig{})
	case provider.ProviderBinance:
		//nolint:exhaustruct // Empty struct is intentional for schema generation
		return toJSONSchema(BinanceFetchConfig{})
	default:
		return "", errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider: %s", providerName)
	}
}

// ParseFetchConfig parses a JSON configuration string for the given provider.
// The result can be type-asserted to the provider's concrete config type.
func ParseFetchConfig(providerName string, jsonConfig string) (FetchConfig, error) {
	switch provider.ProviderType(providerName) {
	case provider.ProviderKite:
		return ParseKiteConfig(jsonConfig)
	case provider.ProviderPolygon:
		return ParsePolygonConfig(jsonConfig)
	case provider.ProviderBinance:
		return ParseBinanceConfig(jsonConfig)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider: %s", providerName)
	}
}

// toJSONSchema converts a struct to a JSON schema string.
func toJSONSchema[T any](t T) (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(t)

	jsonSchemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(jsonSchemaBytes), nil
}
