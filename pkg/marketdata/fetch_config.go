package marketdata

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/quantrail/barfetch/pkg/errors"
)

// FetchConfig is the provider-agnostic view of a parsed fetch
// configuration.
type FetchConfig interface {
	Validate() error
	ToFetchParams() (FetchParams, error)
}

// BaseFetchConfig contains common fields for all fetch configurations.
type BaseFetchConfig struct {
	Symbols   []string `json:"symbols" jsonschema:"title=Symbols,description=Trading symbols to fetch daily bars for,required" validate:"required,min=1,dive,required"`
	StartDate string   `json:"startDate" jsonschema:"title=Start Date,description=Start date,format=date,required" validate:"required"`
	EndDate   string   `json:"endDate" jsonschema:"title=End Date,description=End date,format=date,required" validate:"required"`
}

// KiteFetchConfig contains configuration for fetching from Kite Connect.
type KiteFetchConfig struct {
	BaseFetchConfig

	APIKey      string `json:"apiKey" jsonschema:"title=API Key,description=Kite Connect API key,required" validate:"required"`
	APISecret   string `json:"apiSecret" jsonschema:"title=API Secret,description=Kite Connect API secret,required" validate:"required"`
	AccessToken string `json:"accessToken" jsonschema:"title=Access Token,description=Session access token obtained from the login handshake"`
}

// PolygonFetchConfig contains configuration for fetching from Polygon.io.
type PolygonFetchConfig struct {
	BaseFetchConfig

	APIKey string `json:"apiKey" jsonschema:"title=API Key,description=Polygon.io API key,required" validate:"required"`
}

// BinanceFetchConfig contains configuration for fetching from Binance.
// Binance public market data API does not require authentication.
type BinanceFetchConfig struct {
	BaseFetchConfig
}

// Validate validates the BaseFetchConfig fields.
func (c *BaseFetchConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid fetch config", err)
	}

	if _, err := time.Parse("2006-01-02", c.StartDate); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidDateRange, "invalid startDate format, expected YYYY-MM-DD", err)
	}

	if _, err := time.Parse("2006-01-02", c.EndDate); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidDateRange, "invalid endDate format, expected YYYY-MM-DD", err)
	}

	return nil
}

// Validate validates the KiteFetchConfig.
func (c *KiteFetchConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid fetch config", err)
	}

	return c.BaseFetchConfig.Validate()
}

// Validate validates the PolygonFetchConfig.
func (c *PolygonFetchConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid fetch config", err)
	}

	return c.BaseFetchConfig.Validate()
}

// Validate validates the BinanceFetchConfig.
func (c *BinanceFetchConfig) Validate() error {
	return c.BaseFetchConfig.Validate()
}

// ToFetchParams converts a BaseFetchConfig to FetchParams.
func (c *BaseFetchConfig) ToFetchParams() (FetchParams, error) {
	startDate, err := time.Parse("2006-01-02", c.StartDate)
	if err != nil {
		return FetchParams{}, errors.Wrap(errors.ErrCodeInvalidDateRange, "failed to parse startDate", err)
	}

	endDate, err := time.Parse("2006-01-02", c.EndDate)
	if err != nil {
		return FetchParams{}, errors.Wrap(errors.ErrCodeInvalidDateRange, "failed to parse endDate", err)
	}

	return FetchParams{
		Symbols:   c.Symbols,
		StartDate: startDate,
		EndDate:   endDate,
	}, nil
}

// ParseKiteConfig parses JSON into a KiteFetchConfig.
func ParseKiteConfig(jsonConfig string) (*KiteFetchConfig, error) {
	var config KiteFetchConfig
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse JSON config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// ParsePolygonConfig parses JSON into a PolygonFetchConfig.
func ParsePolygonConfig(jsonConfig string) (*PolygonFetchConfig, error) {
	var config PolygonFetchConfig
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse JSON config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// ParseBinanceConfig parses JSON into a BinanceFetchConfig.
func ParseBinanceConfig(jsonConfig string) (*BinanceFetchConfig, error) {
	var config BinanceFetchConfig
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse JSON config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
