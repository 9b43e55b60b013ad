package marketdata

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ProviderRegistryTestSuite struct {
	suite.Suite
}

func TestProviderRegistrySuite(t *testing.T) {
	suite.Run(t, new(ProviderRegistryTestSuite))
}

func (suite *ProviderRegistryTestSuite) TestGetSupportedProviders() {
	providers := GetSupportedProviders()
	suite.Len(providers, 3)
	suite.Contains(providers, "kite")
	suite.Contains(providers, "polygon")
	suite.Contains(providers, "binance")
}

func (suite *ProviderRegistryTestSuite) TestGetProviderInfo() {
	info, err := GetProviderInfo("kite")
	suite.NoError(err)
	suite.Equal("Kite Connect", info.DisplayName)
	suite.True(info.RequiresAuth)
	suite.True(info.RequiresLogin)

	info, err = GetProviderInfo("binance")
	suite.NoError(err)
	suite.False(info.RequiresAuth)
	suite.False(info.RequiresLogin)
}

func (suite *ProviderRegistryTestSuite) TestGetProviderInfoUnknown() {
	_, err := GetProviderInfo("alpaca")
	suite.Error(err)
}

func (suite *ProviderRegistryTestSuite) TestGetFetchConfigSchema() {
	schema, err := GetFetchConfigSchema("kite")
	suite.NoError(err)
	suite.Contains(schema, "apiKey")
	suite.Contains(schema, "apiSecret")
	suite.Contains(schema, "symbols")

	schema, err = GetFetchConfigSchema("binance")
	suite.NoError(err)
	suite.Contains(schema, "symbols")
	suite.NotContains(schema, "apiSecret")
}

func (suite *ProviderRegistryTestSuite) TestGetFetchConfigSchemaUnknown() {
	_, err := GetFetchConfigSchema("alpaca")
	suite.Error(err)
}

func (suite *ProviderRegistryTestSuite) TestParseFetchConfig() {
	parsed, err := ParseFetchConfig("binance", `{
		"symbols": ["BTCUSDT"],
		"startDate": "2024-03-01",
		"endDate": "2024-03-05"
	}`)
	suite.NoError(err)

	config, ok := parsed.(*BinanceFetchConfig)
	suite.Require().True(ok)
	suite.Equal([]string{"BTCUSDT"}, config.Symbols)
}

func (suite *ProviderRegistryTestSuite) TestParseFetchConfigInvalid() {
	_, err := ParseFetchConfig("binance", `{"symbols": []}`)
	suite.Error(err)
}
