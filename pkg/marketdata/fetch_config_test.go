package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/quantrail/barfetch/pkg/errors"
)

type FetchConfigTestSuite struct {
	suite.Suite
}

func TestFetchConfigSuite(t *testing.T) {
	suite.Run(t, new(FetchConfigTestSuite))
}

func validBase() BaseFetchConfig {
	return BaseFetchConfig{
		Symbols:   []string{"TCS", "INFY"},
		StartDate: "2024-03-01",
		EndDate:   "2024-03-05",
	}
}

func (suite *FetchConfigTestSuite) TestValidateBase() {
	config := validBase()
	suite.NoError(config.Validate())
}

func (suite *FetchConfigTestSuite) TestValidateBaseRejectsBadDate() {
	config := validBase()
	config.StartDate = "01-03-2024"

	err := config.Validate()
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidDateRange))
}

func (suite *FetchConfigTestSuite) TestValidateBaseRejectsEmptySymbols() {
	config := validBase()
	config.Symbols = nil
	suite.Error(config.Validate())
}

func (suite *FetchConfigTestSuite) TestValidateKiteRequiresCredentials() {
	config := KiteFetchConfig{BaseFetchConfig: validBase()}
	suite.Error(config.Validate())

	config.APIKey = "key"
	config.APISecret = "secret"
	suite.NoError(config.Validate())
}

func (suite *FetchConfigTestSuite) TestToFetchParams() {
	config := validBase()

	params, err := config.ToFetchParams()
	suite.NoError(err)
	suite.Equal([]string{"TCS", "INFY"}, params.Symbols)
	suite.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), params.StartDate)
	suite.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), params.EndDate)
}

func (suite *FetchConfigTestSuite) TestParseKiteConfig() {
	config, err := ParseKiteConfig(`{
		"symbols": ["RELIANCE"],
		"startDate": "2024-03-01",
		"endDate": "2024-03-05",
		"apiKey": "key",
		"apiSecret": "secret"
	}`)
	suite.NoError(err)
	suite.Equal("key", config.APIKey)
	suite.Equal([]string{"RELIANCE"}, config.Symbols)
}

func (suite *FetchConfigTestSuite) TestParseKiteConfigMalformedJSON() {
	_, err := ParseKiteConfig(`{`)
	suite.Error(err)
}
