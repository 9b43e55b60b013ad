package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeInvalidParameter, "invalid parameter: %s", "test")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter: test", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeFetchFailed, "historical data request failed", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeFetchFailed, err.Code)
	suite.Equal("historical data request failed", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("underlying error")
	err := Wrapf(ErrCodeFetchFailed, cause, "fetch failed for symbol: %s", "RELIANCE")
	suite.NotNil(err)
	suite.Equal(ErrCodeFetchFailed, err.Code)
	suite.Equal("fetch failed for symbol: RELIANCE", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal("[100] invalid parameter", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeSessionRequired, "no active session", cause)
	suite.Equal("[200] no active session: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeFetchFailed, "fetch failed", cause)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestUnwrapNil() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Nil(err.Unwrap())
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal(ErrCodeInvalidParameter, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	coded := New(ErrCodeInstrumentNotFound, "token not found")
	wrapped := fmt.Errorf("lookup: %w", coded)
	suite.Equal(ErrCodeInstrumentNotFound, GetCode(wrapped))
}

func (suite *ErrorTestSuite) TestGetCodeFromPlainError() {
	suite.Equal(ErrCodeUnknown, GetCode(errors.New("plain")))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeJobNotFound, "job not found")
	suite.True(HasCode(err, ErrCodeJobNotFound))
	suite.False(HasCode(err, ErrCodeJobNotRunning))
}

func (suite *ErrorTestSuite) TestInstrumentNotFoundError() {
	err := NewInstrumentNotFoundError("BADSYM", "NSE")
	suite.Equal("instrument token not found for BADSYM on NSE", err.Error())
	suite.True(IsInstrumentNotFound(err))
	suite.True(IsInstrumentNotFound(fmt.Errorf("resolve: %w", err)))
}

func (suite *ErrorTestSuite) TestInstrumentNotFoundErrorNoExchange() {
	err := NewInstrumentNotFoundError("BADSYM", "")
	suite.Equal("instrument token not found for BADSYM", err.Error())
}

func (suite *ErrorTestSuite) TestIsInstrumentNotFoundPlainError() {
	suite.False(IsInstrumentNotFound(errors.New("plain")))
}
