package logger

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zapcore"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (suite *LoggerTestSuite) TestNewLogger() {
	logger, err := NewLogger()
	suite.NoError(err)
	suite.NotNil(logger)
	suite.NotNil(logger.Logger)
}

func (suite *LoggerTestSuite) TestNewLoggerWithLevel() {
	logger, err := NewLoggerWithLevel("debug")
	suite.NoError(err)
	suite.NotNil(logger)
	suite.True(logger.Core().Enabled(zapcore.DebugLevel))
}

func (suite *LoggerTestSuite) TestNewLoggerWithInvalidLevel() {
	logger, err := NewLoggerWithLevel("loud")
	suite.Error(err)
	suite.Nil(logger)
}

func (suite *LoggerTestSuite) TestLoggerSync() {
	logger, err := NewLogger()
	suite.NoError(err)
	suite.NotNil(logger)

	// Sync may return an error when stdout is not a syncable file,
	// but it must not panic.
	_ = logger.Sync()
}

func (suite *LoggerTestSuite) TestLoggerSyncNilLogger() {
	logger := &Logger{Logger: nil}
	suite.NoError(logger.Sync())
}
