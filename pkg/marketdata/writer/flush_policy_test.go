package writer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type FlushPolicyTestSuite struct {
	suite.Suite
}

func TestFlushPolicySuite(t *testing.T) {
	suite.Run(t, new(FlushPolicyTestSuite))
}

func (suite *FlushPolicyTestSuite) TestDefaults() {
	policy := DefaultFlushPolicy()
	suite.Equal(30*time.Second, policy.Interval)
	suite.Equal(5000, policy.MaxRows)
}

func (suite *FlushPolicyTestSuite) TestEmptyBufferNeverFlushes() {
	policy := DefaultFlushPolicy()
	suite.False(policy.ShouldFlush(0, time.Hour))
}

func (suite *FlushPolicyTestSuite) TestRowThreshold() {
	policy := FlushPolicy{Interval: time.Minute, MaxRows: 100}
	suite.False(policy.ShouldFlush(99, time.Second))
	suite.True(policy.ShouldFlush(100, time.Second))
	suite.True(policy.ShouldFlush(101, time.Second))
}

func (suite *FlushPolicyTestSuite) TestIntervalThreshold() {
	policy := FlushPolicy{Interval: 30 * time.Second, MaxRows: 5000}
	suite.False(policy.ShouldFlush(1, 29*time.Second))
	suite.True(policy.ShouldFlush(1, 30*time.Second))
	suite.True(policy.ShouldFlush(1, time.Minute))
}

func (suite *FlushPolicyTestSuite) TestZeroFieldsFallBackToDefaults() {
	var policy FlushPolicy
	suite.False(policy.ShouldFlush(4999, time.Second))
	suite.True(policy.ShouldFlush(5000, time.Second))
	suite.True(policy.ShouldFlush(1, 31*time.Second))
}
