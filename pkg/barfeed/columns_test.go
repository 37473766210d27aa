package barfeed

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/indalsig/barfeed/internal/types"
	"github.com/indalsig/barfeed/pkg/errors"
)

type ColumnMappingTestSuite struct {
	suite.Suite
}

func TestColumnMappingSuite(t *testing.T) {
	suite.Run(t, new(ColumnMappingTestSuite))
}

func (suite *ColumnMappingTestSuite) TestDefaultAdjCloseHeaders() {
	testCases := []struct {
		name      string
		frequency types.Frequency
		expected  string
		absent    bool
	}{
		{name: "daily uses underscore", frequency: types.FrequencyDay, expected: "adjusted_close"},
		{name: "weekly uses space", frequency: types.FrequencyWeek, expected: "adjusted close"},
		{name: "hourly has none", frequency: types.FrequencyHour, absent: true},
		{name: "minute has none", frequency: types.FrequencyMinute, absent: true},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			mapping := NewColumnMapping(tc.frequency)

			name := mapping.Name(ColumnAdjClose)
			if tc.absent {
				suite.True(name.IsNone())

				return
			}

			header, err := name.Take()
			suite.NoError(err)
			suite.Equal(tc.expected, header)
		})
	}
}

func (suite *ColumnMappingTestSuite) TestDefaultRequiredHeaders() {
	mapping := NewColumnMapping(types.FrequencyDay)

	expected := map[ColumnKey]string{
		ColumnDateTime: "timestamp",
		ColumnOpen:     "open",
		ColumnHigh:     "high",
		ColumnLow:      "low",
		ColumnClose:    "close",
		ColumnVolume:   "volume",
	}

	for key, header := range expected {
		name, err := mapping.Name(key).Take()
		suite.NoError(err)
		suite.Equal(header, name)
	}
}

func (suite *ColumnMappingTestSuite) TestSetNameAndSetAbsent() {
	mapping := NewColumnMapping(types.FrequencyDay)

	mapping.SetName(ColumnDateTime, "date")
	header, err := mapping.Name(ColumnDateTime).Take()
	suite.NoError(err)
	suite.Equal("date", header)

	mapping.SetAbsent(ColumnAdjClose)
	suite.True(mapping.Name(ColumnAdjClose).IsNone())
}

func (suite *ColumnMappingTestSuite) TestResolve() {
	header := []string{"timestamp", "open", "high", "low", "close", "adjusted_close", "volume"}

	mapping := NewColumnMapping(types.FrequencyDay)

	idx, err := mapping.resolve(header)
	suite.NoError(err)
	suite.Equal(0, idx[ColumnDateTime])
	suite.Equal(5, idx[ColumnAdjClose])
	suite.Equal(6, idx[ColumnVolume])
}

func (suite *ColumnMappingTestSuite) TestResolveMissingRequiredColumn() {
	header := []string{"timestamp", "open", "high", "low", "close"}

	mapping := NewColumnMapping(types.FrequencyDay)

	_, err := mapping.resolve(header)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMissingColumn))
	suite.Contains(err.Error(), "volume")
}

func (suite *ColumnMappingTestSuite) TestResolveMissingAdjCloseIsTolerated() {
	header := []string{"timestamp", "open", "high", "low", "close", "volume"}

	mapping := NewColumnMapping(types.FrequencyDay)

	idx, err := mapping.resolve(header)
	suite.NoError(err)

	_, ok := idx[ColumnAdjClose]
	suite.False(ok)
}

func (suite *ColumnMappingTestSuite) TestResolveAbsentColumnIsSkipped() {
	header := []string{"timestamp", "open", "high", "low", "close", "adjusted_close", "volume"}

	mapping := NewColumnMapping(types.FrequencyDay)
	mapping.SetAbsent(ColumnAdjClose)

	idx, err := mapping.resolve(header)
	suite.NoError(err)

	_, ok := idx[ColumnAdjClose]
	suite.False(ok)
}

func (suite *ColumnMappingTestSuite) TestParseColumnKey() {
	key, err := ParseColumnKey("adj_close")
	suite.NoError(err)
	suite.Equal(ColumnAdjClose, key)

	_, err = ParseColumnKey("dividends")
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}
