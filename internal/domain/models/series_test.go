package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePointsSortsAndDedupes(t *testing.T) {
	in := []SeriesPoint{
		{Time: "2021", Value: Value(3)},
		{Time: "2019", Value: Value(1)},
		{Time: "2020", Value: Value(2)},
		{Time: "2019", Value: Value(9)},
	}
	out, err := NormalizePoints(in)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "2019", out[0].Time)
	assert.Equal(t, 9.0, *out[0].Value, "last write wins")
	assert.Equal(t, "2020", out[1].Time)
	assert.Equal(t, "2021", out[2].Time)
}

func TestNormalizePointsKeepsNulls(t *testing.T) {
	out, err := NormalizePoints([]SeriesPoint{
		{Time: "2020-02", Value: nil},
		{Time: "2020-01", Value: Value(1)},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Nil(t, out[1].Value)
}

func TestNormalizePointsRejectsBadKey(t *testing.T) {
	_, err := NormalizePoints([]SeriesPoint{{Time: "someday"}})
	require.Error(t, err)
}

func TestCoerceNumber(t *testing.T) {
	for _, raw := range []string{"", ".", "-", "NA", "n/a", "abc", "NaN"} {
		assert.Nil(t, CoerceNumber(raw), raw)
	}
	v := CoerceNumber(" 1,234.5 ")
	require.NotNil(t, v)
	assert.Equal(t, 1234.5, *v)
}

func TestUsablePoints(t *testing.T) {
	s := &Series{Points: []SeriesPoint{{Time: "2020"}, {Time: "2021", Value: Value(0)}}}
	assert.Equal(t, 1, s.UsablePoints())
	assert.Equal(t, 0, (*Series)(nil).UsablePoints())
}

func TestRecoverableClassification(t *testing.T) {
	wrapped := fmt.Errorf("attempt: %w", &UpstreamError{Provider: "bls", Status: 503})
	assert.True(t, IsRecoverable(wrapped))
	assert.True(t, IsRecoverable(&ParseError{Provider: "fred", Reason: "bad"}))
	assert.True(t, IsRecoverable(&EmptyResultError{Provider: "bls"}))
	assert.False(t, IsRecoverable(&ConfigurationError{Field: "EUROSTAT_SDMX_BASE"}))
	assert.False(t, IsRecoverable(&MissingParameterError{Param: "dataset"}))
	assert.False(t, IsRecoverable(errors.New("boom")))

	assert.True(t, IsRequestError(&UnsupportedProviderError{Provider: "imf"}))
	assert.False(t, IsRequestError(&UpstreamError{Provider: "bls"}))
}
