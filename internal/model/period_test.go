package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod_Formats(t *testing.T) {
	t.Parallel()

	cases := map[string]Period{
		"2025-1":    {Year: 2025, Month: 1},
		"2025-01":   {Year: 2025, Month: 1},
		" 2024-12 ": {Year: 2024, Month: 12},
		"2023年7月":   {Year: 2023, Month: 7},
		"2023年07月":  {Year: 2023, Month: 7},
	}
	for in, want := range cases {
		got, err := ParsePeriod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParsePeriod_Malformed(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "品牌", "2025-13", "2025-0", "2025/1", "25-1", "2025-1-1", "Unnamed: 3"} {
		_, err := ParsePeriod(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, ErrMalformedPeriod), in)
	}
}

func TestPeriod_KeyIsNotZeroPadded(t *testing.T) {
	t.Parallel()

	p := Period{Year: 2025, Month: 3}
	assert.Equal(t, "2025-3", p.Key())
	assert.Equal(t, "202503", p.APIDate())
	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), p.FirstDay())
}

func TestPeriod_Order(t *testing.T) {
	t.Parallel()

	dec := Period{Year: 2024, Month: 12}
	jan := Period{Year: 2025, Month: 1}
	assert.True(t, dec.Before(jan))
	assert.Equal(t, -1, dec.Compare(jan))
	assert.Equal(t, 1, jan.Compare(dec))
	assert.Equal(t, 0, jan.Compare(jan))
	assert.Equal(t, jan, dec.Next())
	assert.Equal(t, dec, jan.Prev())
}

func TestPeriod_JSONUsesKey(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(map[string]Period{"p": {Year: 2025, Month: 10}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":"2025-10"}`, string(data))

	var back map[string]Period
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Period{Year: 2025, Month: 10}, back["p"])
}

func TestPeriodRange_Periods(t *testing.T) {
	t.Parallel()

	got, err := PeriodRange{Start: Period{2024, 11}, End: Period{2025, 2}}.Periods()
	require.NoError(t, err)
	assert.Equal(t, []Period{{2024, 11}, {2024, 12}, {2025, 1}, {2025, 2}}, got)

	single, err := PeriodRange{Start: Period{2025, 10}, End: Period{2025, 10}}.Periods()
	require.NoError(t, err)
	assert.Len(t, single, 1)

	_, err = PeriodRange{Start: Period{2025, 2}, End: Period{2025, 1}}.Periods()
	require.Error(t, err)
}

func TestRecord_Validate(t *testing.T) {
	t.Parallel()

	p := Period{Year: 2025, Month: 1}
	require.NoError(t, NewRecord("大众", p, 100).Validate())
	require.NoError(t, BrandPeriodRecord{Brand: "大众", Period: p}.Validate())

	assert.ErrorIs(t, NewRecord("  ", p, 1).Validate(), ErrInvalidRecord)
	assert.ErrorIs(t, NewRecord("大众", Period{2025, 13}, 1).Validate(), ErrInvalidRecord)
	assert.ErrorIs(t, NewRecord("大众", p, -1).Validate(), ErrInvalidRecord)
}

func TestParseGranularity(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Granularity{"": Monthly, "month": Monthly, "Monthly": Monthly, "year": Yearly, "yearly": Yearly} {
		got, err := ParseGranularity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseGranularity("weekly")
	assert.Error(t, err)
}
