package trend

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brandtrend/internal/matrix"
	"brandtrend/internal/model"
)

type cell struct {
	brand, key string
	v          float64
}

func build(t *testing.T, columns []string, cells ...cell) *matrix.Matrix {
	t.Helper()
	m := matrix.New()
	for _, c := range columns {
		require.NoError(t, m.AddColumn(c))
	}
	for _, c := range cells {
		if !m.HasBrand(c.brand) {
			require.NoError(t, m.AddBrand(c.brand))
		}
		v := c.v
		require.NoError(t, m.Set(c.brand, c.key, &v))
	}
	return m
}

func year(y int) *int { return &y }

func sales(rows []Row) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if r.Sales == nil {
			out = append(out, -1)
			continue
		}
		out = append(out, *r.Sales)
	}
	return out
}

func TestQuery_YearlySumsKnownMonthsOnly(t *testing.T) {
	m := build(t, []string{"2024-1", "2024-2", "2024-3", "2025-1"},
		cell{"A", "2024-1", 10},
		cell{"A", "2024-2", 20},
		cell{"B", "2025-1", 5},
	)

	res, err := Query(m, Request{
		Brands:      []string{"A", "B"},
		Granularity: model.Yearly,
		YearStart:   year(2024),
		YearEnd:     year(2025),
	})
	require.NoError(t, err)

	var a []Row
	for brand, rows := range res.Series() {
		if brand == "A" {
			a = slices.Collect(rows)
		}
	}
	require.Len(t, a, 1)
	assert.Equal(t, 2024, a[0].Year)
	assert.Equal(t, 30.0, *a[0].Sales)
}

func TestQuery_RangeDefaultAndSwap(t *testing.T) {
	m := build(t, []string{"2020-5", "2023-1", "2026-12"}, cell{"A", "2023-1", 1})

	res, err := Query(m, Request{Brands: []string{"A"}})
	require.NoError(t, err)
	assert.True(t, res.HasRange)
	assert.Equal(t, Range{Start: 2020, End: 2026}, res.Range)

	res, err = Query(m, Request{Brands: []string{"A"}, YearStart: year(2026), YearEnd: year(2020)})
	require.NoError(t, err)
	assert.Equal(t, Range{Start: 2020, End: 2026}, res.Range)

	res, err = Query(m, Request{Brands: []string{"A"}, YearStart: year(2030)})
	require.NoError(t, err)
	assert.Equal(t, Range{Start: 2026, End: 2030}, res.Range, "single bound defaults independently then swaps")
}

func TestQuery_NoBrandSelected(t *testing.T) {
	m := build(t, []string{"2025-1"}, cell{"A", "2025-1", 1})

	for _, brands := range [][]string{nil, {}, {"  ", ""}} {
		res, err := Query(m, Request{Brands: brands})
		require.NoError(t, err)
		assert.True(t, res.NoBrandSelected)
		assert.Empty(t, slices.Collect(res.Rows()))
	}
}

func TestQuery_MonthlyKeepsGapsAndOrder(t *testing.T) {
	m := build(t, []string{"2025-3", "2024-12", "legacy", "2025-1"},
		cell{"A", "2025-3", 3},
		cell{"A", "2024-12", 12},
		cell{"A", "legacy", 99},
	)

	res, err := Query(m, Request{Brands: []string{"A"}, Granularity: model.Monthly})
	require.NoError(t, err)

	rows := slices.Collect(res.Rows())
	require.Len(t, rows, 3)
	assert.Equal(t, []model.Period{
		model.MustParsePeriod("2024-12"),
		model.MustParsePeriod("2025-1"),
		model.MustParsePeriod("2025-3"),
	}, []model.Period{rows[0].Period, rows[1].Period, rows[2].Period})
	assert.Equal(t, []float64{12, -1, 3}, sales(rows))
	assert.Equal(t, "2024-12-01", rows[0].Date())
}

func TestQuery_FiltersByYearInclusive(t *testing.T) {
	m := build(t, []string{"2023-12", "2024-1", "2025-12", "2026-1"},
		cell{"A", "2023-12", 1},
		cell{"A", "2024-1", 2},
		cell{"A", "2025-12", 3},
		cell{"A", "2026-1", 4},
	)

	res, err := Query(m, Request{Brands: []string{"A"}, YearStart: year(2024), YearEnd: year(2025)})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, sales(slices.Collect(res.Rows())))
}

func TestQuery_GroupedBySelectionOrder(t *testing.T) {
	m := build(t, []string{"2025-1", "2025-2"},
		cell{"A", "2025-1", 1},
		cell{"B", "2025-2", 2},
	)

	res, err := Query(m, Request{Brands: []string{"B", "Missing", "A", "B"}, Granularity: model.Yearly})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "Missing", "A"}, res.Brands())

	var order []string
	counts := map[string]int{}
	for brand, rows := range res.Series() {
		order = append(order, brand)
		for range rows {
			counts[brand]++
		}
	}
	assert.Equal(t, []string{"B", "Missing", "A"}, order)
	assert.Equal(t, 0, counts["Missing"])
	assert.Equal(t, 1, counts["A"])

	var brands []string
	for row := range res.Rows() {
		brands = append(brands, row.Brand)
	}
	assert.Equal(t, []string{"B", "A"}, brands)
}

func TestQuery_RowsAreRestartable(t *testing.T) {
	m := build(t, []string{"2025-1", "2025-2"}, cell{"A", "2025-1", 1}, cell{"A", "2025-2", 2})
	res, err := Query(m, Request{Brands: []string{"A"}})
	require.NoError(t, err)

	first := slices.Collect(res.Rows())
	second := slices.Collect(res.Rows())
	assert.Equal(t, first, second)

	for row := range res.Rows() {
		assert.Equal(t, 1.0, *row.Sales)
		break
	}
}

func TestQuery_NoValidColumns(t *testing.T) {
	m := build(t, []string{"Unnamed: 1"}, cell{"A", "Unnamed: 1", 1})

	res, err := Query(m, Request{Brands: []string{"A"}})
	require.NoError(t, err)
	assert.False(t, res.HasRange)
	assert.Empty(t, slices.Collect(res.Rows()))
	_, ok := res.AxisRange()
	assert.False(t, ok)

	res, err = Query(m, Request{Brands: []string{"A"}, YearStart: year(2020), YearEnd: year(2021)})
	require.NoError(t, err)
	assert.True(t, res.HasRange)
	assert.Empty(t, slices.Collect(res.Rows()))
}

func TestQuery_InvalidGranularity(t *testing.T) {
	_, err := Query(matrix.New(), Request{Brands: []string{"A"}, Granularity: "weekly"})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestAxisRange(t *testing.T) {
	m := build(t, []string{"2021-6", "2023-2"}, cell{"A", "2021-6", 1})

	res, err := Query(m, Request{Brands: []string{"A"}})
	require.NoError(t, err)
	axis, ok := res.AxisRange()
	require.True(t, ok)
	assert.Equal(t, Axis{Min: "2021-01-01", Max: "2023-12-31"}, axis)

	res, err = Query(m, Request{Brands: []string{"A"}, Granularity: model.Yearly})
	require.NoError(t, err)
	axis, _ = res.AxisRange()
	assert.Equal(t, Axis{Min: "2021", Max: "2023"}, axis)
}

func TestBrandsAndYears(t *testing.T) {
	m := build(t, []string{"2025-1", "bad", "2023-4", "2025-7"},
		cell{"丰田", "2025-1", 1},
		cell{"大众", "2023-4", 1},
		cell{"Audi", "2025-7", 1},
	)
	assert.Equal(t, []string{"Audi", "丰田", "大众"}, Brands(m))
	assert.Equal(t, []int{2023, 2025}, Years(m))
}

func TestParseYear(t *testing.T) {
	y, err := ParseYear(" 2024 ")
	require.NoError(t, err)
	assert.Equal(t, 2024, *y)

	y, err = ParseYear("")
	require.NoError(t, err)
	assert.Nil(t, y)

	_, err = ParseYear("twenty")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestRow_JSONOmitsPeriodForYearly(t *testing.T) {
	m := build(t, []string{"2024-1", "2024-2"}, cell{"A", "2024-1", 10}, cell{"A", "2024-2", 20})

	res, err := Query(m, Request{Brands: []string{"A"}, Granularity: model.Yearly})
	require.NoError(t, err)
	rows := slices.Collect(res.Rows())
	require.Len(t, rows, 1)
	data, err := json.Marshal(rows[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"brand":"A","year":2024,"sales":30}`, string(data))

	res, err = Query(m, Request{Brands: []string{"A"}})
	require.NoError(t, err)
	rows = slices.Collect(res.Rows())
	require.Len(t, rows, 2)
	data, err = json.Marshal(rows[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"brand":"A","period":"2024-1","year":2024,"sales":10}`, string(data))
}
