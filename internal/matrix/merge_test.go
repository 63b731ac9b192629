package matrix

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brandtrend/internal/model"
)

func build(t *testing.T, columns []string, rows map[string]map[string]float64, brandOrder ...string) *Matrix {
	t.Helper()

	m := New()
	for _, c := range columns {
		require.NoError(t, m.AddColumn(c))
	}
	if len(brandOrder) == 0 {
		for b := range rows {
			brandOrder = append(brandOrder, b)
		}
	}
	for _, b := range brandOrder {
		require.NoError(t, m.AddBrand(b))
		for k, v := range rows[b] {
			v := v
			require.NoError(t, m.Set(b, k, &v))
		}
	}
	return m
}

func TestMerge_ExistingValuesAreNeverOverwritten(t *testing.T) {
	old := build(t, []string{"2025-1"}, map[string]map[string]float64{
		"A": {"2025-1": 100},
	})
	fresh := build(t, []string{"2025-1", "2025-2"}, map[string]map[string]float64{
		"A": {"2025-1": 999, "2025-2": 50},
	})

	merged, res := Merge(old, fresh)

	assert.Equal(t, []string{"2025-2"}, res.NewColumns)
	assert.Empty(t, res.NewBrands)
	assert.Equal(t, []string{"2025-1", "2025-2"}, merged.Columns())

	v, ok := merged.Lookup("A", "2025-1")
	require.True(t, ok)
	assert.Equal(t, 100.0, v)
	v, ok = merged.Lookup("A", "2025-2")
	require.True(t, ok)
	assert.Equal(t, 50.0, v)

	// 入参不被修改
	assert.Equal(t, []string{"2025-1"}, old.Columns())
}

func TestMerge_LeftJoinAddsNewBrandsWithOldColumnsUnset(t *testing.T) {
	old := build(t, []string{"2024-12"}, map[string]map[string]float64{
		"A": {"2024-12": 10},
		"B": {"2024-12": 20},
	}, "A", "B")
	fresh := build(t, []string{"2025-1"}, map[string]map[string]float64{
		"A": {"2025-1": 11},
		"C": {"2025-1": 30},
	}, "A", "C")

	merged, res := Merge(old, fresh)

	assert.Equal(t, []string{"A", "B", "C"}, merged.Brands())
	assert.Equal(t, []string{"C"}, res.NewBrands)

	_, ok := merged.Lookup("B", "2025-1")
	assert.False(t, ok, "B missing from new ranking stays unknown, not zero")
	_, ok = merged.Lookup("C", "2024-12")
	assert.False(t, ok, "new brand has old columns unset")
	v, _ := merged.Lookup("C", "2025-1")
	assert.Equal(t, 30.0, v)
}

func TestMerge_NoNewColumnsKeepsOld(t *testing.T) {
	old := build(t, []string{"2025-1", "备注"}, map[string]map[string]float64{
		"A": {"2025-1": 1},
	})
	fresh := build(t, []string{"2025-1"}, map[string]map[string]float64{
		"A": {"2025-1": 2},
		"Z": {"2025-1": 3},
	}, "A", "Z")

	merged, res := Merge(old, fresh)

	assert.Empty(t, res.NewColumns)
	assert.True(t, merged.Equal(old))
}

func TestMerge_NewBrandWithOnlyOverlappingValuesIsNotAdded(t *testing.T) {
	old := build(t, []string{"2025-1"}, map[string]map[string]float64{
		"A": {"2025-1": 1},
	})
	fresh := build(t, []string{"2025-1", "2025-2"}, map[string]map[string]float64{
		"A": {"2025-1": 5, "2025-2": 2},
		"Z": {"2025-1": 3},
	}, "A", "Z")

	merged, res := Merge(old, fresh)

	assert.Equal(t, []string{"2025-2"}, res.NewColumns)
	assert.Empty(t, res.NewBrands)
	assert.Equal(t, []string{"A"}, merged.Brands())
	assert.False(t, merged.HasBrand("Z"), "row would carry no value in the appended columns")
	v, _ := merged.Lookup("A", "2025-1")
	assert.Equal(t, 1.0, v)
}

func TestMerge_Idempotent(t *testing.T) {
	old := build(t, []string{"2024-11", "legacy", "2024-12"}, map[string]map[string]float64{
		"A": {"2024-11": 1, "2024-12": 2, "legacy": 9},
		"B": {"2024-12": 3},
	}, "A", "B")
	fresh := build(t, []string{"2024-12", "2025-1", "2025-2"}, map[string]map[string]float64{
		"A": {"2024-12": 100, "2025-1": 4},
		"C": {"2025-2": 5},
		"D": {"2024-12": 6},
	}, "A", "C", "D")

	once, _ := Merge(old, fresh)
	twice, res := Merge(once, fresh)

	assert.Empty(t, res.NewColumns)
	assert.True(t, twice.Equal(once))
	assert.False(t, once.HasBrand("D"), "brand without values in new columns is not added")
}

func TestSortKeys_ChronologicalWithMalformedTrailing(t *testing.T) {
	got := SortKeys([]string{"2025-2", "note", "2024-12", "2025-1", "Unnamed: 5", "2024-1"})
	assert.Equal(t, []string{"2024-1", "2024-12", "2025-1", "2025-2", "note", "Unnamed: 5"}, got)
}

func TestSortKeys_AnyInputOrder(t *testing.T) {
	keys := []string{"2023-5", "x", "2025-1", "2024-12", "y", "2024-2", "2026-10", "z"}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		shuffled := append([]string(nil), keys...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := SortKeys(shuffled)
		require.Len(t, got, len(keys))

		var malformedIn []string
		for _, k := range shuffled {
			if _, err := model.ParsePeriod(k); err != nil {
				malformedIn = append(malformedIn, k)
			}
		}
		valid := got[:len(got)-len(malformedIn)]
		for j := 1; j < len(valid); j++ {
			prev := model.MustParsePeriod(valid[j-1])
			cur := model.MustParsePeriod(valid[j])
			require.False(t, cur.Before(prev), "order broken: %v", got)
		}
		require.Equal(t, malformedIn, got[len(valid):], "malformed must trail in original order")
	}
}

func TestMerge_ResultColumnsSortedForShuffledInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	oldCols := []string{"2024-3", "说明", "2024-1", "2024-2"}
	newCols := []string{"2024-5", "2024-4", "2023-12"}

	for i := 0; i < 50; i++ {
		oc := append([]string(nil), oldCols...)
		nc := append([]string(nil), newCols...)
		rng.Shuffle(len(oc), func(a, b int) { oc[a], oc[b] = oc[b], oc[a] })
		rng.Shuffle(len(nc), func(a, b int) { nc[a], nc[b] = nc[b], nc[a] })

		old := build(t, oc, map[string]map[string]float64{"A": {}})
		fresh := build(t, nc, map[string]map[string]float64{"A": {"2024-4": 1}})

		merged, _ := Merge(old, fresh)
		assert.Equal(t, []string{"2023-12", "2024-1", "2024-2", "2024-3", "2024-4", "2024-5", "说明"}, merged.Columns())
	}
}

func TestPivot_LastValueWinsAndAbsentStaysUnset(t *testing.T) {
	jan := model.Period{Year: 2025, Month: 1}
	feb := model.Period{Year: 2025, Month: 2}

	records := []model.BrandPeriodRecord{
		model.NewRecord("丰田", feb, 20),
		model.NewRecord("大众", jan, 1),
		model.NewRecord("大众", jan, 2),
		model.NewRecord(" 丰田 ", jan, 10),
		model.NewRecord("宝马", model.Period{Year: 2025, Month: 3}, 99),
		{Brand: "", Period: jan, Sales: model.Float(5)},
	}

	m, skipped := Pivot(records, []model.Period{feb, jan, jan})

	assert.Equal(t, 2, skipped)
	assert.Equal(t, []string{"2025-1", "2025-2"}, m.Columns())
	assert.ElementsMatch(t, []string{"丰田", "大众"}, m.Brands())

	v, _ := m.Lookup("大众", "2025-1")
	assert.Equal(t, 2.0, v)
	_, ok := m.Lookup("大众", "2025-2")
	assert.False(t, ok)
	v, _ = m.Lookup("丰田", "2025-1")
	assert.Equal(t, 10.0, v)
}

func TestMatrix_DuplicateGuards(t *testing.T) {
	m := New()
	require.NoError(t, m.AddBrand("A"))
	assert.ErrorIs(t, m.AddBrand("A"), ErrDuplicateBrand)
	require.NoError(t, m.AddColumn("2025-1"))
	assert.ErrorIs(t, m.AddColumn("2025-1"), ErrDuplicateColumn)
	assert.ErrorIs(t, m.AddColumn(""), ErrEmptyKey)
	assert.Error(t, m.Set("B", "2025-1", model.Float(1)))
}

func TestCanonicalKey(t *testing.T) {
	assert.Equal(t, "2025-1", CanonicalKey(" 2025-01 "))
	assert.Equal(t, "2023-7", CanonicalKey("2023年7月"))
	assert.Equal(t, "备注", CanonicalKey("备注"))
}
