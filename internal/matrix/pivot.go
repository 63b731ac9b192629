package matrix

import (
	"sort"
	"strings"

	"brandtrend/internal/model"
)

// Pivot 将长表观测整理成宽表：品牌为行，periods 为列
// 列按时间升序；同一批次内同品牌同月份出现多次时以最后一条为准；
// 品牌在某月未出现则该单元格缺失（未知，而非 0）。
// 不属于 periods 的观测被忽略，返回被忽略的条数。
func Pivot(records []model.BrandPeriodRecord, periods []model.Period) (*Matrix, int) {
	cols := uniqueSorted(periods)
	wanted := make(map[model.Period]bool, len(cols))
	for _, p := range cols {
		wanted[p] = true
	}

	brandSet := make(map[string]bool)
	for _, r := range records {
		brand := strings.TrimSpace(r.Brand)
		if brand == "" || !wanted[r.Period] {
			continue
		}
		brandSet[brand] = true
	}
	brands := make([]string, 0, len(brandSet))
	for b := range brandSet {
		brands = append(brands, b)
	}
	sort.Strings(brands)

	m := New()
	for _, p := range cols {
		_ = m.AddColumn(p.Key())
	}
	for _, b := range brands {
		_ = m.AddBrand(b)
	}

	skipped := 0
	for _, r := range records {
		brand := strings.TrimSpace(r.Brand)
		if brand == "" || !wanted[r.Period] {
			skipped++
			continue
		}
		_ = m.Set(brand, r.Period.Key(), r.Sales)
	}
	return m, skipped
}

func uniqueSorted(periods []model.Period) []model.Period {
	seen := make(map[model.Period]bool, len(periods))
	out := make([]model.Period, 0, len(periods))
	for _, p := range periods {
		if !p.Valid() || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
