package matrix

import (
	"sort"

	"brandtrend/internal/model"
)

// MergeResult 合并统计
type MergeResult struct {
	NewColumns []string `json:"newColumns"` // 旧表中不存在、本次新增的列
	NewBrands  []string `json:"newBrands"`  // 旧表中不存在、本次新增的品牌
}

// Merge 将新抓取的宽表补充进已有宽表，返回新的宽表（不修改入参）
//
// 只追加旧表中不存在的列；两边都有的列以旧表为准，不会被覆盖。
// 追加列按品牌左连接：旧品牌取新值或缺失；仅出现在新表且在新增列上有值的品牌追加为新行。
// 新增列为空时结果与旧表一致。结果列已按时间排序。
func Merge(old, fresh *Matrix) (*Matrix, MergeResult) {
	merged := old.Clone()
	var res MergeResult

	for _, c := range fresh.columns {
		if !merged.HasColumn(c) {
			res.NewColumns = append(res.NewColumns, c)
		}
	}

	if len(res.NewColumns) > 0 {
		for _, c := range res.NewColumns {
			_ = merged.AddColumn(c)
		}
		for _, b := range fresh.brands {
			if !hasAny(fresh, b, res.NewColumns) {
				continue
			}
			if !merged.HasBrand(b) {
				_ = merged.AddBrand(b)
				res.NewBrands = append(res.NewBrands, b)
			}
			for _, c := range res.NewColumns {
				if v, ok := fresh.Lookup(b, c); ok {
					_ = merged.Set(b, c, &v)
				}
			}
		}
	}

	merged.SortColumns()
	return merged, res
}

func hasAny(m *Matrix, brand string, keys []string) bool {
	for _, k := range keys {
		if _, ok := m.Lookup(brand, k); ok {
			return true
		}
	}
	return false
}

// SortColumns 按时间重排列：可解析的列按年月升序（稳定），无法解析的列保持原相对顺序排在最后
func (m *Matrix) SortColumns() {
	_ = m.Reorder(SortKeys(m.columns))
}

// SortKeys 列名排序规则（不修改入参）
func SortKeys(keys []string) []string {
	type parsed struct {
		key    string
		period model.Period
	}

	var valid []parsed
	var malformed []string
	for _, k := range keys {
		if p, err := model.ParsePeriod(k); err == nil {
			valid = append(valid, parsed{key: k, period: p})
		} else {
			malformed = append(malformed, k)
		}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].period.Before(valid[j].period)
	})

	out := make([]string, 0, len(keys))
	for _, v := range valid {
		out = append(out, v.key)
	}
	return append(out, malformed...)
}
