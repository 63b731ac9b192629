// Package trend 把品牌 × 月份宽表转换为按品牌分组、按时间升序的长表序列
package trend

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"sort"
	"strconv"
	"strings"

	"brandtrend/internal/matrix"
	"brandtrend/internal/model"
)

// ErrInvalidQuery 查询参数结构不合法
var ErrInvalidQuery = errors.New("invalid query")

// Request 查询条件
type Request struct {
	Brands      []string
	Granularity model.Granularity // 为空按月
	YearStart   *int              // nil 表示取数据中的最小年份
	YearEnd     *int              // nil 表示取数据中的最大年份
}

// Range 实际生效的年份范围（已补默认值、已纠正颠倒）
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Row 长表中的一行
// 按年聚合时 Period 为零值，只有 Year 有意义
type Row struct {
	Brand  string       `json:"brand"`
	Period model.Period `json:"period"`
	Year   int          `json:"year"`
	Sales  *float64     `json:"sales"`
}

// MarshalJSON 按年聚合的行不输出 period
func (row Row) MarshalJSON() ([]byte, error) {
	type plain Row
	out := struct {
		plain
		Period *model.Period `json:"period,omitempty"`
	}{plain: plain(row)}
	if row.Period.Valid() {
		p := row.Period
		out.Period = &p
	}
	return json.Marshal(out)
}

// Result 查询结果
// 行在迭代时才从宽表快照中生成，可重复迭代
type Result struct {
	NoBrandSelected bool              `json:"noBrandSelected"`
	Granularity     model.Granularity `json:"granularity"`
	Range           Range             `json:"range"`
	HasRange        bool              `json:"hasRange"`

	m      *matrix.Matrix
	brands []string
	cols   []matrix.Column
}

// Query 执行一次趋势查询
//
// 品牌为空时返回 NoBrandSelected，不报错。
// 无法解析为年月的列不参与查询；年份上下界缺省时取有效列的最小/最大年份，上下界颠倒时交换。
func Query(m *matrix.Matrix, q Request) (*Result, error) {
	g := q.Granularity
	if g == "" {
		g = model.Monthly
	}
	if g != model.Monthly && g != model.Yearly {
		return nil, fmt.Errorf("%w: unknown granularity %q", ErrInvalidQuery, q.Granularity)
	}

	res := &Result{Granularity: g, m: m}
	res.brands = selection(q.Brands)
	if len(res.brands) == 0 {
		res.NoBrandSelected = true
		res.brands = nil
		return res, nil
	}

	cols := sortedColumns(m)
	rng, ok := effectiveRange(cols, q.YearStart, q.YearEnd)
	if !ok {
		return res, nil
	}
	res.Range = rng
	res.HasRange = true

	for _, c := range cols {
		if c.Period.Year >= rng.Start && c.Period.Year <= rng.End {
			res.cols = append(res.cols, c)
		}
	}
	return res, nil
}

// Brands 选中的品牌（去重，保持选择顺序）
func (r *Result) Brands() []string {
	return append([]string(nil), r.brands...)
}

// Rows 全部行：按品牌分组（选择顺序），组内按时间升序
func (r *Result) Rows() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for _, b := range r.brands {
			for row := range r.brandRows(b) {
				if !yield(row) {
					return
				}
			}
		}
	}
}

// Series 逐品牌的子序列；没有数据的品牌产出空序列
func (r *Result) Series() iter.Seq2[string, iter.Seq[Row]] {
	return func(yield func(string, iter.Seq[Row]) bool) {
		for _, b := range r.brands {
			if !yield(b, r.brandRows(b)) {
				return
			}
		}
	}
}

func (r *Result) brandRows(brand string) iter.Seq[Row] {
	if r.Granularity == model.Yearly {
		return r.yearlyRows(brand)
	}
	return r.monthlyRows(brand)
}

// monthlyRows 每个 (品牌, 月份) 一行，缺失值以 nil 输出
func (r *Result) monthlyRows(brand string) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		if r.m == nil || !r.m.HasBrand(brand) {
			return
		}
		for _, c := range r.cols {
			row := Row{Brand: brand, Period: c.Period, Year: c.Period.Year, Sales: r.m.Value(brand, c.Key)}
			if !yield(row) {
				return
			}
		}
	}
}

// yearlyRows 按年求和，只累加已知值；某年没有任何已知值则不输出
func (r *Result) yearlyRows(brand string) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		if r.m == nil || !r.m.HasBrand(brand) {
			return
		}
		for i := 0; i < len(r.cols); {
			year := r.cols[i].Period.Year
			var sum float64
			known := false
			for ; i < len(r.cols) && r.cols[i].Period.Year == year; i++ {
				if v, ok := r.m.Lookup(brand, r.cols[i].Key); ok {
					sum += v
					known = true
				}
			}
			if !known {
				continue
			}
			if !yield(Row{Brand: brand, Year: year, Sales: model.Float(sum)}) {
				return
			}
		}
	}
}

// Axis 坐标轴范围
type Axis struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

// AxisRange 按月时为首年 1 月 1 日至末年 12 月 31 日，按年时为首末年份
func (r *Result) AxisRange() (Axis, bool) {
	if !r.HasRange {
		return Axis{}, false
	}
	if r.Granularity == model.Yearly {
		return Axis{Min: strconv.Itoa(r.Range.Start), Max: strconv.Itoa(r.Range.End)}, true
	}
	start := model.Period{Year: r.Range.Start, Month: 1}.FirstDay()
	end := model.Period{Year: r.Range.End, Month: 12}.FirstDay().AddDate(0, 0, 30)
	return Axis{Min: start.Format("2006-01-02"), Max: end.Format("2006-01-02")}, true
}

// Date 按月粒度下用于坐标轴的日期（当月第一天）
func (row Row) Date() string {
	if row.Period.Valid() {
		return row.Period.FirstDay().Format("2006-01-02")
	}
	return strconv.Itoa(row.Year)
}

// Brands 宽表中的全部品牌（按名称排序），作为下拉选项
func Brands(m *matrix.Matrix) []string {
	brands := m.Brands()
	sort.Strings(brands)
	return brands
}

// Years 有效列中出现过的年份（升序）
func Years(m *matrix.Matrix) []int {
	seen := make(map[int]bool)
	var years []int
	for _, c := range m.ValidColumns() {
		if !seen[c.Period.Year] {
			seen[c.Period.Year] = true
			years = append(years, c.Period.Year)
		}
	}
	sort.Ints(years)
	return years
}

// ParseYear 解析查询参数中的年份，空串返回 nil
func ParseYear(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < 1 || y > 9999 {
		return nil, fmt.Errorf("%w: bad year %q", ErrInvalidQuery, s)
	}
	return &y, nil
}

func selection(brands []string) []string {
	seen := make(map[string]bool, len(brands))
	out := make([]string, 0, len(brands))
	for _, b := range brands {
		b = strings.TrimSpace(b)
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}

func sortedColumns(m *matrix.Matrix) []matrix.Column {
	if m == nil {
		return nil
	}
	cols := m.ValidColumns()
	sort.SliceStable(cols, func(i, j int) bool {
		return cols[i].Period.Before(cols[j].Period)
	})
	return cols
}

func effectiveRange(cols []matrix.Column, start, end *int) (Range, bool) {
	var rng Range
	if start == nil || end == nil {
		if len(cols) == 0 {
			return Range{}, false
		}
		rng.Start = cols[0].Period.Year
		rng.End = cols[len(cols)-1].Period.Year
	}
	if start != nil {
		rng.Start = *start
	}
	if end != nil {
		rng.End = *end
	}
	if rng.Start > rng.End {
		rng.Start, rng.End = rng.End, rng.Start
	}
	return rng, true
}
