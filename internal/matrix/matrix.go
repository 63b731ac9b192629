package matrix

import (
	"errors"
	"fmt"
	"strings"

	"brandtrend/internal/model"
)

var (
	// ErrDuplicateBrand 品牌行重复
	ErrDuplicateBrand = errors.New("duplicate brand row")
	// ErrDuplicateColumn 列名重复
	ErrDuplicateColumn = errors.New("duplicate column")
	// ErrEmptyKey 品牌或列名为空
	ErrEmptyKey = errors.New("empty brand or column key")
)

// Matrix 品牌 × 年月 宽表
// 行：品牌（唯一），列：年月列名（唯一、有序），单元格可缺失
type Matrix struct {
	brands  []string
	rowIdx  map[string]int
	columns []string
	colIdx  map[string]int
	cells   map[string]map[string]float64
}

// New 创建空宽表
func New() *Matrix {
	return &Matrix{
		rowIdx: make(map[string]int),
		colIdx: make(map[string]int),
		cells:  make(map[string]map[string]float64),
	}
}

// Column 可解析为年月的列
type Column struct {
	Key    string       `json:"key"`
	Period model.Period `json:"period"`
}

// CanonicalKey 规范化列名：去空白，可解析的年月统一为 "YYYY-M"，其余原样保留
func CanonicalKey(raw string) string {
	key := strings.TrimSpace(raw)
	if p, err := model.ParsePeriod(key); err == nil {
		return p.Key()
	}
	return key
}

// Brands 品牌行（按行顺序）
func (m *Matrix) Brands() []string {
	return append([]string(nil), m.brands...)
}

// Columns 列名（按列顺序）
func (m *Matrix) Columns() []string {
	return append([]string(nil), m.columns...)
}

// NumBrands 行数
func (m *Matrix) NumBrands() int { return len(m.brands) }

// NumColumns 列数
func (m *Matrix) NumColumns() int { return len(m.columns) }

// HasBrand 是否存在该品牌行
func (m *Matrix) HasBrand(brand string) bool {
	_, ok := m.rowIdx[brand]
	return ok
}

// HasColumn 是否存在该列
func (m *Matrix) HasColumn(key string) bool {
	_, ok := m.colIdx[key]
	return ok
}

// AddBrand 追加品牌行
func (m *Matrix) AddBrand(brand string) error {
	if brand == "" {
		return ErrEmptyKey
	}
	if m.HasBrand(brand) {
		return fmt.Errorf("%w: %q", ErrDuplicateBrand, brand)
	}
	m.rowIdx[brand] = len(m.brands)
	m.brands = append(m.brands, brand)
	return nil
}

// AddColumn 追加列
func (m *Matrix) AddColumn(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if m.HasColumn(key) {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, key)
	}
	m.colIdx[key] = len(m.columns)
	m.columns = append(m.columns, key)
	return nil
}

// Set 设置单元格；v 为 nil 时清空该单元格
// 品牌行与列必须已存在
func (m *Matrix) Set(brand, key string, v *float64) error {
	if !m.HasBrand(brand) {
		return fmt.Errorf("unknown brand %q", brand)
	}
	if !m.HasColumn(key) {
		return fmt.Errorf("unknown column %q", key)
	}

	if v == nil {
		if row, ok := m.cells[brand]; ok {
			delete(row, key)
		}
		return nil
	}

	row, ok := m.cells[brand]
	if !ok {
		row = make(map[string]float64)
		m.cells[brand] = row
	}
	row[key] = *v
	return nil
}

// Lookup 读取单元格，ok=false 表示缺失
func (m *Matrix) Lookup(brand, key string) (float64, bool) {
	row, ok := m.cells[brand]
	if !ok {
		return 0, false
	}
	v, ok := row[key]
	return v, ok
}

// Value 读取单元格，缺失时返回 nil
func (m *Matrix) Value(brand, key string) *float64 {
	if v, ok := m.Lookup(brand, key); ok {
		return &v
	}
	return nil
}

// Clone 深拷贝
func (m *Matrix) Clone() *Matrix {
	out := New()
	for _, b := range m.brands {
		_ = out.AddBrand(b)
	}
	for _, c := range m.columns {
		_ = out.AddColumn(c)
	}
	for b, row := range m.cells {
		cp := make(map[string]float64, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out.cells[b] = cp
	}
	return out
}

// Reorder 按给定顺序重排列，必须是现有列的一个排列
func (m *Matrix) Reorder(columns []string) error {
	if len(columns) != len(m.columns) {
		return fmt.Errorf("reorder: got %d columns, matrix has %d", len(columns), len(m.columns))
	}
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		if !m.HasColumn(c) {
			return fmt.Errorf("reorder: unknown column %q", c)
		}
		if _, dup := idx[c]; dup {
			return fmt.Errorf("reorder: %w: %q", ErrDuplicateColumn, c)
		}
		idx[c] = i
	}
	m.columns = append([]string(nil), columns...)
	m.colIdx = idx
	return nil
}

// ValidColumns 规范年月列（按当前列顺序）
// 与规范列重名而保留原始写法的列（如同时存在 "2024-01" 与 "2024-1"）不计入，每个年月至多一列。
func (m *Matrix) ValidColumns() []Column {
	out := make([]Column, 0, len(m.columns))
	for _, c := range m.columns {
		if p, ok := canonicalPeriod(c); ok {
			out = append(out, Column{Key: c, Period: p})
		}
	}
	return out
}

// MalformedColumns 不是规范年月的列（按当前列顺序）
func (m *Matrix) MalformedColumns() []string {
	var out []string
	for _, c := range m.columns {
		if _, ok := canonicalPeriod(c); !ok {
			out = append(out, c)
		}
	}
	return out
}

func canonicalPeriod(key string) (model.Period, bool) {
	p, err := model.ParsePeriod(key)
	if err != nil || p.Key() != key {
		return model.Period{}, false
	}
	return p, true
}

// CellCount 非空单元格数量
func (m *Matrix) CellCount() int {
	n := 0
	for _, row := range m.cells {
		n += len(row)
	}
	return n
}

// Equal 行、列顺序与全部单元格一致
func (m *Matrix) Equal(other *Matrix) bool {
	if other == nil {
		return false
	}
	if !equalStrings(m.brands, other.brands) || !equalStrings(m.columns, other.columns) {
		return false
	}
	if m.CellCount() != other.CellCount() {
		return false
	}
	for b, row := range m.cells {
		for k, v := range row {
			ov, ok := other.Lookup(b, k)
			if !ok || ov != v {
				return false
			}
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
