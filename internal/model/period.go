package model

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedPeriod 无法解析为年月的列名/参数
var ErrMalformedPeriod = errors.New("malformed period")

var (
	// 2025-1 / 2025-01
	dashPeriodRe = regexp.MustCompile(`^(\d{4})-0?(\d{1,2})$`)
	// 2025年1月 / 2025年01月（旧表头）
	cnPeriodRe = regexp.MustCompile(`^(\d{4})年0?(\d{1,2})月$`)
)

// Period 自然月（年 + 月）
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// NewPeriod 创建并校验年月
func NewPeriod(year, month int) (Period, error) {
	p := Period{Year: year, Month: month}
	if !p.Valid() {
		return Period{}, fmt.Errorf("%w: %d-%d", ErrMalformedPeriod, year, month)
	}
	return p, nil
}

// ParsePeriod 解析列名为年月
// 支持格式: "2025-1" / "2025-01" / "2025年1月"
func ParsePeriod(text string) (Period, error) {
	text = strings.TrimSpace(text)

	matches := dashPeriodRe.FindStringSubmatch(text)
	if matches == nil {
		matches = cnPeriodRe.FindStringSubmatch(text)
	}
	if len(matches) < 3 {
		return Period{}, fmt.Errorf("%w: %q", ErrMalformedPeriod, text)
	}

	year, _ := strconv.Atoi(matches[1])
	month, _ := strconv.Atoi(matches[2])
	p := Period{Year: year, Month: month}
	if !p.Valid() {
		return Period{}, fmt.Errorf("%w: %q", ErrMalformedPeriod, text)
	}
	return p, nil
}

// MustParsePeriod 解析失败直接 panic（仅用于常量与测试）
func MustParsePeriod(text string) Period {
	p, err := ParsePeriod(text)
	if err != nil {
		panic(err)
	}
	return p
}

// Valid 年份 1-9999，月份 1-12
func (p Period) Valid() bool {
	return p.Year >= 1 && p.Year <= 9999 && p.Month >= 1 && p.Month <= 12
}

// Key 存储用的规范列名，如 "2025-1"（月份不补零）
func (p Period) Key() string {
	return fmt.Sprintf("%d-%d", p.Year, p.Month)
}

func (p Period) String() string {
	return p.Key()
}

// APIDate 数据源接口使用的日期参数，如 "202501"
func (p Period) APIDate() string {
	return fmt.Sprintf("%04d%02d", p.Year, p.Month)
}

// FirstDay 当月第一天（UTC），用于坐标轴范围
func (p Period) FirstDay() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// Index 月序号，便于比较与相邻判断
func (p Period) Index() int {
	return p.Year*12 + p.Month - 1
}

// Compare 返回 -1 / 0 / 1
func (p Period) Compare(other Period) int {
	a, b := p.Index(), other.Index()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Before 是否早于 other
func (p Period) Before(other Period) bool {
	return p.Index() < other.Index()
}

// Next 下一个月
func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Year: p.Year + 1, Month: 1}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Prev 上一个月
func (p Period) Prev() Period {
	if p.Month == 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// PeriodOf 取时间所在的自然月
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// MarshalText 以规范列名输出
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.Key()), nil
}

// UnmarshalText 解析规范列名
func (p *Period) UnmarshalText(data []byte) error {
	parsed, err := ParsePeriod(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// PeriodRange 闭区间年月范围
type PeriodRange struct {
	Start Period `json:"start"`
	End   Period `json:"end"`
}

// Periods 展开为按时间升序的年月列表
func (r PeriodRange) Periods() ([]Period, error) {
	if !r.Start.Valid() || !r.End.Valid() {
		return nil, fmt.Errorf("%w: range %s..%s", ErrMalformedPeriod, r.Start, r.End)
	}
	if r.End.Before(r.Start) {
		return nil, fmt.Errorf("period range end %s is before start %s", r.End, r.Start)
	}

	out := make([]Period, 0, r.End.Index()-r.Start.Index()+1)
	for p := r.Start; !r.End.Before(p); p = p.Next() {
		out = append(out, p)
	}
	return out, nil
}
