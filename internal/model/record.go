package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRecord 单条观测数据不合法
var ErrInvalidRecord = errors.New("invalid record")

// BrandPeriodRecord 某品牌某月的一条销量观测
// Sales 为 nil 表示未知（与 0 不同）
type BrandPeriodRecord struct {
	Brand  string   `json:"brand"`
	Period Period   `json:"period"`
	Sales  *float64 `json:"sales"`
}

// NewRecord 构造一条有销量的观测
func NewRecord(brand string, period Period, sales float64) BrandPeriodRecord {
	return BrandPeriodRecord{Brand: brand, Period: period, Sales: Float(sales)}
}

// Validate 校验品牌非空、年月合法、销量非负
func (r BrandPeriodRecord) Validate() error {
	if strings.TrimSpace(r.Brand) == "" {
		return fmt.Errorf("%w: empty brand", ErrInvalidRecord)
	}
	if !r.Period.Valid() {
		return fmt.Errorf("%w: brand %q: bad period %d-%d", ErrInvalidRecord, r.Brand, r.Period.Year, r.Period.Month)
	}
	if r.Sales != nil && *r.Sales < 0 {
		return fmt.Errorf("%w: brand %q %s: negative sales %v", ErrInvalidRecord, r.Brand, r.Period, *r.Sales)
	}
	return nil
}

// Float 返回指向 v 的指针
func Float(v float64) *float64 {
	return &v
}

// Granularity 查询时间粒度
type Granularity string

const (
	Monthly Granularity = "monthly"
	Yearly  Granularity = "yearly"
)

// ParseGranularity 解析粒度参数，空串默认按月
// 兼容 "month" / "year" 写法
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "monthly", "month":
		return Monthly, nil
	case "yearly", "year":
		return Yearly, nil
	default:
		return "", fmt.Errorf("unknown granularity %q", s)
	}
}
