package fetcher

import (
	"context"

	"brandtrend/internal/model"
)

// Fetcher 按月抓取品牌销量榜
// 返回的记录已统一为 BrandPeriodRecord（销量列名已规范化）；失败或空结果由调用方按单月失败处理。
type Fetcher interface {
	Fetch(ctx context.Context, period model.Period) ([]model.BrandPeriodRecord, error)
}

// Func 函数适配为 Fetcher
type Func func(ctx context.Context, period model.Period) ([]model.BrandPeriodRecord, error)

// Fetch 调用函数本身
func (f Func) Fetch(ctx context.Context, period model.Period) ([]model.BrandPeriodRecord, error) {
	return f(ctx, period)
}

// Static 固定数据源，按年月返回预置记录（用于测试与离线回放）
type Static map[model.Period][]model.BrandPeriodRecord

// Fetch 返回预置记录的拷贝
func (s Static) Fetch(_ context.Context, period model.Period) ([]model.BrandPeriodRecord, error) {
	return append([]model.BrandPeriodRecord(nil), s[period]...), nil
}
