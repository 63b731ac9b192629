package importer

import (
	"errors"
	"fmt"
	"time"

	"brandtrend/internal/model"
)

var (
	// ErrNoPeriods 未指定要抓取的月份
	ErrNoPeriods = errors.New("no periods requested")
	// ErrNoDataFetched 所有月份都抓取失败，本次不写文件
	ErrNoDataFetched = errors.New("no data fetched for any requested period")
	// ErrEmptyFetch 某月抓取成功但没有有效记录
	ErrEmptyFetch = errors.New("fetch returned no valid records")
)

// FetchFailedError 单月抓取失败（可恢复，跳过该月）
type FetchFailedError struct {
	Period model.Period
	Err    error
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("fetch %s failed: %v", e.Period, e.Err)
}

func (e *FetchFailedError) Unwrap() error {
	return e.Err
}

// ProgressEvent 进度事件
type ProgressEvent struct {
	Type      string      `json:"type"`      // start/period_done/period_failed/info/warning/done/error
	Message   string      `json:"message"`   // 事件消息
	Data      interface{} `json:"data"`      // 附加数据
	Timestamp time.Time   `json:"timestamp"` // 时间戳
}

// FailedPeriod 失败月份及原因
type FailedPeriod struct {
	Period model.Period `json:"period"`
	Error  string       `json:"error"`
}

// Report 采集报告
type Report struct {
	RunID          string         `json:"runId"`
	Requested      []model.Period `json:"requested"`
	Succeeded      []model.Period `json:"succeeded"`
	Failed         []FailedPeriod `json:"failed"`
	InvalidRecords int            `json:"invalidRecords"` // 被丢弃的单条记录
	NewColumns     []string       `json:"newColumns"`
	NewBrands      []string       `json:"newBrands"`
	Brands         int            `json:"brands"`  // 写入后的品牌数
	Columns        int            `json:"columns"` // 写入后的列数
	// Fresh 本次为全新写入（无旧文件或旧文件不可读）
	Fresh bool `json:"fresh"`
	// PriorDataDiscarded 旧文件无法解析，已被新数据覆盖
	PriorDataDiscarded bool          `json:"priorDataDiscarded"`
	DryRun             bool          `json:"dryRun"`
	Written            bool          `json:"written"`
	Duration           time.Duration `json:"duration"`
}

// SucceededCount 成功月份数
func (r *Report) SucceededCount() int { return len(r.Succeeded) }

// FailedCount 失败月份数
func (r *Report) FailedCount() int { return len(r.Failed) }

// FailedKeys 失败月份列名
func (r *Report) FailedKeys() []string {
	out := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, f.Period.Key())
	}
	return out
}
