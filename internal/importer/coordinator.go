package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"brandtrend/internal/dataset"
	"brandtrend/internal/fetcher"
	"brandtrend/internal/matrix"
	"brandtrend/internal/metrics"
	"brandtrend/internal/model"
	"brandtrend/internal/store"
)

const defaultConcurrency = 4

// RunLog 采集运行记录（*store.Store 实现）
type RunLog interface {
	CreateRun(id string, requested int, dryRun bool) error
	FinishRun(id string, r store.RunResult) error
}

// Coordinator 采集协调器：抓取 -> 透视 -> 合并 -> 落盘
type Coordinator struct {
	dataset     *dataset.Handle
	fetcher     fetcher.Fetcher
	runs        RunLog
	metrics     *metrics.Metrics
	concurrency int
}

// Option 协调器选项
type Option func(*Coordinator)

// WithRunLog 记录每次运行
func WithRunLog(runs RunLog) Option {
	return func(c *Coordinator) { c.runs = runs }
}

// WithMetrics 上报指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithConcurrency 并发抓取的月份数
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// NewCoordinator 创建采集协调器
func NewCoordinator(ds *dataset.Handle, f fetcher.Fetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		dataset:     ds,
		fetcher:     f,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ImportOptions 采集选项
type ImportOptions struct {
	Periods []model.Period
	DryRun  bool // 只抓取与合并，不写文件
}

// Import 执行采集，返回进度通道
func (c *Coordinator) Import(ctx context.Context, opts ImportOptions) <-chan ProgressEvent {
	progressChan := make(chan ProgressEvent, 100)

	go func() {
		defer close(progressChan)
		report, err := c.run(ctx, opts, progressChan)
		if err != nil {
			c.sendFinal(ctx, progressChan, ProgressEvent{
				Type:      "error",
				Message:   err.Error(),
				Data:      report,
				Timestamp: time.Now(),
			})
			return
		}
		c.sendFinal(ctx, progressChan, ProgressEvent{
			Type:      "done",
			Message:   fmt.Sprintf("采集完成：成功 %d 个月，失败 %d 个月", report.SucceededCount(), report.FailedCount()),
			Data:      report,
			Timestamp: time.Now(),
		})
	}()

	return progressChan
}

// Run 同步执行采集；出错时仍返回已填充的报告
func (c *Coordinator) Run(ctx context.Context, opts ImportOptions) (*Report, error) {
	return c.run(ctx, opts, nil)
}

type fetchResult struct {
	records []model.BrandPeriodRecord
	invalid int
	err     error
}

func (c *Coordinator) run(ctx context.Context, opts ImportOptions, progressChan chan ProgressEvent) (*Report, error) {
	startTime := time.Now()
	report := &Report{
		RunID:     uuid.NewString(),
		Requested: dedupe(opts.Periods),
		DryRun:    opts.DryRun,
	}
	if len(report.Requested) == 0 {
		return report, ErrNoPeriods
	}
	for _, p := range report.Requested {
		if !p.Valid() {
			return report, fmt.Errorf("%w: %d-%d", model.ErrMalformedPeriod, p.Year, p.Month)
		}
	}

	log := logrus.WithFields(logrus.Fields{
		"run_id":  report.RunID,
		"periods": len(report.Requested),
		"dry_run": opts.DryRun,
	})

	if c.runs != nil {
		if err := c.runs.CreateRun(report.RunID, len(report.Requested), opts.DryRun); err != nil {
			log.WithError(err).Warn("写入运行记录失败")
		}
	}

	c.sendProgress(progressChan, ProgressEvent{
		Type:    "start",
		Message: fmt.Sprintf("开始采集 %d 个月", len(report.Requested)),
		Data: map[string]interface{}{
			"run_id":  report.RunID,
			"periods": keys(report.Requested),
		},
		Timestamp: time.Now(),
	})

	err := c.ingest(ctx, report, progressChan, log)
	report.Duration = time.Since(startTime)
	c.finish(report, err, log)
	return report, err
}

func (c *Coordinator) ingest(ctx context.Context, report *Report, progressChan chan ProgressEvent, log *logrus.Entry) error {
	results := c.fetchAll(ctx, report.Requested)

	var records []model.BrandPeriodRecord
	for i, p := range report.Requested {
		res := results[i]
		report.InvalidRecords += res.invalid
		if res.err != nil {
			ferr := &FetchFailedError{Period: p, Err: res.err}
			report.Failed = append(report.Failed, FailedPeriod{Period: p, Error: res.err.Error()})
			log.WithField("period", p.Key()).WithError(res.err).Warn("月份抓取失败，跳过")
			c.sendProgress(progressChan, ProgressEvent{
				Type:      "period_failed",
				Message:   ferr.Error(),
				Data:      map[string]string{"period": p.Key()},
				Timestamp: time.Now(),
			})
			continue
		}
		report.Succeeded = append(report.Succeeded, p)
		records = append(records, res.records...)
		c.sendProgress(progressChan, ProgressEvent{
			Type:    "period_done",
			Message: fmt.Sprintf("%s 抓取完成", p),
			Data: map[string]interface{}{
				"period":  p.Key(),
				"records": len(res.records),
			},
			Timestamp: time.Now(),
		})
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(report.Succeeded) == 0 {
		return ErrNoDataFetched
	}

	fresh, skipped := matrix.Pivot(records, report.Succeeded)
	report.InvalidRecords += skipped

	err := c.dataset.Update(ctx, func(old *matrix.Matrix, loadErr error) (*matrix.Matrix, error) {
		next := fresh
		switch {
		case loadErr == nil:
			merged, res := matrix.Merge(old, fresh)
			report.NewColumns = res.NewColumns
			report.NewBrands = res.NewBrands
			next = merged
		case errors.Is(loadErr, dataset.ErrNotFound):
			report.Fresh = true
			report.NewColumns = fresh.Columns()
			report.NewBrands = fresh.Brands()
		case errors.Is(loadErr, dataset.ErrExistingFileUnreadable):
			report.Fresh = true
			report.PriorDataDiscarded = true
			report.NewColumns = fresh.Columns()
			report.NewBrands = fresh.Brands()
			log.WithError(loadErr).Warn("已有宽表无法解析，丢弃旧数据并全新写入，历史数据可能丢失")
			c.sendProgress(progressChan, ProgressEvent{
				Type:      "warning",
				Message:   "已有宽表无法解析，旧数据将被覆盖",
				Data:      map[string]string{"error": loadErr.Error()},
				Timestamp: time.Now(),
			})
		default:
			return nil, loadErr
		}

		report.Brands = next.NumBrands()
		report.Columns = next.NumColumns()
		if report.DryRun {
			return nil, nil
		}
		return next, nil
	})
	if err != nil {
		return err
	}
	report.Written = !report.DryRun
	return nil
}

// fetchAll 并发抓取，结果按 periods 下标返回
func (c *Coordinator) fetchAll(ctx context.Context, periods []model.Period) []fetchResult {
	results := make([]fetchResult, len(periods))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, p := range periods {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = fetchResult{err: err}
				return nil
			}
			results[i] = c.fetchOne(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Coordinator) fetchOne(ctx context.Context, p model.Period) fetchResult {
	raw, err := c.fetcher.Fetch(ctx, p)
	if err != nil {
		return fetchResult{err: err}
	}

	var res fetchResult
	for _, r := range raw {
		if r.Period != p {
			res.invalid++
			continue
		}
		if err := r.Validate(); err != nil {
			res.invalid++
			logrus.WithField("period", p.Key()).WithError(err).Debug("丢弃无效记录")
			continue
		}
		res.records = append(res.records, r)
	}
	if len(res.records) == 0 {
		res.err = ErrEmptyFetch
	}
	return res
}

// finish 记录运行结果、指标和汇总日志
func (c *Coordinator) finish(report *Report, err error, log *logrus.Entry) {
	status := store.RunStatusSucceeded
	switch {
	case err != nil:
		status = store.RunStatusFailed
	case report.DryRun:
		status = store.RunStatusDryRun
	}

	if c.runs != nil {
		result := store.RunResult{
			Status:         status,
			Succeeded:      report.SucceededCount(),
			Failed:         report.FailedCount(),
			FailedPeriods:  report.FailedKeys(),
			NewColumns:     len(report.NewColumns),
			NewBrands:      len(report.NewBrands),
			TotalBrands:    report.Brands,
			TotalColumns:   report.Columns,
			PriorDiscarded: report.PriorDataDiscarded,
		}
		if err != nil {
			result.ErrorMessage = err.Error()
		}
		if ferr := c.runs.FinishRun(report.RunID, result); ferr != nil {
			log.WithError(ferr).Warn("更新运行记录失败")
		}
	}

	c.metrics.ObserveRun(status, report.SucceededCount(), report.FailedCount())
	if report.Written {
		c.metrics.SetDataset(report.Brands, report.Columns)
	}

	entry := log.WithFields(logrus.Fields{
		"status":      status,
		"succeeded":   report.SucceededCount(),
		"failed":      report.FailedCount(),
		"new_columns": len(report.NewColumns),
		"brands":      report.Brands,
		"columns":     report.Columns,
		"duration":    report.Duration.String(),
	})
	if err != nil {
		entry.WithError(err).Error("采集失败")
		return
	}
	entry.Info("采集完成")
}

// sendProgress 发送进度事件（非阻塞）
func (c *Coordinator) sendProgress(ch chan ProgressEvent, event ProgressEvent) {
	if ch == nil {
		return
	}
	select {
	case ch <- event:
	default:
		// 通道已满，跳过
	}
}

// sendFinal 结束事件必须送达，除非调用方已放弃
func (c *Coordinator) sendFinal(ctx context.Context, ch chan ProgressEvent, event ProgressEvent) {
	select {
	case ch <- event:
	case <-ctx.Done():
	}
}

func dedupe(periods []model.Period) []model.Period {
	seen := make(map[model.Period]bool, len(periods))
	out := make([]model.Period, 0, len(periods))
	for _, p := range periods {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func keys(periods []model.Period) []string {
	out := make([]string, len(periods))
	for i, p := range periods {
		out[i] = p.Key()
	}
	return out
}
