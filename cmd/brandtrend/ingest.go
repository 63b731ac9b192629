package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"brandtrend/internal/importer"
	"brandtrend/internal/model"
)

type ingestOptions struct {
	from   string
	to     string
	dryRun bool
}

func newIngestCmd(root *rootOptions) *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "抓取月度品牌榜并合并进宽表",
		Example: `  brandtrend ingest
  brandtrend ingest --from 2025-1 --to 2025-6
  brandtrend ingest --from 2025-10 --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer a.close()

			rng, err := a.cfg.Ingest.Range(time.Now())
			if err != nil {
				return err
			}
			if rng, err = overrideRange(rng, opts); err != nil {
				return err
			}
			periods, err := rng.Periods()
			if err != nil {
				return err
			}

			coord, err := a.coordinator()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "采集范围: %s ~ %s (%d 个月)\n", rng.Start, rng.End, len(periods))
			report, runErr := coord.Run(cmd.Context(), importer.ImportOptions{
				Periods: periods,
				DryRun:  opts.dryRun,
			})
			printReport(out, report)
			return runErr
		},
	}

	cmd.Flags().StringVar(&opts.from, "from", "", "起始月份，如 2025-1 (默认取配置)")
	cmd.Flags().StringVar(&opts.to, "to", "", "结束月份，如 2025-6 (默认取配置或上一个完整月份)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "只抓取与合并，不写文件")
	return cmd
}

func overrideRange(rng model.PeriodRange, opts ingestOptions) (model.PeriodRange, error) {
	if opts.from != "" {
		p, err := model.ParsePeriod(opts.from)
		if err != nil {
			return rng, fmt.Errorf("--from: %w", err)
		}
		rng.Start = p
	}
	if opts.to != "" {
		p, err := model.ParsePeriod(opts.to)
		if err != nil {
			return rng, fmt.Errorf("--to: %w", err)
		}
		rng.End = p
	}
	return rng, nil
}

func printReport(out io.Writer, r *importer.Report) {
	if r == nil {
		return
	}
	fmt.Fprintf(out, "运行 ID: %s\n", r.RunID)
	fmt.Fprintf(out, "成功 %d 个月，失败 %d 个月，丢弃无效记录 %d 条\n", r.SucceededCount(), r.FailedCount(), r.InvalidRecords)
	for _, f := range r.Failed {
		fmt.Fprintf(out, "  %s 抓取失败: %s\n", f.Period, f.Error)
	}
	if len(r.NewColumns) > 0 {
		fmt.Fprintf(out, "新增列: %s\n", strings.Join(r.NewColumns, ", "))
	}
	if r.PriorDataDiscarded {
		fmt.Fprintln(out, "警告: 已有宽表无法解析，旧数据已被覆盖")
	}
	switch {
	case r.DryRun:
		fmt.Fprintf(out, "试运行: 合并后 %d 个品牌 × %d 列，未写入文件\n", r.Brands, r.Columns)
	case r.Written:
		fmt.Fprintf(out, "已保存: %d 个品牌 × %d 列 (耗时 %s)\n", r.Brands, r.Columns, r.Duration.Round(time.Millisecond))
	}
}
