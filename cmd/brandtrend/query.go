package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"brandtrend/internal/dataset"
	"brandtrend/internal/model"
	"brandtrend/internal/trend"
)

type queryOptions struct {
	brands      []string
	granularity string
	from        string
	to          string
	asJSON      bool
}

func newQueryCmd(root *rootOptions) *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query",
		Short: "查询品牌销量趋势",
		Example: `  brandtrend query --brand 大众 --brand 丰田
  brandtrend query --brand 理想 --granularity yearly --from 2022 --to 2025`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer a.close()

			brands := opts.brands
			if !cmd.Flags().Changed("brand") {
				brands = a.cfg.Query.DefaultBrands
			}
			g := opts.granularity
			if g == "" {
				g = a.cfg.Query.DefaultGranularity
			}
			granularity, err := model.ParseGranularity(g)
			if err != nil {
				return err
			}
			start, err := trend.ParseYear(opts.from)
			if err != nil {
				return err
			}
			end, err := trend.ParseYear(opts.to)
			if err != nil {
				return err
			}

			m, err := a.dataset.Load()
			if errors.Is(err, dataset.ErrNotFound) {
				return fmt.Errorf("%w: 请先运行 brandtrend ingest", err)
			}
			if err != nil {
				return err
			}
			res, err := trend.Query(m, trend.Request{
				Brands:      brands,
				Granularity: granularity,
				YearStart:   start,
				YearEnd:     end,
			})
			if err != nil {
				return err
			}

			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			return writeTable(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringArrayVar(&opts.brands, "brand", nil, "品牌，可重复 (默认取配置)")
	cmd.Flags().StringVar(&opts.granularity, "granularity", "", "monthly 或 yearly")
	cmd.Flags().StringVar(&opts.from, "from", "", "起始年份 (默认数据中的最小年份)")
	cmd.Flags().StringVar(&opts.to, "to", "", "结束年份 (默认数据中的最大年份)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "输出 JSON")
	return cmd
}

func writeTable(out io.Writer, res *trend.Result) error {
	if res.NoBrandSelected {
		_, err := fmt.Fprintln(out, "请选择至少一个品牌")
		return err
	}
	if res.HasRange {
		fmt.Fprintf(out, "范围: %d ~ %d\n", res.Range.Start, res.Range.End)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "品牌\t时间\t销量")
	for row := range res.Rows() {
		label := strconv.Itoa(row.Year)
		if res.Granularity == model.Monthly {
			label = row.Period.Key()
		}
		sales := "-"
		if row.Sales != nil {
			sales = strconv.FormatFloat(*row.Sales, 'f', -1, 64)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", row.Brand, label, sales)
	}
	return tw.Flush()
}

func writeJSON(out io.Writer, res *trend.Result) error {
	type series struct {
		Brand string      `json:"brand"`
		Rows  []trend.Row `json:"rows"`
	}
	payload := struct {
		*trend.Result
		Series []series `json:"series"`
	}{Result: res, Series: []series{}}

	for brand, rows := range res.Series() {
		s := series{Brand: brand, Rows: []trend.Row{}}
		for row := range rows {
			s.Rows = append(s.Rows, row)
		}
		payload.Series = append(payload.Series, s)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
