package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"brandtrend/internal/api"
	"brandtrend/internal/model"
	"brandtrend/internal/server"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		port    int
		devMode bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("==========================================")
			fmt.Println("  BrandTrend - 汽车品牌销量趋势")
			fmt.Println("==========================================")

			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer a.close()

			// 命令行参数覆盖配置
			if port > 0 && !a.info.PortSpecified {
				a.cfg.Server.Port = port
			}
			if devMode {
				a.cfg.Server.DevMode = true
			}
			fmt.Printf("数据文件: %s\n", a.dataset.Path())

			coord, err := a.coordinator()
			if err != nil {
				if !errors.Is(err, errNoSource) {
					return err
				}
				logrus.Warn("未配置数据源，/api/ingest 不可用")
			}

			granularity, _ := model.ParseGranularity(a.cfg.Query.DefaultGranularity)
			handler := api.NewHandler(api.Deps{
				Dataset:  a.dataset,
				Store:    a.store,
				Importer: coord,
				Metrics:  a.metrics,
				Defaults: api.Defaults{
					Brands:      a.cfg.Query.DefaultBrands,
					Granularity: granularity,
				},
				DefaultRange: func() (model.PeriodRange, error) {
					return a.cfg.Ingest.Range(time.Now())
				},
			})
			srv := server.NewServer(handler, a.metrics, a.cfg.Server.DevMode)

			addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
			fmt.Printf("服务启动中，监听端口 %d ...\n", a.cfg.Server.Port)
			fmt.Printf("请访问 http://localhost:%d/api/status\n", a.cfg.Server.Port)
			fmt.Println("\n按 Ctrl+C 停止服务...")

			if err := srv.Run(cmd.Context(), addr); err != nil {
				return fmt.Errorf("服务启动失败: %w", err)
			}
			fmt.Println("\n服务已停止")
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "服务端口 (config.toml 优先；仅当未显式配置 port 时生效)")
	cmd.Flags().BoolVar(&devMode, "dev", false, "开发模式")
	return cmd
}
