package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	dataDir    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "brandtrend",
		Short:         "汽车品牌月度销量采集与趋势查询",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "配置文件路径 (默认: 可执行文件同目录下的 config.toml)")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "dataDir", "", "数据目录 (覆盖配置文件)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "日志级别 debug/info/warn/error (覆盖配置文件)")

	cmd.AddCommand(
		newServeCmd(opts),
		newIngestCmd(opts),
		newQueryCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		stop()
		os.Exit(1)
	}
}
