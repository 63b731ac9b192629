package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"brandtrend/internal/config"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "配置文件管理",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "写出默认配置文件",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := root.configPath
			if path == "" {
				path = config.DefaultConfigPath()
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s 已存在，使用 --force 覆盖", path)
			}
			if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已写入 %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "覆盖已有文件")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "打印生效的配置（含环境变量覆盖）",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(root.configPath)
			if err != nil {
				return err
			}
			data, err := toml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
