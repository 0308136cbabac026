package main

import (
	"fmt"
	"os"
	"path/filepath"

	"neorecon/internal/config"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "配置文件管理",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "生成默认配置文件",
		Args:  cobra.MaximumNArgs(1),
		// 生成配置不依赖现有配置
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join("configs", "config.yaml")
			if len(args) == 1 {
				path = args[0]
			}
			if path == "-" {
				return config.WriteDefaultConfig(os.Stdout)
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("failed to create config dir: %w", err)
			}
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}
			defer f.Close()
			if err := config.WriteDefaultConfig(f); err != nil {
				return err
			}
			pterm.Success.Printfln("Default config written to %s", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "覆盖已存在的文件")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "显示生效的配置 (默认值 + 配置文件 + 环境变量)",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(appConfig); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			return enc.Close()
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
