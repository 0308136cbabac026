/*
 * @author: Sun977
 * @date: 2026.02.10
 * @description: Cobra Root Command 定义
 */

package main

import (
	"fmt"
	"io"
	"os"

	"neorecon/internal/config"
	"neorecon/internal/pkg/logger"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	appConfig *config.Config
	watcher   *config.ConfigWatcher
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "neorecon",
	Short: "NeoRecon SSH/RDP 服务发现与弱口令验证工具",
	Long: `NeoRecon 对 IP/CIDR/范围目标做并发 TCP 探测，
识别 SSH 版本行与 RDP 连接确认，并可选地验证 SSH 弱口令。

示例:
  1.扫描一个网段的默认端口 (22,3389)
	neorecon scan -t 192.168.1.0/24
  2.通过 SOCKS5 代理扫描并导出结果
	neorecon scan -t 10.0.0.1-50 --proxy socks5://127.0.0.1:1080 --oc out.csv
  3.开启凭据验证 (内置字典)
	neorecon scan -t 10.0.0.5 --credentials --default-dict
`,
	SilenceUsage: true,
	// PersistentPreRunE: 全局初始化逻辑，确保所有子命令都能使用配置与日志
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.NewEnvLoader().Load(); err != nil {
			return err
		}

		loader := config.NewConfigLoader(cfgFile, config.DefaultEnvPrefix)
		cfg, err := loader.LoadConfig()
		if err != nil {
			return err
		}
		appConfig = cfg

		initCLILogger(cmd, cfg.Log)

		if path := loader.GetConfigPath(); path != "" {
			startConfigWatcher(cmd, path)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if watcher != nil {
			watcher.Stop()
		}
	},
}

func Execute() {
	// 全局 Panic Recovery
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n[FATAL] neorecon crashed unexpectedly: %v\n", r)
			os.Exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// 全局 Flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认: ./configs/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "日志级别 (debug, info, warn, error)")

	// 注册子命令
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(versionCmd)
}

// effectiveLogConfig CLI 模式下的日志配置
// 输出到终端时默认只记录 warn 以上，避免与 pterm 输出重复；--log-level 显式指定时优先
func effectiveLogConfig(cmd *cobra.Command, base *config.LogConfig) *config.LogConfig {
	lc := *base
	if flag := cmd.Flags().Lookup("log-level"); flag != nil && flag.Changed {
		lc.Level = flag.Value.String()
	} else if lc.Output != "file" {
		lc.Level = "warn"
	}
	return &lc
}

// initCLILogger 初始化 CLI 模式下的日志，并让 pterm 的输出级别跟随 --log-level
func initCLILogger(cmd *cobra.Command, base *config.LogConfig) {
	lc := effectiveLogConfig(cmd, base)

	level := ""
	if flag := cmd.Flags().Lookup("log-level"); flag != nil && flag.Changed {
		level = flag.Value.String()
	}
	switch level {
	case "debug":
		pterm.EnableDebugMessages()
	case "warn", "error", "fatal":
		pterm.DisableDebugMessages()
		pterm.Info = *pterm.Info.WithWriter(io.Discard)
	default:
		pterm.DisableDebugMessages()
	}

	if _, err := logger.InitLogger(lc); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
	}
}

// startConfigWatcher 配置文件变更时热更新日志配置
func startConfigWatcher(cmd *cobra.Command, path string) {
	w, err := config.NewConfigWatcher(path)
	if err != nil {
		logger.Warnf("Config watcher disabled: %v", err)
		return
	}
	w.OnError(func(err error) {
		logger.Warnf("Config reload failed: %v", err)
	})
	w.AddCallback(func(oldConfig, newConfig *config.Config) error {
		if logger.LoggerInstance == nil {
			return nil
		}
		return logger.LoggerInstance.UpdateConfig(effectiveLogConfig(cmd, newConfig.Log))
	})
	if err := w.Start(); err != nil {
		w.Stop()
		logger.Warnf("Config watcher disabled: %v", err)
		return
	}
	watcher = w
}
