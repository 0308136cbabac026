/**
 * 扫描器配置管理
 * @author: sun977
 * @date: 2026.02.10
 * @description: 配置结构定义、默认配置与 ScanConfig 转换
 */
package config

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"neorecon/internal/core/model"
)

// Config 全局配置
type Config struct {
	// 应用配置
	App *AppConfig `yaml:"app" mapstructure:"app"`

	// 日志配置
	Log *LogConfig `yaml:"log" mapstructure:"log"`

	// 扫描默认参数 (CLI 参数可覆盖)
	Scan *ScanSection `yaml:"scan" mapstructure:"scan"`

	// 出口配置
	Dialer *DialerConfig `yaml:"dialer" mapstructure:"dialer"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`               // 应用名称
	Environment string `yaml:"environment" mapstructure:"environment"` // 运行环境
	Debug       bool   `yaml:"debug" mapstructure:"debug"`             // 调试模式
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`             // 日志级别 (debug/info/warn/error)
	Format     string `yaml:"format" mapstructure:"format"`           // 日志格式 (json/text)
	Output     string `yaml:"output" mapstructure:"output"`           // 日志输出 (stdout/stderr/file)
	FilePath   string `yaml:"file_path" mapstructure:"file_path"`     // 日志文件路径
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`       // 最大文件大小（MB）
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"` // 最大备份数
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`         // 最大保留天数
	Compress   bool   `yaml:"compress" mapstructure:"compress"`       // 是否压缩
	Caller     bool   `yaml:"caller" mapstructure:"caller"`           // 是否显示调用者信息
}

// ScanSection 扫描默认参数
type ScanSection struct {
	Ports               []int         `yaml:"ports" mapstructure:"ports"`
	Timeout             time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxConcurrent       int           `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	DelayBetweenHosts   time.Duration `yaml:"delay_between_hosts" mapstructure:"delay_between_hosts"`
	GrabBanner          bool          `yaml:"grab_banner" mapstructure:"grab_banner"`
	Fingerprint         bool          `yaml:"fingerprint" mapstructure:"fingerprint"`
	TestCredentials     bool          `yaml:"test_credentials" mapstructure:"test_credentials"`
	Usernames           []string      `yaml:"usernames" mapstructure:"usernames"`
	Passwords           []string      `yaml:"passwords" mapstructure:"passwords"`
	StopOnValid         bool          `yaml:"stop_on_valid" mapstructure:"stop_on_valid"`
	AdaptiveConcurrency bool          `yaml:"adaptive_concurrency" mapstructure:"adaptive_concurrency"`
	ProgressInterval    int           `yaml:"progress_interval" mapstructure:"progress_interval"`
}

// DialerConfig 出口配置
type DialerConfig struct {
	Proxy   string        `yaml:"proxy" mapstructure:"proxy"`     // socks5://[user:pass@]host:port，为空则直连
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"` // 拨号器自身的超时上限
}

// DefaultConfig 默认配置
// 与 ConfigLoader.setDefaults 保持一致
func DefaultConfig() *Config {
	sc := model.NewScanConfig()
	return &Config{
		App: &AppConfig{
			Name:        "NeoRecon",
			Environment: "development",
		},
		Log: &LogConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   "./logs/neorecon.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		},
		Scan: &ScanSection{
			Ports:               sc.Ports,
			Timeout:             sc.Timeout,
			MaxConcurrent:       sc.MaxConcurrent,
			DelayBetweenHosts:   sc.DelayBetweenHosts,
			GrabBanner:          sc.GrabBanner,
			Fingerprint:         sc.Fingerprint,
			TestCredentials:     sc.TestCredentials,
			StopOnValid:         sc.StopOnValid,
			AdaptiveConcurrency: sc.AdaptiveConcurrency,
			ProgressInterval:    sc.ProgressInterval,
		},
		Dialer: &DialerConfig{
			Timeout: sc.Timeout,
		},
	}
}

// ToScanConfig 转换为一次扫描的 ScanConfig (目标由调用方填充)
func (s *ScanSection) ToScanConfig() *model.ScanConfig {
	cfg := model.NewScanConfig()
	if s == nil {
		return cfg
	}
	if len(s.Ports) > 0 {
		cfg.Ports = append([]int(nil), s.Ports...)
	}
	cfg.Timeout = s.Timeout
	cfg.MaxConcurrent = s.MaxConcurrent
	cfg.DelayBetweenHosts = s.DelayBetweenHosts
	cfg.GrabBanner = s.GrabBanner
	cfg.Fingerprint = s.Fingerprint
	cfg.TestCredentials = s.TestCredentials
	cfg.Usernames = append([]string(nil), s.Usernames...)
	cfg.Passwords = append([]string(nil), s.Passwords...)
	cfg.StopOnValid = s.StopOnValid
	cfg.AdaptiveConcurrency = s.AdaptiveConcurrency
	cfg.ProgressInterval = s.ProgressInterval
	return cfg
}

// Validate 校验整体配置
func (c *Config) Validate() error {
	if c.Log == nil || c.Scan == nil || c.Dialer == nil {
		return fmt.Errorf("config sections log, scan and dialer are required")
	}
	switch c.Log.Output {
	case "stdout", "stderr":
	case "file":
		if c.Log.FilePath == "" {
			return fmt.Errorf("log.file_path is required when log.output is file")
		}
	default:
		return fmt.Errorf("unsupported log output: %s", c.Log.Output)
	}
	if c.Dialer.Timeout < 0 {
		return fmt.Errorf("invalid dialer timeout: %v", c.Dialer.Timeout)
	}
	if err := c.Scan.ToScanConfig().Validate(); err != nil {
		return fmt.Errorf("scan section: %w", err)
	}
	return nil
}

// WriteDefaultConfig 写出一份默认配置 (YAML)
func WriteDefaultConfig(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(DefaultConfig()); err != nil {
		return fmt.Errorf("failed to encode default config: %w", err)
	}
	return enc.Close()
}
