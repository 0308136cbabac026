package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultEnvPrefix 环境变量前缀
const DefaultEnvPrefix = "NEORECON"

// ConfigLoader 配置加载器
// 优先级: 环境变量 > 配置文件 > 默认值
type ConfigLoader struct {
	configPath string // 配置文件或所在目录
	envPrefix  string
	viper      *viper.Viper
}

// NewConfigLoader 创建配置加载器
func NewConfigLoader(configPath, envPrefix string) *ConfigLoader {
	if envPrefix == "" {
		envPrefix = DefaultEnvPrefix
	}

	return &ConfigLoader{
		configPath: configPath,
		envPrefix:  envPrefix,
		viper:      viper.New(),
	}
}

// LoadConfig 加载配置
func (cl *ConfigLoader) LoadConfig() (*Config, error) {
	cl.viper.SetConfigType("yaml")

	cl.viper.SetEnvPrefix(cl.envPrefix)
	cl.viper.AutomaticEnv()
	cl.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cl.bindEnvVars()
	cl.setDefaults()

	if err := cl.loadConfigFile(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	var config Config
	if err := cl.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// loadConfigFile 加载配置文件
// 显式指定的文件必须存在；按目录搜索时找不到文件则只用默认值和环境变量
func (cl *ConfigLoader) loadConfigFile() error {
	if cl.configPath == "" {
		if envPath := os.Getenv(cl.envPrefix + "_CONFIG_PATH"); envPath != "" {
			cl.configPath = envPath
		}
	}

	if cl.configPath != "" {
		if info, err := os.Stat(cl.configPath); err == nil && !info.IsDir() {
			cl.viper.SetConfigFile(cl.configPath)
			return cl.viper.ReadInConfig()
		} else if err != nil {
			return fmt.Errorf("config path %s: %w", cl.configPath, err)
		}
		cl.viper.AddConfigPath(cl.configPath)
	}
	cl.viper.AddConfigPath("./configs")
	cl.viper.AddConfigPath(".")

	// 先尝试环境特定的配置文件 config.<env>.yaml，再回退到 config.yaml
	cl.viper.SetConfigName(fmt.Sprintf("config.%s", cl.getEnvironment()))
	err := cl.viper.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) {
		return err
	}

	cl.viper.SetConfigName("config")
	if err := cl.viper.ReadInConfig(); err != nil {
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// getEnvironment 获取运行环境
func (cl *ConfigLoader) getEnvironment() string {
	env := os.Getenv(cl.envPrefix + "_ENV")
	if env == "" {
		env = os.Getenv("GO_ENV")
	}
	if env == "" {
		env = "development"
	}
	return env
}

// bindEnvVars 绑定环境变量
func (cl *ConfigLoader) bindEnvVars() {
	p := cl.envPrefix

	// App配置
	cl.viper.BindEnv("app.environment", p+"_APP_ENVIRONMENT")
	cl.viper.BindEnv("app.debug", p+"_APP_DEBUG")

	// 日志配置
	cl.viper.BindEnv("log.level", p+"_LOG_LEVEL")
	cl.viper.BindEnv("log.format", p+"_LOG_FORMAT")
	cl.viper.BindEnv("log.output", p+"_LOG_OUTPUT")
	cl.viper.BindEnv("log.file_path", p+"_LOG_FILE_PATH")

	// 扫描配置
	cl.viper.BindEnv("scan.ports", p+"_SCAN_PORTS")
	cl.viper.BindEnv("scan.timeout", p+"_SCAN_TIMEOUT")
	cl.viper.BindEnv("scan.max_concurrent", p+"_SCAN_MAX_CONCURRENT")
	cl.viper.BindEnv("scan.delay_between_hosts", p+"_SCAN_DELAY_BETWEEN_HOSTS")

	// 出口配置
	cl.viper.BindEnv("dialer.proxy", p+"_DIALER_PROXY")
}

// setDefaults 设置默认值
func (cl *ConfigLoader) setDefaults() {
	def := DefaultConfig()

	// App默认值
	cl.viper.SetDefault("app.name", def.App.Name)
	cl.viper.SetDefault("app.environment", def.App.Environment)
	cl.viper.SetDefault("app.debug", def.App.Debug)

	// 日志默认值
	cl.viper.SetDefault("log.level", def.Log.Level)
	cl.viper.SetDefault("log.format", def.Log.Format)
	cl.viper.SetDefault("log.output", def.Log.Output)
	cl.viper.SetDefault("log.file_path", def.Log.FilePath)
	cl.viper.SetDefault("log.max_size", def.Log.MaxSize)
	cl.viper.SetDefault("log.max_backups", def.Log.MaxBackups)
	cl.viper.SetDefault("log.max_age", def.Log.MaxAge)
	cl.viper.SetDefault("log.compress", def.Log.Compress)
	cl.viper.SetDefault("log.caller", def.Log.Caller)

	// 扫描默认值
	cl.viper.SetDefault("scan.ports", def.Scan.Ports)
	cl.viper.SetDefault("scan.timeout", def.Scan.Timeout.String())
	cl.viper.SetDefault("scan.max_concurrent", def.Scan.MaxConcurrent)
	cl.viper.SetDefault("scan.delay_between_hosts", def.Scan.DelayBetweenHosts.String())
	cl.viper.SetDefault("scan.grab_banner", def.Scan.GrabBanner)
	cl.viper.SetDefault("scan.fingerprint", def.Scan.Fingerprint)
	cl.viper.SetDefault("scan.test_credentials", def.Scan.TestCredentials)
	cl.viper.SetDefault("scan.usernames", []string{})
	cl.viper.SetDefault("scan.passwords", []string{})
	cl.viper.SetDefault("scan.stop_on_valid", def.Scan.StopOnValid)
	cl.viper.SetDefault("scan.adaptive_concurrency", def.Scan.AdaptiveConcurrency)
	cl.viper.SetDefault("scan.progress_interval", def.Scan.ProgressInterval)

	// 出口默认值
	cl.viper.SetDefault("dialer.proxy", "")
	cl.viper.SetDefault("dialer.timeout", def.Dialer.Timeout.String())
}

// GetConfigPath 获取实际使用的配置文件路径 (未读取文件时为空)
func (cl *ConfigLoader) GetConfigPath() string {
	return cl.viper.ConfigFileUsed()
}

// LoadConfig 加载配置 (路径为空时按默认目录搜索)
func LoadConfig(configPath string) (*Config, error) {
	return NewConfigLoader(configPath, DefaultEnvPrefix).LoadConfig()
}

// LoadConfigFromFile 从指定文件加载配置
func LoadConfigFromFile(configFile string) (*Config, error) {
	abs, err := filepath.Abs(configFile)
	if err != nil {
		return nil, err
	}
	return NewConfigLoader(abs, DefaultEnvPrefix).LoadConfig()
}
