package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvLoader .env 文件加载器
// 已存在的环境变量不会被 .env 覆盖
type EnvLoader struct {
	envFiles []string
	loaded   []string
}

// NewEnvLoader 创建 .env 加载器，未指定文件时加载当前目录的 .env
func NewEnvLoader(envFiles ...string) *EnvLoader {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	return &EnvLoader{envFiles: envFiles}
}

// Load 依次加载 .env 文件，不存在的文件跳过
func (e *EnvLoader) Load() error {
	for _, f := range e.envFiles {
		if err := e.loadEnvFile(f); err != nil {
			return err
		}
	}
	return nil
}

func (e *EnvLoader) loadEnvFile(envFile string) error {
	if _, err := os.Stat(envFile); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}
	e.loaded = append(e.loaded, envFile)
	return nil
}

// Loaded 实际加载过的文件
func (e *EnvLoader) Loaded() []string {
	return e.loaded
}

// GetString 获取字符串类型环境变量
func (e *EnvLoader) GetString(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultValue
}

// GetBool 获取布尔类型环境变量
func (e *EnvLoader) GetBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

// GetDuration 获取时间间隔类型环境变量
func (e *EnvLoader) GetDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return d
}

// GetStringSlice 逗号分隔的字符串列表
func (e *EnvLoader) GetStringSlice(key string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
