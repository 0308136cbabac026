package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefaultConfig_ToScanConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	sc := cfg.Scan.ToScanConfig()
	assert.Equal(t, []int{22, 3389}, sc.Ports)
	assert.Equal(t, 3*time.Second, sc.Timeout)
	assert.Equal(t, 100, sc.MaxConcurrent)
	assert.True(t, sc.GrabBanner)
	assert.True(t, sc.StopOnValid)
	assert.False(t, sc.TestCredentials)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "neorecon.yaml")
	writeFile(t, path, `
log:
  level: debug
  output: stdout
scan:
  ports: [22, 2222]
  timeout: 1500ms
  max_concurrent: 16
  delay_between_hosts: 10ms
  test_credentials: true
  usernames: [root, admin]
  passwords: ["%user%", "123456"]
dialer:
  proxy: socks5://127.0.0.1:1080
`)

	cfg, err := LoadConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format) // 默认值
	assert.Equal(t, []int{22, 2222}, cfg.Scan.Ports)
	assert.Equal(t, 1500*time.Millisecond, cfg.Scan.Timeout)
	assert.Equal(t, 16, cfg.Scan.MaxConcurrent)
	assert.Equal(t, 10*time.Millisecond, cfg.Scan.DelayBetweenHosts)
	assert.Equal(t, []string{"root", "admin"}, cfg.Scan.Usernames)
	assert.Equal(t, "socks5://127.0.0.1:1080", cfg.Dialer.Proxy)
	assert.True(t, cfg.Scan.GrabBanner)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), "scan:\n  max_concurrent: 16\n")

	t.Setenv("NEORECON_SCAN_MAX_CONCURRENT", "8")
	t.Setenv("NEORECON_LOG_LEVEL", "warn")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Scan.MaxConcurrent)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfig_EnvironmentSpecificFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), "scan:\n  max_concurrent: 16\n")
	writeFile(t, filepath.Join(dir, "config.testing.yaml"), "scan:\n  max_concurrent: 4\n")
	t.Setenv("NEORECON_ENV", "testing")

	loader := NewConfigLoader(dir, "")
	cfg, err := loader.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Scan.MaxConcurrent)
	assert.Equal(t, filepath.Join(dir, "config.testing.yaml"), loader.GetConfigPath())
}

func TestLoadConfig_NoFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Scan.MaxConcurrent)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	writeFile(t, path, "scan:\n  max_concurrent: 0\n")

	_, err := LoadConfigFromFile(path)
	assert.Error(t, err)

	_, err = LoadConfigFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestWriteDefaultConfig_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDefaultConfig(&buf))
	assert.Contains(t, buf.String(), "max_concurrent: 100")
	assert.Contains(t, buf.String(), "timeout: 3s")

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, buf.String())
	cfg, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Scan.ToScanConfig(), cfg.Scan.ToScanConfig())
}

func TestEnvLoader(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	writeFile(t, envFile, "NEORECON_TEST_USERS=root, admin ,\nNEORECON_TEST_TIMEOUT=2s\n")
	t.Cleanup(func() {
		os.Unsetenv("NEORECON_TEST_USERS")
		os.Unsetenv("NEORECON_TEST_TIMEOUT")
	})

	l := NewEnvLoader(envFile, filepath.Join(dir, "missing.env"))
	require.NoError(t, l.Load())
	assert.Equal(t, []string{envFile}, l.Loaded())
	assert.Equal(t, []string{"root", "admin"}, l.GetStringSlice("NEORECON_TEST_USERS", nil))
	assert.Equal(t, 2*time.Second, l.GetDuration("NEORECON_TEST_TIMEOUT", time.Second))
	assert.Equal(t, "x", l.GetString("NEORECON_TEST_UNSET", "x"))
	assert.True(t, l.GetBool("NEORECON_TEST_UNSET", true))
}

func TestConfigWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "log:\n  level: info\n")

	changed := make(chan string, 1)
	w, err := NewConfigWatcher(path)
	require.NoError(t, err)
	w.SetReloadDelay(20 * time.Millisecond)
	w.AddCallback(func(oldConfig, newConfig *Config) error {
		select {
		case changed <- newConfig.Log.Level:
		default:
		}
		return nil
	})
	require.NoError(t, w.Start())
	defer w.Stop()

	writeFile(t, path, "log:\n  level: debug\n")

	select {
	case level := <-changed:
		assert.Equal(t, "debug", level)
	case <-time.After(5 * time.Second):
		t.Fatal("config change not observed")
	}
	assert.Eventually(t, func() bool {
		return w.GetConfig().Log.Level == "debug"
	}, time.Second, 10*time.Millisecond)
}
