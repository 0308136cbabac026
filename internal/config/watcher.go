package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher 配置文件监听器
// 使用 fsnotify 监听配置文件，变更后 (防抖) 重新加载并通过回调通知
// 扫描参数只在每次 Scan 开始时读取，运行中的扫描不受影响
type ConfigWatcher struct {
	configPath  string
	config      *Config
	loader      *ConfigLoader
	watcher     *fsnotify.Watcher
	callbacks   []ConfigChangeCallback
	onError     func(error)
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	reloadDelay time.Duration
	timer       *time.Timer
	timerMu     sync.Mutex
}

// ConfigChangeCallback 配置变更回调函数
type ConfigChangeCallback func(oldConfig, newConfig *Config) error

// NewConfigWatcher 创建配置监听器
func NewConfigWatcher(configPath string) (*ConfigWatcher, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is empty")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &ConfigWatcher{
		configPath:  configPath,
		loader:      NewConfigLoader(configPath, DefaultEnvPrefix),
		watcher:     watcher,
		ctx:         ctx,
		cancel:      cancel,
		reloadDelay: 500 * time.Millisecond,
		onError:     func(error) {},
	}, nil
}

// SetReloadDelay 设置防抖延迟
func (cw *ConfigWatcher) SetReloadDelay(d time.Duration) {
	cw.reloadDelay = d
}

// OnError 设置重载失败的处理函数
func (cw *ConfigWatcher) OnError(fn func(error)) {
	if fn != nil {
		cw.onError = fn
	}
}

// Start 启动配置监听
func (cw *ConfigWatcher) Start() error {
	config, err := cw.loader.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load initial config: %w", err)
	}

	cw.mu.Lock()
	cw.config = config
	cw.mu.Unlock()

	configFile := cw.loader.GetConfigPath()
	if configFile == "" {
		return fmt.Errorf("no config file found under %s", cw.configPath)
	}

	if err := cw.watcher.Add(configFile); err != nil {
		return fmt.Errorf("failed to watch config file %s: %w", configFile, err)
	}

	go cw.watchLoop()

	return nil
}

// Stop 停止配置监听
func (cw *ConfigWatcher) Stop() error {
	cw.cancel()
	cw.timerMu.Lock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timerMu.Unlock()
	return cw.watcher.Close()
}

// GetConfig 获取当前配置
func (cw *ConfigWatcher) GetConfig() *Config {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.config
}

// AddCallback 添加配置变更回调
func (cw *ConfigWatcher) AddCallback(callback ConfigChangeCallback) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

func (cw *ConfigWatcher) watchLoop() {
	for {
		select {
		case <-cw.ctx.Done():
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handleFileEvent(event)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.onError(fmt.Errorf("config watcher: %w", err))
		}
	}
}

// handleFileEvent 写入/创建事件触发一次防抖后的重载
func (cw *ConfigWatcher) handleFileEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	cw.timerMu.Lock()
	defer cw.timerMu.Unlock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(cw.reloadDelay, func() {
		if cw.ctx.Err() != nil {
			return
		}
		if err := cw.reloadConfig(); err != nil {
			cw.onError(err)
		}
	})
}

// reloadConfig 重新加载配置，任一回调失败则保留旧配置
func (cw *ConfigWatcher) reloadConfig() error {
	newConfig, err := NewConfigLoader(cw.configPath, DefaultEnvPrefix).LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}

	cw.mu.RLock()
	oldConfig := cw.config
	callbacks := append([]ConfigChangeCallback(nil), cw.callbacks...)
	cw.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback(oldConfig, newConfig); err != nil {
			return fmt.Errorf("config change callback failed: %w", err)
		}
	}

	cw.mu.Lock()
	cw.config = newConfig
	cw.mu.Unlock()
	return nil
}

// WatchConfig 监听配置变更（便捷函数）
func WatchConfig(configPath string, callback ConfigChangeCallback) (*ConfigWatcher, error) {
	watcher, err := NewConfigWatcher(configPath)
	if err != nil {
		return nil, err
	}

	if callback != nil {
		watcher.AddCallback(callback)
	}

	if err := watcher.Start(); err != nil {
		watcher.Stop()
		return nil, err
	}

	return watcher, nil
}
