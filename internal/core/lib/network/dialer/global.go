package dialer

import (
	"sync"
	"time"
)

// 全局拨号器
// 进程启动时由 CLI 根据配置设置一次 (直连或 SOCKS5)，库代码通过 WithDialer 显式注入
var (
	globalMu     sync.RWMutex
	globalDialer Dialer = NewDefaultDialer(3 * time.Second)
)

// SetGlobalDialer 设置全局拨号器 (例如配置了全局代理时)
func SetGlobalDialer(d Dialer) {
	if d == nil {
		return
	}
	globalMu.Lock()
	globalDialer = d
	globalMu.Unlock()
}

// Get 获取全局拨号器
func Get() Dialer {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalDialer
}

// FromConfig 按配置构建拨号器: proxy 为空时直连
func FromConfig(proxyAddr string, timeout time.Duration) (Dialer, error) {
	if proxyAddr == "" {
		return NewDefaultDialer(timeout), nil
	}
	return NewProxyDialer(proxyAddr, timeout)
}
