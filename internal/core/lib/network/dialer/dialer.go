package dialer

import (
	"context"
	"net"
	"time"
)

// Dialer 定义了网络连接器接口
// 探测器与凭据验证共用同一个 Dialer，保证出口 (直连/代理) 一致
type Dialer interface {
	// DialContext 建立连接
	// network: 协议 (tcp)
	// address: 目标地址 (ip:port)
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DialerFunc 将普通函数适配为 Dialer (测试中用于注入错误)
type DialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f DialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// DefaultDialer 默认直连拨号器
type DefaultDialer struct {
	Timeout   time.Duration
	LocalAddr net.Addr // 可选，指定出口地址
}

func NewDefaultDialer(timeout time.Duration) *DefaultDialer {
	return &DefaultDialer{
		Timeout: timeout,
	}
}

func (d *DefaultDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout:   d.Timeout,
		LocalAddr: d.LocalAddr,
	}
	return dialer.DialContext(ctx, network, address)
}
