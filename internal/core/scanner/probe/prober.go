// Package probe 单次 TCP 建连探测
// 把建连结果归类为 open/closed/filtered/error，任何失败都不越过本包边界
package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"

	"neorecon/internal/core/lib/network/dialer"
	"neorecon/internal/core/model"
)

// TimeoutText 建连超时时写入结果的错误描述
const TimeoutText = "connection timeout"

// Prober 建连探测器
type Prober struct {
	dialer dialer.Dialer
}

// NewProber 使用给定拨号器创建探测器，nil 时使用全局拨号器
func NewProber(d dialer.Dialer) *Prober {
	if d == nil {
		d = dialer.Get()
	}
	return &Prober{dialer: d}
}

// Probe 在 timeout 内尝试建立 TCP 连接
// 只有 open 时返回 conn，由调用方负责关闭
func (p *Prober) Probe(ctx context.Context, address string, port int, timeout time.Duration) (status model.ScanStatus, errText string, conn net.Conn) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := p.dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err == nil {
		return model.StatusOpen, "", conn
	}

	status, errText = Classify(err)
	// 调用方取消 (而非超时) 时不归为 filtered
	if status == model.StatusFiltered && ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return model.StatusError, ctx.Err().Error(), nil
	}
	return status, errText, nil
}

// Classify 将拨号错误归类
func Classify(err error) (model.ScanStatus, string) {
	if err == nil {
		return model.StatusOpen, ""
	}
	if isRefused(err) {
		return model.StatusClosed, ""
	}
	if isTimeout(err) {
		return model.StatusFiltered, TimeoutText
	}
	return model.StatusError, err.Error()
}

func isRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	// Windows 上为 WSAECONNREFUSED，只能匹配文本
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "actively refused")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
