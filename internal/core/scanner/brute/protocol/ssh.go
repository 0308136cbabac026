package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/ssh"

	"neorecon/internal/core/lib/network/dialer"
	"neorecon/internal/core/scanner/brute"
)

// defaultCheckTimeout ctx 没有截止时间时单次尝试的上限
const defaultCheckTimeout = 5 * time.Second

// SSHCracker 实现 SSH 口令认证
type SSHCracker struct {
	dialer dialer.Dialer
}

// NewSSHCracker 创建 SSH 适配器，连接通过给定拨号器建立 (nil 时使用全局拨号器)
func NewSSHCracker(d dialer.Dialer) *SSHCracker {
	if d == nil {
		d = dialer.Get()
	}
	return &SSHCracker{dialer: d}
}

// Name 返回协议名称
func (c *SSHCracker) Name() string {
	return "ssh"
}

// Mode 返回认证模式 (需要用户名和密码)
func (c *SSHCracker) Mode() brute.AuthMode {
	return brute.AuthModeUserPass
}

// Check 验证 SSH 凭据
func (c *SSHCracker) Check(ctx context.Context, host string, port int, auth brute.Auth) (bool, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultCheckTimeout)
	}

	config := &ssh.ClientConfig{
		User: auth.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(auth.Password),
		},
		// 扫描未知主机，不校验 HostKey
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         time.Until(deadline),
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))

	// 1. 建立 TCP 连接 (受 ctx 控制，与探测使用同一出口)
	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false, c.handleError(err)
	}
	defer conn.Close()

	// 2. 握手与认证受同一截止时间约束
	conn.SetDeadline(deadline)

	cConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		return false, c.handleError(err)
	}
	ssh.NewClient(cConn, chans, reqs).Close()

	return true, nil
}

// handleError 将底层错误转换为标准错误
// 认证被拒绝返回 nil (即 false, nil)
func (c *SSHCracker) handleError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()

	if strings.Contains(msg, "unable to authenticate") {
		return nil
	}

	var netErr net.Error
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", brute.ErrConnectionFailed, err)
	}

	if strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no route to host") ||
		strings.Contains(msg, "network is unreachable") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "handshake failed") ||
		strings.Contains(msg, "target machine actively refused") { // Windows
		return fmt.Errorf("%w: %v", brute.ErrConnectionFailed, err)
	}

	return fmt.Errorf("%w: %v", brute.ErrProtocolError, err)
}
