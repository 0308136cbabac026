package brute

import (
	"context"
	"errors"
)

// AuthMode 定义认证模式
type AuthMode int

const (
	AuthModeUserPass AuthMode = iota // 需要用户名和密码 (SSH)
	AuthModeOnlyPass                 // 仅需要密码
	AuthModeNone                     // 无需认证/默认凭据
)

// Auth 认证凭据
type Auth struct {
	Username string
	Password string
}

// Cracker 协议适配器接口
// Name 与 model.ServiceType 的取值一致 (e.g. "ssh")，Tester 以此查找适配器
type Cracker interface {
	// Name 返回协议名称
	Name() string

	// Mode 返回该协议的认证模式
	Mode() AuthMode

	// Check 验证单个凭据
	// ctx 携带单次尝试的超时
	// 返回:
	// - (true, nil): 认证成功
	// - (false, nil) 或 (false, ErrAuthFailed): 凭据被拒绝，继续下一组
	// - (false, ErrConnectionFailed/ErrProtocolError/其他): 无法判定，停止该主机
	Check(ctx context.Context, host string, port int, auth Auth) (bool, error)
}

var (
	// ErrAuthFailed 认证失败 (账号密码错误) -> 继续尝试下一个
	ErrAuthFailed = errors.New("auth failed")

	// ErrConnectionFailed 连接失败 (超时/拒绝/重置) -> 停止该主机
	ErrConnectionFailed = errors.New("connection failed")

	// ErrProtocolError 协议交互错误 (如非预期响应) -> 停止该主机
	ErrProtocolError = errors.New("protocol error")
)
