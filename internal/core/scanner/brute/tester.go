package brute

import (
	"context"
	"errors"
	"sync"
	"time"

	"neorecon/internal/core/model"
	"neorecon/internal/pkg/logger"
)

// Request 单个主机的凭据验证请求
type Request struct {
	Host        string
	Port        int
	Service     model.ServiceType
	Usernames   []string
	Passwords   []string
	StopOnValid bool
	Timeout     time.Duration // 单次尝试超时
}

// Outcome 验证结果
// 同一主机最多给出一组有效凭据 (第一组)
type Outcome struct {
	Status   model.CredentialStatus
	Username string
	Password string
	Attempts int
	Err      error // 状态为 error 时的原因
}

// Tester 凭据验证器
// 按服务名路由到注册的 Cracker，单主机内串行尝试
type Tester struct {
	dict     *DictManager
	crackers map[string]Cracker
	mu       sync.RWMutex
}

// NewTester 创建验证器 (不含任何适配器)
func NewTester() *Tester {
	return &Tester{
		dict:     NewDictManager(),
		crackers: make(map[string]Cracker),
	}
}

// RegisterCracker 注册协议适配器
func (t *Tester) RegisterCracker(c Cracker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.crackers[c.Name()] = c
}

// Supports 是否有该服务的适配器
func (t *Tester) Supports(service model.ServiceType) bool {
	_, ok := t.cracker(service)
	return ok
}

func (t *Tester) cracker(service model.ServiceType) (Cracker, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.crackers[string(service)]
	return c, ok
}

// Test 依次尝试 用户名 × 密码
// - 用户名或密码列表为空、服务没有适配器: not_tested
// - 首次成功: valid (StopOnValid 时立即返回)
// - 连接/协议错误: error 并停止，已找到有效凭据时仍为 valid
// - 全部被拒绝: invalid
func (t *Tester) Test(ctx context.Context, req Request) Outcome {
	out := Outcome{Status: model.CredentialNotTested}
	if len(req.Usernames) == 0 || len(req.Passwords) == 0 {
		return out
	}
	cracker, ok := t.cracker(req.Service)
	if !ok {
		logger.Debugf("[Brute] no cracker registered for %s, skipping %s:%d", req.Service, req.Host, req.Port)
		return out
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = model.DefaultTimeout
	}

	found := false
	for _, auth := range t.dict.Generate(req.Usernames, req.Passwords, cracker.Mode()) {
		if err := ctx.Err(); err != nil {
			if !found {
				out.Status = model.CredentialError
				out.Err = err
			}
			return out
		}

		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		success, err := cracker.Check(checkCtx, req.Host, req.Port, auth)
		cancel()
		out.Attempts++

		switch {
		case success:
			logger.Debugf("[Brute] %s:%d | User: %s | Success", req.Host, req.Port, auth.Username)
			if !found {
				found = true
				out.Status = model.CredentialValid
				out.Username = auth.Username
				out.Password = auth.Password
			}
			if req.StopOnValid {
				return out
			}

		case err == nil || errors.Is(err, ErrAuthFailed):
			logger.Debugf("[Brute] %s:%d | User: %s | Failed", req.Host, req.Port, auth.Username)

		default:
			logger.Debugf("[Brute] %s:%d | User: %s | Error: %v", req.Host, req.Port, auth.Username, err)
			if !found {
				out.Status = model.CredentialError
				out.Err = err
			}
			return out
		}
	}

	if !found {
		out.Status = model.CredentialInvalid
	}
	return out
}
