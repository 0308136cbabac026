// Package netscan 扫描协调器
// 展开目标，按准入令牌并发执行 探测 -> 识别 -> 凭据验证，并在单一聚合协程中汇总统计与回调
package netscan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"neorecon/internal/core/lib/network/dialer"
	"neorecon/internal/core/lib/network/qos"
	"neorecon/internal/core/model"
	"neorecon/internal/core/scanner/brute"
	"neorecon/internal/core/scanner/brute/protocol"
	"neorecon/internal/core/scanner/identify"
	"neorecon/internal/core/scanner/probe"
	"neorecon/internal/core/scanner/target"
	"neorecon/internal/pkg/logger"
	"neorecon/internal/pkg/monitor"
)

// ErrScanRunning 已有扫描在运行
var ErrScanRunning = errors.New("scan already running")

// Callbacks 扫描回调，均可为 nil
// 回调之间不会并发执行；回调内不得再调用 Scan
type Callbacks struct {
	OnResult   func(*model.ScanResult) // 仅 open / error 结果
	OnProgress func(scanned, total int)
	OnLog      func(string)
}

// Option 构造选项
type Option func(*NetworkScanner)

// WithDialer 指定拨号器 (代理、测试桩)
func WithDialer(d dialer.Dialer) Option {
	return func(s *NetworkScanner) {
		if d != nil {
			s.dialer = d
		}
	}
}

// WithTester 指定凭据验证器
func WithTester(t *brute.Tester) Option {
	return func(s *NetworkScanner) {
		if t != nil {
			s.tester = t
		}
	}
}

// WithIdentifier 指定服务识别器
func WithIdentifier(i *identify.Identifier) Option {
	return func(s *NetworkScanner) {
		if i != nil {
			s.identifier = i
		}
	}
}

// NetworkScanner 扫描协调器
// 状态: Idle -> Running -> Idle，同一时刻最多一个运行
type NetworkScanner struct {
	cb         Callbacks
	dialer     dialer.Dialer
	prober     *probe.Prober
	identifier *identify.Identifier
	tester     *brute.Tester

	running atomic.Bool
	runSeq  atomic.Uint64

	mu      sync.Mutex // 保护 stats / cancel / stopped
	stats   model.ScanStats
	cancel  context.CancelFunc
	stopped bool

	cbMu sync.Mutex // 串行化回调
}

// NewNetworkScanner 创建协调器
// 默认使用全局拨号器、标准识别器以及注册了 SSH 适配器的凭据验证器
func NewNetworkScanner(cb Callbacks, opts ...Option) *NetworkScanner {
	s := &NetworkScanner{
		cb:         cb,
		dialer:     dialer.Get(),
		identifier: identify.NewIdentifier(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tester == nil {
		s.tester = brute.NewTester()
		s.tester.RegisterCracker(protocol.NewSSHCracker(s.dialer))
	}
	s.prober = probe.NewProber(s.dialer)
	return s
}

// runState 单次运行的共享状态
type runState struct {
	cfg     *model.ScanConfig
	limiter *qos.AdaptiveLimiter
	latency *qos.LatencyTracker
}

// Scan 执行一次扫描，阻塞直到所有已准入的探测完成
// 返回 open / error 结果 (完成顺序)
func (s *NetworkScanner) Scan(ctx context.Context, cfg *model.ScanConfig) ([]*model.ScanResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	addrs, invalid := expandTargets(cfg.Targets)

	if !s.running.CompareAndSwap(false, true) {
		s.logf("Scan already running")
		return nil, ErrScanRunning
	}
	defer s.running.Store(false)

	dispatchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	total := len(addrs) * len(cfg.Ports)
	s.mu.Lock()
	s.stats = model.ScanStats{TotalTargets: total, StartTime: time.Now()}
	s.cancel = cancel
	s.stopped = false
	s.mu.Unlock()

	for _, msg := range invalid {
		s.logf("%s", msg)
	}

	runID := fmt.Sprintf("scan-%d-%d", time.Now().Unix(), s.runSeq.Add(1))
	targetSummary := strings.Join(cfg.Targets, ",")
	s.logf("Starting scan: %d hosts, %d ports, %d total checks", len(addrs), len(cfg.Ports), total)
	logger.LogScanOperation(logger.ScanLogEntry{
		RunID:    runID,
		ScanType: "netscan",
		Target:   targetSummary,
		Status:   logger.ScanStatusStarted,
	}, map[string]interface{}{"hosts": len(addrs), "ports": cfg.Ports, "total": total})

	if limit, err := monitor.CheckFileLimit(cfg.MaxConcurrent); err == nil && !limit.Sufficient() {
		s.logf("Warning: open file limit %d is below %d, raise it with 'ulimit -n'", limit.Soft, limit.Required)
	}

	run := &runState{
		cfg:     cfg,
		limiter: newLimiter(cfg),
		latency: qos.NewLatencyTracker(),
	}

	results := make(chan *model.ScanResult, cfg.MaxConcurrent)
	agg := newAggregator(s, total, cfg.ProgressInterval)
	aggDone := make(chan struct{})
	go func() {
		defer close(aggDone)
		agg.consume(results)
	}()

	var wg sync.WaitGroup
dispatch:
	for i, addr := range addrs {
		if i > 0 && cfg.DelayBetweenHosts > 0 {
			if !sleepContext(dispatchCtx, cfg.DelayBetweenHosts) {
				break
			}
		}
		for _, port := range cfg.Ports {
			if err := run.limiter.Acquire(dispatchCtx); err != nil {
				break dispatch
			}
			wg.Add(1)
			go func(addr string, port int) {
				defer wg.Done()
				defer run.limiter.Release()
				results <- s.runUnit(ctx, run, addr, port)
			}(addr, port)
		}
	}

	wg.Wait()
	close(results)
	<-aggDone
	agg.finish()

	s.mu.Lock()
	s.stats.EndTime = time.Now()
	s.cancel = nil
	stopped := s.stopped || ctx.Err() != nil
	stats := s.stats
	s.mu.Unlock()

	extra := map[string]interface{}{
		"scanned":     stats.Scanned,
		"open":        stats.OpenPorts,
		"ssh":         stats.SSHFound,
		"rdp":         stats.RDPFound,
		"credentials": stats.CredentialsValid,
		"errors":      stats.Errors,
	}
	if run.latency.Samples() > 0 {
		extra["srtt_ms"] = run.latency.Smoothed().Milliseconds()
		extra["rttvar_ms"] = run.latency.Variation().Milliseconds()
	}

	entry := logger.ScanLogEntry{
		RunID:    runID,
		ScanType: "netscan",
		Target:   targetSummary,
		Progress: progressPercent(stats.Scanned, total),
		Duration: stats.Duration(),
	}
	if stopped {
		s.logf("Scan cancelled: %d/%d checks completed", stats.Scanned, total)
		entry.Status = logger.ScanStatusCancelled
	} else {
		s.logf("Scan complete: %d open, %d SSH, %d RDP, %.1fs",
			stats.OpenPorts, stats.SSHFound, stats.RDPFound, stats.Duration().Seconds())
		entry.Status = logger.ScanStatusCompleted
	}
	entry.Result = fmt.Sprintf("%d open, %d ssh, %d rdp", stats.OpenPorts, stats.SSHFound, stats.RDPFound)
	logger.LogScanOperation(entry, extra)

	return agg.collected, nil
}

// runUnit 单个 (IP, Port) 的完整处理，panic 转为 error 结果
func (s *NetworkScanner) runUnit(ctx context.Context, run *runState, addr string, port int) (res *model.ScanResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[NetScan] panic while scanning %s:%d: %v", addr, port, r)
			res = model.NewScanResult(addr, port, model.StatusError)
			res.Error = fmt.Sprintf("internal error: %v", r)
		}
		res.ScanTime = time.Since(start)
	}()

	cfg := run.cfg
	status, errText, conn := s.prober.Probe(ctx, addr, port, cfg.Timeout)
	res = model.NewScanResult(addr, port, status)
	res.Error = errText

	if status == model.StatusFiltered {
		run.limiter.OnFailure()
	} else {
		run.limiter.OnSuccess()
	}
	if status != model.StatusOpen {
		return res
	}
	run.latency.Observe(time.Since(start))

	func() {
		defer conn.Close()
		if cfg.WantsIdentification() {
			s.identifier.Identify(conn, port, identify.Options{
				GrabBanner:  cfg.GrabBanner,
				Fingerprint: cfg.Fingerprint,
				Timeout:     cfg.Timeout,
			}).ApplyTo(res)
		}
	}()

	if cfg.TestCredentials && (res.Service == model.ServiceSSH || res.Service == model.ServiceRDP) {
		out := s.tester.Test(ctx, brute.Request{
			Host:        addr,
			Port:        port,
			Service:     res.Service,
			Usernames:   cfg.Usernames,
			Passwords:   cfg.Passwords,
			StopOnValid: cfg.StopOnValid,
			Timeout:     cfg.Timeout,
		})
		res.CredentialStatus = out.Status
		if out.Status == model.CredentialValid {
			res.ValidUsername = out.Username
			res.ValidPassword = out.Password
		}
		if out.Err != nil {
			logger.Debugf("[NetScan] credential test on %s aborted after %d attempts: %v", res.Address(), out.Attempts, out.Err)
		}
	}
	return res
}

// Stop 停止调度新的探测，已准入的探测按各自超时完成
// 空闲时为空操作，可重复调用
func (s *NetworkScanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil || s.stopped {
		return
	}
	s.stopped = true
	s.cancel()
	logger.Info("[NetScan] stop requested, waiting for in-flight probes")
}

// IsRunning 是否有扫描在运行
func (s *NetworkScanner) IsRunning() bool {
	return s.running.Load()
}

// Stats 当前统计快照
func (s *NetworkScanner) Stats() model.ScanStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// logf 写日志并回调 OnLog
func (s *NetworkScanner) logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Infof("[NetScan] %s", msg)
	if s.cb.OnLog == nil {
		return
	}
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.cb.OnLog(msg)
}

// expandTargets 展开目标，非法目标转为日志行而不中断
func expandTargets(specs []string) ([]string, []string) {
	var addrs, invalid []string
	for _, spec := range specs {
		expanded, err := target.ExpandSpec(spec)
		if err != nil {
			invalid = append(invalid, fmt.Sprintf("Invalid target '%s': %v", spec, err))
			continue
		}
		addrs = append(addrs, expanded...)
	}
	return addrs, invalid
}

// newLimiter 准入闸门，容量永远不超过 MaxConcurrent
func newLimiter(cfg *model.ScanConfig) *qos.AdaptiveLimiter {
	if !cfg.AdaptiveConcurrency {
		return qos.NewFixedLimiter(cfg.MaxConcurrent)
	}
	floor := model.DefaultMinAdaptiveConcurrent
	if floor > cfg.MaxConcurrent {
		floor = cfg.MaxConcurrent
	}
	return qos.NewAdaptiveLimiter(cfg.MaxConcurrent, floor, cfg.MaxConcurrent)
}

// sleepContext 可被取消的等待，返回 false 表示被取消
func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func progressPercent(scanned, total int) int {
	if total == 0 {
		return 100
	}
	return scanned * 100 / total
}
