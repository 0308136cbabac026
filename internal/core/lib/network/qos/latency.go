package qos

import (
	"sync"
	"time"
)

const (
	alpha = 0.125 // 平滑因子 1/8 (RFC 6298)
	beta  = 0.25  // 偏差因子 1/4 (RFC 6298)
)

// LatencyTracker 连接建立耗时的平滑统计
// 按 RFC 6298 的 SRTT/RTTVAR 公式累积，只用于运行摘要，不参与超时决策
type LatencyTracker struct {
	srtt    time.Duration // 平滑耗时
	rttvar  time.Duration // 波动值
	samples int
	mu      sync.RWMutex
}

func NewLatencyTracker() *LatencyTracker {
	return &LatencyTracker{}
}

// Observe 记录一次成功建连的耗时
func (t *LatencyTracker) Observe(d time.Duration) {
	if d <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples++
	if t.samples == 1 {
		t.srtt = d
		t.rttvar = d / 2
		return
	}

	delta := t.srtt - d
	if delta < 0 {
		delta = -delta
	}
	t.rttvar = time.Duration((1-beta)*float64(t.rttvar) + beta*float64(delta))
	t.srtt = time.Duration((1-alpha)*float64(t.srtt) + alpha*float64(d))
}

// Smoothed 平滑耗时，无样本时为 0
func (t *LatencyTracker) Smoothed() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.srtt
}

// Variation 耗时波动
func (t *LatencyTracker) Variation() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rttvar
}

// Samples 样本数
func (t *LatencyTracker) Samples() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.samples
}
