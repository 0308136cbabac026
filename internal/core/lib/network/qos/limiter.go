package qos

import (
	"context"
	"sync"
	"sync/atomic"
)

// AdaptiveLimiter 准入闸门
// 令牌桶容量固定为 maxLimit，同时在途的持有者数量不超过 currentLimit
// 固定容量时 min == max == initial，OnSuccess/OnFailure 不改变上限
// 自适应模式使用 AIMD (Additive Increase Multiplicative Decrease):
// - 成功时：线性增加并发数
// - 失败时：乘性减少并发数
type AdaptiveLimiter struct {
	sem             chan struct{} // 信号量通道，用于控制并发令牌
	reductionNeeded int32         // 需要减少的令牌数量 (待偿还的债务)

	currentLimit int // 当前并发限制
	minLimit     int // 最小并发限制 (保底值)
	maxLimit     int // 最大并发限制 (天花板)

	successCount int        // 连续成功计数
	mu           sync.Mutex // 保护 limit 和 successCount 的更新
}

// NewAdaptiveLimiter 创建一个新的自适应限流器
// initial: 初始并发数
// min: 最小并发数
// max: 最大并发数
func NewAdaptiveLimiter(initial, min, max int) *AdaptiveLimiter {
	if max < 1 {
		max = 1
	}
	if min < 1 {
		min = 1
	}
	if min > max {
		min = max
	}
	if initial < min {
		initial = min
	}
	if initial > max {
		initial = max
	}

	l := &AdaptiveLimiter{
		sem:          make(chan struct{}, max), // 通道容量设置为最大值，方便扩容
		currentLimit: initial,
		minLimit:     min,
		maxLimit:     max,
	}

	for i := 0; i < initial; i++ {
		l.sem <- struct{}{}
	}

	return l
}

// NewFixedLimiter 固定容量的闸门
func NewFixedLimiter(n int) *AdaptiveLimiter {
	return NewAdaptiveLimiter(n, n, n)
}

// Acquire 获取一个并发令牌
// 没有令牌可用时阻塞，直到有令牌释放或 ctx 取消
func (l *AdaptiveLimiter) Acquire(ctx context.Context) error {
	// 已取消时优先返回，避免与空闲令牌随机竞争
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-l.sem:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release 释放一个并发令牌
// 有待偿还的债务 (reductionNeeded) 时销毁令牌而不是归还
func (l *AdaptiveLimiter) Release() {
	for {
		val := atomic.LoadInt32(&l.reductionNeeded)
		if val <= 0 {
			break
		}
		if atomic.CompareAndSwapInt32(&l.reductionNeeded, val, val-1) {
			return
		}
	}

	select {
	case l.sem <- struct{}{}:
	default:
		// Release 次数多于 Acquire，多余的令牌丢弃
	}
}

// OnSuccess 通知一次成功的探测
// 每完成 currentLimit 次连续成功，Limit + 1
func (l *AdaptiveLimiter) OnSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.successCount++
	if l.successCount >= l.currentLimit {
		l.successCount = 0
		l.increaseLimit(1)
	}
}

// OnFailure 通知一次拥塞信号 (通常是连接超时)
// 当前 Limit * 0.7，至少减少 1 个
func (l *AdaptiveLimiter) OnFailure() {
	l.mu.Lock()
	defer l.mu.Unlock()

	newLimit := int(float64(l.currentLimit) * 0.7)
	decrease := l.currentLimit - newLimit
	if decrease < 1 {
		decrease = 1
	}

	l.decreaseLimit(decrease)
	l.successCount = 0
}

func (l *AdaptiveLimiter) increaseLimit(n int) {
	target := l.currentLimit + n
	if target > l.maxLimit {
		target = l.maxLimit
	}

	diff := target - l.currentLimit
	if diff <= 0 {
		return
	}
	l.currentLimit = target

	// 先抵消未偿还的债务，剩余部分再注入新令牌
	for diff > 0 {
		val := atomic.LoadInt32(&l.reductionNeeded)
		if val <= 0 {
			break
		}
		if atomic.CompareAndSwapInt32(&l.reductionNeeded, val, val-1) {
			diff--
		}
	}
	for i := 0; i < diff; i++ {
		select {
		case l.sem <- struct{}{}:
		default:
		}
	}
}

func (l *AdaptiveLimiter) decreaseLimit(n int) {
	target := l.currentLimit - n
	if target < l.minLimit {
		target = l.minLimit
	}

	diff := l.currentLimit - target
	if diff <= 0 {
		return
	}
	l.currentLimit = target

	// 1. 先从 channel 取走空闲令牌 (立即生效)
	// 2. 取不到的部分 (令牌都被借出) 记为债务，由后续 Release 销毁
	removed := 0
	for i := 0; i < diff; i++ {
		select {
		case <-l.sem:
			removed++
		default:
		}
	}

	if remaining := diff - removed; remaining > 0 {
		atomic.AddInt32(&l.reductionNeeded, int32(remaining))
	}
}

// CurrentLimit 获取当前并发限制数
func (l *AdaptiveLimiter) CurrentLimit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentLimit
}

// MaxLimit 并发上限
func (l *AdaptiveLimiter) MaxLimit() int {
	return l.maxLimit
}
