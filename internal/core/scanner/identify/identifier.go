// Package identify 在已建立的连接上做协议级服务识别
// 按端口约定选择策略: 22 -> SSH, 3389 -> RDP, 其他 -> 通用 Banner
// 所有策略只尽力而为，超时或解析失败时字段保持为空，不会让 open 结果变为 error
package identify

import (
	"net"
	"time"

	"neorecon/internal/core/model"
)

// 约定端口
const (
	PortSSH = 22
	PortRDP = 3389
)

// Options 识别选项
type Options struct {
	GrabBanner  bool
	Fingerprint bool
	Timeout     time.Duration // 每个策略的读写超时
}

// Result 识别结果
type Result struct {
	Service     model.ServiceType
	Banner      string
	Fingerprint string
	Version     string
}

// ApplyTo 将识别结果写入扫描结果
func (r Result) ApplyTo(sr *model.ScanResult) {
	sr.Service = r.Service
	sr.Banner = r.Banner
	sr.Fingerprint = r.Fingerprint
	sr.Version = r.Version
}

// Strategy 单个识别策略
type Strategy interface {
	Name() string
	// Identify 在 conn 上读取/写入至多 timeout，返回识别到的字段
	Identify(conn net.Conn, timeout time.Duration) Result
}

// Identifier 策略选择器
type Identifier struct {
	ssh     Strategy
	rdp     Strategy
	generic Strategy
}

// NewIdentifier 标准识别器
func NewIdentifier() *Identifier {
	return &Identifier{
		ssh:     SSHStrategy{},
		rdp:     RDPStrategy{},
		generic: GenericStrategy{MaxBytes: 1024},
	}
}

// StrategyFor 返回端口对应的策略，以及在给定选项下是否需要执行
func (i *Identifier) StrategyFor(port int, opts Options) (Strategy, bool) {
	switch port {
	case PortSSH:
		return i.ssh, opts.GrabBanner || opts.Fingerprint
	case PortRDP:
		return i.rdp, opts.Fingerprint
	default:
		return i.generic, opts.GrabBanner
	}
}

// Identify 执行端口对应的策略
// 只有 SSH/RDP 策略给出指纹时才认定为对应服务，其他情况为 unknown
func (i *Identifier) Identify(conn net.Conn, port int, opts Options) Result {
	res := Result{Service: model.ServiceUnknown}
	if conn == nil {
		return res
	}
	s, enabled := i.StrategyFor(port, opts)
	if !enabled {
		return res
	}

	got := s.Identify(conn, opts.Timeout)
	if got.Service == "" {
		got.Service = model.ServiceUnknown
	}
	return got
}
