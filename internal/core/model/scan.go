/**
 * 扫描核心模型定义 (Core Domain)
 * @author: Sun977
 * @date: 2026.02.10
 * @description: 端口探测/服务识别/凭据验证的结果、配置与统计模型。
 *               CLI、回调与报表模块都只依赖这里的结构体。
 */

package model

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ServiceType 识别出的服务类型
type ServiceType string

const (
	ServiceSSH     ServiceType = "ssh"
	ServiceRDP     ServiceType = "rdp"
	ServiceUnknown ServiceType = "unknown"
)

// ScanStatus 单个 (IP, Port) 的探测状态
type ScanStatus string

const (
	StatusOpen     ScanStatus = "open"
	StatusClosed   ScanStatus = "closed"
	StatusFiltered ScanStatus = "filtered"
	StatusError    ScanStatus = "error"
)

// CredentialStatus 凭据验证结果
type CredentialStatus string

const (
	CredentialNotTested CredentialStatus = "not_tested"
	CredentialValid     CredentialStatus = "valid"
	CredentialInvalid   CredentialStatus = "invalid"
	CredentialError     CredentialStatus = "error"
)

// MaxBannerLength Banner 最大字符数
const MaxBannerLength = 256

// 默认扫描参数
var (
	DefaultPorts                 = []int{22, 3389}
	DefaultTimeout               = 3 * time.Second
	DefaultMaxConcurrent         = 100
	DefaultProgressInterval      = 100
	DefaultMinAdaptiveConcurrent = 10
)

// ErrInvalidConfig 扫描配置非法
var ErrInvalidConfig = errors.New("invalid scan config")

// ScanResult 单个 (IP, Port) 的扫描结果
// 探测 (含凭据验证) 完成后不再修改
type ScanResult struct {
	IP          string        `json:"ip"`
	Port        int           `json:"port"`
	Status      ScanStatus    `json:"status"`
	Service     ServiceType   `json:"service"`
	Banner      string        `json:"banner,omitempty"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Version     string        `json:"version,omitempty"`
	ScanTime    time.Duration `json:"scan_time"`
	Error       string        `json:"error,omitempty"`

	// 凭据验证 (仅在显式开启时)
	CredentialStatus CredentialStatus `json:"credential_status"`
	ValidUsername    string           `json:"valid_username,omitempty"`
	ValidPassword    string           `json:"valid_password,omitempty"`
}

// NewScanResult 创建带默认值的结果
func NewScanResult(ip string, port int, status ScanStatus) *ScanResult {
	return &ScanResult{
		IP:               ip,
		Port:             port,
		Status:           status,
		Service:          ServiceUnknown,
		CredentialStatus: CredentialNotTested,
	}
}

// Address 返回 ip:port
func (r *ScanResult) Address() string {
	return fmt.Sprintf("%s:%d", r.IP, r.Port)
}

// ScanSeconds 扫描耗时 (秒)
func (r *ScanResult) ScanSeconds() float64 {
	return r.ScanTime.Seconds()
}

// Headers 实现 TabularData 接口
func (r ScanResult) Headers() []string {
	return []string{"Host", "Port", "Status", "Service", "Fingerprint", "Version", "Banner", "Credential", "Error"}
}

// Rows 实现 TabularData 接口
func (r ScanResult) Rows() [][]string {
	cred := string(r.CredentialStatus)
	if r.CredentialStatus == CredentialValid {
		cred = fmt.Sprintf("%s:%s", r.ValidUsername, r.ValidPassword)
	}
	return [][]string{{
		r.IP,
		strconv.Itoa(r.Port),
		string(r.Status),
		string(r.Service),
		r.Fingerprint,
		r.Version,
		r.Banner,
		cred,
		r.Error,
	}}
}

// ScanResults 结果集合，用于一次性表格输出
type ScanResults []*ScanResult

// Headers 实现 TabularData 接口
func (rs ScanResults) Headers() []string {
	return ScanResult{}.Headers()
}

// Rows 实现 TabularData 接口
func (rs ScanResults) Rows() [][]string {
	var rows [][]string
	for _, r := range rs {
		rows = append(rows, r.Rows()...)
	}
	return rows
}

// ScanConfig 单次扫描的配置，扫描期间只读
type ScanConfig struct {
	Targets           []string      `json:"targets"`             // IP / CIDR / 末段范围
	Ports             []int         `json:"ports"`               // 端口列表
	Timeout           time.Duration `json:"timeout"`             // 每个 I/O 阶段的超时
	MaxConcurrent     int           `json:"max_concurrent"`      // 同时在途的探测数上限
	DelayBetweenHosts time.Duration `json:"delay_between_hosts"` // 主机间延迟 (粗粒度限速)

	GrabBanner  bool `json:"grab_banner"`
	Fingerprint bool `json:"fingerprint"`

	// 凭据验证 (需要显式开启)
	TestCredentials bool     `json:"test_credentials"`
	Usernames       []string `json:"usernames,omitempty"`
	Passwords       []string `json:"passwords,omitempty"`
	StopOnValid     bool     `json:"stop_on_valid"`

	// AdaptiveConcurrency 开启后准入并发按 AIMD 在 [min, MaxConcurrent] 间调整
	AdaptiveConcurrency bool `json:"adaptive_concurrency"`
	// ProgressInterval 每完成多少个探测回调一次进度
	ProgressInterval int `json:"progress_interval"`
}

// NewScanConfig 返回默认配置
func NewScanConfig() *ScanConfig {
	return &ScanConfig{
		Ports:            append([]int(nil), DefaultPorts...),
		Timeout:          DefaultTimeout,
		MaxConcurrent:    DefaultMaxConcurrent,
		GrabBanner:       true,
		Fingerprint:      true,
		StopOnValid:      true,
		ProgressInterval: DefaultProgressInterval,
	}
}

// Validate 校验配置，任何错误都在调度前同步返回
func (c *ScanConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %v", ErrInvalidConfig, c.Timeout)
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: max_concurrent must be positive, got %d", ErrInvalidConfig, c.MaxConcurrent)
	}
	if c.DelayBetweenHosts < 0 {
		return fmt.Errorf("%w: delay_between_hosts must not be negative, got %v", ErrInvalidConfig, c.DelayBetweenHosts)
	}
	if c.ProgressInterval < 0 {
		return fmt.Errorf("%w: progress_interval must not be negative, got %d", ErrInvalidConfig, c.ProgressInterval)
	}
	for _, p := range c.Ports {
		if p < 1 || p > 65535 {
			return fmt.Errorf("%w: port %d out of range 1-65535", ErrInvalidConfig, p)
		}
	}
	return nil
}

// WantsIdentification 是否需要在连接建立后做服务识别
func (c *ScanConfig) WantsIdentification() bool {
	return c.GrabBanner || c.Fingerprint
}

// ScanStats 运行级统计，由扫描协调器独占写入
// 调用方拿到的是快照
type ScanStats struct {
	TotalTargets     int       `json:"total_targets"`
	Scanned          int       `json:"scanned"`
	OpenPorts        int       `json:"open_ports"`
	SSHFound         int       `json:"ssh_found"`
	RDPFound         int       `json:"rdp_found"`
	CredentialsValid int       `json:"credentials_valid"`
	Errors           int       `json:"errors"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"` // 仅在扫描结束时设置
}

// Duration 扫描耗时
// 已结束: End - Start; 进行中: now - Start; 未开始: 0
func (s ScanStats) Duration() time.Duration {
	return s.durationAt(time.Now())
}

func (s ScanStats) durationAt(now time.Time) time.Duration {
	switch {
	case !s.EndTime.IsZero():
		return s.EndTime.Sub(s.StartTime)
	case !s.StartTime.IsZero():
		return now.Sub(s.StartTime)
	}
	return 0
}

// Rate 扫描速率 (探测数/秒)，耗时为 0 时返回 0
func (s ScanStats) Rate() float64 {
	d := s.Duration().Seconds()
	if d <= 0 {
		return 0
	}
	return float64(s.Scanned) / d
}
