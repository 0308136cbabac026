package netscan

import (
	"context"
	"time"

	"neorecon/internal/core/model"
)

// QuickScan 使用默认参数的一次性扫描
// 开启 Banner 与指纹，不做凭据验证；零值参数使用默认值
func QuickScan(ctx context.Context, targets []string, ports []int, timeout time.Duration, maxConcurrent int) ([]*model.ScanResult, error) {
	cfg := model.NewScanConfig()
	cfg.Targets = targets
	if len(ports) > 0 {
		cfg.Ports = ports
	}
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	if maxConcurrent > 0 {
		cfg.MaxConcurrent = maxConcurrent
	}
	cfg.GrabBanner = true
	cfg.Fingerprint = true
	cfg.TestCredentials = false

	return NewNetworkScanner(Callbacks{}).Scan(ctx, cfg)
}
