package monitor

import (
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"neorecon/internal/pkg/logger"
)

// fdReserve 日志文件、标准输入输出等非探测用途预留的描述符
const fdReserve = 32

// HostInfo 主机静态信息
type HostInfo struct {
	Hostname        string
	OS              string
	Platform        string
	PlatformVersion string
	KernelVersion   string
	Arch            string
	CPUCores        int
	MemoryTotal     uint64
}

// FileLimit 当前进程的打开文件数限制
type FileLimit struct {
	Soft     uint64
	Hard     uint64
	Required uint64
}

// Sufficient 软限制是否能容纳所需的并发连接
func (l FileLimit) Sufficient() bool {
	return l.Soft >= l.Required
}

// CheckFileLimit 检查 RLIMIT_NOFILE 是否足以支撑 concurrent 个同时打开的 socket
// 平台不支持时返回 error，调用方应当忽略
func CheckFileLimit(concurrent int) (FileLimit, error) {
	limit := FileLimit{Required: uint64(concurrent) + fdReserve}

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return limit, fmt.Errorf("open self process: %w", err)
	}
	rlimits, err := p.Rlimit()
	if err != nil {
		return limit, fmt.Errorf("read rlimit: %w", err)
	}
	for _, rl := range rlimits {
		if rl.Resource == process.RLIMIT_NOFILE {
			limit.Soft = rl.Soft
			limit.Hard = rl.Hard
			if !limit.Sufficient() {
				logger.LogSystemEvent("Monitor", "CheckFileLimit",
					fmt.Sprintf("Open file limit %d is below required %d, connections may fail with 'too many open files'", limit.Soft, limit.Required),
					logrus.WarnLevel, map[string]interface{}{"soft": limit.Soft, "hard": limit.Hard})
			}
			return limit, nil
		}
	}
	return limit, fmt.Errorf("RLIMIT_NOFILE not reported")
}

// GetHostInfo 获取主机静态信息
func GetHostInfo() (*HostInfo, error) {
	info := &HostInfo{}

	hInfo, err := host.Info()
	if err != nil {
		logger.LogSystemEvent("Monitor", "GetHostInfo", "Failed to get host info: "+err.Error(), logrus.WarnLevel, nil)
	} else {
		info.Hostname = hInfo.Hostname
		info.OS = hInfo.OS
		info.Platform = hInfo.Platform
		info.PlatformVersion = hInfo.PlatformVersion
		info.KernelVersion = hInfo.KernelVersion
		info.Arch = hInfo.KernelArch
	}

	// host.Info 失败时回退到运行时信息
	if info.OS == "" {
		info.OS = runtime.GOOS
	}
	if info.Arch == "" {
		info.Arch = runtime.GOARCH
	}

	cores, err := cpu.Counts(false)
	if err != nil || cores == 0 {
		cores = runtime.NumCPU()
	}
	info.CPUCores = cores

	vMem, err := mem.VirtualMemory()
	if err != nil {
		logger.LogSystemEvent("Monitor", "GetHostInfo", "Failed to get Memory info: "+err.Error(), logrus.WarnLevel, nil)
	} else {
		info.MemoryTotal = vMem.Total
	}

	return info, nil
}
