package logger

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// LogType 日志类型
type LogType string

const (
	// ScanLog 扫描日志 - 记录扫描任务执行情况
	ScanLog LogType = "scan"
	// SystemLog 系统日志 - 记录运行环境状态
	SystemLog LogType = "system"
)

// 扫描状态
const (
	ScanStatusStarted   = "started"
	ScanStatusRunning   = "running"
	ScanStatusCompleted = "completed"
	ScanStatusCancelled = "cancelled"
	ScanStatusFailed    = "failed"
)

// ScanLogEntry 扫描日志条目
type ScanLogEntry struct {
	RunID    string        // 扫描运行ID
	ScanType string        // 扫描类型 (netscan, brute)
	Target   string        // 目标摘要
	Status   string        // started/running/completed/cancelled/failed
	Progress int           // 进度 (0-100)
	Result   string        // 结果摘要
	Duration time.Duration // 耗时
}

// FormatTimestamp 统一的毫秒精度时间格式
func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05.000")
}

// LogScanOperation 记录扫描生命周期
func LogScanOperation(entry ScanLogEntry, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}

	fields := logrus.Fields{
		"type":      ScanLog,
		"run_id":    entry.RunID,
		"scan_type": entry.ScanType,
		"target":    entry.Target,
		"status":    entry.Status,
		"progress":  entry.Progress,
		"duration":  entry.Duration.Milliseconds(),
	}
	if entry.Result != "" {
		fields["result"] = entry.Result
	}
	for k, v := range extraFields {
		fields[k] = v
	}

	log := LoggerInstance.logger.WithFields(fields)
	switch entry.Status {
	case ScanStatusCompleted:
		log.Info(fmt.Sprintf("Scan completed: %s on %s", entry.ScanType, entry.Target))
	case ScanStatusCancelled:
		log.Warn(fmt.Sprintf("Scan cancelled: %s on %s", entry.ScanType, entry.Target))
	case ScanStatusFailed:
		log.Error(fmt.Sprintf("Scan failed: %s on %s", entry.ScanType, entry.Target))
	case ScanStatusRunning:
		log.Debug(fmt.Sprintf("Scan running: %s on %s (%d%%)", entry.ScanType, entry.Target, entry.Progress))
	default:
		log.Info(fmt.Sprintf("Scan %s: %s on %s", entry.Status, entry.ScanType, entry.Target))
	}
}

// LogSystemEvent 记录运行环境事件 (资源检查等)
func LogSystemEvent(component, event, message string, level logrus.Level, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}
	fields := logrus.Fields{
		"type":      SystemLog,
		"component": component,
		"event":     event,
	}
	for k, v := range extraFields {
		fields[k] = v
	}
	LoggerInstance.logger.WithFields(fields).Log(level, message)
}
