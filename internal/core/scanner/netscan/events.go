package netscan

import (
	"neorecon/internal/core/model"
)

// EventKind 事件类型
type EventKind int

const (
	EventResult EventKind = iota + 1
	EventProgress
	EventLog
)

func (k EventKind) String() string {
	switch k {
	case EventResult:
		return "result"
	case EventProgress:
		return "progress"
	case EventLog:
		return "log"
	}
	return "unknown"
}

// Event 扫描事件，按 Kind 读取对应字段
type Event struct {
	Kind    EventKind
	Result  *model.ScanResult // EventResult
	Scanned int               // EventProgress
	Total   int               // EventProgress
	Message string            // EventLog
}

// StreamCallbacks 将回调转为事件流
// 发送会阻塞，消费者跟不上时扫描随之减速；ch 由调用方在 Scan 返回后关闭
func StreamCallbacks(ch chan<- Event) Callbacks {
	return Callbacks{
		OnResult: func(r *model.ScanResult) {
			ch <- Event{Kind: EventResult, Result: r}
		},
		OnProgress: func(scanned, total int) {
			ch <- Event{Kind: EventProgress, Scanned: scanned, Total: total}
		},
		OnLog: func(msg string) {
			ch <- Event{Kind: EventLog, Message: msg}
		},
	}
}
