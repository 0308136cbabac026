/**
 * 结果输出接口定义
 * @author: Sun977
 * @date: 2026.02.10
 * @description: 定义结果输出的通用接口，解耦 Console/CSV/JSON 输出。
 */

package reporter

import (
	"context"
	"errors"

	"neorecon/internal/core/model"
)

// TabularData 是一个可以被渲染为表格的数据接口
// model.ScanResult / model.ScanResults 实现了此接口
type TabularData interface {
	Headers() []string
	Rows() [][]string
}

// Reporter 定义结果输出的行为
type Reporter interface {
	// Report 输出一次扫描的全部结果
	Report(ctx context.Context, results []*model.ScanResult) error
}

// MultiReporter 支持同时向多个目标输出 (e.g., Console + File)
type MultiReporter struct {
	reporters []Reporter
}

func NewMultiReporter(reporters ...Reporter) *MultiReporter {
	return &MultiReporter{
		reporters: reporters,
	}
}

// Report 依次调用所有 Reporter，单个失败不影响其他输出
func (m *MultiReporter) Report(ctx context.Context, results []*model.ScanResult) error {
	var errs []error
	for _, r := range m.reporters {
		if err := r.Report(ctx, results); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
