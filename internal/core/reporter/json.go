package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"neorecon/internal/core/model"
)

// JsonReport JSON 导出格式
type JsonReport struct {
	Stats   model.ScanStats     `json:"stats"`
	Results []*model.ScanResult `json:"results"`
}

// JsonReporter 将结果导出为 JSON 文件
type JsonReporter struct {
	FilePath string
	Stats    model.ScanStats
}

func NewJsonReporter(filePath string, stats model.ScanStats) *JsonReporter {
	return &JsonReporter{FilePath: filePath, Stats: stats}
}

func (r *JsonReporter) Report(ctx context.Context, results []*model.ScanResult) error {
	return SaveJsonResult(r.FilePath, JsonReport{Stats: r.Stats, Results: results})
}

// SaveJsonResult 保存为缩进 JSON
func SaveJsonResult(path string, report JsonReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	return WriteJson(f, report)
}

// WriteJson 写入缩进 JSON，空结果写为 []
func WriteJson(out io.Writer, report JsonReport) error {
	if report.Results == nil {
		report.Results = []*model.ScanResult{}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to write json output: %w", err)
	}
	return nil
}
