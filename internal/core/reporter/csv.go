package reporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"neorecon/internal/core/model"
)

// CsvReporter 将结果导出为 CSV 文件
type CsvReporter struct {
	FilePath string
}

func NewCsvReporter(filePath string) *CsvReporter {
	return &CsvReporter{FilePath: filePath}
}

func (r *CsvReporter) Report(ctx context.Context, results []*model.ScanResult) error {
	return SaveCsvResult(r.FilePath, results)
}

// SaveCsvResult 一次性将结果保存为 CSV
// 没有结果时也会写出表头
func SaveCsvResult(path string, results []*model.ScanResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer f.Close()

	return WriteCsv(f, results)
}

// WriteCsv 写入 CSV (带 UTF-8 BOM，防止 Excel 打开乱码)
func WriteCsv(out io.Writer, results []*model.ScanResult) error {
	if _, err := io.WriteString(out, "\xEF\xBB\xBF"); err != nil {
		return fmt.Errorf("failed to write bom: %w", err)
	}

	data := model.ScanResults(results)
	w := csv.NewWriter(out)
	if err := w.Write(data.Headers()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	if err := w.WriteAll(data.Rows()); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}
