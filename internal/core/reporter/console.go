package reporter

import (
	"context"
	"fmt"
	"io"
	"os"

	"neorecon/internal/core/model"

	"github.com/pterm/pterm"
)

// ConsoleReporter 控制台表格输出
type ConsoleReporter struct {
	writer io.Writer
}

func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{writer: os.Stdout}
}

// WithWriter 指定输出目标 (测试或重定向)
func (r *ConsoleReporter) WithWriter(w io.Writer) *ConsoleReporter {
	r.writer = w
	return r
}

func (r *ConsoleReporter) Report(ctx context.Context, results []*model.ScanResult) error {
	if len(results) == 0 {
		pterm.Warning.WithWriter(r.writer).Println("No open ports found.")
		return nil
	}
	return r.printTable(model.ScanResults(results))
}

// PrintSummary 输出运行统计
func (r *ConsoleReporter) PrintSummary(stats model.ScanStats) {
	pterm.Info.WithWriter(r.writer).Printfln("Scanned %d/%d in %.1fs (%.1f checks/s): %d open, %d SSH, %d RDP, %d valid credentials, %d errors",
		stats.Scanned, stats.TotalTargets, stats.Duration().Seconds(), stats.Rate(),
		stats.OpenPorts, stats.SSHFound, stats.RDPFound, stats.CredentialsValid, stats.Errors)
}

func (r *ConsoleReporter) printTable(data TabularData) error {
	rows := data.Rows()
	if len(rows) == 0 {
		return nil
	}

	tableData := pterm.TableData{data.Headers()}
	tableData = append(tableData, rows...)

	err := pterm.DefaultTable.
		WithHasHeader(true).
		WithBoxed(false). // 简洁风格
		WithData(tableData).
		WithWriter(r.writer).
		Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}
