package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"ledger/internal/core"
)

const (
	ChartTitle  = "Average Transactions by Categories"
	ChartXTitle = "Category"
	ChartYTitle = "Average Transaction Amount"

	averagesSheet = "Averages"
)

// ChartRenderer writes <dir>/<account>_averages.xlsx holding the averages
// table and a column chart over it.
type ChartRenderer struct {
	Dir string
}

func NewChartRenderer(dir string) *ChartRenderer {
	return &ChartRenderer{Dir: dir}
}

// RenderAverages keeps the order of averages, which callers pass highest first.
func (r *ChartRenderer) RenderAverages(ctx context.Context, account core.Account, averages []core.CategoryAverage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(r.Dir, fileName(account.Name, "_averages.xlsx"))

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", averagesSheet); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}
	headers := []any{ChartXTitle, ChartYTitle, "Transactions"}
	if err := f.SetSheetRow(averagesSheet, "A1", &headers); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	for i, avg := range averages {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", err
		}
		row := []any{avg.Name, avg.Average.Float64(), avg.Count}
		if err := f.SetSheetRow(averagesSheet, cell, &row); err != nil {
			return "", fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	f.SetColWidth(averagesSheet, "A", "A", 18)
	f.SetColWidth(averagesSheet, "B", "B", 28)
	f.SetColWidth(averagesSheet, "C", "C", 14)

	if len(averages) > 0 {
		last := len(averages) + 1
		chart := &excelize.Chart{
			Type: excelize.Col,
			Series: []excelize.ChartSeries{{
				Name:       fmt.Sprintf("%s!$B$1", averagesSheet),
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", averagesSheet, last),
				Values:     fmt.Sprintf("%s!$B$2:$B$%d", averagesSheet, last),
			}},
			Title:  []excelize.RichTextRun{{Text: ChartTitle}},
			XAxis:  excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: ChartXTitle}}},
			YAxis:  excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: ChartYTitle}}},
			Legend: excelize.ChartLegend{Position: "none"},
		}
		if err := f.AddChart(averagesSheet, "E2", chart); err != nil {
			return "", fmt.Errorf("add chart: %w", err)
		}
	}

	err := writeAtomically(path, func(out *os.File) error {
		return f.Write(out)
	})
	return path, err
}
