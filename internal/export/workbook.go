// Package export renders reorder reports and forecasts as xlsx workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/stockcast/internal/domain"
)

const (
	ReorderSheet  = "Reorder"
	ForecastSheet = "Forecast"
	dateLayout    = "2006-01-02"
)

var (
	reorderHeader  = []any{"Item ID", "Item", "Urgency", "Days Until Stockout", "Lead Time (days)", "Current Stock", "Target", "Order Quantity", "Stockout Date", "Method"}
	forecastHeader = []any{"Item ID", "Method", "Week", "Date", "Predicted Demand", "Cumulative Demand", "Projected Stock"}
)

// WriteWorkbook writes a workbook with a reorder sheet and, when forecasts
// are given, a forecast sheet with one row per projected week.
func WriteWorkbook(w io.Writer, report *domain.ReorderReport, forecasts []*domain.ForecastResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ReorderSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeReorder(f, report); err != nil {
		return err
	}

	if len(forecasts) > 0 {
		if _, err := f.NewSheet(ForecastSheet); err != nil {
			return fmt.Errorf("create forecast sheet: %w", err)
		}
		if err := writeForecasts(f, forecasts); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeReorder(f *excelize.File, report *domain.ReorderReport) error {
	if err := setRow(f, ReorderSheet, 1, reorderHeader); err != nil {
		return err
	}
	if report == nil {
		return nil
	}
	for i, rec := range report.Recommendations {
		row := []any{
			rec.ItemID,
			rec.ItemName,
			string(rec.Urgency),
			rec.DaysUntilStockout,
			rec.LeadTimeDays,
			rec.CurrentStock,
			rec.RecommendedTarget,
			rec.RecommendedOrderQuantity,
			formatDate(rec.StockoutDate),
			string(rec.Method),
		}
		if err := setRow(f, ReorderSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeForecasts(f *excelize.File, forecasts []*domain.ForecastResult) error {
	if err := setRow(f, ForecastSheet, 1, forecastHeader); err != nil {
		return err
	}
	rowNum := 2
	for _, fc := range forecasts {
		if fc == nil {
			continue
		}
		for _, p := range fc.Predictions {
			row := []any{
				fc.ItemID,
				string(fc.Method),
				p.WeekIndex,
				p.Date.Format(dateLayout),
				p.PredictedDemand,
				p.CumulativeDemand,
				p.ProjectedStock,
			}
			if err := setRow(f, ForecastSheet, rowNum, row); err != nil {
				return err
			}
			rowNum++
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
