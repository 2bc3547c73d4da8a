package expense

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// CategoryTotal is one row of the category spending report
type CategoryTotal struct {
	Category string `json:"category"`
	Total    int    `json:"total"` // cents
}

// MonthTotal is one row of the monthly spending report
type MonthTotal struct {
	Month string `json:"month"` // YYYY-MM
	Total int    `json:"total"` // cents
}

// CategoryReport sums spending per category for a YYYY-MM month, largest
// first.
func (s *Service) CategoryReport(month string) ([]CategoryTotal, error) {
	if _, err := time.Parse("2006-01", month); err != nil {
		return nil, fmt.Errorf("invalid month %q, expected YYYY-MM", month)
	}

	expenses, err := s.ListExpenses(month, "")
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string]int)
	for _, e := range expenses {
		byCategory[e.Category] += e.TotalPrice
	}

	report := make([]CategoryTotal, 0, len(byCategory))
	for category, total := range byCategory {
		report = append(report, CategoryTotal{Category: category, Total: total})
	}
	sort.Slice(report, func(i, j int) bool {
		if report[i].Total != report[j].Total {
			return report[i].Total > report[j].Total
		}
		return report[i].Category < report[j].Category
	})
	return report, nil
}

// MonthlyReport sums spending per month for a year. Every month of the year
// is present, zero or not.
func (s *Service) MonthlyReport(year int) ([]MonthTotal, error) {
	if year < 1970 || year > 9999 {
		return nil, fmt.Errorf("invalid year %d", year)
	}

	expenses, err := s.db.ListExpenses()
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}

	byMonth := make(map[string]int)
	for _, e := range expenses {
		if e.Date.Year() == year {
			byMonth[e.Month()] += e.TotalPrice
		}
	}

	report := make([]MonthTotal, 0, 12)
	for m := time.January; m <= time.December; m++ {
		month := fmt.Sprintf("%04d-%02d", year, int(m))
		report = append(report, MonthTotal{Month: month, Total: byMonth[month]})
	}
	return report, nil
}

// centsToDollars renders integer cents as an exact decimal dollar amount.
func centsToDollars(cents int) float64 {
	f, _ := decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(100)).Float64()
	return f
}

// ExportMonthXLSX returns an XLSX workbook of a month's expenses, one row per
// expense plus a totals row.
func (s *Service) ExportMonthXLSX(month string) ([]byte, error) {
	if _, err := time.Parse("2006-01", month); err != nil {
		return nil, fmt.Errorf("invalid month %q, expected YYYY-MM", month)
	}

	expenses, err := s.ListExpenses(month, "")
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Expenses"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Date", "Item", "Store", "Brand", "Category", "Quantity", "Unit Price", "Total"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}

	total := decimal.Zero
	row := 2
	for _, e := range expenses {
		values := []any{
			e.Date.Format("2006-01-02"),
			e.Name,
			e.StoreName,
			e.Brand,
			e.Category,
			e.Quantity,
			centsToDollars(e.UnitPrice),
			centsToDollars(e.TotalPrice),
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("writing row: %w", err)
			}
		}
		total = total.Add(decimal.NewFromInt(int64(e.TotalPrice)))
		row++
	}

	totalCell, _ := excelize.CoordinatesToCellName(1, row)
	f.SetCellValue(sheet, totalCell, "Total")
	sumCell, _ := excelize.CoordinatesToCellName(len(headers), row)
	sumDollars, _ := total.Div(decimal.NewFromInt(100)).Float64()
	f.SetCellValue(sheet, sumCell, sumDollars)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}
