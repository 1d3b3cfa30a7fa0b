package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"FlightAnalytics/src/processor"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

const (
	SheetTotal         = "Total"
	SheetDomestic      = "Domestic"
	SheetInternational = "International"
	SheetAirports      = "Airports"
	SheetTop           = "Top Airports"
	SheetData          = "Data"

	fileTimeLayout = "20060102_150405"
)

// Build renders every view of ds for the selected years into a workbook.
// The caller closes the returned file.
func Build(ds *processor.Dataset, r processor.YearRange, topN int) (*excelize.File, error) {
	if ds == nil {
		return nil, processor.ErrNoDataset
	}

	f := excelize.NewFile()
	// NewFile starts with Sheet1, rename it instead of leaving it empty
	if err := f.SetSheetName("Sheet1", SheetTotal); err != nil {
		f.Close()
		return nil, err
	}

	sheets := []struct {
		name   string
		header []string
		rows   [][]any
	}{
		{SheetTotal, []string{"Year", "Total Passengers"}, yearRows(processor.YearlyTotal(ds, r))},
		{SheetDomestic, []string{"Year", "Domestic Passengers"}, yearRows(processor.YearlyDomestic(ds, r))},
		{SheetInternational, []string{"Year", "Outbound International Passengers", "Inbound International Passengers"}, internationalRows(processor.YearlyInternational(ds, r))},
		{SheetAirports, []string{"Code", "Name", "Latitude", "Longitude", "Geohash", "Total Passengers"}, airportRows(processor.AirportTotals(ds, r))},
		{SheetTop, []string{"Rank", "Code", "City", "Total Passengers"}, topRows(processor.TopAirports(ds, r, topN))},
	}

	for i, s := range sheets {
		if i > 0 {
			if _, err := f.NewSheet(s.name); err != nil {
				f.Close()
				return nil, err
			}
		}
		if err := writeSheet(f, s.name, s.header, s.rows); err != nil {
			f.Close()
			return nil, err
		}
	}

	if _, err := f.NewSheet(SheetData); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeFrame(f, SheetData, ds.Frame()); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// WriteWorkbook streams the workbook to w.
func WriteWorkbook(w io.Writer, ds *processor.Dataset, r processor.YearRange, topN int) error {
	f, err := Build(ds, r, topN)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveReport writes a timestamped workbook under dir and returns its path.
func SaveReport(dir string, ds *processor.Dataset, r processor.YearRange, topN int, now time.Time) (string, error) {
	f, err := Build(ds, r, topN)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("passengers_%s.xlsx", now.Format(fileTimeLayout)))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any) error {
	for i, name := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for c, v := range row {
			if missing(v) {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeFrame(f *excelize.File, sheet string, df dataframe.DataFrame) error {
	colNames := df.Names()
	rows := make([][]any, df.Nrow())
	for rowIdx := range rows {
		rows[rowIdx] = make([]any, len(colNames))
		for colIdx, colName := range colNames {
			rows[rowIdx][colIdx] = df.Col(colName).Val(rowIdx)
		}
	}
	return writeSheet(f, sheet, colNames, rows)
}

// missing cells are left empty rather than written as NaN
func missing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	}
	return false
}

func yearRows(values []processor.YearValue) [][]any {
	rows := make([][]any, 0, len(values))
	for _, v := range values {
		rows = append(rows, []any{v.Year, v.Passengers})
	}
	return rows
}

func internationalRows(values []processor.YearInternational) [][]any {
	rows := make([][]any, 0, len(values))
	for _, v := range values {
		rows = append(rows, []any{v.Year, v.Outbound, v.Inbound})
	}
	return rows
}

func airportRows(values []processor.AirportTotal) [][]any {
	rows := make([][]any, 0, len(values))
	for _, v := range values {
		rows = append(rows, []any{v.Code, v.Name, v.Latitude, v.Longitude, v.Geohash, v.Passengers})
	}
	return rows
}

func topRows(values []processor.RankedAirport) [][]any {
	rows := make([][]any, 0, len(values))
	for _, v := range values {
		rows = append(rows, []any{v.Rank, v.Code, v.City, v.Passengers})
	}
	return rows
}
