// reader.go
package file

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"FlightAnalytics/src/config"
	"FlightAnalytics/src/processor"
	"FlightAnalytics/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/jszwec/csvutil"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

var ErrEmptyTable = errors.New("table has no header row")

const utf8BOM = "\ufeff"

// ReadOptions control how a source table is decoded.
type ReadOptions struct {
	Encoding  string // utf-8 (default), latin1, windows-1252 or gbk
	SheetName string // workbook sheet, first sheet when empty
}

// LocationRow is a raw row of the location table.
type LocationRow struct {
	Code      string `csv:"code"`
	Latitude  string `csv:"latitude"`
	Longitude string `csv:"longitude"`
}

// LocationColumns names the location table headers.
type LocationColumns struct {
	Code      string
	Latitude  string
	Longitude string
}

func DefaultLocationColumns() LocationColumns {
	return LocationColumns{Code: "code", Latitude: "latitude", Longitude: "longitude"}
}

// decodeReader wraps r so it yields UTF-8.
func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	name, ok := config.NormalizeEncoding(encoding)
	if !ok {
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
	switch name {
	case "latin1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	case "gbk":
		return transform.NewReader(r, simplifiedchinese.GBK.NewDecoder()), nil
	}
	return r, nil
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true // stray quotes inside numbers
	cr.TrimLeadingSpace = true
	return cr
}

// ReadTrafficFrame loads the traffic table into a DataFrame whose columns
// are all strings. Both .csv and .xlsx files are accepted.
func ReadTrafficFrame(path string, opts ReadOptions, required ...string) (dataframe.DataFrame, error) {
	var (
		records [][]string
		err     error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		records, err = readXLSXRecords(path, opts.SheetName)
	} else {
		records, err = readCSVRecords(path, opts.Encoding)
	}
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("traffic table %s: %w", path, err)
	}

	df := loadFrame(records)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("traffic table %s: %w", path, df.Err)
	}

	if missing := utils.MissingColumns(df, required...); len(missing) > 0 {
		return dataframe.DataFrame{}, fmt.Errorf("traffic table %s: %w: %s",
			path, processor.ErrMissingColumns, strings.Join(missing, ", "))
	}
	return df, nil
}

// loadFrame builds an all-string frame. A header without data rows gives an
// empty frame with the header's columns.
func loadFrame(records [][]string) dataframe.DataFrame {
	if len(records) == 1 {
		cols := make([]series.Series, len(records[0]))
		for i, name := range records[0] {
			cols[i] = series.New([]string{}, series.String, name)
		}
		return dataframe.New(cols...)
	}
	return dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
}

func readCSVRecords(path, encoding string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := decodeReader(f, encoding)
	if err != nil {
		return nil, err
	}

	cr := newCSVReader(r)
	cr.FieldsPerRecord = -1 // ragged rows are fitted to the header below
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyTable
	}
	cleanHeader(records[0])
	return fitRows(records), nil
}

// fitRows pads short rows with empty cells and trims long ones so every row
// matches the header width.
func fitRows(records [][]string) [][]string {
	width := len(records[0])
	for i, row := range records[1:] {
		switch {
		case len(row) < width:
			padded := make([]string, width)
			copy(padded, row)
			records[i+1] = padded
		case len(row) > width:
			records[i+1] = row[:width]
		}
	}
	return records
}

func cleanHeader(header []string) {
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], utf8BOM))
	}
}

func readXLSXRecords(path, sheetName string) ([][]string, error) {
	// 1. open the workbook
	xlFile, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}

	// 2. named sheet or the first one
	if len(xlFile.Sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		var ok bool
		if sheet, ok = xlFile.Sheet[sheetName]; !ok {
			return nil, fmt.Errorf("sheet %q not found", sheetName)
		}
	}

	// 3. rows as text
	return convertSheetToRecords(sheet)
}

// convertSheetToRecords reads the first row as the header and pads or trims
// every following row to the header width. Blank rows are skipped.
func convertSheetToRecords(sheet *xlsx.Sheet) ([][]string, error) {
	if len(sheet.Rows) == 0 || sheet.Rows[0] == nil {
		return nil, ErrEmptyTable
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, cell.Value)
	}
	cleanHeader(headers)

	records := make([][]string, 0, len(sheet.Rows))
	records = append(records, headers)

	for _, row := range sheet.Rows[1:] {
		if row == nil {
			continue
		}
		values := make([]string, len(headers))
		blank := true
		for i, cell := range row.Cells {
			if i >= len(headers) {
				break
			}
			values[i] = cell.Value
			if strings.TrimSpace(values[i]) != "" {
				blank = false
			}
		}
		if !blank {
			records = append(records, values)
		}
	}
	return records, nil
}

// ReadLocations decodes the location table. The configured header names are
// mapped onto LocationRow before decoding.
func ReadLocations(path string, opts ReadOptions, cols LocationColumns) ([]processor.AirportLocation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("location table %s: %w", path, err)
	}
	defer f.Close()

	r, err := decodeReader(f, opts.Encoding)
	if err != nil {
		return nil, fmt.Errorf("location table %s: %w", path, err)
	}
	cr := newCSVReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("location table %s: %w", path, ErrEmptyTable)
	}
	if err != nil {
		return nil, fmt.Errorf("location table %s: %w", path, err)
	}
	cleanHeader(header)

	rename := map[string]string{
		cols.Code:      "code",
		cols.Latitude:  "latitude",
		cols.Longitude: "longitude",
	}
	var missing []string
	for _, name := range []string{cols.Code, cols.Latitude, cols.Longitude} {
		if !utils.Contains(header, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("location table %s: %w: %s",
			path, processor.ErrMissingColumns, strings.Join(missing, ", "))
	}

	mapped := make([]string, len(header))
	for i, h := range header {
		if tag, ok := rename[h]; ok {
			mapped[i] = tag
		} else {
			mapped[i] = h
		}
	}

	dec, err := csvutil.NewDecoder(cr, mapped...)
	if err != nil {
		return nil, fmt.Errorf("location table %s: %w", path, err)
	}

	var rows []LocationRow
	if err := dec.Decode(&rows); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode location table %s: %w", path, err)
	}

	locations := make([]processor.AirportLocation, 0, len(rows))
	for _, row := range rows {
		locations = append(locations, processor.NewLocation(row.Code, row.Latitude, row.Longitude))
	}
	return locations, nil
}

// ColumnsFromConfig maps the data config onto the processor and reader
// column sets.
func ColumnsFromConfig(dcfg *config.DataConfig) (processor.Columns, LocationColumns) {
	if dcfg == nil {
		return processor.DefaultColumns(), DefaultLocationColumns()
	}
	traffic := processor.Columns{
		Year:     dcfg.GetTrafficColumn(config.ColYear),
		Code:     dcfg.GetTrafficColumn(config.ColCode),
		Name:     dcfg.GetTrafficColumn(config.ColName),
		City:     dcfg.GetTrafficColumn(config.ColCity),
		Total:    dcfg.GetTrafficColumn(config.ColTotal),
		Domestic: dcfg.GetTrafficColumn(config.ColDomestic),
		Outbound: dcfg.GetTrafficColumn(config.ColOutbound),
		Inbound:  dcfg.GetTrafficColumn(config.ColInbound),
	}
	location := LocationColumns{
		Code:      dcfg.GetLocationColumn(config.ColLocationCode),
		Latitude:  dcfg.GetLocationColumn(config.ColLatitude),
		Longitude: dcfg.GetLocationColumn(config.ColLongitude),
	}
	return traffic, location
}

// LoadDataset reads both source tables and builds the working dataset.
// Any missing file or column is returned as an error and nothing is built.
func LoadDataset(cfg *config.Config, dcfg *config.DataConfig, log processor.Logger) (*processor.Dataset, error) {
	trafficCols, locationCols := ColumnsFromConfig(dcfg)
	opts := ReadOptions{Encoding: cfg.SourceEncoding, SheetName: cfg.SheetName}

	traffic, err := ReadTrafficFrame(cfg.TrafficPath(), opts,
		trafficCols.Year, trafficCols.Code, trafficCols.Name, trafficCols.City,
		trafficCols.Total, trafficCols.Domestic, trafficCols.Outbound, trafficCols.Inbound)
	if err != nil {
		return nil, err
	}

	locations, err := ReadLocations(cfg.LocationPath(), ReadOptions{Encoding: cfg.SourceEncoding}, locationCols)
	if err != nil {
		return nil, err
	}

	return processor.BuildDataset(traffic, locations, trafficCols, log)
}
