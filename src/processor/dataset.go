package processor

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"FlightAnalytics/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/golang/geo/s2"
)

var (
	ErrMissingColumns = errors.New("missing required columns")
	ErrNoDataset      = errors.New("dataset not loaded")
)

// Logger is the subset of storage.Logger the processor writes to.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warning(msg string)
}

type nopLogger struct{}

func (nopLogger) Debug(string)   {}
func (nopLogger) Info(string)    {}
func (nopLogger) Warning(string) {}

// Columns names the traffic table headers the loader reads.
type Columns struct {
	Year     string
	Code     string
	Name     string
	City     string
	Total    string
	Domestic string
	Outbound string
	Inbound  string
}

// DefaultColumns returns the headers of the published table.
func DefaultColumns() Columns {
	return Columns{
		Year:     "Year",
		Code:     "Origin Airport Code",
		Name:     "Origin Airport Name",
		City:     "Origin City Name",
		Total:    "Total Passengers",
		Domestic: "Domestic Passengers",
		Outbound: "Outbound International Passengers",
		Inbound:  "Inbound International Passengers",
	}
}

func (c Columns) names() []string {
	return []string{c.Year, c.Code, c.Name, c.City, c.Total, c.Domestic, c.Outbound, c.Inbound}
}

// AirportTrafficRecord is one cleaned row of the traffic table. Counts are
// Missing() when the cell did not parse.
type AirportTrafficRecord struct {
	Code                   string
	Name                   string
	City                   string
	Year                   int
	TotalPassengers        float64
	DomesticPassengers     float64
	OutboundIntlPassengers float64
	InboundIntlPassengers  float64
}

// AirportLocation is one row of the location table.
type AirportLocation struct {
	Code      string
	Latitude  float64
	Longitude float64
}

// NewLocation parses the raw cells of a location row.
func NewLocation(code, latitude, longitude string) AirportLocation {
	return AirportLocation{
		Code:      strings.TrimSpace(code),
		Latitude:  NormalizeNumeric(latitude),
		Longitude: NormalizeNumeric(longitude),
	}
}

// Resolved reports whether the coordinates are usable on a map.
func (l AirportLocation) Resolved() bool {
	if IsMissing(l.Latitude) || IsMissing(l.Longitude) {
		return false
	}
	return s2.LatLngFromDegrees(l.Latitude, l.Longitude).IsValid()
}

// EnrichedRecord is a traffic record joined with its airport location.
type EnrichedRecord struct {
	AirportTrafficRecord
	Latitude  float64
	Longitude float64
	Row       int // 1-based data row in the traffic table
}

// LoadStats counts what happened to the traffic rows during a load.
type LoadStats struct {
	RowsRead   int `json:"rows_read"`
	BadYear    int `json:"bad_year"`
	NoLocation int `json:"no_location"`
	Kept       int `json:"kept"`
}

func (s LoadStats) String() string {
	return fmt.Sprintf("read %d rows, kept %d, dropped %d without a year and %d without coordinates",
		s.RowsRead, s.Kept, s.BadYear, s.NoLocation)
}

// Dataset is the immutable working dataset. Build one with BuildDataset;
// none of its methods modify it.
type Dataset struct {
	records  []EnrichedRecord
	years    []int
	stats    LoadStats
	loadedAt time.Time
}

// NewDataset wraps already enriched records, e.g. in tests. The slice is copied.
func NewDataset(records []EnrichedRecord) *Dataset {
	ds := &Dataset{
		records:  append([]EnrichedRecord(nil), records...),
		loadedAt: time.Now(),
	}
	ds.stats = LoadStats{RowsRead: len(records), Kept: len(records)}
	ds.years = distinctYears(ds.records)
	return ds
}

// BuildDataset cleans the traffic frame, joins it with locations on airport
// code and keeps only rows with a year and resolved coordinates. When a code
// appears more than once in locations the first occurrence wins.
func BuildDataset(traffic dataframe.DataFrame, locations []AirportLocation, cols Columns, log Logger) (*Dataset, error) {
	if log == nil {
		log = nopLogger{}
	}
	if traffic.Err != nil {
		return nil, fmt.Errorf("traffic table: %w", traffic.Err)
	}
	if missing := utils.MissingColumns(traffic, cols.names()...); len(missing) > 0 {
		return nil, fmt.Errorf("%w in traffic table: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	index := indexLocations(locations)

	// 1. raw columns as text
	years := traffic.Col(cols.Year).Records()
	codes := traffic.Col(cols.Code).Records()
	names := traffic.Col(cols.Name).Records()
	cities := traffic.Col(cols.City).Records()
	totals := traffic.Col(cols.Total).Records()
	domestic := traffic.Col(cols.Domestic).Records()
	outbound := traffic.Col(cols.Outbound).Records()
	inbound := traffic.Col(cols.Inbound).Records()

	ds := &Dataset{loadedAt: time.Now()}
	ds.stats.RowsRead = traffic.Nrow()
	ds.records = make([]EnrichedRecord, 0, traffic.Nrow())

	for i := 0; i < traffic.Nrow(); i++ {
		row := i + 1

		// 2. year, rows without one are dropped
		year, ok := ExtractYear(years[i])
		if !ok {
			ds.stats.BadYear++
			log.Debug(fmt.Sprintf("row %d dropped: no year in %q", row, years[i]))
			continue
		}

		// 3. join on airport code
		code := strings.TrimSpace(codes[i])
		loc, ok := index[code]
		if !ok || !loc.Resolved() {
			ds.stats.NoLocation++
			log.Debug(fmt.Sprintf("row %d dropped: no coordinates for airport %q", row, code))
			continue
		}

		// 4. counts, unparseable cells stay missing
		ds.records = append(ds.records, EnrichedRecord{
			AirportTrafficRecord: AirportTrafficRecord{
				Code:                   code,
				Name:                   strings.TrimSpace(names[i]),
				City:                   strings.TrimSpace(cities[i]),
				Year:                   year,
				TotalPassengers:        NormalizeNumeric(totals[i]),
				DomesticPassengers:     NormalizeNumeric(domestic[i]),
				OutboundIntlPassengers: NormalizeNumeric(outbound[i]),
				InboundIntlPassengers:  NormalizeNumeric(inbound[i]),
			},
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
			Row:       row,
		})
	}

	ds.stats.Kept = len(ds.records)
	ds.years = distinctYears(ds.records)

	if dropped := ds.stats.BadYear + ds.stats.NoLocation; dropped > 0 {
		log.Warning(fmt.Sprintf("%d traffic rows dropped during load", dropped))
	}
	log.Info("working dataset built: " + ds.stats.String())
	return ds, nil
}

func indexLocations(locations []AirportLocation) map[string]AirportLocation {
	index := make(map[string]AirportLocation, len(locations))
	for _, loc := range locations {
		code := strings.TrimSpace(loc.Code)
		if code == "" {
			continue
		}
		if _, seen := index[code]; seen {
			continue
		}
		loc.Code = code
		index[code] = loc
	}
	return index
}

func distinctYears(records []EnrichedRecord) []int {
	seen := make(map[int]bool)
	years := make([]int, 0)
	for _, r := range records {
		if !seen[r.Year] {
			seen[r.Year] = true
			years = append(years, r.Year)
		}
	}
	sort.Ints(years)
	return years
}

// Len is the number of records in the working dataset.
func (ds *Dataset) Len() int { return len(ds.records) }

// Records returns a copy of the records in source order.
func (ds *Dataset) Records() []EnrichedRecord {
	return append([]EnrichedRecord(nil), ds.records...)
}

// Years returns the distinct years in ascending order.
func (ds *Dataset) Years() []int {
	return append([]int(nil), ds.years...)
}

func (ds *Dataset) Stats() LoadStats { return ds.stats }

func (ds *Dataset) LoadedAt() time.Time { return ds.loadedAt }

// Frame renders the working dataset as a gota DataFrame for export.
func (ds *Dataset) Frame() dataframe.DataFrame {
	cols := DefaultColumns()
	n := len(ds.records)

	years := make([]int, n)
	codes := make([]string, n)
	names := make([]string, n)
	cities := make([]string, n)
	totals := make([]float64, n)
	domestic := make([]float64, n)
	outbound := make([]float64, n)
	inbound := make([]float64, n)
	lats := make([]float64, n)
	lons := make([]float64, n)

	for i, r := range ds.records {
		years[i] = r.Year
		codes[i] = r.Code
		names[i] = r.Name
		cities[i] = r.City
		totals[i] = r.TotalPassengers
		domestic[i] = r.DomesticPassengers
		outbound[i] = r.OutboundIntlPassengers
		inbound[i] = r.InboundIntlPassengers
		lats[i] = r.Latitude
		lons[i] = r.Longitude
	}

	return dataframe.New(
		series.New(years, series.Int, cols.Year),
		series.New(codes, series.String, cols.Code),
		series.New(names, series.String, cols.Name),
		series.New(cities, series.String, cols.City),
		series.New(totals, series.Float, cols.Total),
		series.New(domestic, series.Float, cols.Domestic),
		series.New(outbound, series.Float, cols.Outbound),
		series.New(inbound, series.Float, cols.Inbound),
		series.New(lats, series.Float, "latitude"),
		series.New(lons, series.Float, "longitude"),
	)
}
