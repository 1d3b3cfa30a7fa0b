package processor

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"FlightAnalytics/src/utils"

	geohash "github.com/TomiHiltunen/geohash-golang"
)

var ErrUnknownMetric = errors.New("unknown passenger type")

// YearRange is an inclusive range of years. From > To selects nothing.
type YearRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (r YearRange) Contains(year int) bool { return year >= r.From && year <= r.To }

func (r YearRange) Empty() bool { return r.From > r.To }

// FullRange spans every year in ds, the default selection of the dashboard.
func FullRange(ds *Dataset) YearRange {
	if ds == nil || len(ds.years) == 0 {
		return YearRange{}
	}
	return YearRange{From: ds.years[0], To: ds.years[len(ds.years)-1]}
}

// Metric selects the passenger trend chart.
type Metric string

const (
	MetricDomestic      Metric = "domestic"
	MetricInternational Metric = "international"
)

// ParseMetric accepts the selector values and the dropdown labels.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "domestic", "domestic passengers":
		return MetricDomestic, nil
	case "international", "international passengers":
		return MetricInternational, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

type YearValue struct {
	Year       int     `json:"year"`
	Passengers float64 `json:"passengers"`
}

type YearInternational struct {
	Year     int     `json:"year"`
	Outbound float64 `json:"outbound"`
	Inbound  float64 `json:"inbound"`
}

// AirportTotal is one point of the geographic scatter.
type AirportTotal struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Passengers float64 `json:"passengers"`
	Geohash    string  `json:"geohash"`
}

// RankedAirport is one row of the top airports table.
type RankedAirport struct {
	Rank       int     `json:"rank"`
	Code       string  `json:"code"`
	City       string  `json:"city"`
	Passengers float64 `json:"passengers"`
	Formatted  string  `json:"formatted"` // passengers with thousands separators
}

// Trend is the passenger type chart: exactly one of the series is set.
type Trend struct {
	Metric        Metric              `json:"metric"`
	Domestic      []YearValue         `json:"domestic,omitempty"`
	International []YearInternational `json:"international,omitempty"`
}

// YearlyTotal sums total passengers per year, ascending by year.
func YearlyTotal(ds *Dataset, r YearRange) []YearValue {
	return sumByYear(ds, r, func(rec *EnrichedRecord) float64 { return rec.TotalPassengers })
}

// YearlyDomestic sums domestic passengers per year, ascending by year.
func YearlyDomestic(ds *Dataset, r YearRange) []YearValue {
	return sumByYear(ds, r, func(rec *EnrichedRecord) float64 { return rec.DomesticPassengers })
}

func sumByYear(ds *Dataset, r YearRange, pick func(*EnrichedRecord) float64) []YearValue {
	out := make([]YearValue, 0)
	if ds == nil || r.Empty() {
		return out
	}

	sums := make(map[int]float64)
	for i := range ds.records {
		rec := &ds.records[i]
		if !r.Contains(rec.Year) {
			continue
		}
		sums[rec.Year] = sumPresent(sums[rec.Year], pick(rec))
	}

	for year, sum := range sums {
		out = append(out, YearValue{Year: year, Passengers: sum})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// YearlyInternational sums outbound and inbound international passengers
// per year, ascending by year.
func YearlyInternational(ds *Dataset, r YearRange) []YearInternational {
	out := make([]YearInternational, 0)
	if ds == nil || r.Empty() {
		return out
	}

	byYear := make(map[int]*YearInternational)
	for i := range ds.records {
		rec := &ds.records[i]
		if !r.Contains(rec.Year) {
			continue
		}
		acc, ok := byYear[rec.Year]
		if !ok {
			acc = &YearInternational{Year: rec.Year}
			byYear[rec.Year] = acc
		}
		acc.Outbound = sumPresent(acc.Outbound, rec.OutboundIntlPassengers)
		acc.Inbound = sumPresent(acc.Inbound, rec.InboundIntlPassengers)
	}

	for _, acc := range byYear {
		out = append(out, *acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// PassengerTrend returns the domestic or international series for metric.
func PassengerTrend(ds *Dataset, r YearRange, metric Metric) (Trend, error) {
	switch metric {
	case MetricDomestic:
		return Trend{Metric: metric, Domestic: YearlyDomestic(ds, r)}, nil
	case MetricInternational:
		return Trend{Metric: metric, International: YearlyInternational(ds, r)}, nil
	}
	return Trend{}, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
}

type airportKey struct {
	code      string
	name      string
	latitude  float64
	longitude float64
}

// AirportTotals sums total passengers per airport for the map, ordered by
// code then name.
func AirportTotals(ds *Dataset, r YearRange) []AirportTotal {
	out := make([]AirportTotal, 0)
	if ds == nil || r.Empty() {
		return out
	}

	sums := make(map[airportKey]float64)
	for i := range ds.records {
		rec := &ds.records[i]
		if !r.Contains(rec.Year) {
			continue
		}
		key := airportKey{code: rec.Code, name: rec.Name, latitude: rec.Latitude, longitude: rec.Longitude}
		sums[key] = sumPresent(sums[key], rec.TotalPassengers)
	}

	for key, sum := range sums {
		out = append(out, AirportTotal{
			Code:       key.code,
			Name:       key.name,
			Latitude:   key.latitude,
			Longitude:  key.longitude,
			Passengers: sum,
			Geohash:    geohash.Encode(key.latitude, key.longitude),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Latitude != b.Latitude {
			return a.Latitude < b.Latitude
		}
		return a.Longitude < b.Longitude
	})
	return out
}

// TopAirports ranks airports by summed total passengers, highest first.
// Airports with equal sums keep the order in which they first appear in the
// dataset. At most n entries are returned.
func TopAirports(ds *Dataset, r YearRange, n int) []RankedAirport {
	out := make([]RankedAirport, 0)
	if ds == nil || r.Empty() || n <= 0 {
		return out
	}

	type cityKey struct{ code, city string }
	index := make(map[cityKey]int)
	var groups []RankedAirport

	for i := range ds.records {
		rec := &ds.records[i]
		if !r.Contains(rec.Year) {
			continue
		}
		key := cityKey{rec.Code, rec.City}
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, RankedAirport{Code: rec.Code, City: rec.City})
		}
		groups[pos].Passengers = sumPresent(groups[pos].Passengers, rec.TotalPassengers)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Passengers > groups[j].Passengers
	})

	if len(groups) > n {
		groups = groups[:n]
	}
	for i := range groups {
		groups[i].Rank = i + 1
		groups[i].Formatted = utils.FormatCount(groups[i].Passengers)
		out = append(out, groups[i])
	}
	return out
}

// Query is one set of dashboard controls.
type Query struct {
	Range  YearRange
	Metric Metric
	TopN   int
}

// Dashboard holds every view for one query.
type Dashboard struct {
	Range    YearRange       `json:"range"`
	Total    []YearValue     `json:"total"`
	Trend    Trend           `json:"trend"`
	Airports []AirportTotal  `json:"airports"`
	Top      []RankedAirport `json:"top"`
}

// BuildDashboard evaluates every view of q against ds. TopN only affects
// the top airports table.
func BuildDashboard(ds *Dataset, q Query) (Dashboard, error) {
	if ds == nil {
		return Dashboard{}, ErrNoDataset
	}
	trend, err := PassengerTrend(ds, q.Range, q.Metric)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Range:    q.Range,
		Total:    YearlyTotal(ds, q.Range),
		Trend:    trend,
		Airports: AirportTotals(ds, q.Range),
		Top:      TopAirports(ds, q.Range, q.TopN),
	}, nil
}
