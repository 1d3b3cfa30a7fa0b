package processor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(code, city string, year int, total, domestic, outbound, inbound float64) EnrichedRecord {
	return EnrichedRecord{
		AirportTrafficRecord: AirportTrafficRecord{
			Code:                   code,
			Name:                   code + " Airport",
			City:                   city,
			Year:                   year,
			TotalPassengers:        total,
			DomesticPassengers:     domestic,
			OutboundIntlPassengers: outbound,
			InboundIntlPassengers:  inbound,
		},
		Latitude:  40,
		Longitude: -100,
	}
}

func sampleDataset() *Dataset {
	return NewDataset([]EnrichedRecord{
		rec("ATL", "Atlanta, GA", 2018, 100, 80, 10, 10),
		rec("ORD", "Chicago, IL", 2018, 300, 250, 25, 25),
		rec("ATL", "Atlanta, GA", 2019, 150, 120, 15, 15),
		rec("DEN", "Denver, CO", 2019, 300, 290, 5, 5),
		rec("ORD", "Chicago, IL", 2020, Missing(), 40, Missing(), 3),
		rec("LAX", "Los Angeles, CA", 2020, 50, 30, 10, 10),
		rec("ATL", "Atlanta, GA", 2021, 60, 60, 0, 0),
	})
}

func TestScenarioAggregations(t *testing.T) {
	ds := scenarioDataset(t)
	r := YearRange{From: 2019, To: 2020}

	assert.Equal(t, []YearValue{{2019, 10000}, {2020, 12000}}, YearlyTotal(ds, r))

	top := TopAirports(ds, r, 5)
	require.Len(t, top, 1)
	assert.Equal(t, RankedAirport{Rank: 1, Code: "JFK", City: "New York, NY", Passengers: 22000, Formatted: "22,000"}, top[0])

	for _, a := range AirportTotals(ds, r) {
		assert.NotEqual(t, "XYZ", a.Code)
	}
}

func TestYearlyTotalMatchesFullScan(t *testing.T) {
	ds := sampleDataset()

	var naive float64
	for _, r := range ds.Records() {
		if !IsMissing(r.TotalPassengers) {
			naive += r.TotalPassengers
		}
	}

	var summed float64
	for _, yv := range YearlyTotal(ds, FullRange(ds)) {
		summed += yv.Passengers
	}
	assert.Equal(t, naive, summed)
}

func TestYearlyViews(t *testing.T) {
	ds := sampleDataset()
	r := YearRange{From: 2018, To: 2020}

	assert.Equal(t, []YearValue{{2018, 400}, {2019, 450}, {2020, 50}}, YearlyTotal(ds, r))
	assert.Equal(t, []YearValue{{2018, 330}, {2019, 410}, {2020, 70}}, YearlyDomestic(ds, r))
	assert.Equal(t, []YearInternational{
		{Year: 2018, Outbound: 35, Inbound: 35},
		{Year: 2019, Outbound: 20, Inbound: 20},
		{Year: 2020, Outbound: 10, Inbound: 13},
	}, YearlyInternational(ds, r))
}

func TestEmptySelections(t *testing.T) {
	ds := sampleDataset()

	for _, r := range []YearRange{{From: 1990, To: 1995}, {From: 2020, To: 2019}} {
		assert.NotNil(t, YearlyTotal(ds, r))
		assert.Empty(t, YearlyTotal(ds, r))
		assert.Empty(t, YearlyDomestic(ds, r))
		assert.Empty(t, YearlyInternational(ds, r))
		assert.Empty(t, AirportTotals(ds, r))
		assert.Empty(t, TopAirports(ds, r, 5))
	}

	assert.Empty(t, TopAirports(ds, FullRange(ds), 0))
	assert.Empty(t, YearlyTotal(nil, YearRange{From: 2018, To: 2020}))
	assert.Equal(t, YearRange{}, FullRange(NewDataset(nil)))
}

func TestAirportTotals(t *testing.T) {
	ds := sampleDataset()

	totals := AirportTotals(ds, FullRange(ds))
	require.Len(t, totals, 4)

	codes := make([]string, len(totals))
	for i, a := range totals {
		codes[i] = a.Code
		assert.NotEmpty(t, a.Geohash)
	}
	assert.Equal(t, []string{"ATL", "DEN", "LAX", "ORD"}, codes)
	assert.Equal(t, 310.0, totals[0].Passengers)
	assert.Equal(t, "ATL Airport", totals[0].Name)
	assert.Equal(t, 300.0, totals[3].Passengers)
}

func TestTopAirports(t *testing.T) {
	ds := sampleDataset()
	full := FullRange(ds)

	top := TopAirports(ds, full, 3)
	require.Len(t, top, 3)

	// ATL 310, ORD 300, DEN 300: ORD is seen before DEN
	assert.Equal(t, "ATL", top[0].Code)
	assert.Equal(t, "ORD", top[1].Code)
	assert.Equal(t, "DEN", top[2].Code)
	for i, a := range top {
		assert.Equal(t, i+1, a.Rank)
		if i > 0 {
			assert.GreaterOrEqual(t, top[i-1].Passengers, a.Passengers)
		}
	}

	assert.Len(t, TopAirports(ds, full, 20), 4)
}

func TestTopAirportsSubsetOfAirportTotals(t *testing.T) {
	ds := sampleDataset()

	for _, r := range []YearRange{FullRange(ds), {From: 2019, To: 2019}, {From: 2020, To: 2021}} {
		totals := make(map[string]float64)
		for _, a := range AirportTotals(ds, r) {
			totals[a.Code] += a.Passengers
		}
		for _, n := range []int{1, 2, 5, 10} {
			top := TopAirports(ds, r, n)
			assert.LessOrEqual(t, len(top), n)
			for _, a := range top {
				sum, ok := totals[a.Code]
				assert.True(t, ok, a.Code)
				assert.Equal(t, sum, a.Passengers)
			}
		}
	}
}

func TestTopNDoesNotChangeYearlyViews(t *testing.T) {
	ds := sampleDataset()
	base := Query{Range: FullRange(ds), Metric: MetricInternational, TopN: 5}

	first, err := BuildDashboard(ds, base)
	require.NoError(t, err)

	base.TopN = 1
	second, err := BuildDashboard(ds, base)
	require.NoError(t, err)

	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, first.Trend, second.Trend)
	assert.Equal(t, first.Airports, second.Airports)
	assert.Len(t, second.Top, 1)
	assert.Len(t, first.Top, 4)
}

func TestPassengerTrend(t *testing.T) {
	ds := sampleDataset()
	r := FullRange(ds)

	domestic, err := PassengerTrend(ds, r, MetricDomestic)
	require.NoError(t, err)
	assert.Equal(t, YearlyDomestic(ds, r), domestic.Domestic)
	assert.Nil(t, domestic.International)

	intl, err := PassengerTrend(ds, r, MetricInternational)
	require.NoError(t, err)
	assert.Equal(t, YearlyInternational(ds, r), intl.International)

	_, err = PassengerTrend(ds, r, Metric("cargo"))
	assert.ErrorIs(t, err, ErrUnknownMetric)

	_, err = BuildDashboard(nil, Query{Metric: MetricDomestic})
	assert.ErrorIs(t, err, ErrNoDataset)
}

func TestParseMetric(t *testing.T) {
	for in, want := range map[string]Metric{
		"domestic":                 MetricDomestic,
		"Domestic Passengers":      MetricDomestic,
		" INTERNATIONAL ":          MetricInternational,
		"International Passengers": MetricInternational,
	} {
		got, err := ParseMetric(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseMetric("freight")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestConcurrentQueries(t *testing.T) {
	ds := sampleDataset()
	want := YearlyTotal(ds, FullRange(ds))

	var wg sync.WaitGroup
	results := make([][]YearValue, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			TopAirports(ds, FullRange(ds), i+1)
			results[i] = YearlyTotal(ds, FullRange(ds))
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestDatasetWrapper(t *testing.T) {
	var w DatasetWrapper

	_, err := w.GetDS()
	assert.ErrorIs(t, err, ErrNoDataset)

	first := sampleDataset()
	w.SetDS(first)

	_, err = w.Reload(func() (*Dataset, error) { return nil, ErrMissingColumns })
	assert.ErrorIs(t, err, ErrMissingColumns)
	got, err := w.GetDS()
	require.NoError(t, err)
	assert.Same(t, first, got)

	second := NewDataset(nil)
	_, err = w.Reload(func() (*Dataset, error) { return second, nil })
	require.NoError(t, err)
	got, _ = w.GetDS()
	assert.Same(t, second, got)
}
