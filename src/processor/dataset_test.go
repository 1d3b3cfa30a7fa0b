package processor

import (
	"fmt"
	"math"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trafficHeader = []string{
	"Year", "Origin Airport Code", "Origin Airport Name", "Origin City Name",
	"Total Passengers", "Domestic Passengers",
	"Outbound International Passengers", "Inbound International Passengers",
}

func trafficFrame(rows ...[]string) dataframe.DataFrame {
	records := append([][]string{trafficHeader}, rows...)
	return dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
}

type recordingLogger struct {
	debug, info, warning []string
}

func (l *recordingLogger) Debug(msg string)   { l.debug = append(l.debug, msg) }
func (l *recordingLogger) Info(msg string)    { l.info = append(l.info, msg) }
func (l *recordingLogger) Warning(msg string) { l.warning = append(l.warning, msg) }

// scenarioDataset is the three row example: JFK twice, XYZ without a location.
func scenarioDataset(t *testing.T) *Dataset {
	t.Helper()
	traffic := trafficFrame(
		[]string{"2019 est", "JFK", "John F. Kennedy International", "New York, NY", "10,000", "8,000", "1,000", "1,000"},
		[]string{"2020", "JFK", "John F. Kennedy International", "New York, NY", "12,000", "9,000", "1,500", "1,500"},
		[]string{"2019", "XYZ", "Nowhere Field", "Nowhere, ZZ", "5,000", "5,000", "0", "0"},
	)
	locations := []AirportLocation{NewLocation("JFK", "40.6413", "-73.7781")}

	ds, err := BuildDataset(traffic, locations, DefaultColumns(), nil)
	require.NoError(t, err)
	return ds
}

func TestBuildDatasetScenario(t *testing.T) {
	ds := scenarioDataset(t)

	require.Equal(t, 2, ds.Len())
	records := ds.Records()
	assert.Equal(t, 2019, records[0].Year)
	assert.Equal(t, 2020, records[1].Year)
	for _, r := range records {
		assert.Equal(t, "JFK", r.Code)
		assert.Equal(t, "New York, NY", r.City)
		assert.InDelta(t, 40.6413, r.Latitude, 1e-9)
	}
	assert.Equal(t, []int{2019, 2020}, ds.Years())
	assert.Equal(t, LoadStats{RowsRead: 3, NoLocation: 1, Kept: 2}, ds.Stats())
}

func TestBuildDatasetDropsBadRows(t *testing.T) {
	traffic := trafficFrame(
		[]string{"unknown", "JFK", "JFK", "New York", "1", "1", "0", "0"},
		[]string{"2018", "LAX", "LAX", "Los Angeles", "N/A", "2", "0", "0"},
		[]string{"2018", "BAD", "Bad Coords", "Somewhere", "3", "3", "0", "0"},
		[]string{"2018", "OOR", "Out Of Range", "Somewhere", "3", "3", "0", "0"},
		[]string{"2018", " SFO ", "SFO", "San Francisco", "4", "4", "0", "0"},
	)
	locations := []AirportLocation{
		NewLocation("JFK", "40.6", "-73.7"),
		NewLocation("LAX", "33.9", "-118.4"),
		NewLocation("LAX", "0", "0"),
		NewLocation("BAD", "", "-1"),
		NewLocation("OOR", "123", "10"),
		NewLocation("SFO", "37.6", "-122.3"),
	}
	log := &recordingLogger{}

	ds, err := BuildDataset(traffic, locations, DefaultColumns(), log)
	require.NoError(t, err)

	records := ds.Records()
	require.Len(t, records, 2)

	// the first LAX location wins
	assert.Equal(t, "LAX", records[0].Code)
	assert.InDelta(t, 33.9, records[0].Latitude, 1e-9)
	assert.True(t, IsMissing(records[0].TotalPassengers))
	assert.Equal(t, 2.0, records[0].DomesticPassengers)
	assert.Equal(t, 2, records[0].Row)

	assert.Equal(t, "SFO", records[1].Code)
	assert.Equal(t, 5, records[1].Row)

	assert.Equal(t, LoadStats{RowsRead: 5, BadYear: 1, NoLocation: 2, Kept: 2}, ds.Stats())
	assert.Len(t, log.debug, 3)
	assert.Len(t, log.warning, 1)
	require.Len(t, log.info, 1)
	assert.Contains(t, log.info[0], "kept 2")
}

func TestWorkingDatasetInvariant(t *testing.T) {
	var rows [][]string
	for i := 0; i < 40; i++ {
		year := fmt.Sprintf("%d", 2000+i%7)
		if i%5 == 0 {
			year = "n/a"
		}
		code := []string{"AAA", "BBB", "CCC", "DDD"}[i%4]
		rows = append(rows, []string{year, code, code, code + " city", "1,000", "500", "250", "250"})
	}
	locations := []AirportLocation{
		NewLocation("AAA", "10", "10"),
		NewLocation("BBB", "x", "10"),
		NewLocation("CCC", "-45.5", "170"),
	}

	ds, err := BuildDataset(trafficFrame(rows...), locations, DefaultColumns(), nil)
	require.NoError(t, err)
	require.NotZero(t, ds.Len())

	for _, r := range ds.Records() {
		assert.True(t, r.Year >= 2000 && r.Year <= 2006)
		assert.False(t, math.IsNaN(r.Latitude))
		assert.False(t, math.IsNaN(r.Longitude))
		assert.Contains(t, []string{"AAA", "CCC"}, r.Code)
	}
}

func TestBuildDatasetMissingColumns(t *testing.T) {
	traffic := dataframe.LoadRecords([][]string{
		{"Year", "Origin Airport Code"},
		{"2019", "JFK"},
	}, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))

	_, err := BuildDataset(traffic, nil, DefaultColumns(), nil)
	require.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), "Total Passengers")
	assert.NotContains(t, err.Error(), "Origin Airport Code,")
}

func TestDatasetIsNotShared(t *testing.T) {
	ds := scenarioDataset(t)

	records := ds.Records()
	records[0].TotalPassengers = -1
	years := ds.Years()
	years[0] = 1900

	assert.Equal(t, 10000.0, ds.Records()[0].TotalPassengers)
	assert.Equal(t, 2019, ds.Years()[0])
}

func TestDatasetFrame(t *testing.T) {
	ds := scenarioDataset(t)
	df := ds.Frame()

	require.NoError(t, df.Err)
	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, 10, df.Ncol())
	assert.Equal(t, []string{"JFK", "JFK"}, df.Col("Origin Airport Code").Records())
	assert.Equal(t, 22000.0, df.Col("Total Passengers").Sum())
}

func TestLocationResolved(t *testing.T) {
	assert.True(t, NewLocation("A", "0", "0").Resolved())
	assert.True(t, NewLocation("A", "-89.5", "179.5").Resolved())
	assert.False(t, NewLocation("A", "91", "0").Resolved())
	assert.False(t, NewLocation("A", "10", "").Resolved())
}
