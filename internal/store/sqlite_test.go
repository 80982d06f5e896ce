package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopulse/ecopulse/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	err = s.Init(
		[]config.Location{
			{Key: "ams", Name: "Amsterdam", Lat: 52.3676, Lon: 4.9041, WikipediaURL: "https://en.wikipedia.org/wiki/Amsterdam"},
			{Key: "bru", Name: "Brussels", Lat: 50.8503, Lon: 4.3517, WikipediaURL: "https://en.wikipedia.org/wiki/Brussels"},
			{Key: "nyc", Name: "New York City", Lat: 40.7128, Lon: -74.0060, WikipediaURL: "https://en.wikipedia.org/wiki/New_York_City"},
		},
		[]config.Region{
			{Code: "NLD", Name: "Netherlands"},
			{Code: "EUU", Name: "European Union"},
			{Code: "USA", Name: "United States"},
			{Code: "WLD", Name: "World"},
		},
		[]config.Indicator{
			{Code: "FP.CPI.TOTL.ZG", Name: "Inflation (annual %)"},
		},
	)
	require.NoError(t, err)
	return s
}

func f(v float64) *float64 { return &v }

func TestInitSeedsDimensions(t *testing.T) {
	s := newTestStore(t)

	locations, err := s.Locations()
	require.NoError(t, err)
	require.Len(t, locations, 3)
	assert.Equal(t, "ams", locations[0].Key)
	assert.Equal(t, "Amsterdam", locations[0].Name)
	assert.Empty(t, locations[0].WikiTitle)

	// Re-running Init must not clobber existing rows.
	require.NoError(t, s.UpdateLocationWiki("ams", "Amsterdam", "Capital of the Netherlands."))
	require.NoError(t, s.Init(
		[]config.Location{{Key: "ams", Name: "Amsterdam", Lat: 52.3676, Lon: 4.9041}},
		nil, nil,
	))

	locations, err = s.Locations()
	require.NoError(t, err)
	assert.Equal(t, "Amsterdam", locations[0].WikiTitle)
	assert.Equal(t, "Capital of the Netherlands.", locations[0].WikiSummary)
}

func TestUpsertEnvHourly(t *testing.T) {
	s := newTestStore(t)

	batch := []EnvRow{
		{LocationKey: "ams", TsUTC: "2024-01-01T00:00:00Z", TempC: f(5.0), WindKph: f(10.0), PrecipMM: f(0.2), PM25: f(3.3), PM10: f(4.4), EuropeanAQI: f(55), USAQI: f(60)},
		{LocationKey: "bru", TsUTC: "2024-01-01T01:00:00Z", TempC: f(6.0), WindKph: f(11.0), PrecipMM: f(0.1), PM25: f(3.0), PM10: f(4.0), EuropeanAQI: f(50), USAQI: f(58)},
	}
	require.NoError(t, s.UpsertEnvHourly(batch))

	t.Run("idempotent", func(t *testing.T) {
		require.NoError(t, s.UpsertEnvHourly(batch))

		rows, err := s.LatestEnvRows("ams", 10)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 5.0, *rows[0].TempC)
	})

	t.Run("last write wins replaces full measure set", func(t *testing.T) {
		update := []EnvRow{
			{LocationKey: "ams", TsUTC: "2024-01-01T00:00:00Z", TempC: f(7.5), WindKph: f(12.0), PrecipMM: f(0.3)},
		}
		require.NoError(t, s.UpsertEnvHourly(update))

		rows, err := s.LatestEnvRows("ams", 10)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 7.5, *rows[0].TempC)
		assert.Equal(t, 12.0, *rows[0].WindKph)
		assert.Equal(t, 0.3, *rows[0].PrecipMM)
		// Air measures were absent from the update and must not survive
		// from the earlier write.
		assert.Nil(t, rows[0].PM25)
		assert.Nil(t, rows[0].EuropeanAQI)
	})

	t.Run("rows ordered newest first", func(t *testing.T) {
		more := []EnvRow{
			{LocationKey: "ams", TsUTC: "2024-01-01T02:00:00Z", TempC: f(4.0)},
			{LocationKey: "ams", TsUTC: "2024-01-01T01:00:00Z", TempC: f(4.5)},
		}
		require.NoError(t, s.UpsertEnvHourly(more))

		rows, err := s.LatestEnvRows("ams", 2)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "2024-01-01T02:00:00Z", rows[0].TsUTC)
		assert.Equal(t, "2024-01-01T01:00:00Z", rows[1].TsUTC)
	})
}

func TestLatestEnvKPIs(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LatestEnvKPIs("ams")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.UpsertEnvHourly([]EnvRow{{
		LocationKey: "ams", TsUTC: "2024-01-01T00:00:00Z",
		TempC: f(6.5), WindKph: f(12.0), PrecipMM: f(0.1),
		PM25: f(3.2), PM10: f(4.1), EuropeanAQI: f(51), USAQI: f(48),
	}}))

	row, err := s.LatestEnvKPIs("ams")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:00:00Z", row.TsUTC)
	assert.Equal(t, 6.5, *row.TempC)
	assert.Equal(t, 12.0, *row.WindKph)
	assert.Equal(t, 0.1, *row.PrecipMM)
	assert.Equal(t, 3.2, *row.PM25)
	assert.Equal(t, 4.1, *row.PM10)
	assert.Equal(t, 51.0, *row.EuropeanAQI)
	assert.Equal(t, 48.0, *row.USAQI)
}

func TestUpsertMacro(t *testing.T) {
	s := newTestStore(t)

	key := MacroRow{RegionCode: "NLD", IndicatorCode: "FP.CPI.TOTL.ZG", Year: 2023}

	first := key
	first.Value = f(4.2)
	require.NoError(t, s.UpsertMacro([]MacroRow{first}))

	second := key
	second.Value = f(4.5)
	require.NoError(t, s.UpsertMacro([]MacroRow{second}))

	rows, err := s.MacroLatest("FP.CPI.TOTL.ZG")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "NLD", rows[0].RegionCode)
	assert.Equal(t, 2023, rows[0].Year)
	assert.Equal(t, 4.5, *rows[0].Value)
}

func TestMacroQueries(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.UpsertMacro([]MacroRow{
		{RegionCode: "NLD", IndicatorCode: "FP.CPI.TOTL.ZG", Year: 2021, Value: f(2.7)},
		{RegionCode: "NLD", IndicatorCode: "FP.CPI.TOTL.ZG", Year: 2022, Value: f(10.0)},
		{RegionCode: "USA", IndicatorCode: "FP.CPI.TOTL.ZG", Year: 2021, Value: f(4.7)},
		{RegionCode: "USA", IndicatorCode: "FP.CPI.TOTL.ZG", Year: 2023, Value: f(4.1)},
	}))

	t.Run("series bounded by year range", func(t *testing.T) {
		rows, err := s.MacroSeries("FP.CPI.TOTL.ZG", 2021, 2021)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "NLD", rows[0].RegionCode)
		assert.Equal(t, "USA", rows[1].RegionCode)
	})

	t.Run("latest picks each region's newest year", func(t *testing.T) {
		rows, err := s.MacroLatest("FP.CPI.TOTL.ZG")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, 2022, rows[0].Year) // NLD
		assert.Equal(t, 2023, rows[1].Year) // USA
	})
}

func TestRunLogs(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.LogRun("2024-01-01T00:00:00Z", "2024-01-01T00:00:05Z", true, "ok"))
	require.NoError(t, s.LogRun("2024-01-02T00:00:00Z", "2024-01-02T00:00:09Z", false, "macro cycle: boom"))

	runs, err := s.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.False(t, runs[0].OK)
	assert.Equal(t, "macro cycle: boom", runs[0].Message)
	assert.True(t, runs[1].OK)

	require.NoError(t, s.LogSourceRun("environment", "2024-01-01T00:00:00Z", "2024-01-01T00:00:02Z", true, "ok", 6))
	require.NoError(t, s.LogSourceRun("macro", "2024-01-01T00:00:02Z", "2024-01-01T00:00:04Z", false, "timeout", 0))

	sourceRuns, err := s.RecentSourceRuns(1)
	require.NoError(t, err)
	require.Len(t, sourceRuns, 1)
	assert.Equal(t, "macro", sourceRuns[0].SourceName)
	assert.False(t, sourceRuns[0].OK)
	assert.Equal(t, 0, sourceRuns[0].ItemCount)
}
