// Package transform maps raw source envelopes onto the curated fact tables.
// Transforms are pure apart from the final batched upsert: malformed or
// missing data skips the single record, never the batch.
package transform

import (
	"encoding/json"
	"sort"

	"github.com/ecopulse/ecopulse/internal/source"
	"github.com/ecopulse/ecopulse/internal/store"
)

// EnvWriter is the slice of the store the environmental transform needs.
type EnvWriter interface {
	UpsertEnvHourly(rows []store.EnvRow) error
}

// openMeteoPayload is the hourly series shape shared by the weather and
// air-quality endpoints. Value slices use pointers so JSON nulls survive as
// absent measures instead of zeroes.
type openMeteoPayload struct {
	Hourly struct {
		Time          []string   `json:"time"`
		Temperature2M []*float64 `json:"temperature_2m"`
		WindSpeed10M  []*float64 `json:"wind_speed_10m"`
		Precipitation []*float64 `json:"precipitation"`
		PM25          []*float64 `json:"pm2_5"`
		PM10          []*float64 `json:"pm10"`
		EuropeanAQI   []*float64 `json:"european_aqi"`
		USAQI         []*float64 `json:"us_aqi"`
	} `json:"hourly"`
}

type weatherMeasures struct {
	temp, wind, precip *float64
}

type airMeasures struct {
	pm25, pm10, euAQI, usAQI *float64
}

// Environment joins each location's weather and air-quality series on
// timestamp and upserts the combined rows in one batch. A timestamp present
// on only one side still produces a row; the other side's measures stay
// NULL.
func Environment(results []source.FetchResult, w EnvWriter) error {
	weather := map[string]map[string]weatherMeasures{}
	air := map[string]map[string]airMeasures{}

	for _, res := range results {
		if !res.OK || len(res.Payload) == 0 || res.LocationKey == "" {
			continue
		}
		var payload openMeteoPayload
		if err := json.Unmarshal(res.Payload, &payload); err != nil {
			continue
		}
		h := payload.Hourly

		switch res.Category {
		case source.CategoryWeather:
			series := map[string]weatherMeasures{}
			for i, ts := range h.Time {
				series[ts] = weatherMeasures{
					temp:   at(h.Temperature2M, i),
					wind:   at(h.WindSpeed10M, i),
					precip: at(h.Precipitation, i),
				}
			}
			weather[res.LocationKey] = series
		case source.CategoryAirQuality:
			series := map[string]airMeasures{}
			for i, ts := range h.Time {
				series[ts] = airMeasures{
					pm25:  at(h.PM25, i),
					pm10:  at(h.PM10, i),
					euAQI: at(h.EuropeanAQI, i),
					usAQI: at(h.USAQI, i),
				}
			}
			air[res.LocationKey] = series
		}
	}

	var rows []store.EnvRow
	for _, key := range unionKeys(weather, air) {
		w8 := weather[key]
		aq := air[key]
		for _, ts := range unionTimestamps(w8, aq) {
			wm := w8[ts]
			am := aq[ts]
			rows = append(rows, store.EnvRow{
				LocationKey: key,
				TsUTC:       ts,
				TempC:       wm.temp,
				WindKph:     wm.wind,
				PrecipMM:    wm.precip,
				PM25:        am.pm25,
				PM10:        am.pm10,
				EuropeanAQI: am.euAQI,
				USAQI:       am.usAQI,
			})
		}
	}

	if len(rows) == 0 {
		return nil
	}
	return w.UpsertEnvHourly(rows)
}

// at guards ragged payloads where a value slice is shorter than the time
// axis.
func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func unionKeys(weather map[string]map[string]weatherMeasures, air map[string]map[string]airMeasures) []string {
	seen := map[string]bool{}
	for k := range weather {
		seen[k] = true
	}
	for k := range air {
		seen[k] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func unionTimestamps(weather map[string]weatherMeasures, air map[string]airMeasures) []string {
	seen := map[string]bool{}
	for ts := range weather {
		seen[ts] = true
	}
	for ts := range air {
		seen[ts] = true
	}
	timestamps := make([]string, 0, len(seen))
	for ts := range seen {
		timestamps = append(timestamps, ts)
	}
	sort.Strings(timestamps)
	return timestamps
}
