package transform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopulse/ecopulse/internal/source"
	"github.com/ecopulse/ecopulse/internal/store"
)

type macroCapture struct {
	batches [][]store.MacroRow
}

func (c *macroCapture) UpsertMacro(rows []store.MacroRow) error {
	c.batches = append(c.batches, rows)
	return nil
}

func macroResult(indicator, payload string) source.FetchResult {
	return source.FetchResult{
		Source:    "macro",
		Category:  source.CategoryMacro,
		Indicator: indicator,
		OK:        true,
		Payload:   json.RawMessage(payload),
	}
}

func TestMacroFlattensRecords(t *testing.T) {
	payload := `[
		{"page":1,"pages":1,"per_page":5000,"total":4},
		[
			{"countryiso3code":"NLD","date":"2023","value":4.2},
			{"countryiso3code":"EUU","date":"2023","value":6.3},
			{"countryiso3code":"USA","date":"2023","value":4.1},
			{"countryiso3code":"WLD","date":"2023","value":null}
		]
	]`

	var c macroCapture
	require.NoError(t, Macro([]source.FetchResult{macroResult("FP.CPI.TOTL.ZG", payload)}, &c))
	require.Len(t, c.batches, 1)

	rows := c.batches[0]
	require.Len(t, rows, 4)
	assert.Equal(t, "NLD", rows[0].RegionCode)
	assert.Equal(t, "FP.CPI.TOTL.ZG", rows[0].IndicatorCode)
	assert.Equal(t, 2023, rows[0].Year)
	assert.Equal(t, 4.2, *rows[0].Value)
	assert.Nil(t, rows[3].Value) // null value still persisted as a row
}

func TestMacroSkipsBadRecords(t *testing.T) {
	payload := `[
		{"page":1},
		[
			{"countryiso3code":"","date":"2023","value":1.0},
			{"countryiso3code":"NLD","date":"MRV","value":2.0},
			{"countryiso3code":"NLD","date":"2022","value":3.0}
		]
	]`

	var c macroCapture
	require.NoError(t, Macro([]source.FetchResult{macroResult("NY.GDP.MKTP.KD.ZG", payload)}, &c))
	require.Len(t, c.batches, 1)
	require.Len(t, c.batches[0], 1)
	assert.Equal(t, 2022, c.batches[0][0].Year)
}

func TestMacroSkipsBadPayloads(t *testing.T) {
	results := []source.FetchResult{
		{Source: "macro", Indicator: "FP.CPI.TOTL.ZG", OK: false},
		macroResult("FP.CPI.TOTL.ZG", `{"message":"Invalid format"}`),
		macroResult("FP.CPI.TOTL.ZG", `[{"page":1}]`),
		macroResult("", `[{"page":1},[{"countryiso3code":"NLD","date":"2023","value":1.0}]]`),
	}

	var c macroCapture
	require.NoError(t, Macro(results, &c))
	assert.Empty(t, c.batches)
}
