package transform

import (
	"encoding/json"
	"strconv"

	"github.com/ecopulse/ecopulse/internal/source"
	"github.com/ecopulse/ecopulse/internal/store"
)

// MacroWriter is the slice of the store the macro transform needs.
type MacroWriter interface {
	UpsertMacro(rows []store.MacroRow) error
}

// wbRecord is one per-region-per-year entry from a World Bank payload.
type wbRecord struct {
	CountryISO3 string   `json:"countryiso3code"`
	Date        string   `json:"date"`
	Value       *float64 `json:"value"`
}

// Macro flattens World Bank indicator payloads into annual fact rows. The
// payload is a two-element array whose second element holds the records;
// entries with a missing region or an uncoercible year are skipped without
// failing the batch.
func Macro(results []source.FetchResult, w MacroWriter) error {
	var rows []store.MacroRow

	for _, res := range results {
		if !res.OK || len(res.Payload) == 0 || res.Indicator == "" {
			continue
		}

		var pages []json.RawMessage
		if err := json.Unmarshal(res.Payload, &pages); err != nil || len(pages) < 2 {
			continue
		}

		var records []wbRecord
		if err := json.Unmarshal(pages[1], &records); err != nil {
			continue
		}

		for _, rec := range records {
			if rec.CountryISO3 == "" || rec.Date == "" {
				continue
			}
			year, err := strconv.Atoi(rec.Date)
			if err != nil {
				continue
			}
			rows = append(rows, store.MacroRow{
				RegionCode:    rec.CountryISO3,
				IndicatorCode: res.Indicator,
				Year:          year,
				Value:         rec.Value,
			})
		}
	}

	if len(rows) == 0 {
		return nil
	}
	return w.UpsertMacro(rows)
}
