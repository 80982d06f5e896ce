package store

// EnvRow is one hourly environmental observation. Measures are pointers so a
// side missing from the source (weather without air quality, or the reverse)
// is stored as NULL rather than zero.
type EnvRow struct {
	LocationKey string   `json:"locationKey"`
	TsUTC       string   `json:"tsUtc"`
	TempC       *float64 `json:"tempC"`
	WindKph     *float64 `json:"windKph"`
	PrecipMM    *float64 `json:"precipMm"`
	PM25        *float64 `json:"pm25"`
	PM10        *float64 `json:"pm10"`
	EuropeanAQI *float64 `json:"europeanAqi"`
	USAQI       *float64 `json:"usAqi"`
}

// MacroRow is one annual macro observation.
type MacroRow struct {
	RegionCode    string   `json:"regionCode"`
	IndicatorCode string   `json:"indicatorCode"`
	Year          int      `json:"year"`
	Value         *float64 `json:"value"`
}

// LocationRow is a location dimension row including enrichment write-backs.
type LocationRow struct {
	Key          string  `json:"key"`
	Name         string  `json:"name"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	WikipediaURL string  `json:"wikipediaUrl"`
	WikiTitle    string  `json:"wikiTitle,omitempty"`
	WikiSummary  string  `json:"wikiSummary,omitempty"`
}

// Run is one aggregate fetch-all invocation.
type Run struct {
	ID         int64  `json:"id"`
	StartedAt  string `json:"startedAtUtc"`
	FinishedAt string `json:"finishedAtUtc"`
	OK         bool   `json:"ok"`
	Message    string `json:"message"`
}

// SourceRun is one fetch cycle for a single source.
type SourceRun struct {
	ID         int64  `json:"id"`
	SourceName string `json:"sourceName"`
	StartedAt  string `json:"startedAtUtc"`
	FinishedAt string `json:"finishedAtUtc"`
	OK         bool   `json:"ok"`
	Message    string `json:"message"`
	ItemCount  int    `json:"itemCount"`
}
