package source

import (
	"encoding/json"
	"net/url"
	"time"
)

// Category tells the transform stage what kind of payload an envelope
// carries. It is set by the adapter that issued the request, so downstream
// code never has to re-derive it from the source label.
type Category string

const (
	CategoryWeather    Category = "weather"
	CategoryAirQuality Category = "air"
	CategoryMacro      Category = "macro"
)

// FetchResult is the normalized representation of one HTTP API response.
// Fields are intentionally verbose: every fetch carries the URL, query
// parameters, timing, and both parsed and raw payload so a failed cycle can
// be inspected or replayed from the audit sink.
type FetchResult struct {
	Source      string        `json:"source"`
	Category    Category      `json:"category"`
	LocationKey string        `json:"locationKey,omitempty"`
	Indicator   string        `json:"indicator,omitempty"`
	URL         string        `json:"url"`
	Params      url.Values    `json:"params"`
	StatusCode  int           `json:"statusCode"`
	OK          bool          `json:"ok"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"durationMs"`

	// Payload is set only when the request succeeded and the body was valid
	// JSON; Text always holds the raw body when a response was received.
	Payload json.RawMessage `json:"payloadJson,omitempty"`
	Text    string          `json:"payloadText,omitempty"`

	FetchedAt string `json:"fetchedAtUtc"`
}

// ScrapeResult is the normalized representation of one HTML scrape. HTML and
// the parsed title/summary are kept separate so parse failures can be
// debugged independently of request failures.
type ScrapeResult struct {
	URL         string `json:"url"`
	LocationKey string `json:"locationKey"`
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
	HTML        string `json:"html,omitempty"`
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	FetchedAt   string `json:"fetchedAtUtc"`
}

// nowUTC returns the ISO-8601 UTC timestamp stored on envelopes and in the
// run logs. Lexicographic order on this representation matches time order.
func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
