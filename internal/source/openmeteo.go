package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/ecopulse/ecopulse/internal/config"
)

const (
	openMeteoName        = "open-meteo"
	defaultWeatherURL    = "https://api.open-meteo.com/v1/forecast"
	defaultAirQualityURL = "https://air-quality-api.open-meteo.com/v1/air-quality"
)

// Environmental fetches hourly weather and air-quality series from
// Open-Meteo, two requests per configured location. Individual request
// failures are carried in the envelope; the enumeration always completes.
type Environmental struct {
	client     *Client
	locations  []config.Location
	weatherURL string
	airURL     string
}

func NewEnvironmental(client *Client, locations []config.Location) *Environmental {
	return &Environmental{
		client:     client,
		locations:  locations,
		weatherURL: defaultWeatherURL,
		airURL:     defaultAirQualityURL,
	}
}

func (s *Environmental) Name() string { return openMeteoName }

// Fetch collects one weather and one air-quality envelope per location.
func (s *Environmental) Fetch(ctx context.Context) []FetchResult {
	results := make([]FetchResult, 0, 2*len(s.locations))
	for _, loc := range s.locations {
		results = append(results, s.fetchForLocation(ctx, loc)...)
	}
	return results
}

func (s *Environmental) fetchForLocation(ctx context.Context, loc config.Location) []FetchResult {
	now := nowUTC()

	weatherParams := url.Values{}
	weatherParams.Set("latitude", fmt.Sprintf("%f", loc.Lat))
	weatherParams.Set("longitude", fmt.Sprintf("%f", loc.Lon))
	weatherParams.Set("hourly", "temperature_2m,wind_speed_10m,precipitation")
	weatherParams.Set("timezone", "UTC")

	airParams := url.Values{}
	airParams.Set("latitude", fmt.Sprintf("%f", loc.Lat))
	airParams.Set("longitude", fmt.Sprintf("%f", loc.Lon))
	airParams.Set("hourly", "pm2_5,pm10,european_aqi,us_aqi")
	airParams.Set("timezone", "UTC")

	slog.Info("fetching environment data", "location", loc.Key)

	weather := s.client.Get(ctx, s.weatherURL, weatherParams)
	air := s.client.Get(ctx, s.airURL, airParams)

	return []FetchResult{
		newFetchResult(openMeteoName, CategoryWeather, loc.Key, "", s.weatherURL, weatherParams, weather, now),
		newFetchResult(openMeteoName, CategoryAirQuality, loc.Key, "", s.airURL, airParams, air, now),
	}
}

// newFetchResult wraps a client Response into an envelope. On HTTP-level
// errors the body text doubles as the error message, matching what the
// upstream APIs return in their error bodies.
func newFetchResult(name string, cat Category, locationKey, indicator, rawURL string, params url.Values, resp Response, fetchedAt string) FetchResult {
	fr := FetchResult{
		Source:      name,
		Category:    cat,
		LocationKey: locationKey,
		Indicator:   indicator,
		URL:         rawURL,
		Params:      params,
		StatusCode:  resp.StatusCode,
		OK:          resp.OK(),
		Duration:    resp.Duration,
		Text:        string(resp.Body),
		FetchedAt:   fetchedAt,
	}
	switch {
	case resp.Err != "":
		fr.Error = resp.Err
	case !fr.OK:
		fr.Error = fr.Text
	}
	if fr.OK && json.Valid(resp.Body) {
		fr.Payload = json.RawMessage(resp.Body)
	}
	return fr
}
