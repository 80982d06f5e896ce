package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ecopulse/ecopulse/internal/config"
)

const (
	worldBankName       = "worldbank"
	defaultWorldBankURL = "https://api.worldbank.org/v2"
)

// Macro downloads annual macro indicators from the World Bank API, one
// request per configured indicator covering all configured regions.
type Macro struct {
	client     *Client
	indicators []config.Indicator
	regions    []config.Region
	baseURL    string
}

func NewMacro(client *Client, indicators []config.Indicator, regions []config.Region) *Macro {
	return &Macro{
		client:     client,
		indicators: indicators,
		regions:    regions,
		baseURL:    defaultWorldBankURL,
	}
}

func (s *Macro) Name() string { return worldBankName }

// Fetch collects the configured indicators in one pass.
func (s *Macro) Fetch(ctx context.Context) []FetchResult {
	results := make([]FetchResult, 0, len(s.indicators))
	for _, ind := range s.indicators {
		slog.Info("fetching World Bank indicator", "indicator", ind.Code)
		results = append(results, s.fetchIndicator(ctx, ind.Code))
	}
	return results
}

func (s *Macro) fetchIndicator(ctx context.Context, indicator string) FetchResult {
	now := nowUTC()

	codes := make([]string, len(s.regions))
	for i, r := range s.regions {
		codes[i] = r.Code
	}
	u := fmt.Sprintf("%s/country/%s/indicator/%s", s.baseURL, strings.Join(codes, ";"), indicator)

	params := url.Values{}
	params.Set("format", "json")
	params.Set("per_page", "5000")

	resp := s.client.Get(ctx, u, params)
	return newFetchResult(worldBankName, CategoryMacro, "", indicator, u, params, resp, now)
}
