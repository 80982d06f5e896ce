package source

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/ecopulse/ecopulse/internal/config"
)

// Encyclopedia scrapes each location's reference page for a title and a
// summary paragraph. Parse failures are source-level errors on the envelope,
// distinct from transport failures.
type Encyclopedia struct {
	client    *Client
	locations []config.Location
}

func NewEncyclopedia(client *Client, locations []config.Location) *Encyclopedia {
	return &Encyclopedia{client: client, locations: locations}
}

func (s *Encyclopedia) Name() string { return "wikipedia" }

// ScrapeAll fetches and parses every configured reference page.
func (s *Encyclopedia) ScrapeAll(ctx context.Context) []ScrapeResult {
	results := make([]ScrapeResult, 0, len(s.locations))
	for _, loc := range s.locations {
		slog.Info("scraping reference page", "location", loc.Key, "url", loc.WikipediaURL)
		results = append(results, s.scrape(ctx, loc))
	}
	return results
}

func (s *Encyclopedia) scrape(ctx context.Context, loc config.Location) ScrapeResult {
	now := nowUTC()

	resp := s.client.Get(ctx, loc.WikipediaURL, nil)
	sr := ScrapeResult{
		URL:         loc.WikipediaURL,
		LocationKey: loc.Key,
		FetchedAt:   now,
	}

	switch {
	case resp.Err != "":
		sr.Error = resp.Err
		return sr
	case !resp.OK():
		sr.Error = string(resp.Body)
		return sr
	}

	sr.HTML = string(resp.Body)

	title, summary, err := parsePage(sr.HTML)
	if err != nil {
		sr.Error = err.Error()
		return sr
	}

	sr.OK = true
	sr.Title = title
	sr.Summary = summary
	return sr
}

// parsePage extracts the first h1 heading and the first non-empty paragraph.
// Either may be empty if the page carries neither.
func parsePage(page string) (title, summary string, err error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", "", err
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h1":
				if title == "" {
					title = strings.TrimSpace(nodeText(n))
				}
			case "p":
				if summary == "" {
					summary = strings.TrimSpace(nodeText(n))
				}
			}
		}
		if title != "" && summary != "" {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title, summary, nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
