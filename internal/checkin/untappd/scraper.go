package untappd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/barflyapp/barfly-data/internal/checkin"
)

// --------------------------------------------------------------------------
// Scrape fallback
// --------------------------------------------------------------------------

const (
	profileBaseURL = "https://untappd.com/user"

	// The public profile page does not expose ABV or serving size; assume
	// a typical-strength standard pour so the estimate stays conservative.
	scrapedABV = 0.05
)

// Item blocks on the public profile page. Each checkin item carries the
// beer link, the brewery link, and a data-gregtime timestamp.
var (
	itemPattern     = regexp.MustCompile(`(?s)<div class="item"[^>]*id="checkin_\d+".*?data-gregtime="([^"]+)"`)
	beerPattern     = regexp.MustCompile(`<a href="/b/[^"]+"[^>]*>([^<]+)</a>`)
	breweryPattern  = regexp.MustCompile(`<a href="/w/[^"]+"[^>]*>([^<]+)</a>`)
	itemSplitMarker = regexp.MustCompile(`<div class="item"[^>]*id="checkin_\d+"`)
)

// Scraper fetches checkins by scraping the user's public Untappd profile.
// Used for links that never completed OAuth and so have no access token.
type Scraper struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

func NewScraper(logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    profileBaseURL,
		logger:     logger,
	}
}

// Fetch implements checkin.Provider. A token is not required; only the
// username is used.
func (s *Scraper) Fetch(ctx context.Context, link *checkin.Link, since time.Time) []checkin.Checkin {
	if link == nil || link.Username == "" {
		return nil
	}

	u := fmt.Sprintf("%s/%s", s.baseURL, url.PathEscape(link.Username))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		s.logger.Warn("untappd scrape build request", "error", err)
		return nil
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; barfly/1.0)")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("untappd scrape request failed", "user", link.Username, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("untappd scrape non-200", "user", link.Username, "status", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.logger.Warn("untappd scrape read body", "error", err)
		return nil
	}

	events := parseProfile(string(body), since, s.logger)
	s.logger.Info("untappd scrape complete", "user", link.Username, "events", len(events))
	return events
}

// parseProfile extracts checkins at or after since from profile page HTML.
func parseProfile(html string, since time.Time, logger *slog.Logger) []checkin.Checkin {
	// Split the page into per-checkin chunks so beer/brewery matches stay
	// scoped to their own item.
	starts := itemSplitMarker.FindAllStringIndex(html, -1)
	if len(starts) == 0 {
		return nil
	}

	var events []checkin.Checkin
	for i, loc := range starts {
		end := len(html)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		chunk := html[loc[0]:end]

		m := itemPattern.FindStringSubmatch(chunk)
		if m == nil {
			continue
		}
		drankAt, err := time.Parse(createdAtLayout, m[1])
		if err != nil {
			logger.Warn("untappd scrape bad timestamp", "value", m[1])
			continue
		}
		if drankAt.Before(since) {
			continue
		}

		beer := beerPattern.FindStringSubmatch(chunk)
		if beer == nil {
			continue
		}

		ev := checkin.Checkin{
			DrankAt: drankAt,
			Name:    beer[1],
			ABV:     scrapedABV,
			SizeOz:  defaultServingOz,
		}
		if brewery := breweryPattern.FindStringSubmatch(chunk); brewery != nil {
			producer := brewery[1]
			ev.Producer = &producer
		}
		events = append(events, ev)
	}
	return events
}
