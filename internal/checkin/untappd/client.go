// Package untappd provides the two checkin provider strategies for linked
// Untappd accounts: an authenticated API client and an HTML-scraping
// fallback for links without an access token.
//
// Both satisfy checkin.Provider: they never fail the caller. Network, auth,
// and parsing problems are logged and degrade to an empty result, leaving
// the monitor's ingestion watermark where it was.
package untappd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/barflyapp/barfly-data/internal/checkin"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	apiBaseURL     = "https://api.untappd.com/v4"
	requestTimeout = 15 * time.Second
	pageLimit      = 50

	// Untappd checkins carry no serving size; assume a standard pour.
	defaultServingOz = 12.0

	// Untappd API allows 100 requests per hour per user token.
	requestsPerHour = 100
)

// createdAtLayout matches Untappd's created_at format,
// e.g. "Sat, 06 Apr 2024 01:23:45 +0000".
const createdAtLayout = "Mon, 02 Jan 2006 15:04:05 -0700"

// --------------------------------------------------------------------------
// API client
// --------------------------------------------------------------------------

// APIClient fetches checkins through the authenticated Untappd v4 API.
type APIClient struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewAPIClient creates a rate-limited Untappd API client.
func NewAPIClient(clientID string, logger *slog.Logger) *APIClient {
	if logger == nil {
		logger = slog.Default()
	}
	rps := float64(requestsPerHour) / 3600.0
	return &APIClient{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    apiBaseURL,
		clientID:   clientID,
		limiter:    rate.NewLimiter(rate.Limit(rps), 5),
		logger:     logger,
	}
}

// checkinsResponse is the subset of the Untappd payload we read.
type checkinsResponse struct {
	Response struct {
		Checkins struct {
			Items []struct {
				CheckinID   int64   `json:"checkin_id"`
				CreatedAt   string  `json:"created_at"`
				RatingScore float64 `json:"rating_score"`
				Beer        struct {
					Name  string  `json:"beer_name"`
					ABV   float64 `json:"beer_abv"` // percent, not fraction
					Style string  `json:"beer_style"`
				} `json:"beer"`
				Brewery struct {
					Name string `json:"brewery_name"`
				} `json:"brewery"`
			} `json:"items"`
		} `json:"checkins"`
	} `json:"response"`
}

// Fetch returns the user's checkins at or after since. Implements
// checkin.Provider; see the package comment for the failure posture.
func (c *APIClient) Fetch(ctx context.Context, link *checkin.Link, since time.Time) []checkin.Checkin {
	if link == nil || link.Username == "" || link.AccessToken == "" {
		return nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.logger.Warn("untappd rate limit wait", "error", err)
		return nil
	}

	params := url.Values{}
	params.Set("access_token", link.AccessToken)
	params.Set("limit", fmt.Sprintf("%d", pageLimit))
	u := fmt.Sprintf("%s/user/checkins/%s?%s", c.baseURL, url.PathEscape(link.Username), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		c.logger.Warn("untappd build request", "error", err)
		return nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("untappd request failed", "user", link.Username, "error", err)
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("untappd read body", "error", err)
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("untappd non-200", "user", link.Username, "status", resp.StatusCode)
		return nil
	}

	var parsed checkinsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Warn("untappd decode", "user", link.Username, "error", err)
		return nil
	}

	var events []checkin.Checkin
	for _, item := range parsed.Response.Checkins.Items {
		drankAt, err := time.Parse(createdAtLayout, item.CreatedAt)
		if err != nil {
			c.logger.Warn("untappd bad created_at", "value", item.CreatedAt)
			continue
		}
		if drankAt.Before(since) {
			continue
		}

		ev := checkin.Checkin{
			DrankAt: drankAt,
			Name:    item.Beer.Name,
			ABV:     item.Beer.ABV / 100.0,
			SizeOz:  defaultServingOz,
		}
		if item.Brewery.Name != "" {
			producer := item.Brewery.Name
			ev.Producer = &producer
		}
		if item.Beer.Style != "" {
			style := item.Beer.Style
			ev.Style = &style
		}
		if item.RatingScore > 0 {
			rating := item.RatingScore
			ev.Rating = &rating
		}
		events = append(events, ev)
	}
	return events
}
