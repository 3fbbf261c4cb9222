// Package boxoffice is the client for the daily box office ranking feed.
package boxoffice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Clark-Hu/cinesocial/internal/domain"
)

// ErrNotFound is returned when the feed has no ranking for the requested date.
var ErrNotFound = errors.New("boxoffice: not found")

const (
	targetDateLayout  = "20060102"
	openingDateLayout = "2006-01-02"
)

// Client defines the contract for querying the daily ranking feed.
type Client interface {
	DailyRanking(ctx context.Context, date time.Time) ([]domain.RankEntry, error)
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	logger  *log.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient constructs a new HTTP-backed box office client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *log.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = log.Default()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse box office url: %w", err)
	}
	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

// DailyRanking retrieves the ranked titles for a calendar date.
func (c *HTTPClient) DailyRanking(ctx context.Context, date time.Time) ([]domain.RankEntry, error) {
	endpoint := *c.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + "/searchDailyBoxOfficeList.json"
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("targetDt", date.Format(targetDateLayout))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload apiResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("decode box office response: %w", err)
		}
		if payload.FaultInfo != nil {
			c.logger.Printf("boxoffice: fault %s for %s: %s", payload.FaultInfo.ErrorCode, date.Format(targetDateLayout), payload.FaultInfo.Message)
			return nil, fmt.Errorf("boxoffice: fault %s: %s", payload.FaultInfo.ErrorCode, payload.FaultInfo.Message)
		}
		return convertToEntries(payload.BoxOfficeResult.DailyBoxOfficeList), nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		c.logger.Printf("boxoffice: unexpected status %d for %s", resp.StatusCode, date.Format(targetDateLayout))
		return nil, fmt.Errorf("boxoffice: upstream returned %d", resp.StatusCode)
	}
}

type apiResponse struct {
	BoxOfficeResult struct {
		BoxOfficeType      string      `json:"boxofficeType"`
		ShowRange          string      `json:"showRange"`
		DailyBoxOfficeList []dailyItem `json:"dailyBoxOfficeList"`
	} `json:"boxOfficeResult"`
	FaultInfo *faultInfo `json:"faultInfo"`
}

type faultInfo struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

type dailyItem struct {
	Rank    string `json:"rank"`
	MovieNm string `json:"movieNm"`
	OpenDt  string `json:"openDt"`
}

// convertToEntries keeps feed order. A rank that does not parse falls back to
// the entry's position; a blank title is dropped.
func convertToEntries(items []dailyItem) []domain.RankEntry {
	entries := make([]domain.RankEntry, 0, len(items))
	for i, item := range items {
		title := strings.TrimSpace(item.MovieNm)
		if title == "" {
			continue
		}
		rank, err := strconv.Atoi(strings.TrimSpace(item.Rank))
		if err != nil || rank <= 0 {
			rank = i + 1
		}
		entry := domain.RankEntry{Rank: rank, Title: title}
		if opened, err := time.Parse(openingDateLayout, strings.TrimSpace(item.OpenDt)); err == nil {
			entry.OpeningDate = &opened
		}
		entries = append(entries, entry)
	}
	return entries
}
