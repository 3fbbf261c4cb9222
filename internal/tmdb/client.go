// Package tmdb is the client for the external movie metadata provider.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Clark-Hu/cinesocial/internal/domain"
)

// ErrNotFound is returned when the provider has no movie with the requested id.
var ErrNotFound = errors.New("tmdb: not found")

const releaseDateLayout = "2006-01-02"

// ListKind names one of the provider's curated movie listings.
type ListKind string

const (
	NowPlaying ListKind = "now_playing"
	Popular    ListKind = "popular"
	Upcoming   ListKind = "upcoming"
)

// ParseListKind validates a listing name.
func ParseListKind(raw string) (ListKind, error) {
	switch kind := ListKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case NowPlaying, Popular, Upcoming:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown list kind %q", raw)
	}
}

// Client defines the catalog lookups the rest of the system depends on.
type Client interface {
	GetMovie(ctx context.Context, id int64, language string) (*domain.MovieDetail, error)
	Search(ctx context.Context, query string, page int, language string) (*Page, error)
	GetPage(ctx context.Context, kind ListKind, page int, language, region string) (*Page, error)
}

// Result is a single listing or search entry as sent on the wire.
type Result struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	Overview      string  `json:"overview"`
	PosterPath    *string `json:"poster_path"`
	ReleaseDate   string  `json:"release_date"`
	VoteAverage   float64 `json:"vote_average"`
	Popularity    float64 `json:"popularity"`
}

// Page models the provider's paginated list and search responses.
type Page struct {
	Page         int      `json:"page"`
	Results      []Result `json:"results"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}

// Summary converts the wire entry into a domain summary. Entries without an id
// or with an unparseable release date are rejected.
func (r Result) Summary() (domain.MovieSummary, error) {
	if r.ID <= 0 {
		return domain.MovieSummary{}, fmt.Errorf("tmdb: result %q has no id", r.Title)
	}
	release, err := parseReleaseDate(r.ReleaseDate)
	if err != nil {
		return domain.MovieSummary{}, fmt.Errorf("tmdb: result %d: %w", r.ID, err)
	}
	poster := r.PosterPath
	if poster != nil && *poster == "" {
		poster = nil
	}
	return domain.MovieSummary{
		ExternalID:    r.ID,
		Title:         r.Title,
		OriginalTitle: r.OriginalTitle,
		Overview:      r.Overview,
		PosterPath:    poster,
		ReleaseDate:   release,
		VoteAverage:   r.VoteAverage,
		Popularity:    r.Popularity,
	}, nil
}

// detailAppend asks the provider to inline credits and images in the detail call.
const detailAppend = "credits,images"

type detailResponse struct {
	Result
	Runtime int `json:"runtime"`
	Genres  []struct {
		Name string `json:"name"`
	} `json:"genres"`
	ProductionCountries []struct {
		ISO string `json:"iso_3166_1"`
	} `json:"production_countries"`
	Credits struct {
		Cast []struct {
			Name        string  `json:"name"`
			Character   string  `json:"character"`
			ProfilePath *string `json:"profile_path"`
			Order       int     `json:"order"`
		} `json:"cast"`
		Crew []struct {
			Name string `json:"name"`
			Job  string `json:"job"`
		} `json:"crew"`
	} `json:"credits"`
	Images struct {
		Backdrops []imageRef `json:"backdrops"`
		Posters   []imageRef `json:"posters"`
	} `json:"images"`
}

type imageRef struct {
	FilePath string `json:"file_path"`
}

func (d detailResponse) detail() (*domain.MovieDetail, error) {
	summary, err := d.Summary()
	if err != nil {
		return nil, err
	}
	detail := &domain.MovieDetail{MovieSummary: summary, Runtime: d.Runtime}
	for _, g := range d.Genres {
		detail.Genres = append(detail.Genres, g.Name)
	}
	for _, c := range d.ProductionCountries {
		detail.Countries = append(detail.Countries, c.ISO)
	}

	cast := d.Credits.Cast
	sort.SliceStable(cast, func(i, j int) bool { return cast[i].Order < cast[j].Order })
	for _, c := range cast {
		profile := c.ProfilePath
		if profile != nil && *profile == "" {
			profile = nil
		}
		detail.Cast = append(detail.Cast, domain.CastMember{Name: c.Name, Character: c.Character, ProfilePath: profile})
	}
	for _, c := range d.Credits.Crew {
		if c.Job == "Director" {
			detail.Directors = append(detail.Directors, c.Name)
		}
	}
	detail.Backdrops = imagePaths(d.Images.Backdrops)
	detail.Posters = imagePaths(d.Images.Posters)
	return detail, nil
}

func imagePaths(refs []imageRef) []string {
	var paths []string
	for _, ref := range refs {
		if ref.FilePath != "" {
			paths = append(paths, ref.FilePath)
		}
	}
	return paths
}

func parseReleaseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(releaseDateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid release date %q", raw)
	}
	return &parsed, nil
}

// HTTPClient implements Client over the provider's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *log.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient constructs an HTTP-backed catalog client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *log.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = log.Default()
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	return &HTTPClient{
		baseURL: baseURL,
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
				MaxIdleConnsPerHost:   16,
			},
		},
		logger: logger,
	}, nil
}

// GetMovie fetches the full record for one movie.
func (c *HTTPClient) GetMovie(ctx context.Context, id int64, language string) (*domain.MovieDetail, error) {
	params := url.Values{}
	params.Set("append_to_response", detailAppend)
	if language != "" {
		params.Set("language", language)
		// Images are filtered by language; keep untagged artwork too.
		base, _, _ := strings.Cut(language, "-")
		params.Set("include_image_language", base+",null")
	}
	var payload detailResponse
	if err := c.get(ctx, "/movie/"+strconv.FormatInt(id, 10), params, &payload); err != nil {
		return nil, err
	}
	return payload.detail()
}

// Search runs a free-text movie search.
func (c *HTTPClient) Search(ctx context.Context, query string, page int, language string) (*Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(max(page, 1)))
	if language != "" {
		params.Set("language", language)
	}
	var payload Page
	if err := c.get(ctx, "/search/movie", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetPage fetches one page of a curated listing.
func (c *HTTPClient) GetPage(ctx context.Context, kind ListKind, page int, language, region string) (*Page, error) {
	if _, err := ParseListKind(string(kind)); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(max(page, 1)))
	if language != "" {
		params.Set("language", language)
	}
	if region != "" {
		params.Set("region", region)
	}
	var payload Page
	if err := c.get(ctx, "/movie/"+string(kind), params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	endpoint := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("tmdb %s (latency=%v): %w", path, latency, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode tmdb %s response: %w", path, err)
		}
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		c.logger.Printf("tmdb: unexpected status %d for %s (latency=%v)", resp.StatusCode, path, latency)
		return fmt.Errorf("tmdb %s returned %d (latency=%v)", path, resp.StatusCode, latency)
	}
}
