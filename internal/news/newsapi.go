// Package news fetches dated headlines for a query from NewsAPI or Google News RSS.
package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tradesim-go/internal/metrics"
)

// Headline is one article reduced to what the sentiment stage needs.
type Headline struct {
	Date        string `json:"date"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Source      string `json:"source"`
	URL         string `json:"url"`
}

// Source fetches headlines for query published between from and to (inclusive days).
type Source interface {
	Headlines(ctx context.Context, query string, from, to time.Time) ([]Headline, error)
}

const (
	defaultNewsAPIBaseURL = "https://newsapi.org"
	defaultPageSize       = 100
	defaultMaxPages       = 5
)

// ErrMissingAPIKey is returned when NewsAPI is used without a key.
var ErrMissingAPIKey = errors.New("newsapi key not configured")

// NewsAPI pages through the /v2/everything endpoint up to a page cap.
type NewsAPI struct {
	baseURL  string
	apiKey   string
	language string
	sortBy   string
	pageSize int
	maxPages int
	client   *http.Client
	log      zerolog.Logger
}

// Option configures NewsAPI construction parameters.
type Option func(*NewsAPI)

// WithBaseURL points the client at another host (tests, proxies).
func WithBaseURL(base string) Option {
	return func(n *NewsAPI) {
		if base != "" {
			n.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithPaging overrides page size and page cap.
func WithPaging(pageSize, maxPages int) Option {
	return func(n *NewsAPI) {
		if pageSize > 0 {
			n.pageSize = pageSize
		}
		if maxPages > 0 {
			n.maxPages = maxPages
		}
	}
}

// WithQueryDefaults sets language and sort order.
func WithQueryDefaults(language, sortBy string) Option {
	return func(n *NewsAPI) {
		if language != "" {
			n.language = language
		}
		if sortBy != "" {
			n.sortBy = sortBy
		}
	}
}

// NewNewsAPI constructs a NewsAPI client.
func NewNewsAPI(apiKey string, log zerolog.Logger, opts ...Option) *NewsAPI {
	n := &NewsAPI{
		baseURL:  defaultNewsAPIBaseURL,
		apiKey:   apiKey,
		language: "en",
		sortBy:   "publishedAt",
		pageSize: defaultPageSize,
		maxPages: defaultMaxPages,
		client:   &http.Client{Timeout: 15 * time.Second},
		log:      log,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

// Headlines walks pages 1..maxPages. It stops early on a failed page, a
// non-ok status, an empty page or a short page, and returns what it has.
// Only a failure on the very first page is reported as an error.
func (n *NewsAPI) Headlines(ctx context.Context, query string, from, to time.Time) ([]Headline, error) {
	if n.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	var out []Headline
	for page := 1; page <= n.maxPages; page++ {
		batch, err := n.fetchPage(ctx, query, from, to, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if page == 1 {
				return nil, err
			}
			n.log.Warn().Err(err).Int("page", page).Msg("newsapi page failed, keeping earlier pages")
			break
		}
		out = append(out, batch...)
		if len(batch) < n.pageSize {
			break
		}
	}
	metrics.HeadlinesTotal.WithLabelValues("newsapi").Add(float64(len(out)))
	return out, nil
}

func (n *NewsAPI) fetchPage(ctx context.Context, query string, from, to time.Time, page int) ([]Headline, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("from", from.Format(time.DateOnly))
	q.Set("to", to.Format(time.DateOnly))
	q.Set("language", n.language)
	q.Set("sortBy", n.sortBy)
	q.Set("apiKey", n.apiKey)
	q.Set("pageSize", strconv.Itoa(n.pageSize))
	q.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/v2/everything?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi page %d: unexpected status %d", page, resp.StatusCode)
	}

	var payload newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if payload.Status != "ok" {
		return nil, fmt.Errorf("newsapi status %q: %s", payload.Status, payload.Message)
	}
	out := make([]Headline, 0, len(payload.Articles))
	for _, art := range payload.Articles {
		out = append(out, Headline{
			Date:        publishedDate(art.PublishedAt),
			Title:       art.Title,
			Description: art.Description,
			Source:      art.Source.Name,
			URL:         art.URL,
		})
	}
	return out, nil
}

func publishedDate(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}
