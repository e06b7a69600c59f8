package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"tradesim-go/internal/metrics"
)

const defaultRSSBaseURL = "https://news.google.com"

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	Description string `xml:"description"`
	Source      struct {
		Text string `xml:",chardata"`
	} `xml:"source"`
}

// RSS reads Google News search results. The feed ignores date parameters, so
// items outside [from, to] are filtered locally.
type RSS struct {
	baseURL  string
	maxItems int
	client   *http.Client
	log      zerolog.Logger
}

// NewRSS builds an RSS source; maxItems <= 0 means 100.
func NewRSS(baseURL string, maxItems int, log zerolog.Logger) *RSS {
	if baseURL == "" {
		baseURL = defaultRSSBaseURL
	}
	if maxItems <= 0 {
		maxItems = 100
	}
	return &RSS{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		maxItems: maxItems,
		client:   &http.Client{Timeout: 15 * time.Second},
		log:      log,
	}
}

// Headlines implements Source.
func (r *RSS) Headlines(ctx context.Context, query string, from, to time.Time) ([]Headline, error) {
	q := url.Values{}
	q.Set("q", query+" stock")
	q.Set("hl", "en-US")
	q.Set("gl", "US")
	q.Set("ceid", "US:en")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/rss/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss feed returned status %d", resp.StatusCode)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode rss: %w", err)
	}

	first := from.Format(time.DateOnly)
	last := to.Format(time.DateOnly)
	out := make([]Headline, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		if len(out) >= r.maxItems {
			break
		}
		published, err := time.Parse(time.RFC1123, item.PubDate)
		if err != nil {
			published, err = time.Parse(time.RFC1123Z, item.PubDate)
		}
		if err != nil {
			r.log.Debug().Str("pubDate", item.PubDate).Msg("skipping rss item with unparsable date")
			continue
		}
		date := published.UTC().Format(time.DateOnly)
		if (!from.IsZero() && date < first) || (!to.IsZero() && date > last) {
			continue
		}
		out = append(out, Headline{
			Date:        date,
			Title:       strings.TrimSpace(item.Title),
			Description: htmlText(item.Description),
			Source:      strings.TrimSpace(item.Source.Text),
			URL:         strings.TrimSpace(item.Link),
		})
	}
	metrics.HeadlinesTotal.WithLabelValues("rss").Add(float64(len(out)))
	return out, nil
}

// htmlText flattens an HTML fragment to its visible text.
func htmlText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return strings.TrimSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
