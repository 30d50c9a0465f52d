package market

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"marketmood/internal/domain"
)

// ---------------------------------------------------------------------------
// Yahoo Finance RSS
// ---------------------------------------------------------------------------

type rssResponse struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	PubDate string `xml:"pubDate"`
	Desc    string `xml:"description"`
}

// parsePubDate tries the date layouts seen across RSS feeds.
func parsePubDate(s string) (time.Time, bool) {
	for _, layout := range []string{
		time.RFC1123Z,
		time.RFC1123,
		"Mon, 02 Jan 2006 15:04 MST",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// News implements Provider using the Yahoo Finance headline RSS feed.
// Items keep their feed order, newest first.
func (y *YahooClient) News(ctx context.Context, symbol string, limit int) ([]domain.NewsItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	u := fmt.Sprintf("%s/rss/2.0/headline?s=%s&region=US&lang=en-US",
		y.newsURL, url.QueryEscape(symbol))

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", y.userAgent)

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo news %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo news %s: status %d", symbol, resp.StatusCode)
	}

	var rss rssResponse
	if err := xml.NewDecoder(resp.Body).Decode(&rss); err != nil {
		return nil, fmt.Errorf("yahoo news %s: decode: %w", symbol, err)
	}

	items := make([]domain.NewsItem, 0, len(rss.Channel.Items))
	for _, item := range rss.Channel.Items {
		if len(items) >= limit {
			break
		}
		published, _ := parsePubDate(item.PubDate)
		title, source := splitSourceSuffix(item.Title)
		items = append(items, domain.NewsItem{
			Title:       title,
			Summary:     StripHTML(item.Desc),
			Source:      source,
			PublishedAt: published,
		})
	}
	return items, nil
}

// splitSourceSuffix peels the " - Publisher" suffix some feeds append to
// titles.
func splitSourceSuffix(title string) (string, string) {
	if idx := strings.LastIndex(title, " - "); idx > 0 {
		return title[:idx], title[idx+3:]
	}
	return title, "Yahoo Finance"
}

// ---------------------------------------------------------------------------
// HTML helpers
// ---------------------------------------------------------------------------

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes HTML tags and normalizes whitespace.
func StripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
