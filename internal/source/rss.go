// Package source reads syndication feeds into normalized FeedEntry values.
package source

import (
	"context"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/SlyMarbo/rss"
	"github.com/samber/lo"

	"github.com/0x0BSoD/newsSync/internal/cleaner"
	"github.com/0x0BSoD/newsSync/internal/model"
)

const (
	DateLayout = "02 Jan 2006"
	TimeLayout = "15:04"
)

// boilerplateSelector matches "read more" style links WordPress and friends
// append to feed summaries.
const boilerplateSelector = ".more-link, .continue-reading, .read-more"

// contextTransport injects a context into every outgoing request so that
// context cancellation and deadlines propagate through the rss library.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

type Reader struct {
	client *http.Client
	loc    *time.Location
	now    func() time.Time
}

type Option func(*Reader)

// WithClock replaces the wall clock used for capture timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reader) {
		r.now = now
	}
}

// NewReader returns a Reader that fetches with client and stamps entries with
// the wall-clock time in loc.
func NewReader(client *http.Client, loc *time.Location, opts ...Option) *Reader {
	if client == nil {
		client = http.DefaultClient
	}
	if loc == nil {
		loc = time.UTC
	}

	r := &Reader{client: client, loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read returns at most maxItems entries in feed order. An unreachable or empty
// feed yields no entries and no error.
func (r *Reader) Read(ctx context.Context, feedURL string, maxItems int) []model.FeedEntry {
	slog.Info("fetching feed", "url", feedURL)

	feed, err := r.loadFeed(ctx, feedURL)
	if err != nil {
		slog.Warn("feed unavailable", "url", feedURL, "err", err)
		return nil
	}

	if len(feed.Items) == 0 {
		slog.Warn("feed returned 0 entries, likely blocked upstream", "url", feedURL)
		return nil
	}

	items := feed.Items
	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}

	captured := r.now().In(r.loc)
	date, clock := captured.Format(DateLayout), captured.Format(TimeLayout)

	entries := lo.FilterMap(items, func(item *rss.Item, _ int) (model.FeedEntry, bool) {
		link := strings.TrimSpace(item.Link)
		summary := strings.TrimSpace(item.Summary)
		if link == "" || summary == "" {
			return model.FeedEntry{}, false
		}

		return model.FeedEntry{
			Title:       strings.TrimSpace(item.Title),
			URL:         link,
			Description: CleanSummary(summary),
			Date:        date,
			Time:        clock,
		}, true
	})

	slog.Info("feed entries found", "url", feedURL, "count", len(entries))
	return entries
}

// CleanSummary unescapes a summary, removes "continue reading" paragraphs and
// read-more links, and returns the remaining text with collapsed whitespace.
func CleanSummary(summary string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html.UnescapeString(summary)))
	if err != nil {
		return strings.Join(strings.Fields(summary), " ")
	}

	doc.Find(boilerplateSelector).Remove()
	doc.Find("p").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Text(), cleaner.Boilerplate)
	}).Remove()

	return strings.Join(strings.Fields(doc.Text()), " ")
}

func (r *Reader) loadFeed(ctx context.Context, url string) (*rss.Feed, error) {
	base := r.client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client := &http.Client{
		Transport: contextTransport{ctx: ctx, base: base},
		Timeout:   r.client.Timeout,
	}
	return rss.FetchByClient(url, client)
}
