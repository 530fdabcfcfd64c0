// Package pipeline drives scrape runs: read a feed, extract every entry's page,
// and write the resulting collection to the remote store exactly once.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/0x0BSoD/newsSync/internal/metrics"
	"github.com/0x0BSoD/newsSync/internal/model"
	"github.com/0x0BSoD/newsSync/internal/retrieval"
	"github.com/0x0BSoD/newsSync/internal/storage"
)

var ErrUnknownFeed = errors.New("feed not found")

type FeedReader interface {
	Read(ctx context.Context, feedURL string, maxItems int) []model.FeedEntry
}

type ContentExtractor interface {
	Extract(ctx context.Context, pageURL string, feed model.FeedConfig) (*model.ExtractedContent, error)
}

type RemoteStore interface {
	Commit(ctx context.Context, path string, payload any) error
}

type Rephraser interface {
	RephraseAll(ctx context.Context, articles []model.Article) []model.Article
}

type RunRecorder interface {
	Record(ctx context.Context, run storage.Run) error
}

type Notifier interface {
	FeedFailed(feed, status string, err error)
}

// Deps are the collaborators of a Pipeline. Rephraser, Recorder, Notifier and
// Metrics are optional.
type Deps struct {
	Reader    FeedReader
	Extractor ContentExtractor
	Store     RemoteStore
	Rephraser Rephraser
	Recorder  RunRecorder
	Notifier  Notifier
	Metrics   *metrics.Metrics
}

type Options struct {
	// MaxItems caps entries per feed when the feed does not set its own.
	MaxItems int
	// FeedGap is the pause between feeds in RunAll.
	FeedGap retrieval.Pacing
}

type Pipeline struct {
	feeds    map[string]model.FeedConfig
	deps     Deps
	maxItems int
	feedGap  retrieval.Pacing

	// locks serializes runs per destination path.
	locks sync.Map
}

func New(feeds map[string]model.FeedConfig, deps Deps, opts Options) *Pipeline {
	if opts.MaxItems <= 0 {
		opts.MaxItems = 10
	}

	return &Pipeline{
		feeds:    feeds,
		deps:     deps,
		maxItems: opts.MaxItems,
		feedGap:  opts.FeedGap,
	}
}

// Feeds returns the configured feed names in a stable order.
func (p *Pipeline) Feeds() []string {
	names := lo.Keys(p.feeds)
	slices.Sort(names)
	return names
}

// Start runs every feed immediately and then on each tick until ctx is done.
func (p *Pipeline) Start(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.RunAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.RunAll(ctx)
		}
	}
}

// Run executes one run of the named feed.
func (p *Pipeline) Run(ctx context.Context, name string) (Result, error) {
	feed, ok := p.feeds[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownFeed, name)
	}
	return p.RunFeed(ctx, feed), nil
}

// RunAll runs every feed in name order with a random pause between feeds. A
// failing feed does not affect the others.
func (p *Pipeline) RunAll(ctx context.Context) map[string]Result {
	results := make(map[string]Result, len(p.feeds))

	for i, name := range p.Feeds() {
		if i > 0 {
			if err := sleep(ctx, p.feedGap.Next()); err != nil {
				results[name] = Result{Feed: name, Path: p.feeds[name].Destination, Status: StatusCancelled, Err: err}
				continue
			}
		}
		results[name] = p.RunFeed(ctx, p.feeds[name])
	}

	return results
}

// RunFeed reads the feed, extracts every entry and commits the collection. An
// entry that cannot be extracted is skipped; the remote write happens once,
// even when no article survived. A cancelled context stops the run between
// entries, before anything is written.
func (p *Pipeline) RunFeed(ctx context.Context, feed model.FeedConfig) (res Result) {
	unlock := p.lock(feed.Destination)
	defer unlock()

	res = Result{Feed: feed.Name, Path: feed.Destination, StartedAt: time.Now()}
	defer func() { p.finish(ctx, &res) }()

	maxItems := lo.Ternary(feed.MaxItems > 0, feed.MaxItems, p.maxItems)
	entries := p.deps.Reader.Read(ctx, feed.FeedURL, maxItems)
	res.Attempted = len(entries)

	articles := make([]model.Article, 0, len(entries))
	seen := make(map[string]bool, len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			res.Status, res.Err = StatusCancelled, err
			return res
		}

		if seen[entry.URL] {
			slog.Info("skipping duplicate entry", "feed", feed.Name, "url", entry.URL)
			res.Duplicates++
			continue
		}

		content, err := p.deps.Extractor.Extract(ctx, entry.URL, feed)
		if err != nil {
			slog.Warn("skipping article", "feed", feed.Name, "url", entry.URL, "err", err)
			res.Skipped++
			continue
		}

		seen[entry.URL] = true
		articles = append(articles, model.NewArticle(entry, *content))
	}

	if err := ctx.Err(); err != nil {
		res.Status, res.Err = StatusCancelled, err
		return res
	}

	if len(articles) == 0 {
		slog.Warn("no articles scraped successfully", "feed", feed.Name, "entries", len(entries))
	} else if p.deps.Rephraser != nil {
		articles = p.deps.Rephraser.RephraseAll(ctx, articles)
	}
	res.Articles = articles

	if err := p.deps.Store.Commit(ctx, feed.Destination, model.NewsCollection{News: articles}); err != nil {
		res.Status, res.Err = StatusWriteFailed, err
		return res
	}

	switch {
	case len(entries) == 0:
		res.Status = StatusNoEntries
	case len(articles) == 0:
		res.Status = StatusNoneExtracted
	default:
		res.Status = StatusOK
	}
	return res
}

func (p *Pipeline) finish(ctx context.Context, res *Result) {
	res.FinishedAt = time.Now()
	ctx = context.WithoutCancel(ctx)

	slog.Info("run finished",
		"feed", res.Feed,
		"status", res.Status,
		"attempted", res.Attempted,
		"saved", len(res.Articles),
		"skipped", res.Skipped,
		"duplicates", res.Duplicates,
		"err", res.Err,
	)

	m := p.deps.Metrics
	m.ObserveRun(res.Feed, string(res.Status), len(res.Articles), res.Skipped, res.FinishedAt.Sub(res.StartedAt))
	switch res.Status {
	case StatusWriteFailed:
		m.ObserveRemoteWrite("failed")
	case StatusCancelled:
	default:
		m.ObserveRemoteWrite("ok")
	}

	if res.Status == StatusWriteFailed && p.deps.Notifier != nil {
		p.deps.Notifier.FeedFailed(res.Feed, string(res.Status), res.Err)
	}

	if p.deps.Recorder != nil {
		if err := p.deps.Recorder.Record(ctx, res.Run()); err != nil {
			slog.Error("failed to record run", "feed", res.Feed, "err", err)
		}
	}
}

func (p *Pipeline) lock(path string) func() {
	v, _ := p.locks.LoadOrStore(path, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
