// Package extractor pulls an article's readable body text and a representative
// image out of its page.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/samber/lo"

	"github.com/0x0BSoD/newsSync/internal/cleaner"
	"github.com/0x0BSoD/newsSync/internal/model"
	"github.com/0x0BSoD/newsSync/internal/retrieval"
)

var (
	ErrContainerNotFound = errors.New("content container not found")
	ErrBlocked           = errors.New("blocked by bot challenge")
	ErrEmptyContent      = errors.New("content container has no paragraphs")
)

// EmptyPolicy decides what happens when the container is found but yields no
// paragraphs.
type EmptyPolicy string

const (
	EmptyKeep EmptyPolicy = "keep"
	EmptySkip EmptyPolicy = "skip"
)

// fallbackContainers are tried in order when the feed's content selector is absent.
var fallbackContainers = []string{
	"article",
	"main",
	".post-content",
	".entry-content",
	".article-content",
	".td-post-content",
	".content",
	"[role='main']",
}

type imageSelector struct {
	selector string
	attr     string
}

var featuredImages = []imageSelector{
	{"meta[property='og:image']", "content"},
	{"meta[name='twitter:image']", "content"},
	{"img.wp-post-image", ""},
	{".featured-image img", ""},
	{".post-thumbnail img", ""},
	{".entry-thumbnail img", ""},
}

// imageSourceAttrs covers lazy-loading themes that leave src as a placeholder.
var imageSourceAttrs = []string{"src", "data-src", "data-lazy-src"}

type PageGetter interface {
	Fetch(ctx context.Context, url string, profile model.HeaderProfile) (*retrieval.Response, error)
}

type Options struct {
	EmptyContent        EmptyPolicy
	ReadabilityFallback bool
	MinImageSize        int
	BlockMarkers        []string
}

type Extractor struct {
	pages PageGetter
	opts  Options
}

func New(pages PageGetter, opts Options) *Extractor {
	if opts.EmptyContent == "" {
		opts.EmptyContent = EmptyKeep
	}
	if opts.MinImageSize <= 0 {
		opts.MinImageSize = 300
	}
	return &Extractor{pages: pages, opts: opts}
}

// Extract fetches pageURL with the feed's header profile and extracts its content.
func (e *Extractor) Extract(ctx context.Context, pageURL string, feed model.FeedConfig) (*model.ExtractedContent, error) {
	resp, err := e.pages.Fetch(ctx, pageURL, feed.Headers)
	if err != nil {
		return nil, fmt.Errorf("fetch article: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &retrieval.StatusError{Code: resp.StatusCode, URL: pageURL}
	}

	return e.ExtractHTML(resp.Body, pageURL, feed)
}

// ExtractHTML runs extraction on an already fetched page. It does not modify
// shared state, so the same input always gives the same output.
func (e *Extractor) ExtractHTML(body []byte, pageURL string, feed model.FeedConfig) (*model.ExtractedContent, error) {
	if marker, ok := e.blockMarker(body); ok {
		return nil, fmt.Errorf("%w: page contains %q", ErrBlocked, marker)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, _ := url.Parse(pageURL)

	paragraphs, err := e.paragraphs(doc, body, base, feed.ContentClass)
	if err != nil {
		return nil, err
	}

	content := JoinParagraphs(paragraphs)
	if content == "" && e.opts.EmptyContent == EmptySkip {
		return nil, ErrEmptyContent
	}

	return &model.ExtractedContent{
		Content:  content,
		ImageURL: e.resolveImage(doc, base, feed),
	}, nil
}

func (e *Extractor) paragraphs(doc *goquery.Document, body []byte, base *url.URL, contentClass string) ([]string, error) {
	container, ok := findContainer(doc, contentClass)
	if ok {
		return cleanAll(container.Find("p").Map(func(_ int, s *goquery.Selection) string {
			return s.Text()
		})), nil
	}

	if !e.opts.ReadabilityFallback {
		return nil, ErrContainerNotFound
	}

	article, err := readability.FromReader(bytes.NewReader(body), base)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return nil, ErrContainerNotFound
	}

	return cleanAll(strings.Split(article.TextContent, "\n")), nil
}

func findContainer(doc *goquery.Document, contentClass string) (*goquery.Selection, bool) {
	selectors := append([]string{Selector(contentClass)}, fallbackContainers...)
	for _, sel := range selectors {
		if sel == "" {
			continue
		}
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s, true
		}
	}
	return nil, false
}

func cleanAll(texts []string) []string {
	return lo.FilterMap(texts, func(text string, _ int) (string, bool) {
		return cleaner.Clean(text)
	})
}

// JoinParagraphs follows every paragraph with a blank line, including the last.
func JoinParagraphs(paragraphs []string) string {
	var b strings.Builder
	for _, p := range paragraphs {
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Selector turns a configured identifier into a CSS selector. A bare name is
// treated as a class; anything else is used as written.
func Selector(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ""
	}
	if strings.ContainsAny(identifier, ".#[]:> ") {
		return identifier
	}
	return "." + identifier
}

func (e *Extractor) blockMarker(body []byte) (string, bool) {
	lower := bytes.ToLower(body)
	return lo.Find(e.opts.BlockMarkers, func(marker string) bool {
		return marker != "" && bytes.Contains(lower, []byte(strings.ToLower(marker)))
	})
}
