package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x0BSoD/newsSync/internal/cleaner"
	"github.com/0x0BSoD/newsSync/internal/model"
	"github.com/0x0BSoD/newsSync/internal/retrieval"
)

const pageURL = "https://news.example.com/2026/03/budget/"

var testFeed = model.FeedConfig{
	Name:         "test",
	ContentClass: "post--content",
	ImageClass:   lo.ToPtr("s-post-thumbnail"),
	Destination:  "news/test.json",
}

const fullPage = `<html><head><title>Budget</title></head><body>
<div class="s-post-thumbnail"><img src="/uploads/budget.jpg" alt=""></div>
<div class="post--content">
  <p>The council approved the budget on Monday.</p>
  <p>   </p>
  <p>Residents &amp; ratepayers said it was “fair”.</p>
  <p><a href="/more">Continue reading</a></p>
  <p>Жж</p>
  <p>Debate lasted three hours.</p>
</div>
</body></html>`

func TestExtractHTML_ConfiguredContainer(t *testing.T) {
	e := New(nil, Options{})

	got, err := e.ExtractHTML([]byte(fullPage), pageURL, testFeed)
	require.NoError(t, err)

	want := "The council approved the budget on Monday.\n\n" +
		"Residents & ratepayers said it was fair.\n\n" +
		"Debate lasted three hours.\n\n"
	assert.Equal(t, want, got.Content)
	require.NotNil(t, got.ImageURL)
	assert.Equal(t, "https://news.example.com/uploads/budget.jpg", *got.ImageURL)

	assert.NotContains(t, got.Content, cleaner.Boilerplate)
	assert.True(t, cleaner.IsPrintable(got.Content))
}

func TestExtractHTML_Idempotent(t *testing.T) {
	e := New(nil, Options{})

	first, err := e.ExtractHTML([]byte(fullPage), pageURL, testFeed)
	require.NoError(t, err)
	second, err := e.ExtractHTML([]byte(fullPage), pageURL, testFeed)
	require.NoError(t, err)

	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, first.ImageURL, second.ImageURL)
}

func TestExtractHTML_FallbackContainers(t *testing.T) {
	tests := []struct {
		name string
		page string
		want string
	}{
		{
			name: "article tag",
			page: `<html><body><main><p>From main.</p></main><article><p>From article.</p></article></body></html>`,
			want: "From article.\n\n",
		},
		{
			name: "main tag",
			page: `<html><body><main><p>From main.</p></main></body></html>`,
			want: "From main.\n\n",
		},
		{
			name: "entry content class",
			page: `<html><body><div class="entry-content"><p>From entry.</p></div></body></html>`,
			want: "From entry.\n\n",
		},
	}

	e := New(nil, Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractHTML([]byte(tt.page), pageURL, testFeed)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Content)
		})
	}
}

func TestExtractHTML_ContainerNotFound(t *testing.T) {
	page := `<html><body><div class="sidebar"><p>Ads.</p></div></body></html>`

	got, err := New(nil, Options{}).ExtractHTML([]byte(page), pageURL, testFeed)
	assert.ErrorIs(t, err, ErrContainerNotFound)
	assert.Nil(t, got)
}

func TestExtractHTML_EmptyContainer(t *testing.T) {
	page := `<html><body><div class="post--content"><div>No paragraphs</div></div></body></html>`

	kept, err := New(nil, Options{EmptyContent: EmptyKeep}).ExtractHTML([]byte(page), pageURL, testFeed)
	require.NoError(t, err)
	assert.Equal(t, "", kept.Content)

	_, err = New(nil, Options{EmptyContent: EmptySkip}).ExtractHTML([]byte(page), pageURL, testFeed)
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestExtractHTML_BlockMarker(t *testing.T) {
	page := `<html><head><title>Attention Required! | Cloudflare</title></head><body><article><p>x</p></article></body></html>`

	_, err := New(nil, Options{BlockMarkers: []string{"attention required! | cloudflare"}}).
		ExtractHTML([]byte(page), pageURL, testFeed)
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestExtractHTML_ReadabilityFallback(t *testing.T) {
	sentence := "The national assembly sat late into the night to debate the proposed changes to the electoral law. "
	page := "<html><head><title>Story</title></head><body><div id=\"story\">\n" +
		"<p>" + strings.Repeat(sentence, 4) + "</p>\n" +
		"<p>" + strings.Repeat(sentence, 4) + "</p>\n" +
		"<p>" + strings.Repeat(sentence, 4) + "</p>\n" +
		"</div></body></html>"

	_, err := New(nil, Options{}).ExtractHTML([]byte(page), pageURL, testFeed)
	require.ErrorIs(t, err, ErrContainerNotFound)

	got, err := New(nil, Options{ReadabilityFallback: true}).ExtractHTML([]byte(page), pageURL, testFeed)
	require.NoError(t, err)
	assert.Contains(t, got.Content, "The national assembly sat late into the night")
	assert.True(t, cleaner.IsPrintable(got.Content))
}

func TestResolveImage_Order(t *testing.T) {
	noClass := testFeed
	noClass.ImageClass = nil

	withDefault := noClass
	withDefault.DefaultImage = lo.ToPtr("https://cdn.example.com/default.jpg")

	tests := []struct {
		name string
		feed model.FeedConfig
		page string
		want *string
	}{
		{
			name: "configured container beats og image",
			feed: testFeed,
			page: `<html><head><meta property="og:image" content="https://cdn.example.com/og.jpg"></head>
<body><div class="s-post-thumbnail"><img data-src="https://cdn.example.com/lazy.jpg" src="data:image/gif;base64,R0lG"></div><article><p>x</p></article></body></html>`,
			want: lo.ToPtr("https://cdn.example.com/lazy.jpg"),
		},
		{
			name: "featured og image",
			feed: noClass,
			page: `<html><head><meta property="og:image" content="https://cdn.example.com/og.jpg"></head><body><article><p>x</p></article></body></html>`,
			want: lo.ToPtr("https://cdn.example.com/og.jpg"),
		},
		{
			name: "featured wp post image",
			feed: noClass,
			page: `<html><body><article><img class="logo" src="/logo.png"><img class="wp-post-image" src="/featured.jpg"><p>x</p></article></body></html>`,
			want: lo.ToPtr("https://news.example.com/featured.jpg"),
		},
		{
			name: "large image when configured container has none",
			feed: testFeed,
			page: `<html><body><div class="s-post-thumbnail"></div><article><img src="/icon.png" width="32"><img src="/photo.jpg" width="400"><p>x</p></article></body></html>`,
			want: lo.ToPtr("https://news.example.com/photo.jpg"),
		},
		{
			name: "large image by height",
			feed: noClass,
			page: `<html><body><article><img src="/tall.jpg" height="640px"><p>x</p></article></body></html>`,
			want: lo.ToPtr("https://news.example.com/tall.jpg"),
		},
		{
			name: "default image",
			feed: withDefault,
			page: `<html><body><article><img src="/icon.png" width="32"><p>x</p></article></body></html>`,
			want: lo.ToPtr("https://cdn.example.com/default.jpg"),
		},
		{
			name: "none",
			feed: noClass,
			page: `<html><body><article><p>x</p></article></body></html>`,
			want: nil,
		},
	}

	e := New(nil, Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractHTML([]byte(tt.page), pageURL, tt.feed)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ImageURL)
		})
	}
}

func TestSelector(t *testing.T) {
	assert.Equal(t, ".post-body", Selector("post-body"))
	assert.Equal(t, "div.post-body", Selector("div.post-body"))
	assert.Equal(t, "#main article", Selector("#main article"))
	assert.Equal(t, "", Selector("  "))
}

func TestJoinParagraphs(t *testing.T) {
	assert.Equal(t, "", JoinParagraphs(nil))
	assert.Equal(t, "a\n\nb\n\n", JoinParagraphs([]string{"a", "b"}))
}

func TestExtract_FetchesPage(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(fullPage))
	}))
	defer srv.Close()

	pages := retrieval.New(retrieval.Options{Timeout: time.Second, Policy: retrieval.Policy{MaxAttempts: 1}})
	e := New(pages, Options{})

	got, err := e.Extract(context.Background(), srv.URL+"/story", testFeed)
	require.NoError(t, err)
	assert.Contains(t, got.Content, "Debate lasted three hours.")
	assert.Equal(t, srv.URL+"/uploads/budget.jpg", *got.ImageURL)
	assert.NotEmpty(t, ua)

	_, err = e.Extract(context.Background(), srv.URL+"/missing", testFeed)
	var statusErr *retrieval.StatusError
	assert.ErrorAs(t, err, &statusErr)
}
