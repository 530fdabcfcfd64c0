package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Test News</title>
  <link>https://news.example.com</link>
  <description>Latest</description>
  <item>
    <title>Council approves budget</title>
    <link>https://news.example.com/budget</link>
    <guid>https://news.example.com/budget</guid>
    <pubDate>Mon, 02 Jan 2006 15:04:05 +0000</pubDate>
    <description>&lt;p&gt;The council &amp;amp; mayor agreed.&lt;/p&gt;&lt;p class="link-more"&gt;&lt;a href="https://news.example.com/budget" class="more-link"&gt;Continue reading&lt;/a&gt;&lt;/p&gt;</description>
  </item>
  <item>
    <title>No link here</title>
    <guid>no-link-1</guid>
    <pubDate>Mon, 02 Jan 2006 15:04:05 +0000</pubDate>
    <description>Has a summary but no link.</description>
  </item>
  <item>
    <title>Rains expected</title>
    <link>https://news.example.com/rains</link>
    <guid>https://news.example.com/rains</guid>
    <pubDate>Mon, 02 Jan 2006 15:04:05 +0000</pubDate>
    <description>&lt;p&gt;Heavy rains are expected.&lt;/p&gt;&lt;p&gt;Continue reading Rains expected at Test News&lt;/p&gt;</description>
  </item>
  <item>
    <title>Fourth story</title>
    <link>https://news.example.com/fourth</link>
    <guid>https://news.example.com/fourth</guid>
    <pubDate>Mon, 02 Jan 2006 15:04:05 +0000</pubDate>
    <description>Fourth.</description>
  </item>
</channel>
</rss>`

const emptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Empty</title><link>https://news.example.com</link><description>none</description></channel></rss>`

func serveFeed(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fixedReader(t *testing.T) *Reader {
	t.Helper()
	return NewReader(&http.Client{Timeout: 5 * time.Second}, time.FixedZone("CAT", 2*60*60),
		WithClock(func() time.Time { return time.Date(2026, 3, 9, 6, 30, 0, 0, time.UTC) }))
}

func TestReader_Read(t *testing.T) {
	srv := serveFeed(t, testFeed)

	entries := fixedReader(t).Read(context.Background(), srv.URL, 3)

	require.Len(t, entries, 2)

	assert.Equal(t, "Council approves budget", entries[0].Title)
	assert.Equal(t, "https://news.example.com/budget", entries[0].URL)
	assert.Equal(t, "The council & mayor agreed.", entries[0].Description)
	assert.Equal(t, "09 Mar 2026", entries[0].Date)
	assert.Equal(t, "08:30", entries[0].Time, "capture time is in the configured zone")

	assert.Equal(t, "Rains expected", entries[1].Title)
	assert.Equal(t, "Heavy rains are expected.", entries[1].Description)
}

func TestReader_Read_KeepsFeedOrderWithoutLimit(t *testing.T) {
	srv := serveFeed(t, testFeed)

	entries := fixedReader(t).Read(context.Background(), srv.URL, 0)

	require.Len(t, entries, 3)
	assert.Equal(t, "https://news.example.com/fourth", entries[2].URL)
}

const contentOnlyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>Content Only</title>
  <link>https://news.example.com</link>
  <description>d</description>
  <item>
    <title>Body but no summary</title>
    <link>https://news.example.com/body-only</link>
    <guid>https://news.example.com/body-only</guid>
    <content:encoded>&lt;p&gt;Full body only.&lt;/p&gt;</content:encoded>
  </item>
  <item>
    <title>With summary</title>
    <link>https://news.example.com/summary</link>
    <guid>https://news.example.com/summary</guid>
    <description>Short summary.</description>
  </item>
</channel>
</rss>`

func TestReader_Read_DropsEntryWithoutSummary(t *testing.T) {
	srv := serveFeed(t, contentOnlyFeed)

	entries := fixedReader(t).Read(context.Background(), srv.URL, 10)

	require.Len(t, entries, 1)
	assert.Equal(t, "https://news.example.com/summary", entries[0].URL)
	assert.Equal(t, "Short summary.", entries[0].Description)
}

func TestReader_Read_EmptyFeed(t *testing.T) {
	srv := serveFeed(t, emptyFeed)

	assert.Empty(t, fixedReader(t).Read(context.Background(), srv.URL, 10))
}

func TestReader_Read_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assert.Empty(t, fixedReader(t).Read(context.Background(), url, 10))
}

func TestCleanSummary(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Just text.", "Just text."},
		{"markup", "<p>One <b>bold</b> move.</p>", "One bold move."},
		{"escaped markup", "&lt;p&gt;Escaped &lt;em&gt;html&lt;/em&gt;&lt;/p&gt;", "Escaped html"},
		{"read more class", `<p>Lede.</p><a class="read-more" href="#">Read more</a>`, "Lede."},
		{"continue reading class", `<p>Lede.</p><span class="continue-reading">Continue</span>`, "Lede."},
		{"continue reading paragraph", "<p>Lede.</p><p>Continue reading this story</p>", "Lede."},
		{"whitespace", "<p>  spaced \n\n out  </p>", "spaced out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanSummary(tt.in))
		})
	}
}
