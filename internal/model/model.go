// Package model defines the records that flow through a scrape run: the static
// FeedConfig, the transient FeedEntry and ExtractedContent, and the persisted
// Article and NewsCollection.
package model

import "net/textproto"

// HeaderProfile is a set of request headers sent with every fetch for a feed.
type HeaderProfile map[string]string

// Merge returns a new profile with p's entries overridden by other's. Keys are
// canonicalized, so "accept-language" overrides "Accept-Language".
func (p HeaderProfile) Merge(other HeaderProfile) HeaderProfile {
	out := make(HeaderProfile, len(p)+len(other))
	for _, profile := range []HeaderProfile{p, other} {
		for k, v := range profile {
			out[textproto.CanonicalMIMEHeaderKey(k)] = v
		}
	}
	return out
}

// FeedConfig is the static definition of one news source. ImageClass and
// DefaultImage are optional.
type FeedConfig struct {
	Name         string        `yaml:"-"`
	FeedURL      string        `yaml:"rss_url"`
	ContentClass string        `yaml:"content_class"`
	ImageClass   *string       `yaml:"image_class"`
	DefaultImage *string       `yaml:"custom_image_url"`
	Destination  string        `yaml:"json_file"`
	Headers      HeaderProfile `yaml:"headers"`
	MaxItems     int           `yaml:"max_items"`
}

type FeedEntry struct {
	Title       string
	URL         string
	Description string
	Date        string
	Time        string
}

type ExtractedContent struct {
	Content  string
	ImageURL *string
}

// Article is the persisted unit. Field order follows the historical files.
type Article struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Description string  `json:"description"`
	Time        string  `json:"time"`
	Date        string  `json:"date"`
	Content     string  `json:"content"`
	ImageURL    *string `json:"image_url"`
}

// NewArticle merges feed entry metadata with the content extracted from its page.
func NewArticle(entry FeedEntry, content ExtractedContent) Article {
	return Article{
		Title:       entry.Title,
		URL:         entry.URL,
		Description: entry.Description,
		Time:        entry.Time,
		Date:        entry.Date,
		Content:     content.Content,
		ImageURL:    content.ImageURL,
	}
}

type NewsCollection struct {
	News []Article `json:"news"`
}

// RemoteFile addresses a file in the remote store. An empty SHA means the
// file does not exist yet.
type RemoteFile struct {
	Path   string
	SHA    string
	Branch string
}

func (f RemoteFile) Exists() bool {
	return f.SHA != ""
}
