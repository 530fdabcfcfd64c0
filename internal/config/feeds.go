package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/0x0BSoD/newsSync/internal/model"
)

//go:embed feeds.yaml
var defaultFeeds []byte

type registry struct {
	Feeds map[string]model.FeedConfig `yaml:"feeds"`
}

// Feeds loads the feed registry from feeds_file, or the built-in one when unset.
func (c Config) Feeds() (map[string]model.FeedConfig, error) {
	if c.FeedsFile == "" {
		return ParseFeeds(bytes.NewReader(defaultFeeds))
	}

	f, err := os.Open(c.FeedsFile)
	if err != nil {
		return nil, fmt.Errorf("open feeds file: %w", err)
	}
	defer f.Close()

	return ParseFeeds(f)
}

func ParseFeeds(r io.Reader) (map[string]model.FeedConfig, error) {
	var reg registry
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&reg); err != nil {
		return nil, fmt.Errorf("decode feeds: %w", err)
	}
	if len(reg.Feeds) == 0 {
		return nil, errors.New("no feeds configured")
	}

	var errs []error
	for name, feed := range reg.Feeds {
		feed.Name = name
		if feed.FeedURL == "" {
			errs = append(errs, fmt.Errorf("feed %s: rss_url is required", name))
		}
		if feed.ContentClass == "" {
			errs = append(errs, fmt.Errorf("feed %s: content_class is required", name))
		}
		if feed.Destination == "" {
			errs = append(errs, fmt.Errorf("feed %s: json_file is required", name))
		}
		reg.Feeds[name] = feed
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return reg.Feeds, nil
}
