package extractor

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"github.com/0x0BSoD/newsSync/internal/model"
)

// resolveImage tries, in order: the feed's image container, the featured image
// selectors, any image declared larger than MinImageSize, and the feed's
// default image.
func (e *Extractor) resolveImage(doc *goquery.Document, base *url.URL, feed model.FeedConfig) *string {
	if class := lo.FromPtr(feed.ImageClass); class != "" {
		container := doc.Find(Selector(class)).First()
		img := container.Filter("img")
		if img.Length() == 0 {
			img = container.Find("img").First()
		}
		if src := imageSource(img); src != "" {
			return lo.ToPtr(resolve(base, src))
		}
	}

	for _, f := range featuredImages {
		s := doc.Find(f.selector).First()
		var src string
		if f.attr != "" {
			src = strings.TrimSpace(s.AttrOr(f.attr, ""))
		} else {
			src = imageSource(s)
		}
		if src != "" {
			return lo.ToPtr(resolve(base, src))
		}
	}

	if src := largeImage(doc, e.opts.MinImageSize); src != "" {
		return lo.ToPtr(resolve(base, src))
	}

	if def := lo.FromPtr(feed.DefaultImage); def != "" {
		return lo.ToPtr(def)
	}

	return nil
}

func imageSource(img *goquery.Selection) string {
	if img.Length() == 0 {
		return ""
	}
	for _, attr := range imageSourceAttrs {
		v := strings.TrimSpace(img.AttrOr(attr, ""))
		if v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

func largeImage(doc *goquery.Document, minSize int) string {
	var found string
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if dimension(img, "width") > minSize || dimension(img, "height") > minSize {
			found = imageSource(img)
		}
		return found == ""
	})
	return found
}

func dimension(img *goquery.Selection, attr string) int {
	v := strings.TrimSuffix(strings.TrimSpace(img.AttrOr(attr, "")), "px")
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func resolve(base *url.URL, src string) string {
	if base == nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}
