// Package summary sends scraped articles to an LLM backend for rewording and
// applies the reply only when it parses exactly.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/0x0BSoD/newsSync/internal/cleaner"
	"github.com/0x0BSoD/newsSync/internal/extractor"
	"github.com/0x0BSoD/newsSync/internal/model"
)

// DefaultPrompt asks for the reply layout ParseRewrite accepts.
const DefaultPrompt = `Rewrite the news article you are given in your own words without changing any facts.
Reply in exactly this layout and nothing else:
TITLE: <rewritten title on one line>
DESCRIPTION: <one sentence summary on one line>
CONTENT:
<rewritten article, paragraphs separated by blank lines>`

var ErrMalformedReply = errors.New("malformed rephrase reply")

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type Rewrite struct {
	Title       string
	Description string
	Content     string
}

// ParseRewrite accepts only the TITLE/DESCRIPTION/CONTENT layout. Any other
// shape returns ErrMalformedReply and no partial result.
func ParseRewrite(reply string) (Rewrite, error) {
	lines := strings.Split(strings.TrimSpace(strings.ReplaceAll(reply, "\r\n", "\n")), "\n")
	if len(lines) < 4 {
		return Rewrite{}, fmt.Errorf("%w: expected at least 4 lines, got %d", ErrMalformedReply, len(lines))
	}

	title, ok := field(lines[0], "TITLE:")
	if !ok || title == "" {
		return Rewrite{}, fmt.Errorf("%w: missing TITLE", ErrMalformedReply)
	}
	description, ok := field(lines[1], "DESCRIPTION:")
	if !ok || description == "" {
		return Rewrite{}, fmt.Errorf("%w: missing DESCRIPTION", ErrMalformedReply)
	}
	if rest, ok := field(lines[2], "CONTENT:"); !ok || rest != "" {
		return Rewrite{}, fmt.Errorf("%w: missing CONTENT header", ErrMalformedReply)
	}

	paragraphs := lo.FilterMap(strings.Split(strings.Join(lines[3:], "\n"), "\n\n"), func(p string, _ int) (string, bool) {
		return cleaner.Clean(p)
	})
	if len(paragraphs) == 0 {
		return Rewrite{}, fmt.Errorf("%w: empty CONTENT", ErrMalformedReply)
	}

	return Rewrite{
		Title:       title,
		Description: description,
		Content:     extractor.JoinParagraphs(paragraphs),
	}, nil
}

func field(line, label string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), label)
	return strings.TrimSpace(rest), ok
}

// FormatInput renders an article in the same layout the reply must use.
func FormatInput(a model.Article) string {
	return fmt.Sprintf("TITLE: %s\nDESCRIPTION: %s\nCONTENT:\n%s", a.Title, a.Description, strings.TrimSpace(a.Content))
}

type Rephraser struct {
	backend     Summarizer
	concurrency int
}

func NewRephraser(backend Summarizer, concurrency int) *Rephraser {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Rephraser{backend: backend, concurrency: concurrency}
}

// RephraseAll rewrites the articles concurrently. An article whose call fails
// or whose reply does not parse is returned unchanged. Order is preserved.
func (r *Rephraser) RephraseAll(ctx context.Context, articles []model.Article) []model.Article {
	out := make([]model.Article, len(articles))
	copy(out, articles)

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i := range out {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			reply, err := r.backend.Summarize(ctx, FormatInput(out[i]))
			if err != nil {
				slog.Error("failed to rephrase article", "url", out[i].URL, "err", err)
				return nil
			}

			rw, err := ParseRewrite(reply)
			if err != nil {
				slog.Error("discarding rephrase reply", "url", out[i].URL, "err", err)
				return nil
			}

			out[i].Title = rw.Title
			out[i].Description = rw.Description
			out[i].Content = rw.Content
			return nil
		})
	}
	_ = g.Wait()

	return out
}
