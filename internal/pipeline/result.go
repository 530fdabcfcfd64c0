package pipeline

import (
	"time"

	"github.com/0x0BSoD/newsSync/internal/model"
	"github.com/0x0BSoD/newsSync/internal/storage"
)

// Status tells an operator what a run needs from them.
type Status string

const (
	StatusOK            Status = "ok"
	StatusNoEntries     Status = "no_entries"
	StatusNoneExtracted Status = "none_extracted"
	StatusWriteFailed   Status = "write_failed"
	StatusCancelled     Status = "cancelled"
)

type Result struct {
	Feed      string
	Path      string
	Status    Status
	Attempted int
	Articles  []model.Article
	Err       error

	// Skipped counts entries whose extraction failed. Duplicates counts
	// entries dropped because their url was already saved in this run.
	Skipped    int
	Duplicates int

	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether the run's remote write went through.
func (r Result) Succeeded() bool {
	switch r.Status {
	case StatusOK, StatusNoEntries, StatusNoneExtracted:
		return true
	default:
		return false
	}
}

func (r Result) Run() storage.Run {
	run := storage.Run{
		Feed:       r.Feed,
		Path:       r.Path,
		Status:     string(r.Status),
		Attempted:  r.Attempted,
		Saved:      len(r.Articles),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.Err != nil {
		run.Error = r.Err.Error()
	}
	return run
}
