// Package server exposes scrape runs over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"

	"github.com/0x0BSoD/newsSync/internal/pipeline"
	"github.com/0x0BSoD/newsSync/internal/storage"
)

const (
	readTimeout     = 10 * time.Second
	idleTimeout     = 120 * time.Second
	shutdownTimeout = 10 * time.Second
)

type Runner interface {
	Run(ctx context.Context, name string) (pipeline.Result, error)
	RunAll(ctx context.Context) map[string]pipeline.Result
}

// RunHistory serves the last recorded run per feed.
type RunHistory interface {
	Latest(ctx context.Context) (map[string]storage.Run, error)
}

type Options struct {
	Addr     string
	Runner   Runner
	History  RunHistory
	Gatherer prometheus.Gatherer
}

type Server struct {
	runner  Runner
	history RunHistory
	router  *gin.Engine
	srv     *http.Server

	// base outlives individual requests so a client disconnect does not
	// abandon a run half way; it is cancelled on shutdown.
	base context.Context
}

func New(opts Options) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware())

	s := &Server{
		runner:  opts.Runner,
		history: opts.History,
		router:  router,
		base:    context.Background(),
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/scrape/:feed", s.scrape)

	if opts.History != nil {
		router.GET("/runs", s.runs)
	}

	metrics := promhttp.Handler()
	if opts.Gatherer != nil {
		metrics = promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})
	}
	router.GET("/metrics", gin.WrapH(metrics))

	s.srv = &http.Server{
		Addr:        opts.Addr,
		Handler:     router,
		ReadTimeout: readTimeout,
		IdleTimeout: idleTimeout,
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.base = ctx

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// scrape handles both a single feed and the "all" aggregate; gin does not allow
// a static segment beside a parameter at the same position.
func (s *Server) scrape(c *gin.Context) {
	name := c.Param("feed")
	if name == "all" {
		s.scrapeAll(c)
		return
	}

	res, err := s.runner.Run(s.base, name)
	if errors.Is(err, pipeline.ErrUnknownFeed) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}
	if err != nil || !res.Succeeded() {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Scraping failed",
			"status": res.Status,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   fmt.Sprintf("Scraping completed for %s", name),
		"status":    res.Status,
		"attempted": res.Attempted,
		"saved":     len(res.Articles),
	})
}

func (s *Server) scrapeAll(c *gin.Context) {
	results := s.runner.RunAll(s.base)

	c.JSON(http.StatusOK, lo.MapValues(results, func(res pipeline.Result, _ string) string {
		return lo.Ternary(res.Succeeded(), "success", "failed")
	}))
}

func (s *Server) runs(c *gin.Context) {
	latest, err := s.history.Latest(c.Request.Context())
	if err != nil {
		slog.Error("failed to load runs", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load runs"})
		return
	}
	c.JSON(http.StatusOK, latest)
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"client", c.ClientIP(),
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}
