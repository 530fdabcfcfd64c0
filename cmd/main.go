// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/0x0BSoD/newsSync/internal/config"
	"github.com/0x0BSoD/newsSync/internal/extractor"
	"github.com/0x0BSoD/newsSync/internal/metrics"
	"github.com/0x0BSoD/newsSync/internal/pipeline"
	"github.com/0x0BSoD/newsSync/internal/remote"
	"github.com/0x0BSoD/newsSync/internal/reporter"
	"github.com/0x0BSoD/newsSync/internal/retrieval"
	"github.com/0x0BSoD/newsSync/internal/server"
	"github.com/0x0BSoD/newsSync/internal/source"
	"github.com/0x0BSoD/newsSync/internal/storage"
	"github.com/0x0BSoD/newsSync/internal/summary"
)

func main() {
	if err := run(); err != nil {
		slog.Error("news-sync stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.GitHubToken == "" {
		slog.Warn("github_token is empty, remote writes will be rejected")
	}

	feeds, err := cfg.Feeds()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	client := retrieval.New(retrieval.Options{
		Timeout: cfg.RequestTimeout,
		Policy: retrieval.Policy{
			MaxAttempts:   cfg.RetryAttempts,
			BaseDelay:     cfg.RetryBaseDelay,
			Jitter:        cfg.RetryJitter,
			RetryStatuses: retrieval.DefaultPolicy().RetryStatuses,
		},
		Pacing:   retrieval.Pacing{Min: cfg.PaceMin, Max: cfg.PaceMax},
		Observer: m,
	})

	deps := pipeline.Deps{
		Reader: source.NewReader(client.HTTPClient(), loc),
		Extractor: extractor.New(client, extractor.Options{
			EmptyContent:        extractor.EmptyPolicy(cfg.EmptyContent),
			ReadabilityFallback: cfg.ReadabilityFallback,
			MinImageSize:        cfg.MinImageSize,
			BlockMarkers:        cfg.BlockMarkers,
		}),
		Store: remote.New(remote.Options{
			BaseURL: cfg.GitHubAPIURL,
			Owner:   cfg.GitHubOwner,
			Repo:    cfg.GitHubRepo,
			Branch:  cfg.GitHubBranch,
			Token:   cfg.GitHubToken,
		}),
		Metrics: m,
	}

	var history server.RunHistory
	if cfg.DatabaseDSN != "" {
		db, err := storage.Connect(ctx, cfg.DatabaseDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		runs := storage.NewRunStorage(db)
		deps.Recorder = runs
		history = runs
	}

	rep, err := reporter.NewTelegram(cfg.TelegramBotToken, cfg.TelegramAdminChatID)
	if err != nil {
		return err
	}
	if rep != nil {
		deps.Notifier = rep
	}

	if backend := newSummarizer(cfg); backend != nil {
		deps.Rephraser = summary.NewRephraser(backend, cfg.AIConcurrency)
	}

	p := pipeline.New(feeds, deps, pipeline.Options{
		MaxItems: cfg.MaxItems,
		FeedGap:  retrieval.Pacing{Min: cfg.FeedGapMin, Max: cfg.FeedGapMax},
	})

	srv := server.New(server.Options{
		Addr:     fmt.Sprintf(":%d", cfg.Port),
		Runner:   p,
		History:  history,
		Gatherer: reg,
	})

	slog.Info("news-sync starting", "feeds", p.Feeds(), "port", cfg.Port, "run_interval", cfg.RunInterval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	if cfg.RunInterval > 0 {
		g.Go(func() error {
			if err := p.Start(ctx, cfg.RunInterval); !errors.Is(err, context.Canceled) {
				return err
			}
			slog.Info("scheduler stopped")
			return nil
		})
	}

	return g.Wait()
}

func newSummarizer(cfg config.Config) summary.Summarizer {
	switch cfg.AIType {
	case "openai":
		slog.Info("using OpenAI-compatible rephraser", "model", cfg.AIModel)
		return summary.NewOpenAISummarizer(cfg.AIBaseURL, cfg.AIKey, cfg.AIPrompt, cfg.AIModel, cfg.AITimeout)
	case "ollama":
		slog.Info("using Ollama rephraser", "model", cfg.AIModel)
		return summary.NewOllamaSummarizer(cfg.AIBaseURL, cfg.AIPrompt, cfg.AIModel, cfg.AITimeout)
	default:
		return nil
	}
}
