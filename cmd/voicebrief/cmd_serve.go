package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/voicebrief/internal/history"
	"github.com/user/voicebrief/internal/regen"
	"github.com/user/voicebrief/internal/session"
	"github.com/user/voicebrief/internal/store"
	"github.com/user/voicebrief/internal/telegram"
	"github.com/user/voicebrief/pkg/summarize"
	"github.com/user/voicebrief/pkg/summarize/gemini"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the voicebrief bot",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token not configured (set telegram.token or TELEGRAM_BOT_TOKEN)")
	}
	if cfg.Summarize.APIKey == "" {
		return fmt.Errorf("summarization api key not configured (set summarize.api_key or GEMINI_API_KEY)")
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Durable record store
	records, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer records.Close()

	// Summarization provider
	provider := gemini.New(&summarize.Config{
		BaseURL: cfg.Summarize.BaseURL,
		APIKey:  cfg.Summarize.APIKey,
		Model:   cfg.Summarize.Model,
	})

	// Live sessions and idle eviction
	sessions := session.NewStore(time.Duration(cfg.Session.IdleTimeoutMinutes) * time.Minute)
	evictor, err := session.NewEvictor(sessions, cfg.Session.EvictSchedule)
	if err != nil {
		return fmt.Errorf("create evictor: %w", err)
	}
	evictor.Start()
	defer evictor.Stop()

	// Telegram transport
	bot, err := telegram.NewBot(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}

	// Orchestrator
	orch, err := regen.New(sessions, records, provider, telegram.NewFetcher(bot), regen.Config{
		ChunkThreshold:      time.Duration(cfg.Regen.ChunkThresholdSeconds) * time.Second,
		MinChunk:            time.Duration(cfg.Regen.MinChunkSeconds) * time.Second,
		MaxChunk:            time.Duration(cfg.Regen.MaxChunkSeconds) * time.Second,
		MaxConcurrentChunks: cfg.Regen.MaxConcurrentChunks,
		CallTimeout:         time.Duration(cfg.Regen.CallTimeoutSeconds) * time.Second,
		MaxTranscriptTokens: cfg.Regen.MaxTranscriptTokens,
		LanguageHint:        cfg.LanguageHint,
	}, &regen.RetryPolicy{
		MaxAttempts:    cfg.Regen.MaxAttempts,
		InitialDelay:   1 * time.Second,
		Multiplier:     2.0,
		MaxDelay:       30 * time.Second,
		QuotaDelay:     10 * time.Second,
		JitterFraction: 0.25,
	})
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	machine := session.NewMachine(sessions, orch, history.New(records), records, cfg.HistoryPageSize)
	adapter := telegram.New(bot, machine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go adapter.Start(ctx)

	slog.Info("voicebrief started",
		"data_dir", cfg.DataDir,
		"db_path", cfg.DBPath,
		"log_level", cfg.LogLevel,
		"chunk_threshold_s", cfg.Regen.ChunkThresholdSeconds,
		"max_concurrent_chunks", cfg.Regen.MaxConcurrentChunks,
		"model", cfg.Summarize.Model,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")
	return nil
}
