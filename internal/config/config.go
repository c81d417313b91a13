package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	DataDir         string `json:"data_dir"`
	DBPath          string `json:"db_path"`
	LogLevel        string `json:"log_level"`
	LanguageHint    string `json:"language_hint"`
	HistoryPageSize int    `json:"history_page_size"`
	Session         struct {
		IdleTimeoutMinutes int    `json:"idle_timeout_minutes"`
		EvictSchedule      string `json:"evict_schedule"`
	} `json:"session"`
	Regen struct {
		ChunkThresholdSeconds int `json:"chunk_threshold_seconds"`
		MinChunkSeconds       int `json:"min_chunk_seconds"`
		MaxChunkSeconds       int `json:"max_chunk_seconds"`
		MaxConcurrentChunks   int `json:"max_concurrent_chunks"`
		MaxAttempts           int `json:"max_attempts"`
		CallTimeoutSeconds    int `json:"call_timeout_seconds"`
		MaxTranscriptTokens   int `json:"max_transcript_tokens"`
	} `json:"regen"`
	Summarize struct {
		Provider string `json:"provider"`
		BaseURL  string `json:"base_url"`
		APIKey   string `json:"api_key"`
		Model    string `json:"model"`
	} `json:"summarize"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:         filepath.Join(os.Getenv("HOME"), ".voicebrief"),
		LogLevel:        "info",
		LanguageHint:    "en",
		HistoryPageSize: 1,
	}
	cfg.Session.IdleTimeoutMinutes = 120
	cfg.Session.EvictSchedule = "@every 1m"
	cfg.Regen.ChunkThresholdSeconds = 600
	cfg.Regen.MinChunkSeconds = 240
	cfg.Regen.MaxChunkSeconds = 600
	cfg.Regen.MaxConcurrentChunks = 2
	cfg.Regen.MaxAttempts = 3
	cfg.Regen.CallTimeoutSeconds = 120
	cfg.Regen.MaxTranscriptTokens = 100000
	cfg.Summarize.Provider = "gemini"
	cfg.Summarize.Model = "gemini-2.0-flash"

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "voicebrief.sqlite")
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		cfg.Summarize.APIKey = apiKey
	}
	if baseURL := os.Getenv("GEMINI_BASE_URL"); baseURL != "" {
		cfg.Summarize.BaseURL = baseURL
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}
	if dbPath := os.Getenv("VOICEBRIEF_DB"); dbPath != "" {
		cfg.DBPath = dbPath
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}

// Save writes the config to path atomically.
func Save(path string, cfg *Config) error {
	return writeDefaults(path, cfg)
}
