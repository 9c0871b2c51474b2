// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads and saves the application's YAML configuration file.
//
// Zero values in a loaded file fall back to the defaults, so a config file
// only needs the settings it changes. Command-line flags and environment
// variables are layered on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/poiesic/stdgap/ai"
	"github.com/poiesic/stdgap/analysis"
	"github.com/poiesic/stdgap/ingestion"
	"github.com/poiesic/stdgap/search"
	"github.com/poiesic/stdgap/split"
	"github.com/poiesic/stdgap/storage"
	"gopkg.in/yaml.v3"
)

// FileName is the config file name inside the config directory.
const FileName = "config.yaml"

// AppConfig is the root of the config file.
type AppConfig struct {
	AI       AIConfig       `yaml:"ai"`
	Store    StoreConfig    `yaml:"store"`
	Splitter SplitterConfig `yaml:"splitter"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Server   ServerConfig   `yaml:"server"`
}

// AIConfig configures the OpenAI-compatible embedding and chat services.
type AIConfig struct {
	// APIKey is usually supplied through OPENAI_API_KEY instead.
	APIKey              string        `yaml:"api_key,omitempty"`
	EmbeddingHost       string        `yaml:"embedding_host"`
	ChatHost            string        `yaml:"chat_host"`
	EmbeddingModel      string        `yaml:"embedding_model"`
	EmbeddingDimensions int           `yaml:"embedding_dimensions,omitempty"`
	ChatModel           string        `yaml:"chat_model"`
	Temperature         float64       `yaml:"temperature"`
	MaxRetries          int           `yaml:"max_retries"`
	RetryDelay          time.Duration `yaml:"retry_delay"`
	MaxRetryDelay       time.Duration `yaml:"max_retry_delay"`
	RateLimitPause      time.Duration `yaml:"rate_limit_pause"`
	MaxRateLimitWaits   int           `yaml:"max_rate_limit_waits"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
	RequestsPerSecond   float64       `yaml:"requests_per_second,omitempty"`
}

// StoreConfig locates the badger store directory.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// SplitterConfig tunes the default section splitter.
type SplitterConfig struct {
	WindowSize      int `yaml:"window_size"`
	MaxSectionChars int `yaml:"max_section_chars"`
}

// IngestConfig tunes document ingestion.
type IngestConfig struct {
	BatchSize      int   `yaml:"batch_size"`
	PoolSize       int   `yaml:"pool_size"`
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// AnalysisConfig tunes retrieval for gap analysis and the dashboard network.
type AnalysisConfig struct {
	ContextK         int     `yaml:"context_k"`
	SearchK          int     `yaml:"search_k"`
	NetworkThreshold float64 `yaml:"network_threshold"`
}

// ServerConfig configures the web dashboard.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	aiDefaults := ai.DefaultConfig()
	return &AppConfig{
		AI: AIConfig{
			EmbeddingHost:     aiDefaults.EmbeddingHost,
			ChatHost:          aiDefaults.ChatHost,
			EmbeddingModel:    aiDefaults.EmbeddingModel,
			ChatModel:         aiDefaults.ChatModel,
			Temperature:       aiDefaults.Temperature,
			MaxRetries:        aiDefaults.MaxRetries,
			RetryDelay:        aiDefaults.RetryDelay,
			MaxRetryDelay:     aiDefaults.MaxRetryDelay,
			RateLimitPause:    aiDefaults.RateLimitPause,
			MaxRateLimitWaits: aiDefaults.MaxRateLimitWaits,
			RequestTimeout:    aiDefaults.RequestTimeout,
		},
		Store: StoreConfig{
			Path: "stdgap-data",
		},
		Splitter: SplitterConfig{
			WindowSize:      split.DefaultWindowSize,
			MaxSectionChars: split.DefaultMaxSectionChars,
		},
		Ingest: IngestConfig{
			BatchSize:      ingestion.DefaultBatchSize,
			PoolSize:       1,
			MaxUploadBytes: 32 << 20,
		},
		Analysis: AnalysisConfig{
			ContextK:         analysis.ContextK,
			SearchK:          search.DefaultK,
			NetworkThreshold: search.DefaultNetworkThreshold,
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    10 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// DefaultPath returns the config file location under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(dir, "stdgap", FileName), nil
}

// Load reads the config file at path and fills unset fields with defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := &AppConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault loads the config file from DefaultPath, returning the
// defaults when no file exists there.
func LoadDefault() (*AppConfig, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes the config to path atomically, creating the parent directory.
// The file may hold an API key, so it is written with mode 0600.
func (c *AppConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return storage.WriteFileAtomic(path, data, 0o600)
}

// ApplyDefaults replaces zero values with the built-in defaults.
func (c *AppConfig) ApplyDefaults() {
	d := Default()

	setString(&c.AI.EmbeddingHost, d.AI.EmbeddingHost)
	setString(&c.AI.ChatHost, d.AI.ChatHost)
	setString(&c.AI.EmbeddingModel, d.AI.EmbeddingModel)
	setString(&c.AI.ChatModel, d.AI.ChatModel)
	setInt(&c.AI.MaxRetries, d.AI.MaxRetries)
	setDuration(&c.AI.RetryDelay, d.AI.RetryDelay)
	setDuration(&c.AI.MaxRetryDelay, d.AI.MaxRetryDelay)
	setDuration(&c.AI.RateLimitPause, d.AI.RateLimitPause)
	setInt(&c.AI.MaxRateLimitWaits, d.AI.MaxRateLimitWaits)
	setDuration(&c.AI.RequestTimeout, d.AI.RequestTimeout)

	setString(&c.Store.Path, d.Store.Path)

	setInt(&c.Splitter.WindowSize, d.Splitter.WindowSize)
	setInt(&c.Splitter.MaxSectionChars, d.Splitter.MaxSectionChars)

	setInt(&c.Ingest.BatchSize, d.Ingest.BatchSize)
	setInt(&c.Ingest.PoolSize, d.Ingest.PoolSize)
	if c.Ingest.MaxUploadBytes == 0 {
		c.Ingest.MaxUploadBytes = d.Ingest.MaxUploadBytes
	}

	setInt(&c.Analysis.ContextK, d.Analysis.ContextK)
	setInt(&c.Analysis.SearchK, d.Analysis.SearchK)
	if c.Analysis.NetworkThreshold == 0 {
		c.Analysis.NetworkThreshold = d.Analysis.NetworkThreshold
	}

	setString(&c.Server.Addr, d.Server.Addr)
	setDuration(&c.Server.ReadTimeout, d.Server.ReadTimeout)
	setDuration(&c.Server.WriteTimeout, d.Server.WriteTimeout)
	setDuration(&c.Server.ShutdownTimeout, d.Server.ShutdownTimeout)
}

// Validate checks values that defaults cannot repair.
func (c *AppConfig) Validate() error {
	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("ingest.batch_size must be at least 1, got %d", c.Ingest.BatchSize)
	}
	if c.Ingest.PoolSize < 1 {
		return fmt.Errorf("ingest.pool_size must be at least 1, got %d", c.Ingest.PoolSize)
	}
	if c.Ingest.MaxUploadBytes < 0 {
		return errors.New("ingest.max_upload_bytes cannot be negative")
	}
	if c.Analysis.ContextK < 1 || c.Analysis.SearchK < 1 {
		return errors.New("analysis.context_k and analysis.search_k must be at least 1")
	}
	if c.Analysis.NetworkThreshold < -1 || c.Analysis.NetworkThreshold > 1 {
		return fmt.Errorf("analysis.network_threshold must be within [-1, 1], got %g", c.Analysis.NetworkThreshold)
	}
	if err := c.SplitOptions().Validate(); err != nil {
		return err
	}
	return nil
}

// AIConfig returns the ai.Config described by the file.
// The result is not validated; callers supply the API key first.
func (c *AppConfig) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithChatHost(c.AI.ChatHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithEmbeddingDimensions(c.AI.EmbeddingDimensions),
		ai.WithChatModel(c.AI.ChatModel),
		ai.WithTemperature(c.AI.Temperature),
		ai.WithBatchSize(c.Ingest.BatchSize),
		ai.WithMaxRetries(c.AI.MaxRetries),
		ai.WithRetryDelay(c.AI.RetryDelay, c.AI.MaxRetryDelay),
		ai.WithRateLimit(c.AI.RateLimitPause, c.AI.MaxRateLimitWaits),
		ai.WithRequestTimeout(c.AI.RequestTimeout),
		ai.WithRequestsPerSecond(c.AI.RequestsPerSecond),
	)
}

// SplitOptions returns the splitter settings.
func (c *AppConfig) SplitOptions() split.Options {
	return split.Options{
		WindowSize:      c.Splitter.WindowSize,
		MaxSectionChars: c.Splitter.MaxSectionChars,
	}
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func setDuration(v *time.Duration, def time.Duration) {
	if *v == 0 {
		*v = def
	}
}
