// Package app wires config, storage, logging, metrics and the LLM provider
// into an engine for the CLI and the HTTP server.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"conecta/internal/config"
	"conecta/internal/db"
	"conecta/internal/engine"
	"conecta/internal/llm"
	"conecta/internal/logger"
	"conecta/internal/metrics"
	"conecta/internal/migrate"
)

// Options selects where state lives and how the runtime is assembled.
type Options struct {
	Workspace  string
	ConfigPath string
	// Provider overrides llm.provider when set.
	Provider string
	// RequireLLM fails Open when the provider cannot be built. Commands that
	// never reach the model leave it false and run with an unavailable client.
	RequireLLM bool
}

// Runtime owns the open database and the engine built on it.
type Runtime struct {
	Config  *config.Config
	DB      *sql.DB
	Engine  engine.Engine
	Log     *logger.Logger
	Metrics *metrics.Metrics
}

// LoadConfig reads the explicit path when given, else conecta.yml in workspace.
func LoadConfig(workspace, path string) (*config.Config, error) {
	if strings.TrimSpace(path) != "" {
		return config.FromFile(path)
	}
	return config.Load(workspace)
}

// NewLLM builds the configured completion client.
func NewLLM(cfg config.LLMConfig) (llm.Client, error) {
	switch cfg.Provider {
	case "echo":
		return llm.Echo{}, nil
	case "openai", "":
		return llm.NewOpenAI(llm.OpenAIConfig{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey(),
			Model:             cfg.Model,
			Temperature:       cfg.Temperature,
			MaxTokens:         cfg.MaxTokens,
			Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
			RequestsPerMinute: cfg.RequestsPerMinute,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// unavailable stands in for a provider that could not be configured.
type unavailable struct {
	err error
}

func (u unavailable) Complete(context.Context, llm.Request) (llm.Response, error) {
	return llm.Response{}, u.err
}

// Open loads config, opens and migrates the database and assembles the engine.
func Open(opts Options) (*Runtime, error) {
	cfg, err := LoadConfig(opts.Workspace, opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.Provider != "" {
		cfg.LLM.Provider = opts.Provider
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	client, err := NewLLM(cfg.LLM)
	if err != nil {
		if opts.RequireLLM {
			return nil, fmt.Errorf("llm provider: %w", err)
		}
		log.Debug("llm provider unavailable", "provider", cfg.LLM.Provider, "error", err)
		client = unavailable{err: err}
	}
	if _, err := db.EnsureWorkspace(opts.Workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace, Path: cfg.Database.Path})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	m := metrics.New()
	e := engine.New(conn, cfg, client)
	e.Log = log
	e.Metrics = m
	return &Runtime{Config: cfg, DB: conn, Engine: e, Log: log, Metrics: m}, nil
}

func (r *Runtime) Close() error {
	r.Log.Sync()
	return r.DB.Close()
}
