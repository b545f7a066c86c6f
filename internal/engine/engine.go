package engine

import (
	"context"
	"database/sql"
	"time"

	"conecta/internal/config"
	"conecta/internal/domain"
	"conecta/internal/events"
	"conecta/internal/llm"
	"conecta/internal/logger"
	"conecta/internal/metrics"
	"conecta/internal/repo"
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	LLM     llm.Client
	Log     *logger.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config, client llm.Client) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		LLM:    client,
		Log:    logger.Nop(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(domain.TimeLayout)
}

func (e Engine) log() *logger.Logger {
	if e.Log == nil {
		return logger.Nop()
	}
	return e.Log
}

// emit appends an event stamped with the engine clock.
func (e Engine) emit(ctx context.Context, tx *sql.Tx, evtType string, projectID int64, entityKind string, entityID int64, actorID string, payload events.EventPayload) error {
	w := e.Events
	w.Now = e.now
	return w.Append(ctx, tx, evtType, projectID, entityKind, entityID, actorID, payload)
}

func (e Engine) analysisConfig() config.AnalysisConfig {
	if e.Config == nil {
		return config.Default().Analysis
	}
	return e.Config.Analysis
}
