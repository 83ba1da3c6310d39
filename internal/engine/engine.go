package engine

import (
	"context"
	"errors"
	"log"
	"time"

	"dailyvision/internal/backend"
	"dailyvision/internal/config"
	"dailyvision/internal/domain"
	"dailyvision/internal/events"
	"dailyvision/internal/generate"
	"dailyvision/internal/repo"
)

var (
	// ErrInvalid marks rejected caller input.
	ErrInvalid = errors.New("invalid input")
	// ErrConflict marks an operation that does not fit the current state.
	ErrConflict = errors.New("conflict")
)

type Engine struct {
	Store     repo.Store
	Generator *generate.Generator
	Config    *config.Config
	Now       func() time.Time
	Logger    *log.Logger
}

func New(store repo.Store, cfg *config.Config, logger *log.Logger) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		Store:     store,
		Generator: generate.New(cfg.Generator, backend.New(cfg.Backend), logger),
		Config:    cfg,
		Now:       time.Now,
		Logger:    logger,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Today is the current calendar date in the configured time zone.
func (e Engine) Today() string {
	return domain.DateOf(e.now(), e.Config.Location())
}

func (e Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

func (e Engine) events() events.Writer {
	return events.Writer{Now: e.now}
}

func (e Engine) maxTotal() int {
	if e.Config != nil && e.Config.Budget.MaxTotalMinutes > 0 {
		return e.Config.Budget.MaxTotalMinutes
	}
	return 0
}

func (e Engine) defaultTotal() int {
	if e.Config != nil {
		return e.Config.Budget.DefaultTotalMinutes
	}
	return 0
}

// ListEvents returns a user's events, newest first.
func (e Engine) ListEvents(ctx context.Context, f repo.EventFilter) ([]domain.Event, error) {
	return e.Store.LatestEvents(ctx, f)
}
