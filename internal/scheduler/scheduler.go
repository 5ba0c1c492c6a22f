// Package scheduler implements the cron-triggered pipeline scheduler (C8).
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/romvault/ingestor/internal/crawl"
	"github.com/romvault/ingestor/internal/pipeline"
)

// Config is the persisted scheduler document (§3): whether the schedule is
// active, which mode it triggers, and its cron expression.
type Config struct {
	Enabled    bool   `json:"enabled"`
	Mode       string `json:"mode"`
	Expression string `json:"expression"`
}

// RunFunc starts a pipeline run. Implementations are expected to return
// pipeline.ErrAlreadyRunning when a manual run is already in progress.
type RunFunc func(ctx context.Context, mode crawl.Mode) error

// Scheduler owns a single cron job registered against a persisted Config.
type Scheduler struct {
	mu       sync.Mutex
	path     string
	cronImpl *cron.Cron
	entryID  cron.EntryID
	hasEntry bool
	cfg      Config
	run      RunFunc
	logger   *zap.Logger
}

// New builds a Scheduler that persists its configuration document at path.
func New(path string, run RunFunc, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		path:     path,
		cronImpl: cron.New(cron.WithLocation(time.UTC)),
		run:      run,
		logger:   logger,
	}
}

// Start loads the persisted configuration (defaulting to disabled if none
// exists), starts the cron loop, and registers a job if the loaded config
// is enabled.
func (s *Scheduler) Start(ctx context.Context) error {
	cfg, err := loadConfig(s.path)
	if err != nil {
		return fmt.Errorf("scheduler: load config: %w", err)
	}
	s.cronImpl.Start()
	return s.ApplyConfig(ctx, cfg)
}

// Config returns the currently active scheduler configuration.
func (s *Scheduler) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// ApplyConfig validates cfg's cron expression (when enabled), persists it,
// then atomically swaps out any existing job for one built from cfg.
// Invalid expressions are rejected without mutating state.
func (s *Scheduler) ApplyConfig(ctx context.Context, cfg Config) error {
	if cfg.Enabled {
		if _, err := cron.ParseStandard(cfg.Expression); err != nil {
			return fmt.Errorf("scheduler: invalid cron expression %q: %w", cfg.Expression, err)
		}
	}
	if err := persistConfig(s.path, cfg); err != nil {
		return fmt.Errorf("scheduler: persist config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasEntry {
		s.cronImpl.Remove(s.entryID)
		s.hasEntry = false
	}
	s.cfg = cfg

	if !cfg.Enabled {
		return nil
	}

	mode := crawl.Mode(cfg.Mode)
	id, err := s.cronImpl.AddFunc(cfg.Expression, func() { s.fire(ctx, mode) })
	if err != nil {
		return fmt.Errorf("scheduler: register job: %w", err)
	}
	s.entryID = id
	s.hasEntry = true
	return nil
}

func (s *Scheduler) fire(ctx context.Context, mode crawl.Mode) {
	if err := s.run(ctx, mode); err != nil {
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			s.logger.Info("scheduler: tick skipped, pipeline already running")
			return
		}
		s.logger.Warn("scheduler: scheduled run failed", zap.Error(err))
	}
}

// Stop halts the cron loop without waiting for in-progress jobs.
func (s *Scheduler) Stop() {
	s.cronImpl.Stop()
}

func loadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse scheduler config: %w", err)
	}
	return cfg, nil
}

func persistConfig(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}
