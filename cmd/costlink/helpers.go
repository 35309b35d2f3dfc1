package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/costlink/costlink/internal/candidate"
	"github.com/costlink/costlink/internal/canonical"
	"github.com/costlink/costlink/internal/classify"
	"github.com/costlink/costlink/internal/config"
	"github.com/costlink/costlink/internal/engine"
	"github.com/costlink/costlink/internal/match"
	"github.com/costlink/costlink/internal/storage"
)

// app bundles the constructed components for one command invocation.
type app struct {
	storage    *storage.SQLiteStorage
	cfg        *config.Config
	keys       *canonical.Generator
	classifier *classify.Classifier
}

// newApp loads configuration, opens storage, and builds the shared
// components. Configuration failures here are fatal by design: no command
// runs against a partially valid rule set.
func newApp() (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}

	keys, err := canonical.NewGenerator(cfg.Canonical)
	if err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}

	classifier, err := classify.New(cfg.Classifier, keys)
	if err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}

	store, err := storage.NewSQLiteStorage(databasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &app{
		storage:    store,
		cfg:        cfg,
		keys:       keys,
		classifier: classifier,
	}, nil
}

func (a *app) close() {
	_ = a.storage.Close()
}

// matchingEngine builds the full pipeline for a matching run.
func (a *app) matchingEngine(opts engine.Options) *engine.MatchingEngine {
	candidates := candidate.NewGenerator(a.storage, a.keys, a.cfg.Candidates)
	scorer := match.NewCalculator(a.storage, a.keys, a.cfg.Confidence)
	flags := match.NewFlagEngine(a.keys, a.cfg.Flags, a.cfg.Candidates)
	router := match.NewRouter(a.cfg.Router)

	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = a.cfg.Candidates.Limit
	}

	return engine.New(a.storage, a.classifier, a.keys, candidates, scorer, flags, router, opts)
}

func databasePath() string {
	if path := viper.GetString("database.path"); path != "" {
		return config.ExpandPath(path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "costlink.db"
	}
	return filepath.Join(home, ".local", "share", "costlink", "costlink.db")
}
