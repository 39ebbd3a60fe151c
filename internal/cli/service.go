package cli

import (
	"fmt"
	"net/http"

	"mnemo/internal/config"
	"mnemo/internal/logger"
	"mnemo/internal/observability"
	"mnemo/pkg/memory"
)

// applyFlagOverrides layers explicitly-set global flags over the loaded
// configuration; flag defaults never clobber config-file values.
func applyFlagOverrides(cfg *config.Config) {
	if rootCmd.PersistentFlags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
}

// newService wires a memory service from the loaded configuration. The
// returned cleanup closes the database and log file.
func newService() (*memory.Service, func(), error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, nil, err
	}
	applyFlagOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: cfg.Log.Console,
		Pretty:  cfg.Log.Pretty,
	})
	if err != nil {
		return nil, nil, err
	}
	zl := lg.GetZerolog()

	db, err := memory.OpenDatabase(cfg.Database.Path)
	if err != nil {
		lg.Close()
		return nil, nil, err
	}

	cleanup := func() {
		db.Close()
		lg.Close()
	}

	repo, err := memory.NewSQLiteRepository(db, zl)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	embedder := memory.NewOpenAIProvider(cfg.Embedding.APIKey, cfg.Embedding.Model)

	vectors, err := memory.NewSQLiteVectorIndex(db, embedder.Dimension(), zl)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	svc, err := memory.NewService(memory.ServiceConfig{
		ProjectID:   cfg.Project.ID,
		Repository:  repo,
		Embedding:   embedder,
		VectorIndex: vectors,
		Logger:      zl,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.MetricsHandler())
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				zl.Warn().Err(err).Str("addr", cfg.Metrics.Addr).Msg("Metrics endpoint stopped")
			}
		}()
	}

	return svc, cleanup, nil
}
