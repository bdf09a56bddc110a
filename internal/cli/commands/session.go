package commands

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"qad/internal/cli"
	"qad/internal/config"
	"qad/internal/dashboard"
	"qad/internal/execution"
	"qad/internal/logging"
	"qad/internal/storage"
)

// Session loads the config, logger, store and dashboard on first use, after
// cobra has parsed the flags.
type Session struct {
	flags  *cli.Flags
	cfg    *config.Config
	logger *zap.Logger
	dash   *dashboard.Dashboard
}

// NewSession creates a session reading its overrides from flags
func NewSession(flags *cli.Flags) *Session {
	return &Session{flags: flags}
}

// Config loads the configuration once
func (s *Session) Config() (*config.Config, error) {
	if s.cfg != nil {
		return s.cfg, nil
	}
	cfg, err := config.Load(s.flags.ToConfigFlags())
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	return cfg, nil
}

// Dashboard opens the store and bootstraps the dashboard once
func (s *Session) Dashboard(ctx context.Context) (*dashboard.Dashboard, error) {
	if s.dash != nil {
		return s.dash, nil
	}
	cfg, err := s.Config()
	if err != nil {
		return nil, err
	}
	if s.logger == nil {
		if s.logger, err = logging.New(cfg); err != nil {
			return nil, err
		}
	}

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	oracle := execution.NewOracle(cfg)
	if co, ok := oracle.(*execution.CommandOracle); ok {
		co.WithLookup(store.GetTestCase)
	}
	dash, err := dashboard.Open(ctx, store, oracle, s.logger,
		execution.WithCriticalThreshold(cfg.Engine.CriticalThreshold))
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}
	s.dash = dash
	return dash, nil
}

// Close releases the store and flushes the logger
func (s *Session) Close() error {
	var err error
	if s.dash != nil {
		err = s.dash.Close()
		s.dash = nil
	}
	if s.logger != nil {
		_ = s.logger.Sync()
	}
	return err
}
