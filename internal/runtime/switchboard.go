// Package runtime assembles the switchboard from its parts and manages the
// process lifecycle. Switchboard can be embedded in a larger program or run
// standalone from the command line.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmswain/switchboard/internal/accounts"
	cursorapi "github.com/jmswain/switchboard/internal/api/cursor"
	"github.com/jmswain/switchboard/internal/config"
	"github.com/jmswain/switchboard/internal/domain"
	frontdoor "github.com/jmswain/switchboard/internal/frontdoor/openai"
	cursorprovider "github.com/jmswain/switchboard/internal/provider/cursor"
	"github.com/jmswain/switchboard/internal/server"
	"github.com/jmswain/switchboard/internal/usage"
	usagesqlite "github.com/jmswain/switchboard/internal/usage/sqlite"
)

const defaultTimeout = 300 * time.Second

// Switchboard is the top-level object tying together the account pool, the
// provider bridge, the usage ledger, and the HTTP front door.
type Switchboard struct {
	config   *config.Config
	registry *accounts.Registry
	recorder usage.Recorder
	provider domain.Provider
	server   *server.Server
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
}

// New creates a Switchboard with the given options. Configuration is
// required; every other dependency has a default built from it at Start.
func New(opts ...Option) (*Switchboard, error) {
	s := &Switchboard{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if s.config == nil {
		return nil, fmt.Errorf("configuration required (use WithConfigFile or WithConfig)")
	}
	return s, nil
}

// Start loads the account pool, opens the usage ledger, builds the provider,
// and starts the HTTP server. It returns once the server is listening.
func (s *Switchboard) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("switchboard already started")
	}
	cfg := s.config

	if s.registry == nil {
		registry, err := accounts.Load(cfg.Accounts.File, accounts.WithLogger(s.logger))
		if err != nil {
			return fmt.Errorf("load accounts: %w", err)
		}
		s.registry = registry
	}

	if s.recorder == nil {
		if cfg.Usage.Path != "" {
			store, err := usagesqlite.New(cfg.Usage.Path)
			if err != nil {
				return fmt.Errorf("open usage ledger: %w", err)
			}
			s.recorder = store
		} else {
			s.logger.Info("usage ledger disabled")
			s.recorder = usage.NopRecorder{}
		}
	}

	if s.provider == nil {
		s.provider = s.buildProvider()
	}

	timeout, err := time.ParseDuration(cfg.Server.Timeout)
	if err != nil || timeout <= 0 {
		s.logger.Warn("invalid server timeout, using default",
			slog.String("timeout", cfg.Server.Timeout),
			slog.Duration("default", defaultTimeout),
		)
		timeout = defaultTimeout
	}

	srv := server.New(cfg.Server.Port, timeout, cfg.Server.APIKey, s.logger)
	handler := frontdoor.NewHandler(s.provider, s.registry,
		frontdoor.WithRecorder(s.recorder),
		frontdoor.WithLogger(s.logger),
	)
	handler.Mount(srv.Router)

	if err := srv.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	s.server = srv
	s.started = true

	s.logger.Info("switchboard started",
		slog.Int("port", cfg.Server.Port),
		slog.Int("accounts", s.registry.Len()),
		slog.Bool("usage_ledger", cfg.Usage.Path != ""),
	)
	return nil
}

// Shutdown stops the HTTP server and closes the usage ledger.
func (s *Switchboard) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("shutting down switchboard")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			return err
		}
	}
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			s.logger.Error("failed to close usage ledger", slog.String("error", err.Error()))
		}
	}

	s.started = false
	s.logger.Info("switchboard shutdown complete")
	return nil
}

// Accounts exposes the account pool, mainly for embedders.
func (s *Switchboard) Accounts() *accounts.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry
}

func (s *Switchboard) buildProvider() domain.Provider {
	clientOpts := []cursorapi.Option{cursorapi.WithLogger(s.logger)}
	if s.config.Cursor.BaseURL != "" {
		clientOpts = append(clientOpts, cursorapi.WithBaseURL(s.config.Cursor.BaseURL))
	}
	if s.config.Cursor.Timezone != "" {
		clientOpts = append(clientOpts, cursorapi.WithTimezone(s.config.Cursor.Timezone))
	}
	if s.config.Cursor.ClientVersion != "" {
		clientOpts = append(clientOpts, cursorapi.WithClientVersion(s.config.Cursor.ClientVersion))
	}
	client := cursorapi.NewClient(clientOpts...)
	return cursorprovider.New(
		cursorprovider.WithClient(client),
		cursorprovider.WithLogger(s.logger),
	)
}
