package runtime

import (
	"fmt"
	"log/slog"

	"github.com/jmswain/switchboard/internal/accounts"
	"github.com/jmswain/switchboard/internal/config"
	"github.com/jmswain/switchboard/internal/domain"
	"github.com/jmswain/switchboard/internal/usage"
)

// Option is a functional option for configuring a Switchboard.
type Option func(*Switchboard) error

// WithConfigFile loads configuration from a YAML file. A missing file yields
// the defaults, so a bare `switchboard` run works out of the box.
func WithConfigFile(path string) Option {
	return func(s *Switchboard) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		s.config = cfg
		return nil
	}
}

// WithConfig injects an already-built configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Switchboard) error {
		s.config = cfg
		return nil
	}
}

// WithLogger sets the logger used by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Switchboard) error {
		s.logger = logger
		return nil
	}
}

// WithAccounts injects an account registry, bypassing the accounts file.
func WithAccounts(registry *accounts.Registry) Option {
	return func(s *Switchboard) error {
		s.registry = registry
		return nil
	}
}

// WithProvider injects a provider, bypassing the default bridge client.
func WithProvider(provider domain.Provider) Option {
	return func(s *Switchboard) error {
		s.provider = provider
		return nil
	}
}

// WithRecorder injects a usage recorder, bypassing the configured ledger.
func WithRecorder(recorder usage.Recorder) Option {
	return func(s *Switchboard) error {
		s.recorder = recorder
		return nil
	}
}
