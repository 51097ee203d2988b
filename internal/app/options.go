package service

import (
	"time"

	"github.com/okian/boxscore/internal/adapters/repository"
	"github.com/okian/boxscore/internal/config"
	"github.com/okian/boxscore/internal/domain/ledger"
	"github.com/okian/boxscore/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration. Without it the defaults from config.New apply.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithUpstream replaces the HTTP upstream client, typically with a fake.
func WithUpstream(u Upstream) Option {
	return func(s *Service) {
		if u != nil {
			s.upstream = u
		}
	}
}

// WithStorage supplies the snapshot store and ledger instead of building them
// from the configured driver.
func WithStorage(store repository.Store, l ledger.Ledger) Option {
	return func(s *Service) {
		if store != nil && l != nil {
			s.store = store
			s.ledger = l
		}
	}
}

// WithClock overrides the time source for every component.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
