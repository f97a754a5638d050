package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/dusklight/duskd/internal/config"
	"github.com/dusklight/duskd/internal/planner"
)

// refreshTimeout bounds one refresh run: two upstream calls plus storage.
const refreshTimeout = 30 * time.Second

// RefreshService periodically re-resolves daylight times for the configured
// IP and persists the merged schedule, so the stored config tracks the solar
// calendar even when no client polls during the night.
type RefreshService struct {
	cfg     *config.Config
	planner *planner.Planner
	cron    *cron.Cron
}

// NewRefreshService creates a new RefreshService.
func NewRefreshService(cfg *config.Config, p *planner.Planner) *RefreshService {
	return &RefreshService{
		cfg:     cfg,
		planner: p,
	}
}

// Start schedules the refresh job. Disabled unless an IP is configured.
func (s *RefreshService) Start(ctx context.Context) error {
	if !s.cfg.Refresh.Enabled() {
		log.Info().Msg("Daylight refresh is disabled (no refresh IP configured)")
		return nil
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.cfg.Refresh.Cron, func() { s.refresh(ctx) }); err != nil {
		return fmt.Errorf("invalid refresh cron %q: %w", s.cfg.Refresh.Cron, err)
	}
	s.cron.Start()

	log.Info().
		Str("cron", s.cfg.Refresh.Cron).
		Str("ip", s.cfg.Refresh.IP).
		Msg("Daylight refresh scheduled")

	// Prime the stored schedule immediately so a fresh install does not wait
	// a full cycle for its first daylight times.
	go s.refresh(ctx)

	return nil
}

func (s *RefreshService) refresh(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	if err := s.planner.RefreshDaylight(runCtx, s.cfg.Refresh.IP); err != nil {
		log.Error().Err(err).Msg("Daylight refresh failed")
	}
}

// Close stops the cron scheduler, waiting for a running job to finish.
func (s *RefreshService) Close() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
