// Package planner orchestrates the schedule pipelines: building the daily
// schedule for a read, validating and persisting a write, and the periodic
// daylight refresh.
package planner

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dusklight/duskd/internal/geo"
	"github.com/dusklight/duskd/internal/schedule"
	"github.com/dusklight/duskd/internal/storage"
)

// Planner runs the read/write/refresh pipelines. Each call builds a fresh
// aggregate from the persisted blob and discards it afterwards; the planner
// itself holds no mutable state.
type Planner struct {
	store         *storage.ConfigStore
	client        *geo.Client
	resolver      *geo.Resolver
	astroFallback bool
	now           func() time.Time
}

// New creates a Planner. astroFallback enables local sunrise computation when
// the daylight upstream is unreachable but coordinates are known.
func New(store *storage.ConfigStore, client *geo.Client, astroFallback bool) *Planner {
	return &Planner{
		store:         store,
		client:        client,
		resolver:      geo.NewResolver(client),
		astroFallback: astroFallback,
		now:           time.Now,
	}
}

// WithClock overrides the planner's clock (tests).
func (p *Planner) WithClock(now func() time.Time) *Planner {
	p.now = now
	return p
}

// computed is the outcome of one pass through the merge pipeline.
type computed struct {
	cfg          *schedule.Config
	resolved     geo.Resolved
	cachedOffset *int
	now          time.Time
}

// compute runs the shared pipeline: load, resolve offset, fetch daylight
// times, enforce policy and merge. Upstream failures degrade; only storage
// errors propagate.
func (p *Planner) compute(ctx context.Context, clientIP string) (*computed, error) {
	now := p.now()

	blob, err := p.store.Load(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	cfg, cachedOffset := schedule.FromStored(blob)
	resolved := p.resolver.ResolveUTCOffset(ctx, clientIP, cachedOffset)
	offset := resolved.OffsetSeconds

	if loc := resolved.Geolocation; loc != nil {
		times := p.client.LookupDaylightTimes(ctx, loc.Latitude, loc.Longitude, loc.Timezone)
		if times == nil && p.astroFallback {
			times = geo.ComputeDaylightTimes(loc.Latitude, loc.Longitude, offset, now)
		}
		if times != nil {
			if err := p.applyDaylight(cfg, times, offset, now); err != nil {
				return nil, err
			}
		} else {
			log.Warn().Msg("No daylight times available, keeping previous daylight events")
		}
	}

	if err := cfg.UpdateSleepTimes(offset, now); err != nil {
		return nil, err
	}
	cfg.UpdateScheduleTimes(offset, now)

	return &computed{cfg: cfg, resolved: resolved, cachedOffset: cachedOffset, now: now}, nil
}

// applyDaylight converts the upstream's 12-hour clocks and merges them into
// the aggregate. A single unparsable clock skips the whole daylight update
// rather than applying it half-way.
func (p *Planner) applyDaylight(cfg *schedule.Config, times *geo.DaylightTimes, offsetSeconds int, now time.Time) error {
	clocks := make([]string, 0, 4)
	for _, apiTime := range []string{times.Sunrise, times.Sunset, times.CivilTwilightBegin, times.CivilTwilightEnd} {
		clock, err := schedule.ParseAPITime(apiTime)
		if err != nil {
			log.Warn().Err(err).Msg("Unparsable daylight time, skipping daylight update")
			return nil
		}
		clocks = append(clocks, clock)
	}
	return cfg.UpdateDaylightTimes(clocks[0], clocks[1], clocks[2], clocks[3], offsetSeconds, now)
}

// BuildSchedule runs the read pipeline and returns the wire response. The
// persisted blob is written back only when a live lookup just filled a
// previously empty timezone-offset cache.
func (p *Planner) BuildSchedule(ctx context.Context, clientIP string) (*schedule.Response, error) {
	r, err := p.compute(ctx, clientIP)
	if err != nil {
		return nil, err
	}

	if r.cachedOffset == nil && r.resolved.Source == geo.SourceLive {
		offset := r.resolved.OffsetSeconds
		if err := p.persist(ctx, r.cfg, &offset); err != nil {
			// Cache fill is opportunistic; the read still succeeds.
			log.Warn().Err(err).Msg("Failed to fill timezone-offset cache")
		} else {
			log.Info().Int("offset", offset).Msg("Timezone-offset cache filled")
		}
	}

	resp := r.cfg.WireResponse(r.now)
	return &resp, nil
}

// SaveSchedule runs the write pipeline: strict validation, then persistence
// with the previously cached timezone offset carried forward untouched.
// Returns *schedule.ValidationError on structural violations; the store is
// left untouched in that case.
func (p *Planner) SaveSchedule(ctx context.Context, body []byte) error {
	payload, err := schedule.ParseWritePayload(body)
	if err != nil {
		return err
	}
	cfg := schedule.ConfigFromWrite(payload)

	var cachedOffset *int
	if blob, err := p.store.Load(ctx); err == nil {
		_, cachedOffset = schedule.FromStored(blob)
	}

	if err := p.persist(ctx, cfg, cachedOffset); err != nil {
		return err
	}

	log.Info().
		Str("mode", string(cfg.Mode)).
		Int("entries", len(cfg.BrightnessSchedule())).
		Msg("Schedule saved")
	return nil
}

// RefreshDaylight runs the read pipeline for a fixed IP and always persists
// the merged result. Driven by the cron refresh service.
func (p *Planner) RefreshDaylight(ctx context.Context, ip string) error {
	r, err := p.compute(ctx, ip)
	if err != nil {
		return err
	}

	cachedOffset := r.cachedOffset
	if r.resolved.Source == geo.SourceLive {
		offset := r.resolved.OffsetSeconds
		cachedOffset = &offset
	}

	if err := p.persist(ctx, r.cfg, cachedOffset); err != nil {
		return err
	}

	log.Info().
		Str("source", string(r.resolved.Source)).
		Int("offset", r.resolved.OffsetSeconds).
		Msg("Daylight refresh persisted")
	return nil
}

func (p *Planner) persist(ctx context.Context, cfg *schedule.Config, cachedOffset *int) error {
	blob, err := cfg.Stored(cachedOffset)
	if err != nil {
		return err
	}
	return p.store.Save(ctx, blob)
}
