package app

import (
	"context"

	"github.com/dusklight/duskd/internal/config"
	"github.com/dusklight/duskd/internal/db"
	"github.com/dusklight/duskd/internal/geo"
	"github.com/dusklight/duskd/internal/kv"
	"github.com/dusklight/duskd/internal/planner"
	"github.com/dusklight/duskd/internal/server"
	"github.com/dusklight/duskd/internal/storage"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB    *db.DB
	Store *storage.ConfigStore
	Geo   *geo.Client

	// Pipelines
	Planner *planner.Planner

	// High-level services
	API     *APIService
	Refresh *RefreshService
	Health  *HealthService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	// Initialize the persisted config blob store
	bucket := kv.NewSQLiteBucket(database.DB, cfg.Storage.Bucket)
	s.Store = storage.NewConfigStore(bucket, cfg.Storage.Key)

	// Initialize upstream lookup client
	var geoOpts []geo.Option
	if cfg.Geo.GeoIPURL != "" {
		geoOpts = append(geoOpts, geo.WithGeoIPURL(cfg.Geo.GeoIPURL))
	}
	if cfg.Geo.DaylightURL != "" {
		geoOpts = append(geoOpts, geo.WithDaylightURL(cfg.Geo.DaylightURL))
	}
	s.Geo = geo.NewClient(cfg.Geo.HTTPTimeout.Duration(), geoOpts...)

	// Initialize the schedule planner
	s.Planner = planner.New(s.Store, s.Geo, cfg.Geo.AstroFallback)

	// Initialize high-level services
	s.API = NewAPIService(cfg, server.New(cfg.Server.Host, cfg.Server.Port, cfg.Server.Token, s.Planner))
	s.Refresh = NewRefreshService(cfg, s.Planner)
	s.Health = NewHealthService(cfg)

	return s, nil
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a fatal error occurs (e.g., the
// API listener dying).
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	if err := s.Refresh.Start(ctx); err != nil {
		return err
	}
	s.Health.Start(ctx)
	s.API.Start(ctx, onFatalError)

	return nil
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources. The API server is waited on first so the
// database is never closed under an in-flight request.
func (s *Services) Close() {
	if s.Refresh != nil {
		s.Refresh.Close()
	}
	if s.API != nil {
		s.API.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
