package app

import (
	"context"

	"github.com/dusklight/duskd/internal/config"
	"github.com/dusklight/duskd/internal/server"
)

// APIService runs the schedule API server.
type APIService struct {
	cfg    *config.Config
	server *server.Server
	done   chan struct{}
}

// NewAPIService creates a new APIService.
func NewAPIService(cfg *config.Config, srv *server.Server) *APIService {
	return &APIService{
		cfg:    cfg,
		server: srv,
	}
}

// Start runs the API server in the background. A listener failure is fatal
// for the whole process.
func (s *APIService) Start(ctx context.Context, onFatalError func(error)) {
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		if err := s.server.Run(ctx, s.cfg.GetShutdownTimeout()); err != nil {
			onFatalError(err)
		}
	}()
}

// Close blocks until the server has finished its graceful shutdown, so
// resources it depends on are not torn down under in-flight requests.
func (s *APIService) Close() {
	if s.done != nil {
		<-s.done
	}
}
