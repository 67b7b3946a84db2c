// Package api provides the HTTP REST API and WebSocket feed for Tuya
// Fusion.
//
// It exposes the merged device registry (list, detail, status), a
// command endpoint that routes through the registry's strategy tables,
// and a WebSocket feed pushing committed status updates as they land.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/tuya-fusion-core/internal/infrastructure/config"
	"github.com/nerrad567/tuya-fusion-core/internal/infrastructure/logging"
	"github.com/nerrad567/tuya-fusion-core/internal/registry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Registry *registry.Manager
	Version  string
}

// Server is the HTTP API server for Tuya Fusion.
//
// It manages the HTTP listener, routes, middleware and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	registry *registry.Manager
	version  string

	server     *http.Server
	hub        *Hub
	listenerID string             // registry listener feeding the hub
	cancel     context.CancelFunc // stops background goroutines on Close()
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		secCfg:   deps.Security,
		logger:   deps.Logger,
		registry: deps.Registry,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, registers a
// registry listener relaying committed status updates to the hub, and
// launches the HTTP listener in a background goroutine. The server is
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	s.listenerID = s.registry.AddListener(s.relayStatusUpdate)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// relayStatusUpdate pushes one committed status update to the
// WebSocket hub. The payload carries only the committed codes' values,
// not the whole status container. The read goes through a registry
// snapshot: the live containers are being mutated by the commit path
// that triggered this callback.
func (s *Server) relayStatusUpdate(deviceID string, codes []string) {
	if s.hub == nil {
		return
	}
	dev, ok := s.registry.Snapshot(deviceID)
	if !ok {
		return
	}

	status := make(map[string]any, len(codes))
	for _, code := range codes {
		if v, ok := dev.Status[code]; ok {
			status[code] = v
		}
	}

	s.hub.Broadcast(StatusUpdate{
		DeviceID: deviceID,
		Codes:    codes,
		Status:   status,
	})
}

// Close gracefully shuts down the API server.
//
// It removes the registry listener, stops the hub, then waits up to
// ten seconds for in-flight requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.listenerID != "" {
		s.registry.RemoveListener(s.listenerID)
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
