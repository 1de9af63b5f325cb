package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/gvarikaa/new-DapDip-sub001/internal/analytics"
	"github.com/gvarikaa/new-DapDip-sub001/internal/config"
	"github.com/gvarikaa/new-DapDip-sub001/internal/fixture"
)

// Endpoint reports the address the server is listening on once started.
type Endpoint struct {
	mu   sync.Mutex
	addr string
}

func (e *Endpoint) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addr
}

func (e *Endpoint) set(addr string) {
	e.mu.Lock()
	e.addr = addr
	e.mu.Unlock()
}

// Serve runs the fixture backend over HTTP with /metrics and /healthz.
func Serve(cfg *config.Config) fx.Option {
	return fx.Options(
		Module(cfg),
		fx.Provide(
			newBackend,
			newFixtureServer,
			func() *Endpoint { return &Endpoint{} },
		),
		fx.Invoke(runServer),
	)
}

func newBackend(cfg *config.Config, log *slog.Logger) (*fixture.Backend, error) {
	if cfg.Serve.Fixture == "" {
		log.Warn("no fixture configured, serving empty feeds")
		return fixture.NewBackend(&fixture.Fixture{}), nil
	}
	f, err := fixture.Load(cfg.Serve.Fixture)
	if err != nil {
		return nil, err
	}
	log.Info("fixture loaded", "path", cfg.Serve.Fixture, "stories", len(f.Stories), "reels", len(f.Reels))
	return fixture.NewBackend(f), nil
}

func newFixtureServer(backend *fixture.Backend, reg *prometheus.Registry, log *slog.Logger) *fixture.Server {
	return fixture.NewServer(backend, analytics.Handler(reg), log)
}

func runServer(lc fx.Lifecycle, cfg *config.Config, srv *fixture.Server, ep *Endpoint, log *slog.Logger) {
	httpSrv := &http.Server{
		Addr:              cfg.Serve.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", httpSrv.Addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", httpSrv.Addr, err)
			}
			ep.set(ln.Addr().String())
			log.Info("serving collaborator fixture", "addr", ep.Addr())

			go func() {
				if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("server shutting down")
			return httpSrv.Shutdown(ctx)
		},
	})
}
