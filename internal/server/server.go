package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/andriawan/siaran/internal/config"
	"github.com/andriawan/siaran/internal/correlation"
	"github.com/andriawan/siaran/internal/domain"
	apperrors "github.com/andriawan/siaran/internal/errors"
	"github.com/andriawan/siaran/internal/relay"
	"github.com/andriawan/siaran/internal/session"
)

// postgresHealthChecker is a minimal interface for PostgreSQL health checks.
type postgresHealthChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	machine   *session.Machine
	hub       *relay.Hub
	catalog   domain.BroadcastRepository
	presence  domain.PresenceStore
	limits    *ListenerLimits
	db        postgresHealthChecker
	redis     *goredis.Client
	clock     clockwork.Clock
	startTime time.Time
}

// NewServer wires the HTTP edge. redisClient may be nil when presence runs
// in-memory; the readiness check then skips Redis.
func NewServer(
	cfg *config.Config,
	machine *session.Machine,
	hub *relay.Hub,
	catalog domain.BroadcastRepository,
	presence domain.PresenceStore,
	db postgresHealthChecker,
	redisClient *goredis.Client,
	clock clockwork.Clock,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(correlationMiddleware)
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		machine:   machine,
		hub:       hub,
		catalog:   catalog,
		presence:  presence,
		limits:    NewListenerLimits(cfg.MaxListeners, cfg.MaxListenersPerIP, cfg.ConnectionsPerSec, cfg.ConnectionBurst),
		db:        db,
		redis:     redisClient,
		clock:     clock,
		startTime: clock.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := correlation.WithID(c.Request().Context(), correlation.NewID())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
