package server

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/andriawan/siaran/internal/config"
	"github.com/andriawan/siaran/internal/domain"
	apperrors "github.com/andriawan/siaran/internal/errors"
)

// --- Mocks ---

type mockCatalog struct {
	createFn      func(ctx context.Context, b *domain.Broadcast) (int64, error)
	getByIDFn     func(ctx context.Context, id int64) (*domain.Broadcast, error)
	findLiveFn    func(ctx context.Context) (*domain.Broadcast, error)
	finalizeFn    func(ctx context.Context, id int64, endTime string, duration *int64) error
	listArchiveFn func(ctx context.Context) ([]*domain.Broadcast, error)
	searchFn      func(ctx context.Context, query string, sort domain.SearchSort) ([]*domain.Broadcast, error)
}

func (m *mockCatalog) Create(ctx context.Context, b *domain.Broadcast) (int64, error) {
	if m.createFn != nil {
		return m.createFn(ctx, b)
	}
	return 1, nil
}

func (m *mockCatalog) GetByID(ctx context.Context, id int64) (*domain.Broadcast, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrBroadcastNotFound
}

func (m *mockCatalog) FindLive(ctx context.Context) (*domain.Broadcast, error) {
	if m.findLiveFn != nil {
		return m.findLiveFn(ctx)
	}
	return nil, domain.ErrNoLiveBroadcast
}

func (m *mockCatalog) Finalize(ctx context.Context, id int64, endTime string, duration *int64) error {
	if m.finalizeFn != nil {
		return m.finalizeFn(ctx, id, endTime, duration)
	}
	return nil
}

func (m *mockCatalog) ListArchive(ctx context.Context) ([]*domain.Broadcast, error) {
	if m.listArchiveFn != nil {
		return m.listArchiveFn(ctx)
	}
	return nil, nil
}

func (m *mockCatalog) Search(ctx context.Context, query string, sort domain.SearchSort) ([]*domain.Broadcast, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, sort)
	}
	return nil, nil
}

type mockPresence struct {
	incrFn  func(ctx context.Context) (int64, error)
	decrFn  func(ctx context.Context) (int64, error)
	countFn func(ctx context.Context) (int64, error)
	resetFn func(ctx context.Context) error
}

func (m *mockPresence) IncrListeners(ctx context.Context) (int64, error) {
	if m.incrFn != nil {
		return m.incrFn(ctx)
	}
	return 1, nil
}

func (m *mockPresence) DecrListeners(ctx context.Context) (int64, error) {
	if m.decrFn != nil {
		return m.decrFn(ctx)
	}
	return 0, nil
}

func (m *mockPresence) ListenerCount(ctx context.Context) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

func (m *mockPresence) Reset(ctx context.Context) error {
	if m.resetFn != nil {
		return m.resetFn(ctx)
	}
	return nil
}

type mockPinger struct {
	pingFn func(ctx context.Context) error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

// --- Helpers ---

func newTestServer(t *testing.T, catalog *mockCatalog, presence *mockPresence, opts ...func(*Server)) *Server {
	t.Helper()

	e := echo.New()
	e.Use(apperrors.Middleware())

	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC))
	srv := &Server{
		echo:      e,
		config:    &config.Config{Port: "0", RecordingsDir: t.TempDir(), MaxListeners: 100, MaxListenersPerIP: 10, ConnectionsPerSec: 1000, ConnectionBurst: 1000},
		catalog:   catalog,
		presence:  presence,
		limits:    NewListenerLimits(100, 10, 1000, 1000),
		db:        &mockPinger{},
		clock:     clock,
		startTime: clock.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()
	return srv
}

func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return apperrors.Middleware()(handler)(c)
}
