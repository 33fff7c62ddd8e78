// Package app wires the huddle server runtime: config, logging, HTTP routes,
// and the realtime feed gateway.
//
// It is intentionally small and deterministic to keep startup failures loud
// and behavior predictable.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"huddle/cmd/internal/feed"
	"huddle/cmd/internal/room"
	roomapi "huddle/cmd/internal/room/api"
	"huddle/cmd/internal/session"
	"huddle/cmd/internal/upload"
	"huddle/cmd/security/joinkey"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

// App is the huddle server runtime: it owns HTTP server wiring and the feed
// gateway dependencies.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	api     *roomapi.Handler
	gateway *feed.Gateway
	metrics *Metrics
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	tokens, err := session.NewHS256Issuer(sessCfg)
	if err != nil {
		return nil, err
	}

	uploadCfg, err := upload.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	signer, err := upload.NewSigner(uploadCfg)
	if err != nil {
		return nil, err
	}

	st, dbPool, dbEnabled, roomStore, err := newStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	hub := feed.NewHub(log)

	opts := []room.Option{room.WithPublisher(hub)}
	if cfg.RoomTTL > 0 {
		opts = append(opts, room.WithRoomTTL(cfg.RoomTTL))
	}
	if cfg.JoinKeyBytes > 0 {
		opts = append(opts, room.WithKeyGenerator(joinkey.NewGenerator(cfg.JoinKeyBytes)))
	}
	if cfg.IdentityMode == IdentityModeToken {
		opts = append(opts, room.WithIdentityVerifier(room.TokenBoundIdentity{Tokens: tokens}))
	}

	svc, err := room.NewService(log, roomStore, tokens, opts...)
	if err != nil {
		closeQuiet(st, log)
		return nil, err
	}

	api, err := roomapi.NewHandler(log, roomapi.LoadConfigFromEnv(), svc, tokens, signer)
	if err != nil {
		closeQuiet(st, log)
		return nil, err
	}

	gateway, err := feed.NewGateway(log, hub, roomStore, tokens)
	if err != nil {
		closeQuiet(st, log)
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		api:       api,
		gateway:   gateway,
		metrics:   NewMetrics(),
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.api, a.gateway, a.metrics)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithObservability(mux, a.log, a.metrics),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled, "identity_mode", a.cfg.IdentityMode)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func closeQuiet(st Store, log Logger) {
	if st == nil {
		return
	}
	if err := st.Close(context.Background()); err != nil {
		log.Error("store.close.fail", "err", err)
	}
}

// newStore decides between Postgres-backed persistence and the in-memory dev store.
func newStore(ctx context.Context, cfg Config, log Logger) (Store, *pgxpool.Pool, bool, room.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return nopStore{}, nil, false, room.NewInMemoryStore(), nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, nil, err
	}

	log.Info("db.enabled.postgres_store")

	// Ownership model: the app owns the pool lifecycle.
	st, err := room.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, false, nil, err
	}

	return dbStore{pool: pool}, pool, true, st, nil
}

type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
