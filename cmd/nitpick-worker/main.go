package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nitpick/internal/modkit"
	"nitpick/internal/platform/config"
	"nitpick/internal/platform/logger"
	"nitpick/internal/platform/metrics"
	"nitpick/internal/platform/store"

	ingestmod "nitpick/internal/services/ingest/module"
	reviewmod "nitpick/internal/services/review/module"
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	rdCfg := root.Prefix("SERVICE_REDIS_")
	l := logger.Get()

	st, err := store.Open(context.Background(), store.Config{
		AppName: "nitpick-worker",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		RD: store.RedisConfig{
			Enabled: true,
			Addr:    rdCfg.MustString("ADDR"),
			DB:      rdCfg.MayInt("DB", 0),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	met := metrics.New()

	deps := modkit.Deps{
		Log: *l,
		Cfg: root,
		PG:  st.PG,
		RD:  st.RD,
		Met: met,
	}

	// the gate service doubles as the worker's ledger
	ingest := ingestmod.New(deps)
	worker := reviewmod.New(deps, ingest.Service())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// metrics and liveness on a side port
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", met.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		srv := &http.Server{
			Addr:              root.MayString("WORKER_METRICS_ADDR", ":4001"),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shctx)
		}()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	if err := worker.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("worker stopped")
	}
}
