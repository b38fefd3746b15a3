package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nitpick/internal/modkit"
	"nitpick/internal/modkit/httpkit"
	"nitpick/internal/modkit/module"
	"nitpick/internal/platform/config"
	"nitpick/internal/platform/logger"
	"nitpick/internal/platform/metrics"
	phttp "nitpick/internal/platform/net/http"
	"nitpick/internal/platform/store"

	adminmod "nitpick/internal/services/admin/module"
	ingestmod "nitpick/internal/services/ingest/module"
)

func main() {
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	rdCfg := root.Prefix("SERVICE_REDIS_")
	l := logger.Get()

	st, err := store.Open(context.Background(), store.Config{
		AppName: "nitpick-api",
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

	ingest := ingestmod.New(deps)
	admin := adminmod.New(deps)

	module.Register(ingest.Name(), ingest.Ports())

	srv := phttp.NewServer(apiCfg)
	r := srv.Router()

	for _, mw := range httpkit.CommonStack() {
		r.Use(mw)
	}

	// webhook stays at the root: the signature covers the raw path too
	ingest.MountRoutes(r)

	httpkit.MountAPIV1(r, nil, func(api httpkit.Router) {
		admin.MountRoutes(api)
	})

	r.Handle("/metrics", met.Handler())
	phttp.MountProfiler(r, "/debug", apiCfg.MayBool("PROFILER", false))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shctx); err != nil {
			l.Error().Err(err).Msg("shutdown failed")
		}
	}()

	if err := srv.Run(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
