package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"crimson-casino/internal/betting"
	"crimson-casino/internal/config"
	"crimson-casino/internal/engine"
	"crimson-casino/internal/feed"
	"crimson-casino/internal/hub"
	"crimson-casino/internal/ledger"
	"crimson-casino/internal/logging"
	"crimson-casino/internal/metrics"
	"crimson-casino/internal/outcome"
	"crimson-casino/internal/settle"
	"crimson-casino/internal/store"
	httptransport "crimson-casino/internal/transport/http"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := openStore(cfg.Server)
	seedTables(ctx, st, cfg.Tables)

	fair := outcome.NewFairness(cfg.Server.ServerSeedSecret)
	led := ledger.New(st)
	h := hub.NewHub(st, cfg.Server.ReplayWindow)

	var relay *hub.RedisRelay
	if cfg.Server.RedisAddr != "" {
		relay = hub.NewRedisRelay(cfg.Server.RedisAddr, cfg.Server.RedisChannel)
		if err := relay.Ping(ctx); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Server.RedisAddr).Msg("redis ping failed")
		}
		h.SetRelay(relay)
		log.Info().Str("channel", cfg.Server.RedisChannel).Msg("event relay enabled")
	}

	settler := settle.New(st, led, h)
	eng := engine.New(st, fair, settler, h, cfg.Tables, engine.Options{
		ResolveTimeout:     cfg.Server.ResolveTimeout,
		ResolveBackoff:     cfg.Server.ResolveBackoff,
		MaxResolveAttempts: cfg.Server.MaxResolveAttempts,
	})

	betSvc := betting.NewService(st, settler, h, cfg.Tables, cfg.Server.InitialBalanceCC)
	betSvc.Multiplier = eng

	router := httptransport.NewRouter(st, cfg.Server, cfg.Tables, betSvc, led, h)
	httptransport.LogRoutes(router)

	httpSrv := &http.Server{Addr: cfg.Server.HTTPAddr, Handler: router}
	metricsSrv := metrics.StartServer(cfg.Server.MetricsAddr, st.Ping)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return eng.Run(ctx) })
	if relay != nil {
		g.Go(func() error { return relay.Run(ctx, h) })
	}
	if cfg.Server.KafkaBrokers != "" {
		consumer := feed.NewConsumer(strings.Split(cfg.Server.KafkaBrokers, ","), cfg.Server.KafkaTopic, cfg.Server.KafkaGroupID, eng)
		log.Info().Str("topic", cfg.Server.KafkaTopic).Msg("outcome feed enabled")
		g.Go(func() error {
			defer func() { _ = consumer.Close() }()
			return consumer.Run(ctx)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
		if relay != nil {
			_ = relay.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("shutdown complete")
}

func openStore(cfg config.ServerConfig) store.Store {
	if cfg.StoreKind == "memory" {
		log.Warn().Msg("memory store: state is lost on restart")
		return store.NewMemory()
	}
	pg, err := store.NewPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pg.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("ensure schema failed")
	}
	return pg
}

func seedTables(ctx context.Context, st store.Store, tables []config.TableConfig) {
	for _, t := range tables {
		err := st.EnsureTable(ctx, store.Table{
			ID:       t.ID,
			Name:     t.Name,
			Game:     t.Game,
			Status:   "active",
			MinBetCC: t.MinBetCC,
			MaxBetCC: t.MaxBetCC,
		})
		if err != nil {
			log.Fatal().Err(err).Str("table_id", t.ID).Msg("ensure table failed")
		}
	}
	log.Info().Int("tables", len(tables)).Msg("tables ready")
}
