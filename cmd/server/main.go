package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"zapgate/internal/directory/handler"
	"zapgate/internal/directory/metrics"
	"zapgate/internal/directory/reaper"
	"zapgate/internal/directory/service/admission"
	admittedstore "zapgate/internal/directory/store/admitted"
	pendingstore "zapgate/internal/directory/store/pending"
	settledstore "zapgate/internal/directory/store/settled"
	jwttoken "zapgate/internal/jwt_token"
	"zapgate/internal/lightning"
	"zapgate/internal/notify"
	"zapgate/internal/platform/config"
	"zapgate/internal/platform/httpserver"
	"zapgate/internal/platform/logger"
	platformredis "zapgate/internal/platform/redis"
	"zapgate/internal/relay"
	"zapgate/internal/trust"
	id "zapgate/pkg/domain"

	_ "github.com/lib/pq"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	if cfg.CollectorPubkey == "" {
		return errors.New("ZAPGATE_COLLECTOR_PUBKEY is required: receipt validation needs the collector identity")
	}
	collector, err := id.ParsePubkey(cfg.CollectorPubkey)
	if err != nil {
		return fmt.Errorf("ZAPGATE_COLLECTOR_PUBKEY: %w", err)
	}

	// Settled-keys store: Redis when configured, in-process otherwise.
	var settled admission.SettledStore
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		settled = settledstore.NewRedisStore(redisClient.Client)
		log.Info("settled-keys store: redis")
	} else {
		settled = settledstore.NewInMemoryStore()
		log.Info("settled-keys store: in-memory")
	}

	sink, cleanup, err := buildSink(cfg, log)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	gateway := buildGateway(cfg, log)
	oracle, trustSet := buildOracle(cfg, log)

	collectors := metrics.New()
	pending := pendingstore.NewInMemoryStore()

	bus := notify.NewBus(log, 256)
	bus.Register(notify.NewLogSink(log))
	if len(cfg.KafkaBrokers) > 0 {
		kafkaClient, err := notify.NewKafkaClient(cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		kafkaSink := notify.NewKafkaSink(kafkaClient, cfg.KafkaTopic)
		defer kafkaSink.Close()
		bus.Register(kafkaSink)
		log.Info("kafka notification sink enabled", "topic", cfg.KafkaTopic)
	}

	svc, err := admission.New(
		oracle,
		gateway,
		pending,
		settled,
		sink,
		collector,
		admission.PriceSchedule{
			AmountMsat:     cfg.PriceMsat(),
			PaymentTimeout: cfg.PaymentTimeout,
			InvoiceExpiry:  cfg.InvoiceExpiry,
			PollInterval:   cfg.PollInterval,
			SettledTTL:     cfg.SettledTTL,
		},
		admission.WithLogger(log),
		admission.WithNotifier(bus),
		admission.WithMetrics(collectors),
	)
	if err != nil {
		return err
	}
	defer svc.Close()

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "zapgate", "zapgate-admin")
	jwtAdapter := jwttoken.NewJWTServiceAdapter(jwtService)

	router := chi.NewRouter()
	handler.New(svc, oracle, trustSet, bus, log, jwtAdapter).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := httpserver.New(cfg.Addr, router)
	sweeper := reaper.New(svc, cfg.ReaperInterval, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting zapgate", "addr", cfg.Addr, "price_msat", cfg.PriceMsat())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := sweeper.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := bus.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildSink selects the admission destination: a local in-memory table, a
// Postgres-backed directory, or a forwarder pushing to an external relay.
func buildSink(cfg config.Config, log *slog.Logger) (admission.Sink, func(), error) {
	switch cfg.SinkMode {
	case "postgres":
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, err
		}
		if _, err := db.Exec(admittedstore.Schema); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("admission sink: postgres")
		return admittedstore.NewPostgres(db), func() { db.Close() }, nil
	case "relay":
		log.Info("admission sink: relay forwarder", "url", cfg.RelayIngestURL)
		return relay.NewSink(cfg.RelayIngestURL), nil, nil
	default:
		log.Info("admission sink: in-memory")
		return admittedstore.NewInMemoryStore(), nil, nil
	}
}

func buildGateway(cfg config.Config, log *slog.Logger) lightning.Gateway {
	if cfg.GatewayMode == "lnd" {
		log.Info("invoice gateway: lnd", "url", cfg.LNDURL)
		return lightning.NewLNDClient(lightning.LNDConfig{
			BaseURL:            cfg.LNDURL,
			MacaroonHex:        cfg.LNDMacaroonHex,
			InsecureSkipVerify: cfg.LNDInsecure,
			Timeout:            10 * time.Second,
		})
	}
	log.Warn("invoice gateway: fake (development only)")
	return lightning.NewFakeGateway()
}

// buildOracle returns the active trust oracle plus the mutable static set
// when running in static mode; relay mode returns a nil set so the admin
// trust API rejects writes.
func buildOracle(cfg config.Config, log *slog.Logger) (trust.Oracle, *trust.StaticOracle) {
	if cfg.TrustMode == "relay" && cfg.RelayURL != "" {
		log.Info("trust oracle: relay", "url", cfg.RelayURL, "cache_ttl", cfg.TrustCacheTTL.String())
		return trust.NewCachedOracle(trust.NewRelayOracle(cfg.RelayURL), cfg.TrustCacheTTL), nil
	}

	var seeds []id.Pubkey
	for _, raw := range cfg.TrustSeeds {
		pk, err := id.ParsePubkey(raw)
		if err != nil {
			log.Warn("skipping invalid trust seed", "value", raw)
			continue
		}
		seeds = append(seeds, pk)
	}
	log.Info("trust oracle: static", "seeds", len(seeds))
	static := trust.NewStaticOracle(seeds...)
	return static, static
}
