package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/example/skate-spots/internal/app"
	"github.com/example/skate-spots/internal/config"
	"github.com/example/skate-spots/internal/directory"
	"github.com/example/skate-spots/internal/dispatch"
	"github.com/example/skate-spots/internal/geo"
	"github.com/example/skate-spots/internal/geocode"
	httpapi "github.com/example/skate-spots/internal/http"
	"github.com/example/skate-spots/internal/ingest"
	"github.com/example/skate-spots/internal/kv"
	"github.com/example/skate-spots/internal/logging"
	"github.com/example/skate-spots/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dir, err := directory.Load()
	if err != nil {
		log.Fatalf("directory: %v", err)
	}
	zone, err := time.LoadLocation(cfg.EventTimezone)
	if err != nil {
		log.Fatalf("timezone: %v", err)
	}

	var (
		store  kv.Store = kv.NewMemoryStore()
		nearby geo.Geo  = geo.NewIndex()
	)
	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer func() {
			_ = rc.Close()
		}()
		if err := rc.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		store = kv.NewRedisStore(rc, cfg.RedisKeyPrefix)
		nearby = geo.NewRedisGeo(rc, cfg.RedisGeoKey, logger)
		logger.Info("using redis", slog.String("addr", cfg.RedisAddr))
	}

	geocoder := geocode.NewClient(geocode.Config{
		BaseURL:      cfg.GeocoderURL,
		UserAgent:    cfg.GeocoderUserAgent,
		Rate:         cfg.GeocoderRate,
		CountryCodes: cfg.GeocoderCountryCodes,
	}, &http.Client{Timeout: 10 * time.Second}, logger)

	profiles := app.NewStore(app.StoreConfig{
		KV:        store,
		Directory: dir,
		Searcher:  geocoder,
		UserID:    cfg.DefaultUserID,
		Logger:    logger,
	})

	ws := dispatch.NewWSRegistry(dir, logger)
	profiles.AddListener(ws)

	// With kafka and redis both configured the indexer owns the GEO set;
	// otherwise the store writes the index itself.
	if len(cfg.KafkaBrokers) > 0 {
		producer := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() {
			_ = producer.Close()
		}()
		profiles.AddListener(producer)
		logger.Info("publishing spot events", slog.String("topic", cfg.KafkaTopic))
	}
	if len(cfg.KafkaBrokers) == 0 || cfg.RedisAddr == "" {
		profiles.AddListener(app.IndexInto(nearby))
	}

	var repos *storage.Repos
	if cfg.PGDSN != "" {
		if cfg.RunMigrations {
			if err := storage.ApplySchema(ctx, cfg.PGDSN); err != nil {
				log.Fatalf("migrate: %v", err)
			}
			logger.Info("schema applied")
		}
		pool, err := storage.Connect(ctx, cfg.PGDSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		repos = storage.New(pool)
	}

	handler := httpapi.NewServer(httpapi.Options{
		Store:    profiles,
		Geocoder: geocoder,
		Nearby:   nearby,
		WS:       ws,
		Repos:    repos,
		Map: httpapi.MapConfig{
			Bounds:      geo.USABounds,
			TileURL:     cfg.TileURL,
			Attribution: cfg.TileAttribution,
		},
		Zone:   zone,
		Logger: logger,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("skate-spots listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server stopped", slog.Any("err", err))
	}
}
