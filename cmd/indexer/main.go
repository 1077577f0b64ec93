package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/skate-spots/internal/config"
	"github.com/example/skate-spots/internal/logging"
	"github.com/example/skate-spots/internal/models"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "indexer_messages_consumed_total",
		Help: "Total spot event messages consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "indexer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	redisUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_redis_updates_total",
		Help: "Total successful redis updates",
	}, []string{"op"})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "indexer_redis_errors_total",
		Help: "Total redis errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, redisUpdates, redisErrors)
}

var errUnknownOp = errors.New("unknown spot op")

func main() {
	cfg, err := config.LoadIndexerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	updater := &redisAdapter{c: rc}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", slog.String("addr", cfg.MetricsAddr))
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", slog.Any("err", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.KafkaGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	logger.Info("indexer consuming",
		slog.String("topic", cfg.KafkaTopic),
		slog.Any("brokers", cfg.KafkaBrokers),
		slog.String("group", cfg.KafkaGroup),
	)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down indexer")
				return
			}
			logger.Warn("kafka read error", slog.Any("err", err), slog.Duration("backoff", backoff))
			time.Sleep(backoff)
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second
		msgsConsumed.Inc()

		var e models.SpotEvent
		if err := json.Unmarshal(m.Value, &e); err != nil {
			msgsInvalid.Inc()
			logger.Warn("invalid message", slog.Any("err", err), slog.Int64("offset", m.Offset))
			continue
		}

		if err := applyWithRetry(ctx, updater, cfg.RedisGeoKey, e, 3, 200*time.Millisecond); err != nil {
			if errors.Is(err, errUnknownOp) {
				msgsInvalid.Inc()
			} else {
				redisErrors.Inc()
			}
			logger.Error("redis update failed", slog.String("spot", e.IndexKey()), slog.Any("err", err))
			continue
		}
		redisUpdates.WithLabelValues(string(e.Op)).Inc()
	}
}

// RedisUpdater is the subset of redis the indexer writes with.
type RedisUpdater interface {
	GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error
	ZRem(ctx context.Context, key string, member string) error
	HSet(ctx context.Context, key string, values map[string]any) error
	Del(ctx context.Context, key string) error
}

type redisAdapter struct{ c *redis.Client }

func (r *redisAdapter) GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error {
	return r.c.GeoAdd(ctx, key, loc).Err()
}

func (r *redisAdapter) ZRem(ctx context.Context, key string, member string) error {
	return r.c.ZRem(ctx, key, member).Err()
}

func (r *redisAdapter) HSet(ctx context.Context, key string, values map[string]any) error {
	return r.c.HSet(ctx, key, values).Err()
}

func (r *redisAdapter) Del(ctx context.Context, key string) error {
	return r.c.Del(ctx, key).Err()
}

func metaKey(e models.SpotEvent) string { return "spot:meta:" + e.IndexKey() }

// applyWithRetry mirrors one spot event into the GEO set and its meta hash,
// doubling delay between attempts.
func applyWithRetry(ctx context.Context, rc RedisUpdater, geoKey string, e models.SpotEvent, attempts int, delay time.Duration) error {
	var steps []func() error
	switch e.Op {
	case models.SpotAdded:
		steps = []func() error{
			func() error {
				return rc.GeoAdd(ctx, geoKey, &redis.GeoLocation{Longitude: e.Loc.Lng, Latitude: e.Loc.Lat, Name: e.IndexKey()})
			},
			func() error {
				return rc.HSet(ctx, metaKey(e), map[string]any{"profile": e.ProfileID, "kind": string(e.Kind), "id": e.ID})
			},
		}
	case models.SpotDeleted:
		steps = []func() error{
			func() error { return rc.ZRem(ctx, geoKey, e.IndexKey()) },
			func() error { return rc.Del(ctx, metaKey(e)) },
		}
	default:
		return errUnknownOp
	}

	for _, step := range steps {
		for i := 0; ; i++ {
			err := step()
			if err == nil {
				break
			}
			if i == attempts-1 {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return nil
}
