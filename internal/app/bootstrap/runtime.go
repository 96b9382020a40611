package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/staffline/internal/assistant"
	"github.com/wolfman30/staffline/internal/audit"
	"github.com/wolfman30/staffline/internal/bookings"
	"github.com/wolfman30/staffline/internal/candidates"
	"github.com/wolfman30/staffline/internal/classifier"
	appconfig "github.com/wolfman30/staffline/internal/config"
	"github.com/wolfman30/staffline/internal/contextanalysis"
	"github.com/wolfman30/staffline/internal/http/handlers"
	"github.com/wolfman30/staffline/internal/locks"
	"github.com/wolfman30/staffline/internal/observability/metrics"
	"github.com/wolfman30/staffline/internal/scheduling"
	"github.com/wolfman30/staffline/internal/transcript"
	"github.com/wolfman30/staffline/internal/tuning"
	"github.com/wolfman30/staffline/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildPostgresPool connects a pgx pool, or returns nil when no URL is set.
func BuildPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return pool, nil
}

// BuildAuditDB opens the database/sql handle the audit log writes through.
func BuildAuditDB(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open audit db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// Runtime is everything the API and worker binaries share.
type Runtime struct {
	Config    *appconfig.Config
	Logger    *logging.Logger
	Tuning    *tuning.Tuning
	Location  *time.Location
	Redis     *redis.Client
	Pool      *pgxpool.Pool
	AuditDB   *sql.DB
	Registry  *prometheus.Registry
	Metrics   *metrics.AssistantMetrics
	Engine    *scheduling.Engine
	Bookings  *bookings.Service
	Assistant *assistant.Assistant

	closers []func()
}

type storage struct {
	store     scheduling.Store
	committer scheduling.Committer
	directory candidates.Directory
	bookings  bookings.Repository
}

// Build wires the runtime from cfg. Close releases its connections.
func Build(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	rt := &Runtime{Config: cfg, Logger: logger}

	tun, err := tuning.Load(cfg.TuningConfigPath)
	if err != nil {
		return nil, err
	}
	rt.Tuning = tun

	tz := cfg.Timezone
	if tun.Timezone != "" {
		tz = tun.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: timezone %q: %w", tz, err)
	}
	rt.Location = loc

	if err := rt.connect(ctx); err != nil {
		rt.Close()
		return nil, err
	}

	st, err := rt.storage()
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.Registry = prometheus.NewRegistry()
	rt.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rt.Metrics = metrics.NewAssistantMetrics(rt.Registry)

	engineOpts := []scheduling.Option{
		scheduling.WithLocation(loc),
		scheduling.WithScripts(tun.Scripts),
		scheduling.WithLogger(logger),
	}
	if rt.AuditDB != nil {
		engineOpts = append(engineOpts, scheduling.WithObserver(audit.NewService(rt.AuditDB).Observer(logger)))
	}
	engine, err := scheduling.NewEngine(st.store, st.committer, engineOpts...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Engine = engine
	rt.Bookings = bookings.NewService(st.bookings, logger)

	matcher, err := tun.Matcher()
	if err != nil {
		rt.Close()
		return nil, err
	}
	analyzer := contextanalysis.NewAnalyzer(contextanalysis.WithLocation(loc))
	cls := classifier.New(tun.Normalizer(), matcher, analyzer, tun.Calculator())

	assistantOpts := []assistant.Option{
		assistant.WithLogger(logger),
		assistant.WithMetrics(rt.Metrics),
		assistant.WithLockWait(cfg.LockWait),
		assistant.WithFallback(tun.Scripts.GenericError),
	}
	if rt.Redis != nil {
		assistantOpts = append(assistantOpts,
			assistant.WithTranscript(transcript.NewRedisStore(rt.Redis)),
			assistant.WithLocker(locks.NewRedisLocker(rt.Redis, cfg.LockTTL, logger)),
		)
	}
	a, err := assistant.New(cls, engine, st.directory, assistantOpts...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Assistant = a

	logger.Info("runtime ready",
		"dialogue_store", cfg.DialogueStore,
		"redis", rt.Redis != nil,
		"postgres", rt.Pool != nil,
		"audit", rt.AuditDB != nil,
		"timezone", loc.String(),
	)
	return rt, nil
}

func (rt *Runtime) connect(ctx context.Context) error {
	cfg := rt.Config
	if cfg.RedisAddr != "" {
		rt.Redis = BuildRedisClient(ctx, cfg, rt.Logger, true)
		if rt.Redis == nil && cfg.DialogueStore == appconfig.StoreRedis {
			return fmt.Errorf("bootstrap: redis dialogue store requires a reachable REDIS_ADDR")
		}
		if rt.Redis != nil {
			client := rt.Redis
			rt.closers = append(rt.closers, func() { _ = client.Close() })
		}
	}

	pool, err := BuildPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if pool != nil {
		rt.Pool = pool
		rt.closers = append(rt.closers, pool.Close)
	}

	if cfg.AuditEnabled && cfg.DatabaseURL != "" {
		db, err := BuildAuditDB(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		rt.AuditDB = db
		rt.closers = append(rt.closers, func() { _ = db.Close() })
	}
	return nil
}

func (rt *Runtime) storage() (storage, error) {
	switch rt.Config.DialogueStore {
	case appconfig.StoreRedis:
		if rt.Redis == nil {
			return storage{}, fmt.Errorf("bootstrap: redis dialogue store requires REDIS_ADDR")
		}
		if rt.Pool == nil {
			return storage{}, fmt.Errorf("bootstrap: redis dialogue store requires DATABASE_URL for bookings")
		}
		store := scheduling.NewRedisStore(rt.Redis)
		return storage{
			store:     store,
			committer: scheduling.NewSplitCommitter(rt.Pool, store),
			directory: candidates.NewPostgresDirectory(rt.Pool),
			bookings:  bookings.NewPostgresRepository(rt.Pool),
		}, nil
	case appconfig.StorePostgres:
		if rt.Pool == nil {
			return storage{}, fmt.Errorf("bootstrap: postgres dialogue store requires DATABASE_URL")
		}
		return storage{
			store:     scheduling.NewPostgresStore(rt.Pool),
			committer: scheduling.NewPostgresCommitter(rt.Pool),
			directory: candidates.NewPostgresDirectory(rt.Pool),
			bookings:  bookings.NewPostgresRepository(rt.Pool),
		}, nil
	case appconfig.StoreMemory:
		return memoryStorage(), nil
	default:
		return storage{}, fmt.Errorf("bootstrap: unknown dialogue store %q", rt.Config.DialogueStore)
	}
}

// memoryStorage wires the in-process store, committer, directory and
// booking repository used in development.
func memoryStorage(seed ...candidates.Candidate) storage {
	store := scheduling.NewMemoryStore()
	dir := candidates.NewMemoryDirectory(seed...)
	repo := bookings.NewMemoryRepository()
	return storage{
		store:     store,
		committer: scheduling.NewMemoryCommitter(store, repo, dir),
		directory: dir,
		bookings:  repo,
	}
}

// HealthChecks returns a probe per connected dependency.
func (rt *Runtime) HealthChecks() map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{}
	if rt.Redis != nil {
		client := rt.Redis
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	if rt.Pool != nil {
		pool := rt.Pool
		checks["postgres"] = pool.Ping
	}
	return checks
}

// Close releases connections in reverse order of acquisition.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
