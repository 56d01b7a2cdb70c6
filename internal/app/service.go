// Package service wires the leaderboard: stores, ranking core, submission
// path and the write-behind persistence pool.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/ladder/internal/adapters/http/api"
	"github.com/okian/ladder/internal/adapters/http/swagger"
	"github.com/okian/ladder/internal/adapters/ledger"
	eventqueue "github.com/okian/ladder/internal/adapters/mq/queue"
	workerpool "github.com/okian/ladder/internal/adapters/mq/worker"
	"github.com/okian/ladder/internal/adapters/pagecache"
	"github.com/okian/ladder/internal/adapters/rankset"
	"github.com/okian/ladder/internal/config"
	"github.com/okian/ladder/internal/domain/dedupe"
	"github.com/okian/ladder/internal/domain/ranking"
	"github.com/okian/ladder/internal/domain/submission"
	"github.com/okian/ladder/pkg/logger"
)

const (
	drainTimeout = 30 * time.Second
	statsTopN    = 10
)

// ErrNotStarted is returned by operations that need a started service.
var ErrNotStarted = errors.New("service not started")

// Service owns every long-lived component of the process.
type Service struct {
	mu sync.RWMutex

	cfg    *config.Config
	logger logger.Logger

	redis      redis.UniversalClient
	ownsRedis  bool
	ledger     *ledger.Ledger
	ranking    *ranking.Service
	submitter  *submission.Submitter
	deduper    dedupe.Deduper
	eventQueue *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool
	auth       *api.Authenticator

	started bool
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRedisClient uses client for the ranked set and page cache instead of
// dialing redis_addr. The caller keeps ownership of client.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(s *Service) {
		s.redis = client
	}
}

// New constructs a Service from cfg.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{cfg: cfg, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the stores, rebuilds the ranked set from the ledger and starts
// background work.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	cfg := s.cfg
	s.logger.Info(ctx, "starting leaderboard service...")

	db, err := ledger.Open(cfg.DBDriver, cfg.DBDSN, cfg.DBMaxOpen, cfg.DBMaxIdle)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	if err := ledger.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate ledger: %w", err)
	}
	s.ledger = ledger.New(db)

	set, pages, err := s.fastStores(ctx)
	if err != nil {
		_ = s.ledger.Close()
		return err
	}

	s.ranking = ranking.New(set, s.ledger, s.ledger, pages,
		ranking.WithCapacity(cfg.CacheCapacity),
		ranking.WithOverflowFactor(cfg.OverflowFactor),
		ranking.WithBatchSize(cfg.BootstrapBatchSize),
		ranking.WithSurroundSize(cfg.SurroundSize),
		ranking.WithPageCacheTTL(cfg.PageCacheTTL()),
		ranking.WithTrimInterval(cfg.TrimInterval()),
		ranking.WithMaxScore(cfg.MaxScore),
		ranking.WithLogger(s.logger.Named("ranking")),
	)
	loaded, err := s.ranking.Bootstrap(ctx)
	if err != nil {
		s.closeStores()
		return fmt.Errorf("bootstrap: %w", err)
	}
	s.ranking.Start(ctx)

	s.eventQueue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(cfg.EventQueueSize),
		eventqueue.WithEnqueueTimeout(cfg.EnqueueTimeout()),
	)
	s.workerPool = workerpool.NewPool(cfg.WorkerCount, s.eventQueue, s.ledger,
		workerpool.WithLogger(s.logger.Named("persist")),
		workerpool.WithOnPersisted(func(ctx context.Context, _ workerpool.Job) {
			s.ranking.PurgePages(ctx)
		}),
	)
	// Workers outlive the start context, Stop drains them.
	s.workerPool.Start(context.WithoutCancel(ctx))

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.DedupeSize))
	s.submitter = submission.New(s.ranking, s.ledger, s.ledger, s.eventQueue,
		submission.WithMaxScore(cfg.MaxScore),
		submission.WithMinTimespent(float64(cfg.MinTimespent)),
		submission.WithMaxLevelJump(cfg.MaxLevelJump),
		submission.WithRatePerMinute(cfg.MaxSubmissionsPerMinute),
		submission.WithMaxTrackedPlayers(cfg.TrackedPlayers),
		submission.WithDeduper(s.deduper),
		submission.WithLogger(s.logger.Named("submission")),
	)
	s.auth = api.NewAuthenticator(cfg.JWTSecret)

	s.started = true
	s.logger.Info(ctx, "leaderboard service started",
		logger.Int("bootstrapped", loaded),
		logger.Int("capacity", cfg.CacheCapacity),
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", cfg.EventQueueSize),
		logger.Bool("redis", s.redis != nil),
	)
	return nil
}

// fastStores returns the Redis backed ranked set and page cache when Redis
// is configured, in-process ones otherwise.
func (s *Service) fastStores(ctx context.Context) (rankset.RankedSet, pagecache.Cache, error) {
	if s.redis == nil && s.cfg.RedisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     s.cfg.RedisAddr,
			Password: s.cfg.RedisPassword,
			DB:       s.cfg.RedisDB,
		})
		s.ownsRedis = true
	}
	if s.redis == nil {
		return rankset.NewMemory(), pagecache.NewMemory(), nil
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		if s.ownsRedis {
			_ = s.redis.Close()
			s.redis = nil
		}
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return rankset.NewRedis(s.redis, rankset.WithPrefix(s.cfg.RedisPrefix)),
		pagecache.NewRedis(s.redis, s.cfg.RedisPrefix), nil
}

// Stop drains the write-behind queue and closes every store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping leaderboard service...", logger.Int("queued", s.eventQueue.Len(ctx)))

	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "write-behind drain incomplete", logger.Error(err))
	}
	s.ranking.Stop()
	s.closeStores()

	s.started = false
	s.logger.Info(ctx, "leaderboard service stopped")
}

func (s *Service) closeStores() {
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			s.logger.Warn(context.Background(), "close ledger", logger.Error(err))
		}
	}
	if s.redis != nil && s.ownsRedis {
		_ = s.redis.Close()
		s.redis = nil
	}
}

// Register attaches the API and documentation routes to mux. The service
// must be started.
func (s *Service) Register(ctx context.Context, mux *http.ServeMux) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	swagger.Register(ctx, mux)
	api.NewServer(s.submitter, s.ranking, s, s.auth, s.logger.Named("http")).Register(ctx, mux)
	return nil
}

// Ledger exposes the durable store to tooling that registers players.
func (s *Service) Ledger() *ledger.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger
}

// Authenticator returns the token verifier shared with the API.
func (s *Service) Authenticator() *api.Authenticator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.cfg.WorkerCount,
		"queueSize":   s.cfg.EventQueueSize,
		"dedupeSize":  s.cfg.DedupeSize,
	}
	if !s.started {
		return stats, nil
	}

	rs, err := s.ranking.Stats(ctx, statsTopN)
	if err != nil {
		return nil, err
	}
	stats["workerCount"] = s.workerPool.Size()
	stats["queueLength"] = s.eventQueue.Len(ctx)
	stats["dedupeEntries"] = s.deduper.Size()
	stats["rankset"] = rs
	return stats, nil
}
