package cached

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"user-crud-service/internal/adapter/cache"
	domain "user-crud-service/internal/domain/user"
	"user-crud-service/internal/usecase/user"
	"user-crud-service/pkg/logger"
)

// CachedUserRepository implements user.Repository with caching support.
// It wraps a persistent repository (DB) and a cache implementation.
// Cache failures are logged and never fail the call.
type CachedUserRepository struct {
	dbRepo  user.Repository
	cache   cache.UserCache
	log     *zap.Logger
	group   singleflight.Group
	metrics cacheMetrics

	// writes[id%len] is bumped on every write to a user in that stripe. A
	// cache fill that saw the counter move while it read the database may
	// hold a stale row and is dropped.
	writes [64]atomic.Uint64
}

var _ user.Repository = (*CachedUserRepository)(nil)

// NewCachedUserRepository creates a new instance of CachedUserRepository.
// A nil meter disables the hit/miss counters.
func NewCachedUserRepository(dbRepo user.Repository, cache cache.UserCache, log *zap.Logger, meter metric.Meter) *CachedUserRepository {
	return &CachedUserRepository{
		dbRepo:  dbRepo,
		cache:   cache,
		log:     log,
		metrics: newCacheMetrics(meter),
	}
}

// List delegates to the DB repository.
func (r *CachedUserRepository) List(ctx context.Context) ([]domain.User, error) {
	return r.dbRepo.List(ctx)
}

// ExistsByName delegates to the DB repository.
func (r *CachedUserRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	return r.dbRepo.ExistsByName(ctx, name)
}

// GetByID retrieves a user by ID using Cache-Aside pattern.
// Absent users are not cached.
func (r *CachedUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	log := logger.WithContext(ctx, r.log)

	if r.cache != nil {
		cachedUser, err := r.cache.Get(ctx, id)
		if err != nil {
			log.Warn("cache get error, falling back to database", zap.Int64("id", id), zap.Error(err))
		} else if cachedUser != nil {
			r.metrics.recordHit(ctx)
			log.Debug("user retrieved from cache", zap.Int64("id", id))
			return cachedUser, nil
		}
	}
	r.metrics.recordMiss(ctx)

	// Single-flight collapses concurrent misses for one id into a single query.
	key := fmt.Sprintf("user:%d", id)
	result, err, _ := r.group.Do(key, func() (any, error) {
		if r.cache != nil {
			cachedUser, err := r.cache.Get(ctx, id)
			if err == nil && cachedUser != nil {
				log.Debug("user retrieved from cache after single-flight wait", zap.Int64("id", id))
				return cachedUser, nil
			}
		}

		gen := r.generation(id)
		u, err := r.dbRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if u != nil && r.cache != nil {
			r.fill(ctx, u, gen)
		}

		return u, nil
	})
	if err != nil {
		return nil, err
	}

	u, _ := result.(*domain.User)
	if u == nil {
		return nil, nil
	}
	// Callers get their own copy; the shared result may be handed to other waiters.
	cp := *u
	return &cp, nil
}

// Save writes through to the DB and invalidates the cached entry.
func (r *CachedUserRepository) Save(ctx context.Context, u *domain.User) (*domain.User, error) {
	saved, err := r.dbRepo.Save(ctx, u)
	if err != nil {
		return nil, err
	}

	r.invalidate(ctx, saved.ID, "save")
	return saved, nil
}

// Delete deletes the user from DB and invalidates the cache.
func (r *CachedUserRepository) Delete(ctx context.Context, u *domain.User) error {
	if err := r.dbRepo.Delete(ctx, u); err != nil {
		return err
	}

	r.invalidate(ctx, u.ID, "delete")
	return nil
}

// DeleteByID deletes the user from DB and invalidates the cache.
func (r *CachedUserRepository) DeleteByID(ctx context.Context, id int64) error {
	if err := r.dbRepo.DeleteByID(ctx, id); err != nil {
		return err
	}

	r.invalidate(ctx, id, "delete")
	return nil
}

// DeleteAll clears the DB and then flushes every cached user.
func (r *CachedUserRepository) DeleteAll(ctx context.Context) error {
	if err := r.dbRepo.DeleteAll(ctx); err != nil {
		return err
	}

	if r.cache != nil {
		for i := range r.writes {
			r.writes[i].Add(1)
		}
		if err := r.cache.DeleteAll(ctx); err != nil {
			logger.WithContext(ctx, r.log).Warn("failed to flush cache after delete all", zap.Error(err))
		}
	}
	return nil
}

// fill caches u unless a write to it happened since gen was taken. A write
// that lands while the SET is in flight is caught by the second check.
func (r *CachedUserRepository) fill(ctx context.Context, u *domain.User, gen uint64) {
	log := logger.WithContext(ctx, r.log)
	if r.generation(u.ID) != gen {
		log.Debug("skipping cache fill after concurrent write", zap.Int64("id", u.ID))
		return
	}
	if err := r.cache.Set(ctx, u); err != nil {
		log.Warn("failed to cache user", zap.Int64("id", u.ID), zap.Error(err))
		return
	}
	if r.generation(u.ID) != gen {
		r.invalidate(ctx, u.ID, "racing fill")
	}
}

func (r *CachedUserRepository) stripe(id int64) *atomic.Uint64 {
	return &r.writes[uint64(id)%uint64(len(r.writes))]
}

func (r *CachedUserRepository) generation(id int64) uint64 {
	return r.stripe(id).Load()
}

func (r *CachedUserRepository) invalidate(ctx context.Context, id int64, op string) {
	if r.cache == nil {
		return
	}
	r.stripe(id).Add(1)
	if err := r.cache.Delete(ctx, id); err != nil {
		logger.WithContext(ctx, r.log).Warn("failed to invalidate cache after "+op, zap.Int64("id", id), zap.Error(err))
	}
}

type cacheMetrics struct {
	hits   metric.Int64Counter
	misses metric.Int64Counter
}

func newCacheMetrics(m metric.Meter) cacheMetrics {
	if m == nil {
		return cacheMetrics{}
	}
	hits, _ := m.Int64Counter("users.cache.hits", metric.WithDescription("Number of user lookups served from cache"))
	misses, _ := m.Int64Counter("users.cache.misses", metric.WithDescription("Number of user lookups that fell through to the database"))
	return cacheMetrics{hits: hits, misses: misses}
}

func (m cacheMetrics) recordHit(ctx context.Context) {
	if m.hits != nil {
		m.hits.Add(ctx, 1)
	}
}

func (m cacheMetrics) recordMiss(ctx context.Context) {
	if m.misses != nil {
		m.misses.Add(ctx, 1)
	}
}
