package environ

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/turtacn/DrugEx/internal/domain/policy"
	"github.com/turtacn/DrugEx/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DrugEx/pkg/errors"
)

// Cache is the key-value store Cached memoizes scores in.  Values are JSON
// encoded.  GetOrSet must run loader once per key across concurrent callers.
// The Redis cache in infrastructure/database/redis satisfies it.
type Cache interface {
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	MSet(ctx context.Context, items map[string]interface{}, ttl time.Duration) error
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
}

// Parallel is implemented by environments whose scoring parallelism can be
// bounded.
type Parallel interface {
	SetParallelism(n int)
}

// SetParallelism applies n to env when env, or the environment it decorates,
// supports it.  It reports whether anything was applied.
func SetParallelism(env policy.Environment, n int) bool {
	p, ok := env.(Parallel)
	if ok {
		p.SetParallelism(n)
	}
	return ok
}

// CacheKey returns the cache key of smiles.
func CacheKey(smiles string) string {
	return fmt.Sprintf("env:%016x", xxhash.Sum64String(smiles))
}

// batchKey identifies an ordered set of missed molecules.
func batchKey(smiles []string) string {
	return fmt.Sprintf("env:batch:%016x", xxhash.Sum64String(strings.Join(smiles, "\n")))
}

// Cached memoizes the scores of another environment.  Cache failures are
// logged and fall through to the wrapped environment; they never fail a
// training step.
type Cached struct {
	next   policy.Environment
	cache  Cache
	ttl    time.Duration
	logger logging.Logger
}

var _ policy.Environment = (*Cached)(nil)

// NewCached wraps next.
func NewCached(next policy.Environment, cache Cache, ttl time.Duration, logger logging.Logger) *Cached {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Cached{next: next, cache: cache, ttl: ttl, logger: logger.Named("env_cache")}
}

// SetParallelism forwards to the wrapped environment.
func (c *Cached) SetParallelism(n int) { SetParallelism(c.next, n) }

// Score returns cached scores and computes the misses in one call to the
// wrapped environment.  The misses are loaded through the cache's GetOrSet so
// identical concurrent miss sets share that call.
func (c *Cached) Score(ctx context.Context, smiles []string) ([]float64, error) {
	keys := make([]string, len(smiles))
	for i, s := range smiles {
		keys[i] = CacheKey(s)
	}

	hits, err := c.cache.MGet(ctx, keys)
	if err != nil {
		c.logger.Warn("score cache read failed", logging.Err(err))
		hits = nil
	}

	out := make([]float64, len(smiles))
	missing := make(map[string][]int)
	var order []string
	for i, key := range keys {
		if raw, ok := hits[key]; ok {
			var v float64
			if json.Unmarshal(raw, &v) == nil {
				out[i] = v
				continue
			}
		}
		if _, seen := missing[smiles[i]]; !seen {
			order = append(order, smiles[i])
		}
		missing[smiles[i]] = append(missing[smiles[i]], i)
	}
	if len(order) == 0 {
		return out, nil
	}

	var scores []float64
	err = c.cache.GetOrSet(ctx, batchKey(order), &scores, c.ttl, func(ctx context.Context) (interface{}, error) {
		computed, err := c.next.Score(ctx, order)
		if err != nil {
			return nil, err
		}
		if len(computed) != len(order) {
			return nil, wrongScoreCount(len(order), len(computed))
		}
		return computed, nil
	})
	if err != nil {
		return nil, err
	}
	if len(scores) != len(order) {
		return nil, wrongScoreCount(len(order), len(scores))
	}

	items := make(map[string]interface{}, len(order))
	for j, s := range order {
		for _, i := range missing[s] {
			out[i] = scores[j]
		}
		items[CacheKey(s)] = scores[j]
	}
	if err := c.cache.MSet(ctx, items, c.ttl); err != nil {
		c.logger.Warn("score cache write failed", logging.Err(err))
	}
	c.logger.Debug("scored batch",
		logging.Int("molecules", len(smiles)),
		logging.Int("misses", len(order)))
	return out, nil
}

func wrongScoreCount(want, got int) error {
	return errors.New(errors.ErrCodeEnvScoringFailed, "wrapped environment returned wrong number of scores").
		WithDetail(fmt.Sprintf("want=%d got=%d", want, got))
}

//Personal.AI order the ending
