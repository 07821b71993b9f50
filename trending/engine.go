// Package trending keeps decaying popularity scores for posts and users.
//
// Scores are stored relative to the row's lastDeflatedAt: an increment made
// d days after the last deflation is scaled up by decay^-d, so that a later
// deflation by decay^d leaves it at its face value. Deflation rewrites every
// score to the present and Trim deletes rows below the floor.
package trending

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/realsocial/real/internal/digest"
	"github.com/realsocial/real/internal/metrics"
	"github.com/realsocial/real/model"
	"github.com/realsocial/real/repo"
	"github.com/realsocial/real/store"
)

// Each conditional write is retried this many times when it races with
// another writer.
const maxAttempts = 5

// Default number of deflation workers.
const defaultWorkers = 8

// Options tune an Engine.
type Options struct {
	// DecayPerDay is the factor a score is multiplied by per elapsed day.
	DecayPerDay float64
	// ScoreFloor is the score below which Trim deletes rows.
	ScoreFloor float64
	// MinCountToKeep is the number of rows Trim never goes below.
	MinCountToKeep int
	// Workers bounds deflation concurrency.
	Workers int
}

// Engine maintains trending rows.
type Engine struct {
	repo    *repo.TrendingRepo
	opts    Options
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.Emitter
}

// New returns an Engine. A nil now uses time.Now.
func New(r *repo.TrendingRepo, opts Options, now func() time.Time, logger *zap.Logger, m *metrics.Emitter) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{repo: r, opts: opts, now: now, logger: logger, metrics: m}
}

// DeflatedStats summarizes a deflation pass.
type DeflatedStats struct {
	Deflated int
	Deleted  int
}

// factor returns decay raised to the number of days between from and to.
func (e *Engine) factor(from, to time.Time) float64 {
	days := to.Sub(from).Hours() / 24
	return math.Pow(e.opts.DecayPerDay, days)
}

// Increment adds amount to the score of an item, creating its row if needed.
func (e *Engine) Increment(ctx context.Context, kind model.TrendingKind, itemID string, amount float64) error {
	if amount <= 0 {
		return nil
	}
	for range maxAttempts {
		now := e.now()
		item, err := e.repo.Get(ctx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			err = e.repo.Add(ctx, &model.TrendingItem{
				ItemID:         itemID,
				Kind:           kind,
				Score:          amount,
				LastDeflatedAt: now,
				CreatedAt:      now,
			})
			if errors.Is(err, store.ErrAlreadyExists) {
				continue
			}
			return err
		}
		_, err = e.repo.AddScore(ctx, itemID, amount/e.factor(item.LastDeflatedAt, now))
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		return err
	}
	return fmt.Errorf("increment trending %s: %w", itemID, store.ErrPreconditionFailed)
}

// Deflate brings every score of kind up to the present, then trims.
func (e *Engine) Deflate(ctx context.Context, kind model.TrendingKind) (DeflatedStats, error) {
	var stats DeflatedStats
	now := e.now()

	shards := make([][]*model.TrendingItem, e.opts.Workers)
	for item, err := range e.repo.DeflatedBefore(ctx, kind, now) {
		if err != nil {
			return stats, err
		}
		n := digest.Shard(item.ItemID, len(shards))
		shards[n] = append(shards[n], item)
	}

	counts := make([]int, len(shards))
	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		g.Go(func() error {
			for _, item := range shard {
				ok, err := e.deflate(gctx, item, now)
				if err != nil {
					return err
				}
				if ok {
					counts[i]++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	for _, c := range counts {
		stats.Deflated += c
	}

	deleted, err := e.Trim(ctx, kind)
	stats.Deleted = deleted
	return stats, err
}

// deflate rewrites one item, rereading it when a concurrent increment wins.
func (e *Engine) deflate(ctx context.Context, item *model.TrendingItem, now time.Time) (bool, error) {
	for range maxAttempts {
		if !item.LastDeflatedAt.Before(now) {
			return false, nil
		}
		score := item.Score * e.factor(item.LastDeflatedAt, now)
		_, err := e.repo.Deflate(ctx, item, score, now)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, store.ErrNotFound):
			return false, nil
		case !errors.Is(err, store.ErrPreconditionFailed):
			return false, err
		}
		if item, err = e.repo.Get(ctx, item.ItemID, store.Strong()); err != nil || item == nil {
			return false, err
		}
	}
	e.logger.Warn("Trending deflation kept losing races", zap.String("itemId", item.ItemID))
	return false, nil
}

// Trim deletes rows of kind scoring below the floor, lowest first, keeping
// at least MinCountToKeep rows.
func (e *Engine) Trim(ctx context.Context, kind model.TrendingKind) (int, error) {
	var items []*model.TrendingItem
	for item, err := range e.repo.ByScore(ctx, kind, false) {
		if err != nil {
			return 0, err
		}
		items = append(items, item)
	}
	deletable := len(items) - e.opts.MinCountToKeep
	deleted := 0
	for _, item := range items {
		if deleted >= deletable || item.Score >= e.opts.ScoreFloor {
			break
		}
		if err := e.repo.Delete(ctx, item.ItemID); err != nil {
			return deleted, err
		}
		deleted++
	}
	if deleted > 0 {
		e.logger.Info("Trimmed trending items",
			zap.String("kind", string(kind)),
			zap.Int("deleted", deleted),
		)
		e.metrics.Count(metrics.TrendingDeleted, float64(deleted), metrics.Dim("Kind", string(kind)))
	}
	return deleted, nil
}

// Delete removes an item's row.
func (e *Engine) Delete(ctx context.Context, itemID string) error {
	return e.repo.Delete(ctx, itemID)
}
