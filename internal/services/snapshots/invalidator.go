package snapshots

import (
	"context"
	"time"

	"github.com/BearBump/WipBox/internal/cache"
	"github.com/BearBump/WipBox/internal/models"
	"github.com/pkg/errors"
)

// CacheInvalidator is a builder sink that drops cached reads touched by
// freshly written snapshots.
type CacheInvalidator struct {
	cache cache.BytesCache
}

func NewCacheInvalidator(c cache.BytesCache) *CacheInvalidator {
	return &CacheInvalidator{cache: c}
}

func (c *CacheInvalidator) WriteSnapshots(ctx context.Context, kind models.UnitKind, snaps []models.WipSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	keys := newKeySet()
	for _, w := range snaps {
		keys.add(UnitSnapshotsKey(w.SerialNumber))
		keys.addDay(w.SnapshotDate, kind)
	}
	return c.delete(ctx, keys.list)
}

// EvictSnapshots drops cached reads of rows deleted from the snapshot table.
// An empty kind evicts the summaries of every kind.
func (c *CacheInvalidator) EvictSnapshots(ctx context.Context, kind models.UnitKind, removed models.RemovedSnapshots) error {
	keys := newKeySet()
	for _, sn := range removed.Serials {
		keys.add(UnitSnapshotsKey(sn))
	}
	for _, d := range removed.Days {
		if kind == "" {
			keys.addDay(d, models.UnitKindServer)
			keys.addDay(d, models.UnitKindRack)
			continue
		}
		keys.addDay(d, kind)
	}
	return c.delete(ctx, keys.list)
}

const evictChunkSize = 500

func (c *CacheInvalidator) delete(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += evictChunkSize {
		end := min(start+evictChunkSize, len(keys))
		if err := c.cache.Delete(ctx, keys[start:end]...); err != nil {
			return errors.Wrap(err, "invalidate cache")
		}
	}
	return nil
}

type keySet struct {
	seen map[string]struct{}
	list []string
}

func newKeySet() *keySet {
	return &keySet{seen: make(map[string]struct{})}
}

func (k *keySet) add(key string) {
	if _, ok := k.seen[key]; ok {
		return
	}
	k.seen[key] = struct{}{}
	k.list = append(k.list, key)
}

func (k *keySet) addDay(t time.Time, kind models.UnitKind) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	k.add(SummaryKey(day, kind))
	k.add(SummaryKey(day, ""))
}
