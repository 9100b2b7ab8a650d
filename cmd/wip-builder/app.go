package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/WipBox/config"
	"github.com/BearBump/WipBox/internal/broker/kafka"
	"github.com/BearBump/WipBox/internal/cache"
	"github.com/BearBump/WipBox/internal/cache/rediscache"
	"github.com/BearBump/WipBox/internal/csvio"
	"github.com/BearBump/WipBox/internal/models"
	"github.com/BearBump/WipBox/internal/services/builder"
	"github.com/BearBump/WipBox/internal/services/history"
	"github.com/BearBump/WipBox/internal/services/snapshots"
	"github.com/BearBump/WipBox/internal/storage/pgwip"
	"github.com/pkg/errors"
)

// builderStore is pgwip.Storage as seen by the builder: extraction, loading
// and raw event import.
type builderStore interface {
	builder.Repository
	builder.Sink
	InsertCheckpointEvents(ctx context.Context, events []*models.CheckpointEvent) (int64, error)
}

type triggerLimiter interface {
	AllowPerMinute(ctx context.Context, action string, limit int64) (bool, int64, error)
}

type builderFactories struct {
	newStorage     func(cfg *config.Config) (store builderStore, closeFn func(), err error)
	newPublisher   func(cfg *config.Config) (sink builder.Sink, closeFn func())
	newCache       func(cfg *config.Config) cache.BytesCache
	newRateLimiter func(cfg *config.Config) triggerLimiter
}

func defaultBuilderFactories() builderFactories {
	return builderFactories{
		newStorage: func(cfg *config.Config) (builderStore, func(), error) {
			st, err := pgwip.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			if cfg.WipBox.SinkChunkSize > 0 {
				st = st.WithChunkSize(cfg.WipBox.SinkChunkSize)
			}
			return st, st.Close, nil
		},
		newPublisher: func(cfg *config.Config) (builder.Sink, func()) {
			topic := cfg.Kafka.WipSnapshotsTopicName
			if topic == "" {
				topic = "wip.snapshots"
			}
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			p := kafka.NewProducer(brokers)
			return kafka.NewSnapshotSink(p, topic), func() { _ = p.Close() }
		},
		newCache: func(cfg *config.Config) cache.BytesCache {
			return rediscache.New(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
		},
		newRateLimiter: func(cfg *config.Config) triggerLimiter {
			return rediscache.NewRateLimiter(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
		},
	}
}

// builderApp держит всё, что нужно командам cobra.
type builderApp struct {
	cfg     *config.Config
	store   builderStore
	runner  *builder.Runner
	limiter triggerLimiter
	closers []func()
}

func newBuilderApp(cfg *config.Config, f builderFactories) (*builderApp, error) {
	aggs, err := newAggregators(cfg.WipBox)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := f.newStorage(cfg)
	if err != nil {
		return nil, err
	}
	app := &builderApp{cfg: cfg, store: store}
	if closeStore != nil {
		app.closers = append(app.closers, closeStore)
	}

	// Порядок важен: сначала БД, потом фид и файлы, кэш сбрасываем последним.
	sinks := []builder.Sink{store}
	if f.newPublisher != nil {
		pub, closePub := f.newPublisher(cfg)
		sinks = append(sinks, pub)
		if closePub != nil {
			app.closers = append(app.closers, closePub)
		}
	}
	if cfg.WipBox.CSVExportDir != "" {
		sinks = append(sinks, csvio.NewSnapshotSink(cfg.WipBox.CSVExportDir))
	}
	var inv *snapshots.CacheInvalidator
	if f.newCache != nil {
		if c := f.newCache(cfg); c != nil {
			inv = snapshots.NewCacheInvalidator(c)
			sinks = append(sinks, inv)
		}
	}
	if f.newRateLimiter != nil {
		app.limiter = f.newRateLimiter(cfg)
	}

	fullRefresh := true
	if cfg.WipBox.FullRefresh != nil {
		fullRefresh = *cfg.WipBox.FullRefresh
	}
	app.runner = builder.NewRunner(store, aggs, sinks...).
		WithSettings(fullRefresh, cfg.WipBox.ExtractDays, time.Duration(cfg.WipBox.RetentionDays)*24*time.Hour).
		WithSchedule(builder.ScheduleConfig{
			Interval: time.Duration(cfg.WipBox.BuilderIntervalSeconds) * time.Second,
			Backoff1: time.Duration(cfg.WipBox.BuilderBackoff1Seconds) * time.Second,
			Backoff2: time.Duration(cfg.WipBox.BuilderBackoff2Seconds) * time.Second,
			Backoff3: time.Duration(cfg.WipBox.BuilderBackoff3Seconds) * time.Second,
			Backoff4: time.Duration(cfg.WipBox.BuilderBackoff4Seconds) * time.Second,
		})
	if inv != nil {
		app.runner.WithEvictor(inv)
	}
	return app, nil
}

func (a *builderApp) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newAggregators(cfg config.WipBoxConfig) ([]*builder.Aggregator, error) {
	opts, err := expanderOptions(cfg)
	if err != nil {
		return nil, err
	}
	kinds, err := unitKinds(cfg.UnitKinds)
	if err != nil {
		return nil, err
	}

	aggs := make([]*builder.Aggregator, 0, len(kinds))
	for _, kind := range kinds {
		uc, err := history.ContextFor(kind)
		if err != nil {
			return nil, err
		}
		x, err := history.NewExpander(uc, opts)
		if err != nil {
			return nil, err
		}
		agg, err := builder.NewAggregator(x, builder.AggregatorOptions{
			SnapshotHours: cfg.SnapshotHours,
			Concurrency:   cfg.BuilderConcurrency,
			Partitions:    cfg.BuilderPartitions,
			FlushSize:     cfg.BuilderFlushSize,
		})
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, agg)
	}
	return aggs, nil
}

func expanderOptions(cfg config.WipBoxConfig) (history.Options, error) {
	opts := history.DefaultOptions()
	if cfg.DaysBack > 0 {
		opts.DaysBack = cfg.DaysBack
	}
	if len(cfg.SnapshotHours) == 1 {
		opts.FixedHour = cfg.SnapshotHours[0]
	}
	if cfg.NoEventSentinelDays > 0 {
		opts.Sentinels.NoEventOffset = time.Duration(cfg.NoEventSentinelDays) * 24 * time.Hour
	}
	if cfg.PriorFlagSentinelDays > 0 {
		opts.Sentinels.PriorFlagOffset = -time.Duration(cfg.PriorFlagSentinelDays) * 24 * time.Hour
	}
	switch p := history.ShipmentDayPolicy(cfg.ShipmentDayPolicy); p {
	case "":
	case history.ShipmentDayExtendBeforeToday, history.ShipmentDayNever, history.ShipmentDayAlwaysAfterHour:
		opts.ShipmentDayPolicy = p
	default:
		return opts, errors.Errorf("unknown shipment_day_policy %q", cfg.ShipmentDayPolicy)
	}
	return opts, nil
}

func unitKinds(raw []string) ([]models.UnitKind, error) {
	if len(raw) == 0 {
		return []models.UnitKind{models.UnitKindServer, models.UnitKindRack}, nil
	}
	out := make([]models.UnitKind, 0, len(raw))
	seen := make(map[models.UnitKind]bool, len(raw))
	for _, r := range raw {
		var k models.UnitKind
		switch strings.ToLower(strings.TrimSpace(r)) {
		case "server":
			k = models.UnitKindServer
		case "rack":
			k = models.UnitKindRack
		default:
			return nil, errors.Errorf("unknown unit kind %q", r)
		}
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out, nil
}

// importCheckpoints загружает выгрузку сканов из CSV в таблицу событий.
// Строки проходят те же правила приёма, что и сообщения из Kafka.
func (a *builderApp) importCheckpoints(ctx context.Context, filename string) (int64, error) {
	records, err := csvio.LoadCheckpointRecords(filename)
	if err != nil {
		return 0, err
	}
	events := make([]*models.CheckpointEvent, 0, len(records))
	for i, rec := range records {
		e, ok, err := snapshots.CheckpointFromMessage(rec)
		if err != nil {
			return 0, errors.Wrapf(err, "checkpoints CSV row %d", i+2)
		}
		if ok {
			events = append(events, e)
		}
	}
	slog.Info("checkpoints CSV loaded", "file", filename, "rows", len(records), "dropped", len(records)-len(events))
	if len(events) == 0 {
		return 0, nil
	}
	return a.store.InsertCheckpointEvents(ctx, events)
}
