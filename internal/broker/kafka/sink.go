package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/WipBox/internal/broker/messages"
	"github.com/BearBump/WipBox/internal/models"
	"github.com/pkg/errors"
)

type batchPublisher interface {
	PublishBatch(ctx context.Context, topic string, msgs []Message) error
}

// SnapshotSink publishes one WipSnapshotsBuilt message per unit of a batch.
type SnapshotSink struct {
	p     batchPublisher
	topic string

	retries int
	backoff time.Duration
}

func NewSnapshotSink(p batchPublisher, topic string) *SnapshotSink {
	return &SnapshotSink{p: p, topic: topic, retries: 10, backoff: 150 * time.Millisecond}
}

func (s *SnapshotSink) WriteSnapshots(ctx context.Context, kind models.UnitKind, snaps []models.WipSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	var order []string
	byUnit := make(map[string]*messages.WipSnapshotsBuilt)
	for _, w := range snaps {
		m, ok := byUnit[w.SerialNumber]
		if !ok {
			m = &messages.WipSnapshotsBuilt{
				RunID:        w.RunID,
				SerialNumber: w.SerialNumber,
				UnitKind:     string(kind),
				ETLTime:      w.ETLTime,
			}
			byUnit[w.SerialNumber] = m
			order = append(order, w.SerialNumber)
		}
		m.Snapshots = append(m.Snapshots, messages.WipSnapshot{
			SnapshotDate:           w.SnapshotDate,
			CheckpointID:           w.CheckpointID,
			CheckpointName:         w.CheckpointName,
			TransactionTime:        w.TransactionTimestamp,
			Area:                   w.Area,
			FactoryStatus:          w.FactoryStatus,
			DwellTimeCalendarHours: w.DwellTimeCalendarHours,
			DwellTimeWorkingHours:  w.DwellTimeWorkingHours,
			PackedIsLast:           w.PackedIsLastFlag,
			PackedPreviously:       w.PackedPreviouslyFlag,
			VoidPreviously:         w.VoidPreviouslyFlag,
			ReworkPreviously:       w.ReworkPreviouslyFlag,
		})
	}

	out := make([]Message, 0, len(order))
	for _, sn := range order {
		b, err := json.Marshal(byUnit[sn])
		if err != nil {
			return errors.Wrap(err, "marshal kafka msg")
		}
		out = append(out, Message{Key: []byte(sn), Value: b})
	}

	// Kafka может быть не готова сразу после старта docker compose.
	var pubErr error
	for i := 0; i < s.retries; i++ {
		if pubErr = s.p.PublishBatch(ctx, s.topic, out); pubErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * s.backoff):
		}
	}
	return pubErr
}
