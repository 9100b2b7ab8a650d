package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/WipBox/internal/broker/messages"
	"github.com/BearBump/WipBox/internal/models"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	topic string
	msgs  []Message
	fails int
	calls int
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, topic string, msgs []Message) error {
	p.calls++
	if p.calls <= p.fails {
		return errors.New("leader not available")
	}
	p.topic = topic
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func TestSnapshotSink_OneMessagePerUnit(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewSnapshotSink(pub, "wip.snapshots")

	d := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	err := sink.WriteSnapshots(context.Background(), models.UnitKindServer, []models.WipSnapshot{
		{SerialNumber: "SN1", CheckpointID: 100, SnapshotDate: d, RunID: "r1", Area: "Server Build"},
		{SerialNumber: "SN2", CheckpointID: 150, SnapshotDate: d, RunID: "r1"},
		{SerialNumber: "SN1", CheckpointID: 100, SnapshotDate: d.AddDate(0, 0, 1), RunID: "r1"},
	})
	require.NoError(t, err)
	require.Equal(t, "wip.snapshots", pub.topic)
	require.Len(t, pub.msgs, 2)
	require.Equal(t, []byte("SN1"), pub.msgs[0].Key)

	var m messages.WipSnapshotsBuilt
	require.NoError(t, json.Unmarshal(pub.msgs[0].Value, &m))
	require.Equal(t, "r1", m.RunID)
	require.Equal(t, "Server", m.UnitKind)
	require.Len(t, m.Snapshots, 2)
	require.Equal(t, "Server Build", m.Snapshots[0].Area)
}

func TestSnapshotSink_RetriesThenFails(t *testing.T) {
	pub := &recordingPublisher{fails: 2}
	sink := NewSnapshotSink(pub, "t")
	sink.backoff = time.Millisecond

	require.NoError(t, sink.WriteSnapshots(context.Background(), models.UnitKindRack, []models.WipSnapshot{{SerialNumber: "RK1"}}))
	require.Equal(t, 3, pub.calls)

	pub = &recordingPublisher{fails: 100}
	sink = NewSnapshotSink(pub, "t")
	sink.backoff = time.Millisecond
	sink.retries = 3
	err := sink.WriteSnapshots(context.Background(), models.UnitKindRack, []models.WipSnapshot{{SerialNumber: "RK1"}})
	require.Error(t, err)
	require.Equal(t, 3, pub.calls)
}
