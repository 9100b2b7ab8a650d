package snapshots

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/WipBox/internal/broker/messages"
	cachemocks "github.com/BearBump/WipBox/internal/cache/mocks"
	"github.com/BearBump/WipBox/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	snapshotsmocks "github.com/BearBump/WipBox/internal/services/snapshots/mocks"
)

type ServiceSuite struct {
	suite.Suite

	repo  *snapshotsmocks.MockRepository
	cache *cachemocks.MockBytesCache
	svc   *Service
}

func (s *ServiceSuite) SetupTest() {
	s.repo = &snapshotsmocks.MockRepository{}
	s.cache = &cachemocks.MockBytesCache{}
	s.svc = New(s.repo, s.cache, 10*time.Minute)
}

var scanTime = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

func (s *ServiceSuite) TestIngestCheckpoint_Stores() {
	s.repo.On("InsertCheckpointEvents", mock.Anything, mock.MatchedBy(func(evs []*models.CheckpointEvent) bool {
		return len(evs) == 1 && evs[0].SerialNumber == "SN1" && evs[0].CheckpointID == 150 &&
			evs[0].Kind == models.UnitKindServer && evs[0].AuxiliaryField == "RK1"
	})).Return(int64(1), nil).Once()

	ok, err := s.svc.IngestCheckpoint(context.Background(), messages.CheckpointRecorded{
		TransactionSourceID: 10,
		SerialNumber:        " SN1 ",
		CheckpointID:        150,
		TransactionTime:     scanTime,
		Success:             true,
		AuxiliaryField:      "RK1 ",
		UnitKind:            "server",
	})
	s.Require().NoError(err)
	s.Require().True(ok)
	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestIngestCheckpoint_DropsFailedScan() {
	ok, err := s.svc.IngestCheckpoint(context.Background(), messages.CheckpointRecorded{
		SerialNumber:    "SN1",
		CheckpointID:    150,
		TransactionTime: scanTime,
		Success:         false,
		Message:         "Timeout",
	})
	s.Require().NoError(err)
	s.Require().False(ok)
	s.repo.AssertNotCalled(s.T(), "InsertCheckpointEvents", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestIngestCheckpoint_ValidationErrors() {
	ctx := context.Background()
	for _, m := range []messages.CheckpointRecorded{
		{CheckpointID: 1, TransactionTime: scanTime, Success: true},
		{SerialNumber: "SN", TransactionTime: scanTime, Success: true},
		{SerialNumber: "SN", CheckpointID: 1, Success: true},
		{SerialNumber: "SN", CheckpointID: 1, TransactionTime: scanTime, Success: true, UnitKind: "Blade"},
	} {
		_, err := s.svc.IngestCheckpoint(ctx, m)
		s.Require().ErrorIs(err, ErrInvalidInput)
	}
	s.repo.AssertNotCalled(s.T(), "InsertCheckpointEvents", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestIngestCheckpoint_RepoError() {
	s.repo.On("InsertCheckpointEvents", mock.Anything, mock.Anything).Return(int64(0), errors.New("db down")).Once()
	ok, err := s.svc.IngestCheckpoint(context.Background(), messages.CheckpointRecorded{
		SerialNumber: "SN1", CheckpointID: 100, TransactionTime: scanTime, Success: true,
	})
	s.Require().Error(err)
	s.Require().False(ok)
}

func (s *ServiceSuite) TestIngestStatus() {
	s.repo.On("InsertStatusEvents", mock.Anything, []*models.HistoricalStatusEvent{
		{SerialNumber: "SN1", Status: "HOLD", ExtractedAt: scanTime},
	}).Return(int64(1), nil).Once()

	s.Require().NoError(s.svc.IngestStatus(context.Background(), messages.StatusExtracted{
		SerialNumber: "SN1", Status: "HOLD", ExtractedAt: scanTime,
	}))
	s.Require().ErrorIs(s.svc.IngestStatus(context.Background(), messages.StatusExtracted{Status: "HOLD", ExtractedAt: scanTime}), ErrInvalidInput)
	s.Require().ErrorIs(s.svc.IngestStatus(context.Background(), messages.StatusExtracted{SerialNumber: "SN1", ExtractedAt: scanTime}), ErrInvalidInput)
	s.Require().ErrorIs(s.svc.IngestStatus(context.Background(), messages.StatusExtracted{SerialNumber: "SN1", Status: "HOLD"}), ErrInvalidInput)
	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestListUnitSnapshots_CacheHit_NoDB() {
	b, _ := json.Marshal([]*models.WipSnapshot{{SerialNumber: "SN1", CheckpointID: 150}})
	s.cache.On("Get", mock.Anything, "unit:SN1:snapshots").Return(b, true, nil).Once()

	out, err := s.svc.ListUnitSnapshots(context.Background(), "SN1", 0, 0)
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Require().Equal(150, out[0].CheckpointID)

	s.repo.AssertNotCalled(s.T(), "ListUnitSnapshots", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestListUnitSnapshots_CacheMiss_FillsCache() {
	s.cache.On("Get", mock.Anything, "unit:SN1:snapshots").Return(nil, false, nil).Once()
	s.repo.On("ListUnitSnapshots", mock.Anything, "SN1", 100, 0).
		Return([]*models.WipSnapshot{{SerialNumber: "SN1"}}, nil).Once()
	s.cache.On("Set", mock.Anything, "unit:SN1:snapshots", mock.Anything, 10*time.Minute).Return(nil).Once()

	out, err := s.svc.ListUnitSnapshots(context.Background(), "SN1", 100, 0)
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestListUnitSnapshots_OtherPagesBypassCache() {
	s.repo.On("ListUnitSnapshots", mock.Anything, "SN1", 20, 40).
		Return([]*models.WipSnapshot{}, nil).Once()

	_, err := s.svc.ListUnitSnapshots(context.Background(), "SN1", 20, 40)
	s.Require().NoError(err)
	s.cache.AssertNotCalled(s.T(), "Get", mock.Anything, mock.Anything)

	_, err = s.svc.ListUnitSnapshots(context.Background(), "", 0, 0)
	s.Require().ErrorIs(err, ErrInvalidInput)
}

func (s *ServiceSuite) TestSummarizeByArea_CacheDisabled_GoesToDB() {
	svc := New(s.repo, nil, 0)
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	s.repo.On("SummarizeByArea", mock.Anything, day, models.UnitKindRack).
		Return([]models.AreaCount{{Area: "Rack Build", Kind: models.UnitKindRack, Units: 3}}, nil).Once()

	out, err := svc.SummarizeByArea(context.Background(), day, models.UnitKindRack)
	s.Require().NoError(err)
	s.Require().Equal(int64(3), out[0].Units)
	s.repo.AssertExpectations(s.T())

	_, err = svc.SummarizeByArea(context.Background(), time.Time{}, "")
	s.Require().ErrorIs(err, ErrInvalidInput)
	_, err = svc.SummarizeByArea(context.Background(), day, "Blade")
	s.Require().ErrorIs(err, ErrInvalidInput)
}

func (s *ServiceSuite) TestSummarizeByArea_CachedUnderDayAndKind() {
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	s.cache.On("Get", mock.Anything, "summary:2024-03-05:").Return(nil, false, errors.New("redis down")).Once()
	s.repo.On("SummarizeByArea", mock.Anything, day, models.UnitKind("")).Return([]models.AreaCount{}, nil).Once()
	s.cache.On("Set", mock.Anything, "summary:2024-03-05:", []byte("[]"), 10*time.Minute).Return(nil).Once()

	_, err := s.svc.SummarizeByArea(context.Background(), day, "")
	s.Require().NoError(err)
	s.cache.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestListUnitCheckpoints() {
	s.repo.On("ListUnitCheckpoints", mock.Anything, "SN1", 10, 0).
		Return([]*models.CheckpointEvent{{SerialNumber: "SN1"}}, nil).Once()

	out, err := s.svc.ListUnitCheckpoints(context.Background(), "SN1", 10, 0)
	s.Require().NoError(err)
	s.Require().Len(out, 1)

	_, err = s.svc.ListUnitCheckpoints(context.Background(), "", 10, 0)
	s.Require().ErrorIs(err, ErrInvalidInput)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
