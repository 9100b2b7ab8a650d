package wipapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BearBump/WipBox/internal/models"
	"github.com/BearBump/WipBox/internal/services/snapshots"
	"github.com/go-chi/chi/v5"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	gotSerial string
	gotLimit  int
	gotOffset int
	gotDay    time.Time
	gotKind   models.UnitKind
	err       error
}

func (f *fakeService) ListUnitSnapshots(_ context.Context, serial string, limit, offset int) ([]*models.WipSnapshot, error) {
	f.gotSerial, f.gotLimit, f.gotOffset = serial, limit, offset
	if f.err != nil {
		return nil, f.err
	}
	status := "HOLD"
	return []*models.WipSnapshot{{
		SerialNumber:           serial,
		Kind:                   models.UnitKindServer,
		CheckpointID:           150,
		SnapshotDate:           time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
		DwellTimeCalendarHours: 25,
		FactoryStatus:          &status,
		Area:                   "System Test",
	}}, nil
}

func (f *fakeService) ListUnitCheckpoints(_ context.Context, serial string, limit, offset int) ([]*models.CheckpointEvent, error) {
	f.gotSerial, f.gotLimit, f.gotOffset = serial, limit, offset
	if f.err != nil {
		return nil, f.err
	}
	return []*models.CheckpointEvent{{SerialNumber: serial, CheckpointID: 100, Success: true, Kind: models.UnitKindServer}}, nil
}

func (f *fakeService) SummarizeByArea(_ context.Context, day time.Time, kind models.UnitKind) ([]models.AreaCount, error) {
	f.gotDay, f.gotKind = day, kind
	if f.err != nil {
		return nil, f.err
	}
	return []models.AreaCount{{Area: "Rack Build", Kind: models.UnitKindRack, Units: 4}}, nil
}

func newServer(svc Service) *httptest.Server {
	r := chi.NewRouter()
	New(svc).Routes(r)
	return httptest.NewServer(r)
}

func getJSON(t *testing.T, url string, dst any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
	return resp.StatusCode
}

func TestListUnitSnapshots(t *testing.T) {
	svc := &fakeService{}
	srv := newServer(svc)
	defer srv.Close()

	var body struct {
		Snapshots []Snapshot `json:"snapshots"`
	}
	code := getJSON(t, srv.URL+"/v1/units/SN1/snapshots?limit=20&offset=40", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "SN1", svc.gotSerial)
	require.Equal(t, 20, svc.gotLimit)
	require.Equal(t, 40, svc.gotOffset)
	require.Len(t, body.Snapshots, 1)
	require.Equal(t, "HOLD", body.Snapshots[0].FactoryStatus)
	require.Equal(t, "System Test", body.Snapshots[0].Area)
	require.Equal(t, 25.0, body.Snapshots[0].DwellTimeCalendarHours)
}

func TestListUnitCheckpoints(t *testing.T) {
	svc := &fakeService{}
	srv := newServer(svc)
	defer srv.Close()

	var body struct {
		Checkpoints []Checkpoint `json:"checkpoints"`
	}
	code := getJSON(t, srv.URL+"/v1/units/SN7/checkpoints", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 0, svc.gotLimit)
	require.Len(t, body.Checkpoints, 1)
	require.Equal(t, "Server", body.Checkpoints[0].UnitKind)
}

func TestSummary(t *testing.T) {
	svc := &fakeService{}
	srv := newServer(svc)
	defer srv.Close()

	var body struct {
		Date  string      `json:"date"`
		Areas []AreaCount `json:"areas"`
	}
	code := getJSON(t, srv.URL+"/v1/wip/summary?date=2024-03-05&kind=Rack", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), svc.gotDay)
	require.Equal(t, models.UnitKindRack, svc.gotKind)
	require.Equal(t, []AreaCount{{Area: "Rack Build", UnitKind: "Rack", Units: 4}}, body.Areas)
}

func TestBadRequests(t *testing.T) {
	srv := newServer(&fakeService{})
	defer srv.Close()

	for _, path := range []string{
		"/v1/wip/summary",
		"/v1/wip/summary?date=05.03.2024",
		"/v1/units/SN1/snapshots?limit=ten",
		"/v1/units/SN1/checkpoints?offset=x",
	} {
		var body map[string]string
		code := getJSON(t, srv.URL+path, &body)
		require.Equal(t, http.StatusBadRequest, code, path)
		require.NotEmpty(t, body["error"], path)
	}
}

func TestServiceErrors(t *testing.T) {
	svc := &fakeService{err: pkgerrors.Wrap(snapshots.ErrInvalidInput, "unknown kind")}
	srv := newServer(svc)
	defer srv.Close()

	var body map[string]string
	require.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/v1/wip/summary?date=2024-03-05&kind=Blade", &body))

	svc.err = errors.New("db down")
	body = nil
	require.Equal(t, http.StatusInternalServerError, getJSON(t, srv.URL+"/v1/units/SN1/snapshots", &body))
	require.Equal(t, "internal error", body["error"])
}
