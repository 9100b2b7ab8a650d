package wipapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BearBump/WipBox/internal/models"
	"github.com/BearBump/WipBox/internal/services/snapshots"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type Service interface {
	ListUnitSnapshots(ctx context.Context, serial string, limit, offset int) ([]*models.WipSnapshot, error)
	ListUnitCheckpoints(ctx context.Context, serial string, limit, offset int) ([]*models.CheckpointEvent, error)
	SummarizeByArea(ctx context.Context, day time.Time, kind models.UnitKind) ([]models.AreaCount, error)
}

type WipAPI struct {
	svc Service
}

func New(svc Service) *WipAPI {
	return &WipAPI{svc: svc}
}

func (a *WipAPI) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/units/{serial}/snapshots", a.listUnitSnapshots)
		r.Get("/units/{serial}/checkpoints", a.listUnitCheckpoints)
		r.Get("/wip/summary", a.summary)
	})
}

type Snapshot struct {
	SerialNumber           string    `json:"serialNumber"`
	UnitKind               string    `json:"unitKind"`
	SnapshotDate           time.Time `json:"snapshotDate"`
	CheckpointID           int       `json:"checkpointId"`
	CheckpointName         string    `json:"checkpointName,omitempty"`
	TransactionTime        time.Time `json:"transactionTime"`
	TransactionSourceID    int64     `json:"transactionSourceId"`
	StockCode              string    `json:"stockCode,omitempty"`
	SKU                    string    `json:"sku,omitempty"`
	AuxiliaryField         string    `json:"auxiliaryField,omitempty"`
	OrderType              string    `json:"orderType,omitempty"`
	FactoryStatus          string    `json:"factoryStatus,omitempty"`
	Site                   string    `json:"site,omitempty"`
	Building               string    `json:"building,omitempty"`
	Area                   string    `json:"area,omitempty"`
	DwellTimeCalendarHours float64   `json:"dwellTimeCalendarHours"`
	DwellTimeWorkingHours  float64   `json:"dwellTimeWorkingHours"`
	PackedIsLast           bool      `json:"packedIsLast"`
	PackedPreviously       bool      `json:"packedPreviously"`
	VoidPreviously         bool      `json:"voidPreviously"`
	ReworkPreviously       bool      `json:"reworkPreviously"`
	RunID                  string    `json:"runId,omitempty"`
	ETLTime                time.Time `json:"etlTime"`
}

type Checkpoint struct {
	TransactionSourceID int64     `json:"transactionSourceId"`
	SerialNumber        string    `json:"serialNumber"`
	UnitKind            string    `json:"unitKind"`
	CheckpointID        int       `json:"checkpointId"`
	CheckpointName      string    `json:"checkpointName,omitempty"`
	TransactionTime     time.Time `json:"transactionTime"`
	Success             bool      `json:"success"`
	StockCode           string    `json:"stockCode,omitempty"`
	SKU                 string    `json:"sku,omitempty"`
	AuxiliaryField      string    `json:"auxiliaryField,omitempty"`
	OrderType           string    `json:"orderType,omitempty"`
	FactoryStatus       string    `json:"factoryStatus,omitempty"`
	Site                string    `json:"site,omitempty"`
	Building            string    `json:"building,omitempty"`
}

type AreaCount struct {
	Area     string `json:"area"`
	UnitKind string `json:"unitKind"`
	Units    int64  `json:"units"`
}

func (a *WipAPI) listUnitSnapshots(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	snaps, err := a.svc.ListUnitSnapshots(r.Context(), chi.URLParam(r, "serial"), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]Snapshot, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, toSnapshot(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": out})
}

func (a *WipAPI) listUnitCheckpoints(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	evs, err := a.svc.ListUnitCheckpoints(r.Context(), chi.URLParam(r, "serial"), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]Checkpoint, 0, len(evs))
	for _, e := range evs {
		out = append(out, Checkpoint{
			TransactionSourceID: e.TransactionSourceID,
			SerialNumber:        e.SerialNumber,
			UnitKind:            string(e.Kind),
			CheckpointID:        e.CheckpointID,
			CheckpointName:      e.CheckpointName,
			TransactionTime:     e.TransactionTimestamp,
			Success:             e.Success,
			StockCode:           e.StockCode,
			SKU:                 e.SKU,
			AuxiliaryField:      e.AuxiliaryField,
			OrderType:           derefString(e.OrderType),
			FactoryStatus:       derefString(e.FactoryStatus),
			Site:                e.Site,
			Building:            e.Building,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"checkpoints": out})
}

func (a *WipAPI) summary(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, http.StatusBadRequest, errors.New("date is required"))
		return
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.Errorf("bad date %q, want YYYY-MM-DD", raw))
		return
	}
	counts, err := a.svc.SummarizeByArea(r.Context(), day, models.UnitKind(r.URL.Query().Get("kind")))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]AreaCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, AreaCount{Area: c.Area, UnitKind: string(c.Kind), Units: c.Units})
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": raw, "areas": out})
}

func toSnapshot(s *models.WipSnapshot) Snapshot {
	return Snapshot{
		SerialNumber:           s.SerialNumber,
		UnitKind:               string(s.Kind),
		SnapshotDate:           s.SnapshotDate,
		CheckpointID:           s.CheckpointID,
		CheckpointName:         s.CheckpointName,
		TransactionTime:        s.TransactionTimestamp,
		TransactionSourceID:    s.TransactionSourceID,
		StockCode:              s.StockCode,
		SKU:                    s.SKU,
		AuxiliaryField:         s.AuxiliaryField,
		OrderType:              derefString(s.OrderType),
		FactoryStatus:          derefString(s.FactoryStatus),
		Site:                   s.Site,
		Building:               s.Building,
		Area:                   s.Area,
		DwellTimeCalendarHours: s.DwellTimeCalendarHours,
		DwellTimeWorkingHours:  s.DwellTimeWorkingHours,
		PackedIsLast:           s.PackedIsLastFlag,
		PackedPreviously:       s.PackedPreviouslyFlag,
		VoidPreviously:         s.VoidPreviouslyFlag,
		ReworkPreviously:       s.ReworkPreviouslyFlag,
		RunID:                  s.RunID,
		ETLTime:                s.ETLTime,
	}
}

func pageParams(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	limit, offset := 0, 0
	var err error
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, errors.Errorf("bad limit %q", v)
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return 0, 0, errors.Errorf("bad offset %q", v)
		}
	}
	return limit, offset, nil
}

func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, snapshots.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	slog.Error("wip api request failed", "error", err.Error())
	writeError(w, http.StatusInternalServerError, errors.New("internal error"))
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
