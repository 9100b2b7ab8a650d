package snapshots

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/BearBump/WipBox/internal/broker/messages"
	"github.com/BearBump/WipBox/internal/cache"
	"github.com/BearBump/WipBox/internal/models"
	"github.com/pkg/errors"
)

// DefaultPageSize совпадает с размером страницы по умолчанию в pgwip.
const DefaultPageSize = 100

const testStartMessage = "Test Start"

// Старты hi-pot теста приходят как неуспешные сканы, сохраняем их под отдельными id.
var hipotStartIDs = map[int]int{
	247: 2470,
	151: 1510,
}

var rackStockCode = regexp.MustCompile(`^RE-\d{3,5}-?\d{0,3}`)

// ErrInvalidInput is returned for messages and requests that can never succeed.
var ErrInvalidInput = errors.New("invalid input")

type Repository interface {
	InsertCheckpointEvents(ctx context.Context, events []*models.CheckpointEvent) (int64, error)
	InsertStatusEvents(ctx context.Context, events []*models.HistoricalStatusEvent) (int64, error)
	ListUnitCheckpoints(ctx context.Context, serial string, limit, offset int) ([]*models.CheckpointEvent, error)
	ListUnitSnapshots(ctx context.Context, serial string, limit, offset int) ([]*models.WipSnapshot, error)
	SummarizeByArea(ctx context.Context, day time.Time, kind models.UnitKind) ([]models.AreaCount, error)
}

type Service struct {
	repo     Repository
	cache    cache.BytesCache
	cacheTTL time.Duration
}

func New(repo Repository, c cache.BytesCache, cacheTTL time.Duration) *Service {
	return &Service{repo: repo, cache: c, cacheTTL: cacheTTL}
}

// IngestCheckpoint stores one scan. It reports false when the scan was
// dropped as a plain failed scan.
func (s *Service) IngestCheckpoint(ctx context.Context, msg messages.CheckpointRecorded) (bool, error) {
	e, ok, err := CheckpointFromMessage(msg)
	if err != nil || !ok {
		return false, err
	}
	if _, err := s.repo.InsertCheckpointEvents(ctx, []*models.CheckpointEvent{e}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) IngestStatus(ctx context.Context, msg messages.StatusExtracted) error {
	sn := strings.TrimSpace(msg.SerialNumber)
	if sn == "" {
		return errors.Wrap(ErrInvalidInput, "serial_number is required")
	}
	if msg.Status == "" {
		return errors.Wrap(ErrInvalidInput, "status is required")
	}
	if msg.ExtractedAt.IsZero() {
		return errors.Wrap(ErrInvalidInput, "extracted_at is required")
	}
	_, err := s.repo.InsertStatusEvents(ctx, []*models.HistoricalStatusEvent{{
		SerialNumber: sn,
		Status:       msg.Status,
		ExtractedAt:  msg.ExtractedAt.UTC(),
	}})
	return err
}

// CheckpointFromMessage validates a scan message and maps it to an event.
// ok is false for failed scans that are not hi-pot test starts.
func CheckpointFromMessage(msg messages.CheckpointRecorded) (*models.CheckpointEvent, bool, error) {
	sn := strings.TrimSpace(msg.SerialNumber)
	if sn == "" {
		return nil, false, errors.Wrap(ErrInvalidInput, "serial_number is required")
	}
	if msg.CheckpointID == 0 {
		return nil, false, errors.Wrap(ErrInvalidInput, "checkpoint_id is required")
	}
	if msg.TransactionTime.IsZero() {
		return nil, false, errors.Wrap(ErrInvalidInput, "transaction_time is required")
	}

	cpID := msg.CheckpointID
	if !msg.Success {
		recoded, isHipot := hipotStartIDs[cpID]
		if !isHipot || msg.Message != testStartMessage {
			return nil, false, nil
		}
		cpID = recoded
	}

	kind, err := unitKind(msg.UnitKind, msg.StockCode)
	if err != nil {
		return nil, false, err
	}

	return &models.CheckpointEvent{
		TransactionSourceID:  msg.TransactionSourceID,
		SerialNumber:         sn,
		CheckpointID:         cpID,
		CheckpointName:       msg.CheckpointName,
		TransactionTimestamp: msg.TransactionTime.UTC(),
		StockCode:            msg.StockCode,
		SKU:                  msg.SKU,
		Success:              true,
		AuxiliaryField:       strings.TrimSpace(msg.AuxiliaryField),
		OrderType:            msg.OrderType,
		FactoryStatus:        msg.FactoryStatus,
		Site:                 msg.Site,
		Building:             msg.Building,
		Kind:                 kind,
	}, true, nil
}

// unitKind берёт тип из сообщения, а если его нет, то по stock code.
func unitKind(raw, stockCode string) (models.UnitKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "server":
		return models.UnitKindServer, nil
	case "rack":
		return models.UnitKindRack, nil
	case "":
		if rackStockCode.MatchString(stockCode) {
			return models.UnitKindRack, nil
		}
		return models.UnitKindServer, nil
	}
	return "", errors.Wrapf(ErrInvalidInput, "unknown unit_kind %q", raw)
}

func (s *Service) ListUnitCheckpoints(ctx context.Context, serial string, limit, offset int) ([]*models.CheckpointEvent, error) {
	if serial == "" {
		return nil, errors.Wrap(ErrInvalidInput, "serial number is required")
	}
	return s.repo.ListUnitCheckpoints(ctx, serial, limit, offset)
}

// ListUnitSnapshots кэширует только первую страницу по умолчанию, её и
// сбрасывает билдер после пересчёта юнита.
func (s *Service) ListUnitSnapshots(ctx context.Context, serial string, limit, offset int) ([]*models.WipSnapshot, error) {
	if serial == "" {
		return nil, errors.Wrap(ErrInvalidInput, "serial number is required")
	}
	if !s.cacheEnabled() || !isFirstPage(limit, offset) {
		return s.repo.ListUnitSnapshots(ctx, serial, limit, offset)
	}

	key := UnitSnapshotsKey(serial)
	var out []*models.WipSnapshot
	if s.getCached(ctx, key, &out) {
		return out, nil
	}
	out, err := s.repo.ListUnitSnapshots(ctx, serial, limit, offset)
	if err != nil {
		return nil, err
	}
	s.setCached(ctx, key, out)
	return out, nil
}

func (s *Service) SummarizeByArea(ctx context.Context, day time.Time, kind models.UnitKind) ([]models.AreaCount, error) {
	if day.IsZero() {
		return nil, errors.Wrap(ErrInvalidInput, "date is required")
	}
	if kind != "" && kind != models.UnitKindServer && kind != models.UnitKindRack {
		return nil, errors.Wrapf(ErrInvalidInput, "unknown kind %q", kind)
	}
	if !s.cacheEnabled() {
		return s.repo.SummarizeByArea(ctx, day, kind)
	}

	key := SummaryKey(day, kind)
	var out []models.AreaCount
	if s.getCached(ctx, key, &out) {
		return out, nil
	}
	out, err := s.repo.SummarizeByArea(ctx, day, kind)
	if err != nil {
		return nil, err
	}
	s.setCached(ctx, key, out)
	return out, nil
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.cacheTTL > 0
}

// Кэш "лучшее усилие": ошибки redis не роняют запрос.
func (s *Service) getCached(ctx context.Context, key string, dst any) bool {
	b, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

func (s *Service) setCached(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, key, b, s.cacheTTL)
}

func isFirstPage(limit, offset int) bool {
	return offset <= 0 && (limit <= 0 || limit == DefaultPageSize || limit > 500)
}

func UnitSnapshotsKey(serial string) string {
	return fmt.Sprintf("unit:%s:snapshots", serial)
}

func SummaryKey(day time.Time, kind models.UnitKind) string {
	return fmt.Sprintf("summary:%s:%s", day.UTC().Format(time.DateOnly), strings.ToLower(string(kind)))
}
