package history

import (
	"github.com/BearBump/WipBox/internal/models"
	"github.com/pkg/errors"
)

var (
	ErrUnknownUnitKind       = errors.New("unknown unit kind")
	ErrNoCriticalCheckpoints = errors.New("unit context has no critical checkpoints")
)

type Area struct {
	Name          string
	CheckpointIDs []int
}

// UnitContext drives classification of one unit kind. Areas are matched in order.
type UnitContext struct {
	Kind                  models.UnitKind
	ShipmentCheckpointIDs map[int]struct{}
	CriticalCheckpointIDs map[int]struct{}
	VoidCheckpointIDs     map[int]struct{}
	ReworkCheckpointIDs   map[int]struct{}
	Areas                 []Area
}

func DefaultAreas() []Area {
	return []Area{
		{Name: "Server Build", CheckpointIDs: []int{100, 101}},
		{Name: "Rack Build", CheckpointIDs: []int{200, 235, 254, 208, 252}},
		{Name: "System Test", CheckpointIDs: []int{150, 170}},
		{Name: "End of Line", CheckpointIDs: []int{216, 218, 260, 202, 243, 2470, 228, 270, 237, 230, 300, 301, 1510, 234, 302}},
	}
}

func ServerContext() UnitContext {
	return UnitContext{
		Kind:                  models.UnitKindServer,
		ShipmentCheckpointIDs: idSet(300, 301, 302),
		CriticalCheckpointIDs: idSet(100, 101, 200, 235, 254, 208, 252, 150, 170, 216, 218, 260, 243, 2470, 228, 270, 230,
			300, 301, 1510, 234, 302),
		VoidCheckpointIDs:   idSet(700),
		ReworkCheckpointIDs: idSet(801),
		Areas:               DefaultAreas(),
	}
}

func RackContext() UnitContext {
	return UnitContext{
		Kind:                  models.UnitKindRack,
		ShipmentCheckpointIDs: idSet(300, 301),
		CriticalCheckpointIDs: idSet(200, 235, 254, 208, 252, 150, 170, 216, 218, 260, 243, 2470, 228, 270, 230, 300, 301),
		VoidCheckpointIDs:     idSet(700),
		ReworkCheckpointIDs:   idSet(801),
		Areas:                 DefaultAreas(),
	}
}

// ContextFor returns the default context of a unit kind.
func ContextFor(kind models.UnitKind) (UnitContext, error) {
	switch kind {
	case models.UnitKindServer:
		return ServerContext(), nil
	case models.UnitKindRack:
		return RackContext(), nil
	default:
		return UnitContext{}, errors.Wrapf(ErrUnknownUnitKind, "%q", kind)
	}
}

func (c UnitContext) Validate() error {
	if c.Kind != models.UnitKindServer && c.Kind != models.UnitKindRack {
		return errors.Wrapf(ErrUnknownUnitKind, "%q", c.Kind)
	}
	if len(c.CriticalCheckpointIDs) == 0 {
		return ErrNoCriticalCheckpoints
	}
	return nil
}

func (c UnitContext) IsCritical(id int) bool { return has(c.CriticalCheckpointIDs, id) }
func (c UnitContext) IsShipment(id int) bool { return has(c.ShipmentCheckpointIDs, id) }

// AreaOf returns the first area containing the checkpoint, or "" when none does.
func (c UnitContext) AreaOf(id int) string {
	for _, a := range c.Areas {
		for _, cp := range a.CheckpointIDs {
			if cp == id {
				return a.Name
			}
		}
	}
	return ""
}

func idSet(ids ...int) map[int]struct{} {
	m := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func has(m map[int]struct{}, id int) bool {
	_, ok := m[id]
	return ok
}
