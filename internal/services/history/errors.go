package history

import (
	"fmt"

	"github.com/BearBump/WipBox/internal/models"
)

// MalformedInputError reports a unit whose events miss a required field.
// It is fatal for that unit only.
type MalformedInputError struct {
	SerialNumber string
	Field        string
	Index        int
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed checkpoint event #%d of unit %q: missing %s", e.Index, e.SerialNumber, e.Field)
}

// ValidateEvents checks the fields the reconstruction relies on.
func ValidateEvents(events []*models.CheckpointEvent) error {
	for i, e := range events {
		if e == nil {
			return &MalformedInputError{Index: i, Field: "event"}
		}
		if e.SerialNumber == "" {
			return &MalformedInputError{Index: i, Field: "serial number"}
		}
		if e.TransactionTimestamp.IsZero() {
			return &MalformedInputError{SerialNumber: e.SerialNumber, Index: i, Field: "transaction timestamp"}
		}
		if e.CheckpointID == 0 {
			return &MalformedInputError{SerialNumber: e.SerialNumber, Index: i, Field: "checkpoint id"}
		}
	}
	return nil
}
