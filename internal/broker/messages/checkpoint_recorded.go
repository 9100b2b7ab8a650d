package messages

import "time"

// CheckpointRecorded is one scan published by the shop-floor system.
type CheckpointRecorded struct {
	TransactionSourceID int64     `json:"transaction_source_id"`
	SerialNumber        string    `json:"serial_number"`
	CheckpointID        int       `json:"checkpoint_id"`
	CheckpointName      string    `json:"checkpoint_name,omitempty"`
	TransactionTime     time.Time `json:"transaction_time"`
	StockCode           string    `json:"stock_code,omitempty"`
	SKU                 string    `json:"sku,omitempty"`
	Success             bool      `json:"success"`
	Message             string    `json:"message,omitempty"`
	AuxiliaryField      string    `json:"auxiliary_field,omitempty"`
	OrderType           *string   `json:"order_type,omitempty"`
	FactoryStatus       *string   `json:"factory_status,omitempty"`
	Site                string    `json:"site,omitempty"`
	Building            string    `json:"building,omitempty"`
	UnitKind            string    `json:"unit_kind"`
}

// StatusExtracted is one SAP status history record.
type StatusExtracted struct {
	SerialNumber string    `json:"serial_number"`
	Status       string    `json:"status"`
	ExtractedAt  time.Time `json:"extracted_at"`
}
