package inventory

import "time"

// StockChangedEvent is emitted after a committed movement changed a warehouse.
type StockChangedEvent struct {
	WarehouseID int64
	MaterialIDs []int64
	At          time.Time
}
