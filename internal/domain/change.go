package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceField names one of the three compared price columns.
type PriceField string

const (
	PriceFieldBase PriceField = "base"
	PriceFieldSale PriceField = "sale"
	PriceFieldCard PriceField = "card"
)

// PricePair is the (old, new) value of one changed price field. The wire
// shape is a two-element JSON array.
type PricePair struct {
	Old *decimal.Decimal
	New *decimal.Decimal
}

func (p PricePair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]*decimal.Decimal{p.Old, p.New})
}

func (p *PricePair) UnmarshalJSON(data []byte) error {
	var arr []*decimal.Decimal
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 2 {
		return fmt.Errorf("price pair: expected 2 elements, got %d", len(arr))
	}
	p.Old, p.New = arr[0], arr[1]
	return nil
}

// ChangeData is the payload of one pending-change ledger row: either a
// price-change record or an availability marker, never both.
type ChangeData struct {
	Price     map[PriceField]PricePair `json:"price,omitempty"`
	Available bool                     `json:"available,omitempty"`
}

// PendingChange is the durable ledger row; at most one exists per stock.
type PendingChange struct {
	StockID int64
	Data    ChangeData
}

// ChangeSet is what one reconciliation pass hands to the notification
// stager after its transaction commits.
type ChangeSet struct {
	ProductID int64
	// Changes holds the per-stock payloads to stage, keyed by stock id.
	Changes map[int64]ChangeData
	// AvailableStockIDs lists the stocks seen available in this pass;
	// used to clear stale "available" markers.
	AvailableStockIDs map[int64]struct{}
	// SeenStockIDs lists every persisted stock matched by the snapshot,
	// changed or not, so the stager can revisit their pending rows.
	SeenStockIDs []int64
}

// Empty reports whether the pass produced nothing to stage.
func (c *ChangeSet) Empty() bool {
	return c == nil || len(c.Changes) == 0
}
