package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem carries the running quantity and weighted-average unit cost of a product.
type InventoryItem struct {
	ID                  int64           `json:"id"`
	TenantID            string          `json:"tenant_id"`
	SKU                 string          `json:"sku"`
	Name                string          `json:"name"`
	Category            string          `json:"category"`
	QuantityOnHand      decimal.Decimal `json:"quantity_on_hand"`
	WeightedAverageCost decimal.Decimal `json:"weighted_average_cost"`
	SellingPrice        decimal.Decimal `json:"selling_price"`
	IsActive            bool            `json:"is_active"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementAdjustment MovementType = "ADJUSTMENT"
)

// Reason explains why stock moved and selects the account on the other side of Inventory.
type Reason string

const (
	ReasonPurchase        Reason = "PURCHASE"
	ReasonFound           Reason = "FOUND"
	ReasonOpeningStock    Reason = "OPENING_STOCK"
	ReasonCustomerReturn  Reason = "CUSTOMER_RETURN"
	ReasonTransferIn      Reason = "TRANSFER_IN"
	ReasonSale            Reason = "SALE"
	ReasonDamaged         Reason = "DAMAGED"
	ReasonTheft           Reason = "THEFT"
	ReasonExpired         Reason = "EXPIRED"
	ReasonSample          Reason = "SAMPLE"
	ReasonSupplierReturn  Reason = "SUPPLIER_RETURN"
	ReasonTransferOut     Reason = "TRANSFER_OUT"
	ReasonCountAdjustment Reason = "COUNT_ADJUSTMENT"
)

var reasonsByType = map[MovementType][]Reason{
	MovementIn:         {ReasonPurchase, ReasonFound, ReasonOpeningStock, ReasonCustomerReturn, ReasonTransferIn},
	MovementOut:        {ReasonSale, ReasonDamaged, ReasonTheft, ReasonExpired, ReasonSample, ReasonSupplierReturn, ReasonTransferOut},
	MovementAdjustment: {ReasonCountAdjustment},
}

// AllowedReasons returns the reasons valid for a movement type.
func AllowedReasons(t MovementType) []Reason {
	return reasonsByType[t]
}

func reasonAllowed(t MovementType, r Reason) bool {
	for _, v := range reasonsByType[t] {
		if v == r {
			return true
		}
	}
	return false
}

// InventoryMovement is the immutable record of one stock change. QuantityAfter and
// CostAfter snapshot the item right after the movement, so valuation at a past date
// needs no journal replay.
type InventoryMovement struct {
	ID                   int64           `json:"id"`
	TenantID             string          `json:"tenant_id"`
	ItemID               int64           `json:"item_id"`
	Type                 MovementType    `json:"type"`
	Reason               Reason          `json:"reason"`
	QuantityDelta        decimal.Decimal `json:"quantity_delta"`
	UnitCost             decimal.Decimal `json:"unit_cost"`
	TotalValue           decimal.Decimal `json:"total_value"`
	QuantityAfter        decimal.Decimal `json:"quantity_after"`
	CostAfter            decimal.Decimal `json:"cost_after"`
	CounterAccountCode   string          `json:"counter_account_code"`
	Date                 time.Time       `json:"date"`
	Notes                string          `json:"notes,omitempty"`
	IdempotencyKey       string          `json:"idempotency_key,omitempty"`
	LinkedJournalEntryID *int64          `json:"linked_journal_entry_id,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

// MovementFilter restricts ListMovements. Zero values mean unbounded.
type MovementFilter struct {
	ItemID int64
	From   time.Time
	To     time.Time
}

// RegisterItemRequest is the input for registering a product.
type RegisterItemRequest struct {
	SKU          string
	Name         string
	Category     string
	SellingPrice decimal.Decimal
}

// MovementRequest is the input for RecordMovement.
//
// For IN and OUT, Quantity is the number of units moved and must be positive.
// For ADJUSTMENT, Quantity is the counted absolute quantity.
type MovementRequest struct {
	ItemID             int64
	Type               MovementType
	Reason             Reason
	Quantity           decimal.Decimal
	UnitCost           *decimal.Decimal
	Date               time.Time
	Notes              string
	IdempotencyKey     string
	CounterAccountCode string
}

// MovementResult is returned by RecordMovement. JournalEntry is nil when the
// movement had no cost impact.
type MovementResult struct {
	Movement               InventoryMovement `json:"movement"`
	NewQuantity            decimal.Decimal   `json:"new_quantity"`
	NewWeightedAverageCost decimal.Decimal   `json:"new_weighted_average_cost"`
	JournalEntry           *JournalEntry     `json:"journal_entry,omitempty"`
}

// ItemValuation is one item's contribution to the inventory valuation.
type ItemValuation struct {
	ItemID      int64           `json:"item_id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	CostValue   decimal.Decimal `json:"cost_value"`
	RetailValue decimal.Decimal `json:"retail_value"`
}

// CategoryValuation aggregates ItemValuation by category.
type CategoryValuation struct {
	Category    string          `json:"category"`
	ItemCount   int             `json:"item_count"`
	Quantity    decimal.Decimal `json:"quantity"`
	CostValue   decimal.Decimal `json:"cost_value"`
	RetailValue decimal.Decimal `json:"retail_value"`
}

// ValuationReport is returned by InventoryService.Valuation.
type ValuationReport struct {
	AsOf             *time.Time          `json:"as_of,omitempty"`
	TotalCostValue   decimal.Decimal     `json:"total_cost_value"`
	TotalRetailValue decimal.Decimal     `json:"total_retail_value"`
	ByCategory       []CategoryValuation `json:"by_category"`
	TopItemsByValue  []ItemValuation     `json:"top_items_by_value"`
}
