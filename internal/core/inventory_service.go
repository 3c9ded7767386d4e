package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// topItemsLimit bounds ValuationReport.TopItemsByValue.
const topItemsLimit = 10

// InventoryService keeps perpetual weighted-average stock records and books the cost
// of every stock change to the ledger in the same transaction as the movement.
type InventoryService interface {
	RegisterItem(ctx context.Context, tenantID string, req RegisterItemRequest) (*InventoryItem, error)
	GetItem(ctx context.Context, tenantID string, id int64) (*InventoryItem, error)
	ListItems(ctx context.Context, tenantID string, includeInactive bool) ([]InventoryItem, error)
	DeactivateItem(ctx context.Context, tenantID string, id int64) (*InventoryItem, error)
	ListMovements(ctx context.Context, tenantID string, f MovementFilter) ([]InventoryMovement, error)

	// RecordMovement applies one IN, OUT or ADJUSTMENT to an item. The item is locked
	// for the duration of the read-modify-write; the movement row, the item update and
	// the linked journal entry commit together or not at all.
	RecordMovement(ctx context.Context, tenantID string, req MovementRequest) (*MovementResult, error)

	// Valuation values stock at current state, or at asOf from movement snapshots.
	Valuation(ctx context.Context, tenantID string, asOf *time.Time) (*ValuationReport, error)
}

type inventoryService struct {
	store  Store
	ledger LedgerService
	rules  RuleTable
	policy Policy
	log    *zap.Logger
	rec    Recorder
}

func NewInventoryService(store Store, ledger LedgerService, rules RuleTable, policy Policy, logger *zap.Logger, rec Recorder) InventoryService {
	logger, rec = orNop(logger, rec)
	return &inventoryService{
		store:  store,
		ledger: ledger,
		rules:  rules,
		policy: policy,
		log:    logger.Named("inventory"),
		rec:    rec,
	}
}

// ── Items ─────────────────────────────────────────────────────────────────────

func (s *inventoryService) RegisterItem(ctx context.Context, tenantID string, req RegisterItemRequest) (*InventoryItem, error) {
	sku := strings.TrimSpace(req.SKU)
	name := strings.TrimSpace(req.Name)
	if sku == "" || name == "" {
		return nil, invalidRequest("item sku and name are required")
	}
	if req.SellingPrice.IsNegative() || !IsMinorUnit(req.SellingPrice) {
		return nil, invalidRequest("selling price must be a non-negative amount with at most %d decimals", AmountScale)
	}

	item := InventoryItem{
		TenantID:            tenantID,
		SKU:                 sku,
		Name:                name,
		Category:            strings.TrimSpace(req.Category),
		QuantityOnHand:      decimal.Zero,
		WeightedAverageCost: decimal.Zero,
		SellingPrice:        req.SellingPrice,
		IsActive:            true,
	}
	err := s.store.InTx(ctx, func(tx Tx) error {
		items, err := tx.ListItems(ctx, tenantID, true)
		if err != nil {
			return fmt.Errorf("failed to list items: %w", err)
		}
		for _, it := range items {
			if strings.EqualFold(it.SKU, sku) {
				return newError(CodeDuplicateItem, "sku %s is already registered as item %d", sku, it.ID)
			}
		}
		return tx.InsertItem(ctx, &item)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("inventory item registered", zap.String("tenant", tenantID), zap.Int64("item_id", item.ID), zap.String("sku", sku))
	return &item, nil
}

func (s *inventoryService) GetItem(ctx context.Context, tenantID string, id int64) (*InventoryItem, error) {
	return s.store.GetItem(ctx, tenantID, id)
}

func (s *inventoryService) ListItems(ctx context.Context, tenantID string, includeInactive bool) ([]InventoryItem, error) {
	return s.store.ListItems(ctx, tenantID, includeInactive)
}

// DeactivateItem hides an item from new movements. Items are never deleted because
// their movements stay part of the cost history.
func (s *inventoryService) DeactivateItem(ctx context.Context, tenantID string, id int64) (*InventoryItem, error) {
	var item *InventoryItem
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		item, err = tx.LockItem(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if !item.IsActive {
			return nil
		}
		item.IsActive = false
		return tx.UpdateItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("inventory item deactivated", zap.String("tenant", tenantID), zap.Int64("item_id", id))
	return item, nil
}

func (s *inventoryService) ListMovements(ctx context.Context, tenantID string, f MovementFilter) ([]InventoryMovement, error) {
	if f.ItemID != 0 {
		if _, err := s.store.GetItem(ctx, tenantID, f.ItemID); err != nil {
			return nil, err
		}
	}
	return s.store.ListMovements(ctx, tenantID, f)
}

// ── Movements ─────────────────────────────────────────────────────────────────

// normalize canonicalises and rejects malformed requests before the item is locked.
func (s *inventoryService) normalize(req *MovementRequest) error {
	req.Type = MovementType(strings.ToUpper(strings.TrimSpace(string(req.Type))))
	req.Reason = Reason(strings.ToUpper(strings.TrimSpace(string(req.Reason))))
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	req.CounterAccountCode = strings.TrimSpace(req.CounterAccountCode)
	req.Notes = strings.TrimSpace(req.Notes)
	if req.ItemID <= 0 {
		return invalidRequest("item id is required")
	}
	if req.Date.IsZero() {
		return invalidRequest("movement date is required")
	}
	req.Date = Day(req.Date)
	if !fitsScale(req.Quantity, QuantityScale) {
		return invalidRequest("quantity %s has more than %d decimal places", req.Quantity, QuantityScale)
	}
	if req.UnitCost != nil && !fitsScale(*req.UnitCost, CostScale) {
		return invalidRequest("unit cost %s has more than %d decimal places", *req.UnitCost, CostScale)
	}
	if req.Type == MovementAdjustment && req.Reason == "" {
		req.Reason = ReasonCountAdjustment
	}

	switch req.Type {
	case MovementIn:
		if !req.Quantity.IsPositive() {
			return invalidRequest("IN quantity must be > 0, got %s", req.Quantity)
		}
		if req.UnitCost == nil {
			return invalidRequest("IN movements require a unit cost")
		}
		if req.UnitCost.IsNegative() {
			return invalidRequest("unit cost cannot be negative")
		}
	case MovementOut:
		if !req.Quantity.IsPositive() {
			return invalidRequest("OUT quantity must be > 0, got %s", req.Quantity)
		}
		if req.UnitCost != nil {
			return invalidRequest("OUT movements are valued at the weighted average cost, unit cost must be omitted")
		}
	case MovementAdjustment:
		if req.Quantity.IsNegative() {
			return invalidRequest("counted quantity cannot be negative, got %s", req.Quantity)
		}
		if req.UnitCost != nil {
			return invalidRequest("adjustments are valued at the weighted average cost, unit cost must be omitted")
		}
	default:
		return invalidRequest("unknown movement type %q", req.Type)
	}

	if !reasonAllowed(req.Type, req.Reason) {
		return invalidRequest("reason %q is not valid for %s movements (allowed: %v)", req.Reason, req.Type, AllowedReasons(req.Type))
	}
	return nil
}

// costing is the outcome of applying a movement to an item's running totals.
type costing struct {
	delta    decimal.Decimal
	unitCost decimal.Decimal
	value    decimal.Decimal
	newQty   decimal.Decimal
	newCost  decimal.Decimal
}

// applyMovement computes the new quantity and weighted-average cost.
//
//	IN:  wac' = (q*wac + qin*cin) / (q + qin), or cin when q <= 0
//	OUT: wac' = wac
func applyMovement(item *InventoryItem, req MovementRequest) costing {
	q, wac := item.QuantityOnHand, item.WeightedAverageCost
	var c costing

	switch req.Type {
	case MovementIn:
		c.delta = req.Quantity
		c.unitCost = *req.UnitCost
		c.newQty = q.Add(req.Quantity)
		if q.LessThanOrEqual(decimal.Zero) {
			c.newCost = c.unitCost.Round(CostScale)
		} else {
			c.newCost = q.Mul(wac).Add(req.Quantity.Mul(c.unitCost)).Div(c.newQty).Round(CostScale)
		}
	case MovementOut:
		c.delta = req.Quantity.Neg()
		c.unitCost = wac
		c.newQty = q.Sub(req.Quantity)
		c.newCost = wac
	case MovementAdjustment:
		c.delta = req.Quantity.Sub(q)
		c.unitCost = wac
		c.newQty = req.Quantity
		c.newCost = wac
	}
	c.value = RoundAmount(c.delta.Abs().Mul(c.unitCost))
	return c
}

func (s *inventoryService) RecordMovement(ctx context.Context, tenantID string, req MovementRequest) (*MovementResult, error) {
	if tenantID == "" {
		return nil, invalidRequest("tenant is required")
	}
	var res *MovementResult
	err := s.normalize(&req)
	if err == nil {
		err = s.store.InTx(ctx, func(tx Tx) error {
			var err error
			res, err = s.recordInTx(ctx, tx, tenantID, req)
			return err
		})
	}
	s.rec.MovementRecorded(req.Type, req.Reason, outcomeOf(err))
	if err != nil {
		s.log.Debug("inventory movement rejected", zap.String("tenant", tenantID), zap.Int64("item_id", req.ItemID), zap.Error(err))
		return nil, err
	}

	fields := []zap.Field{
		zap.String("tenant", tenantID),
		zap.Int64("item_id", req.ItemID),
		zap.Int64("movement_id", res.Movement.ID),
		zap.String("type", string(req.Type)),
		zap.String("reason", string(req.Reason)),
		zap.Stringer("quantity", res.NewQuantity),
		zap.Stringer("wac", res.NewWeightedAverageCost),
	}
	if res.JournalEntry != nil {
		fields = append(fields, zap.Int64("entry_id", res.JournalEntry.ID))
	}
	s.log.Info("inventory movement recorded", fields...)
	return res, nil
}

func (s *inventoryService) recordInTx(ctx context.Context, tx Tx, tenantID string, req MovementRequest) (*MovementResult, error) {
	if req.IdempotencyKey != "" {
		existing, found, err := tx.FindMovementByIdempotencyKey(ctx, tenantID, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
		if found {
			return nil, newError(CodeDuplicateRequest, "idempotency key %q already recorded as movement %d", req.IdempotencyKey, existing)
		}
	}

	item, err := tx.LockItem(ctx, tenantID, req.ItemID)
	if err != nil {
		return nil, err
	}
	if !item.IsActive {
		return nil, newError(CodeItemInactive, "item %d (%s) is deactivated", item.ID, item.SKU)
	}

	c := applyMovement(item, req)
	if c.newQty.IsNegative() && !s.policy.AllowNegativeStock {
		return nil, newError(CodeNegativeStock, "item %s has %s on hand, cannot remove %s",
			item.SKU, item.QuantityOnHand, c.delta.Abs())
	}
	// Emptying the item releases whatever Inventory still carries for it, so rounding
	// on earlier issues never leaves a residue on the account.
	if c.delta.IsNegative() && c.newQty.IsZero() && item.QuantityOnHand.IsPositive() {
		carrying, err := carryingValue(ctx, tx, tenantID, item.ID)
		if err != nil {
			return nil, err
		}
		if !carrying.IsNegative() {
			c.value = carrying
		}
	}

	counter := req.CounterAccountCode
	if counter == "" {
		if counter, err = s.rules.ReasonAccount(req.Reason); err != nil {
			return nil, err
		}
	}

	m := InventoryMovement{
		TenantID:           tenantID,
		ItemID:             item.ID,
		Type:               req.Type,
		Reason:             req.Reason,
		QuantityDelta:      c.delta,
		UnitCost:           c.unitCost,
		TotalValue:         c.value,
		QuantityAfter:      c.newQty,
		CostAfter:          c.newCost,
		CounterAccountCode: counter,
		Date:               req.Date,
		Notes:              req.Notes,
		IdempotencyKey:     req.IdempotencyKey,
	}

	var entry *JournalEntry
	if !c.value.IsZero() {
		inventoryAccount, err := s.rules.Role(RoleInventory)
		if err != nil {
			return nil, err
		}
		entry, err = s.ledger.PostInTx(ctx, tx, tenantID, movementEntry(item, m, inventoryAccount))
		if err != nil {
			return nil, fmt.Errorf("failed to post movement cost: %w", err)
		}
		m.LinkedJournalEntryID = &entry.ID
	}

	if err := tx.InsertMovement(ctx, &m); err != nil {
		return nil, fmt.Errorf("failed to insert movement: %w", err)
	}
	item.QuantityOnHand = c.newQty
	item.WeightedAverageCost = c.newCost
	if err := tx.UpdateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}

	return &MovementResult{
		Movement:               m,
		NewQuantity:            c.newQty,
		NewWeightedAverageCost: c.newCost,
		JournalEntry:           entry,
	}, nil
}

// carryingValue is the net value booked to Inventory by an item's movements.
func carryingValue(ctx context.Context, r Reader, tenantID string, itemID int64) (decimal.Decimal, error) {
	movements, err := r.ListMovements(ctx, tenantID, MovementFilter{ItemID: itemID})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list movements: %w", err)
	}
	total := decimal.Zero
	for _, m := range movements {
		if m.QuantityDelta.IsNegative() {
			total = total.Sub(m.TotalValue)
		} else {
			total = total.Add(m.TotalValue)
		}
	}
	return total, nil
}

// movementEntry books the movement value between Inventory and the counter account.
// Stock coming in debits Inventory; stock going out credits it.
func movementEntry(item *InventoryItem, m InventoryMovement, inventoryAccount string) PostRequest {
	memo := fmt.Sprintf("%s %s %s x %s @ %s", m.Type, m.Reason, m.QuantityDelta.Abs(), item.SKU, m.UnitCost.StringFixed(AmountScale))
	if m.Notes != "" {
		memo += ": " + m.Notes
	}
	debit, credit := inventoryAccount, m.CounterAccountCode
	if m.QuantityDelta.IsNegative() {
		debit, credit = credit, debit
	}
	return PostRequest{
		Date:       m.Date,
		Memo:       memo,
		SourceType: SourceInventoryAdjustment,
		SourceID:   fmt.Sprintf("item:%d", item.ID),
		Lines: []PostLine{
			{AccountCode: debit, Debit: m.TotalValue},
			{AccountCode: credit, Credit: m.TotalValue},
		},
		fromMovement: true,
	}
}

// ── Valuation ─────────────────────────────────────────────────────────────────

func (s *inventoryService) Valuation(ctx context.Context, tenantID string, asOf *time.Time) (*ValuationReport, error) {
	return valueStock(ctx, s.store, tenantID, asOf)
}

// valueStock builds a ValuationReport from current item state, or, with asOf, from the
// last movement snapshot of each item on or before that day.
func valueStock(ctx context.Context, r Reader, tenantID string, asOf *time.Time) (*ValuationReport, error) {
	items, err := r.ListItems(ctx, tenantID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	qty := make(map[int64]decimal.Decimal, len(items))
	cost := make(map[int64]decimal.Decimal, len(items))
	report := &ValuationReport{}

	if asOf == nil {
		for _, it := range items {
			qty[it.ID] = it.QuantityOnHand
			cost[it.ID] = it.WeightedAverageCost
		}
	} else {
		day := Day(*asOf)
		report.AsOf = &day
		movements, err := r.ListMovements(ctx, tenantID, MovementFilter{To: day})
		if err != nil {
			return nil, fmt.Errorf("failed to list movements: %w", err)
		}
		// Movements are ordered by date then id, so the last one wins.
		for _, m := range movements {
			qty[m.ItemID] = m.QuantityAfter
			cost[m.ItemID] = m.CostAfter
		}
	}

	report.TotalCostValue = decimal.Zero
	report.TotalRetailValue = decimal.Zero
	byCategory := make(map[string]*CategoryValuation)
	var valued []ItemValuation

	for _, it := range items {
		q := qty[it.ID]
		if q.IsZero() {
			continue
		}
		v := ItemValuation{
			ItemID:      it.ID,
			SKU:         it.SKU,
			Name:        it.Name,
			Category:    it.Category,
			Quantity:    q,
			UnitCost:    cost[it.ID],
			CostValue:   RoundAmount(q.Mul(cost[it.ID])),
			RetailValue: RoundAmount(q.Mul(it.SellingPrice)),
		}
		valued = append(valued, v)

		report.TotalCostValue = report.TotalCostValue.Add(v.CostValue)
		report.TotalRetailValue = report.TotalRetailValue.Add(v.RetailValue)

		cv, ok := byCategory[it.Category]
		if !ok {
			cv = &CategoryValuation{Category: it.Category, Quantity: decimal.Zero, CostValue: decimal.Zero, RetailValue: decimal.Zero}
			byCategory[it.Category] = cv
		}
		cv.ItemCount++
		cv.Quantity = cv.Quantity.Add(q)
		cv.CostValue = cv.CostValue.Add(v.CostValue)
		cv.RetailValue = cv.RetailValue.Add(v.RetailValue)
	}

	report.ByCategory = make([]CategoryValuation, 0, len(byCategory))
	for _, cv := range byCategory {
		report.ByCategory = append(report.ByCategory, *cv)
	}
	sort.Slice(report.ByCategory, func(i, j int) bool { return report.ByCategory[i].Category < report.ByCategory[j].Category })

	sort.SliceStable(valued, func(i, j int) bool { return valued[i].CostValue.GreaterThan(valued[j].CostValue) })
	if len(valued) > topItemsLimit {
		valued = valued[:topItemsLimit]
	}
	report.TopItemsByValue = valued
	if report.TopItemsByValue == nil {
		report.TopItemsByValue = []ItemValuation{}
	}
	return report, nil
}
