package domain

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AllocationStatus represents the lifecycle state of an allocation
type AllocationStatus string

const (
	AllocationStatusAllocated AllocationStatus = "ALLOCATED"
	AllocationStatusPicked    AllocationStatus = "PICKED"
	AllocationStatusCancelled AllocationStatus = "CANCELLED"
)

// CanTransitionTo checks if a status transition is valid
func (s AllocationStatus) CanTransitionTo(target AllocationStatus) bool {
	transitions := map[AllocationStatus][]AllocationStatus{
		AllocationStatusAllocated: {AllocationStatusPicked, AllocationStatusCancelled},
		AllocationStatusPicked:    {},
		AllocationStatusCancelled: {},
	}
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Allocation is a reservation of stock against an order or wave. It
// snapshots the source row's placement and cost attributes at allocation
// time so later ledger changes do not disturb pick instructions.
type Allocation struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AllocationNo string             `bson:"allocationNo" json:"allocationNo"`
	CompanyID    string             `bson:"companyId" json:"companyId"`
	SKUID        string             `bson:"skuId" json:"skuId"`
	LocationID   string             `bson:"locationId" json:"locationId"`

	// InventoryID points at the reserved ledger row; ChannelInventoryID is
	// set instead when the reservation came from a channel pool.
	InventoryID        primitive.ObjectID  `bson:"inventoryId,omitempty" json:"inventoryId,omitempty"`
	ChannelInventoryID *primitive.ObjectID `bson:"channelInventoryId,omitempty" json:"channelInventoryId,omitempty"`
	Channel            string              `bson:"channel,omitempty" json:"channel,omitempty"`

	BinID           string          `bson:"binId" json:"binId"`
	BatchNo         string          `bson:"batchNo,omitempty" json:"batchNo,omitempty"`
	LotNo           string          `bson:"lotNo,omitempty" json:"lotNo,omitempty"`
	ExpiryDate      *time.Time      `bson:"expiryDate,omitempty" json:"expiryDate,omitempty"`
	CostPrice       *float64        `bson:"costPrice,omitempty" json:"costPrice,omitempty"`
	FIFOSequence    int             `bson:"fifoSequence" json:"fifoSequence"`
	ValuationMethod ValuationMethod `bson:"valuationMethod" json:"valuationMethod"`

	OrderID        string `bson:"orderId,omitempty" json:"orderId,omitempty"`
	OrderItemID    string `bson:"orderItemId,omitempty" json:"orderItemId,omitempty"`
	WaveID         string `bson:"waveId,omitempty" json:"waveId,omitempty"`
	PicklistID     string `bson:"picklistId,omitempty" json:"picklistId,omitempty"`
	PicklistItemID string `bson:"picklistItemId,omitempty" json:"picklistItemId,omitempty"`

	AllocatedQty int              `bson:"allocatedQty" json:"allocatedQty"`
	PickedQty    int              `bson:"pickedQty" json:"pickedQty"`
	Status       AllocationStatus `bson:"status" json:"status"`

	AllocatedBy string     `bson:"allocatedBy,omitempty" json:"allocatedBy,omitempty"`
	PickedBy    string     `bson:"pickedBy,omitempty" json:"pickedBy,omitempty"`
	CancelledBy string     `bson:"cancelledBy,omitempty" json:"cancelledBy,omitempty"`
	AllocatedAt time.Time  `bson:"allocatedAt" json:"allocatedAt"`
	PickedAt    *time.Time `bson:"pickedAt,omitempty" json:"pickedAt,omitempty"`
	CancelledAt *time.Time `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	events []DomainEvent
}

// AllocationRef carries the order/wave references of an allocation request
type AllocationRef struct {
	OrderID        string
	OrderItemID    string
	WaveID         string
	PicklistID     string
	PicklistItemID string
}

// NewAllocation creates an ALLOCATED allocation snapshotting row placement.
func NewAllocation(row *StockRow, qty int, method ValuationMethod, ref AllocationRef, actor string) (*Allocation, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	now := time.Now().UTC()
	a := &Allocation{
		CompanyID:       row.CompanyID,
		SKUID:           row.SKUID,
		LocationID:      row.LocationID,
		InventoryID:     row.ID,
		BinID:           row.BinID,
		BatchNo:         row.BatchNo,
		LotNo:           row.LotNo,
		ExpiryDate:      row.ExpiryDate,
		CostPrice:       row.CostPrice,
		FIFOSequence:    row.FIFOSequence,
		ValuationMethod: method,
		OrderID:         ref.OrderID,
		OrderItemID:     ref.OrderItemID,
		WaveID:          ref.WaveID,
		PicklistID:      ref.PicklistID,
		PicklistItemID:  ref.PicklistItemID,
		AllocatedQty:    qty,
		Status:          AllocationStatusAllocated,
		AllocatedBy:     actor,
		AllocatedAt:     now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return a, nil
}

// NewChannelAllocation creates an allocation backed by a channel pool row.
func NewChannelAllocation(row *ChannelStockRow, qty int, method ValuationMethod, ref AllocationRef, actor string) (*Allocation, error) {
	a, err := NewAllocation(&row.StockRow, qty, method, ref, actor)
	if err != nil {
		return nil, err
	}
	a.InventoryID = primitive.NilObjectID
	id := row.ID
	a.ChannelInventoryID = &id
	a.Channel = row.Channel
	return a, nil
}

// IsActive reports whether the allocation still holds a reservation
func (a *Allocation) IsActive() bool {
	return a.Status == AllocationStatusAllocated
}

// FromChannel reports whether the reservation came from a channel pool
func (a *Allocation) FromChannel() bool {
	return a.ChannelInventoryID != nil
}

// ConfirmPick records the picked quantity and closes the allocation.
// Over-picks clamp to the allocated quantity.
func (a *Allocation) ConfirmPick(picked int, actor string) error {
	if a.Status != AllocationStatusAllocated {
		return fmt.Errorf("%w: cannot pick allocation in status %s", ErrInvalidTransition, a.Status)
	}
	if picked < 0 {
		return ErrInvalidQuantity
	}
	if picked > a.AllocatedQty {
		picked = a.AllocatedQty
	}

	now := time.Now().UTC()
	a.PickedQty = picked
	a.Status = AllocationStatusPicked
	a.PickedBy = actor
	a.PickedAt = &now
	a.UpdatedAt = now

	a.addEvent(PickConfirmedEvent{
		AllocationNo: a.AllocationNo,
		CompanyID:    a.CompanyID,
		SKUID:        a.SKUID,
		AllocatedQty: a.AllocatedQty,
		PickedQty:    picked,
		Timestamp:    now,
	})
	return nil
}

// Cancel releases the allocation. Picked allocations cannot be reversed.
func (a *Allocation) Cancel(actor string) error {
	if a.Status == AllocationStatusPicked {
		return fmt.Errorf("%w: %s", ErrAllocationPicked, a.AllocationNo)
	}
	if a.Status == AllocationStatusCancelled {
		return fmt.Errorf("%w: allocation %s already cancelled", ErrInvalidTransition, a.AllocationNo)
	}

	now := time.Now().UTC()
	a.Status = AllocationStatusCancelled
	a.CancelledBy = actor
	a.CancelledAt = &now
	a.UpdatedAt = now

	a.addEvent(AllocationCancelledEvent{
		AllocationNo: a.AllocationNo,
		CompanyID:    a.CompanyID,
		SKUID:        a.SKUID,
		ReleasedQty:  a.AllocatedQty,
		Timestamp:    now,
	})
	return nil
}

// RecordCreated appends the creation event once the allocation number is set.
func (a *Allocation) RecordCreated() {
	a.addEvent(AllocationCreatedEvent{
		AllocationNo: a.AllocationNo,
		CompanyID:    a.CompanyID,
		SKUID:        a.SKUID,
		BinID:        a.BinID,
		OrderID:      a.OrderID,
		Channel:      a.Channel,
		AllocatedQty: a.AllocatedQty,
		Timestamp:    a.AllocatedAt,
	})
}

func (a *Allocation) addEvent(event DomainEvent) {
	a.events = append(a.events, event)
}

// Events returns uncommitted domain events
func (a *Allocation) Events() []DomainEvent {
	return a.events
}

// ClearEvents drops uncommitted events after publication
func (a *Allocation) ClearEvents() {
	a.events = nil
}
