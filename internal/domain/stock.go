package domain

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StockKey identifies a ledger row. Rows are unique per company, SKU,
// location, bin, batch and lot; receipts for the same key merge quantities.
type StockKey struct {
	CompanyID  string `bson:"companyId" json:"companyId"`
	SKUID      string `bson:"skuId" json:"skuId"`
	LocationID string `bson:"locationId" json:"locationId"`
	BinID      string `bson:"binId" json:"binId"`
	BatchNo    string `bson:"batchNo" json:"batchNo,omitempty"`
	LotNo      string `bson:"lotNo" json:"lotNo,omitempty"`
}

// StockRow is a single inventory ledger entry.
type StockRow struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CompanyID  string             `bson:"companyId" json:"companyId"`
	SKUID      string             `bson:"skuId" json:"skuId"`
	LocationID string             `bson:"locationId" json:"locationId"`
	BinID      string             `bson:"binId" json:"binId"`
	BatchNo    string             `bson:"batchNo" json:"batchNo,omitempty"`
	LotNo      string             `bson:"lotNo" json:"lotNo,omitempty"`

	Quantity    int `bson:"quantity" json:"quantity"`
	ReservedQty int `bson:"reservedQty" json:"reservedQty"`

	// FIFOSequence orders rows for consumption within (skuId, locationId).
	// Zero means not yet assigned.
	FIFOSequence int `bson:"fifoSequence" json:"fifoSequence"`

	ExpiryDate      *time.Time      `bson:"expiryDate,omitempty" json:"expiryDate,omitempty"`
	MfgDate         *time.Time      `bson:"mfgDate,omitempty" json:"mfgDate,omitempty"`
	CostPrice       *float64        `bson:"costPrice,omitempty" json:"costPrice,omitempty"`
	MRP             *float64        `bson:"mrp,omitempty" json:"mrp,omitempty"`
	SerialNumbers   []string        `bson:"serialNumbers,omitempty" json:"serialNumbers,omitempty"`
	ValuationMethod ValuationMethod `bson:"valuationMethod,omitempty" json:"valuationMethod,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// NewStockRow creates a ledger row for a key with an initial quantity.
func NewStockRow(key StockKey, quantity int) (*StockRow, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	now := time.Now().UTC()
	return &StockRow{
		CompanyID:  key.CompanyID,
		SKUID:      key.SKUID,
		LocationID: key.LocationID,
		BinID:      key.BinID,
		BatchNo:    key.BatchNo,
		LotNo:      key.LotNo,
		Quantity:   quantity,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Key returns the identity tuple of the row
func (r *StockRow) Key() StockKey {
	return StockKey{
		CompanyID:  r.CompanyID,
		SKUID:      r.SKUID,
		LocationID: r.LocationID,
		BinID:      r.BinID,
		BatchNo:    r.BatchNo,
		LotNo:      r.LotNo,
	}
}

// Available returns the unreserved quantity
func (r *StockRow) Available() int {
	return r.Quantity - r.ReservedQty
}

// HasSequence reports whether a FIFO sequence has been assigned
func (r *StockRow) HasSequence() bool {
	return r.FIFOSequence > 0
}

// Reserve holds n units against this row.
func (r *StockRow) Reserve(n int) error {
	if n <= 0 {
		return ErrInvalidQuantity
	}
	if n > r.Available() {
		return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientAvailable, n, r.Available())
	}
	r.ReservedQty += n
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Release returns up to n reserved units. Releasing more than is reserved
// clamps at zero rather than failing; release paths must never error on
// drifted counts.
func (r *StockRow) Release(n int) {
	if n <= 0 {
		return
	}
	r.ReservedQty -= n
	if r.ReservedQty < 0 {
		r.ReservedQty = 0
	}
	r.UpdatedAt = time.Now().UTC()
}

// Consume removes picked units from hand and clears the matching
// reservation. picked may be below allocated (short pick); the full
// reservation is released either way so the shrinkage is absorbed.
func (r *StockRow) Consume(picked, allocated int) error {
	if picked < 0 || allocated < 0 {
		return ErrInvalidQuantity
	}
	if picked > r.Quantity {
		return fmt.Errorf("%w: picking %d, on hand %d", ErrInsufficientStock, picked, r.Quantity)
	}
	r.Quantity -= picked
	r.ReservedQty -= allocated
	if r.ReservedQty < 0 {
		r.ReservedQty = 0
	}
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Merge adds received quantity to the row
func (r *StockRow) Merge(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	r.Quantity += qty
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// CanDelete reports whether the row may be removed from the ledger
func (r *StockRow) CanDelete() bool {
	return r.ReservedQty == 0
}

// Validate checks the row invariants.
func (r *StockRow) Validate() error {
	if r.Quantity < 0 {
		return fmt.Errorf("%w: negative quantity %d", ErrInvariantViolation, r.Quantity)
	}
	if r.ReservedQty < 0 {
		return fmt.Errorf("%w: negative reservedQty %d", ErrInvariantViolation, r.ReservedQty)
	}
	if r.ReservedQty > r.Quantity {
		return fmt.Errorf("%w: reservedQty %d exceeds quantity %d", ErrInvariantViolation, r.ReservedQty, r.Quantity)
	}
	return nil
}
