package domain

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TxRunner scopes a group of repository calls into one atomic transaction.
// The context passed to fn carries the session; repositories called with it
// participate in the transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SequencePair identifies a (sku, location) sequencing domain
type SequencePair struct {
	SKUID      string `bson:"skuId"`
	LocationID string `bson:"locationId"`
}

// StockRepository persists ledger rows. Reserve, Release, Consume and
// AddQuantity are guarded atomic updates enforcing the row invariants.
type StockRepository interface {
	// InsertOrMerge inserts a row or increments quantity on the existing
	// row for the same key, returning the post-write state.
	InsertOrMerge(ctx context.Context, row *StockRow) (*StockRow, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*StockRow, error)
	FindByKey(ctx context.Context, key StockKey) (*StockRow, error)
	// FindCandidates returns rows with available quantity for the pair.
	FindCandidates(ctx context.Context, companyID, skuID, locationID string) ([]*StockRow, error)
	// FindActive returns rows with quantity > 0 ordered by createdAt then id.
	FindActive(ctx context.Context, companyID, skuID, locationID string) ([]*StockRow, error)

	Reserve(ctx context.Context, id primitive.ObjectID, n int) error
	Release(ctx context.Context, id primitive.ObjectID, n int) error
	Consume(ctx context.Context, id primitive.ObjectID, pickedQty, allocatedQty int) error
	AddQuantity(ctx context.Context, id primitive.ObjectID, n int) error
	Delete(ctx context.Context, id primitive.ObjectID) error

	MaxSequence(ctx context.Context, companyID, skuID, locationID string) (int, error)
	// SetSequence writes the row's fifoSequence. Writing a sequence already
	// held by another row of the pair fails with ErrConflict.
	SetSequence(ctx context.Context, id primitive.ObjectID, seq int) error
	// ClearSequences zeroes every fifoSequence of the pair ahead of a
	// renumbering pass.
	ClearSequences(ctx context.Context, companyID, skuID, locationID string) error
	ListSequencePairs(ctx context.Context, companyID string) ([]SequencePair, error)

	// SummarizeBinOccupancy reports per-bin stock presence at a location
	// relative to one SKU, for putaway scoring.
	SummarizeBinOccupancy(ctx context.Context, companyID, locationID, skuID string) (map[string]BinOccupancy, error)
}

// ChannelStockRepository persists channel pool shadows
type ChannelStockRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*ChannelStockRow, error)
	// FindCandidates returns channel rows with available quantity.
	FindCandidates(ctx context.Context, companyID, skuID, locationID, channel string) ([]*ChannelStockRow, error)
	Reserve(ctx context.Context, id primitive.ObjectID, n int) error
	Release(ctx context.Context, id primitive.ObjectID, n int) error
	Consume(ctx context.Context, id primitive.ObjectID, pickedQty, allocatedQty int) error
}

// AllocationRepository persists allocations and issues allocation numbers
type AllocationRepository interface {
	NextAllocationNo(ctx context.Context, companyID string) (string, error)
	Insert(ctx context.Context, a *Allocation) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*Allocation, error)
	FindActiveByOrder(ctx context.Context, companyID, orderID string) ([]*Allocation, error)
	FindActiveByWave(ctx context.Context, companyID, waveID string) ([]*Allocation, error)
	// Update persists the allocation only while its stored status still is
	// from; a concurrent transition surfaces as ErrConflict.
	Update(ctx context.Context, a *Allocation, from AllocationStatus) error
}

// PutawaySummary is the task count breakdown for a location
type PutawaySummary struct {
	Pending        int `json:"pending"`
	Assigned       int `json:"assigned"`
	InProgress     int `json:"inProgress"`
	CompletedToday int `json:"completedToday"`
}

// PutawayTaskRepository persists putaway tasks and issues task numbers
type PutawayTaskRepository interface {
	NextTaskNo(ctx context.Context, companyID string, day time.Time) (string, error)
	Insert(ctx context.Context, task *PutawayTask) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*PutawayTask, error)
	FindByTaskNo(ctx context.Context, companyID, taskNo string) (*PutawayTask, error)
	// Update persists the task only while its stored status still is from; a
	// concurrent transition surfaces as ErrConflict.
	Update(ctx context.Context, task *PutawayTask, from PutawayStatus) error
	Summary(ctx context.Context, companyID, locationID string) (*PutawaySummary, error)
}

// BinRepository persists bins. AddUnits is capacity-guarded when the bin
// tracks maxUnits.
type BinRepository interface {
	FindByBinID(ctx context.Context, companyID, binID string) (*Bin, error)
	FindByLocation(ctx context.Context, companyID, locationID string) ([]*Bin, error)
	AddUnits(ctx context.Context, companyID, binID string, n int) error
}

// GoodsReceiptRepository reads the receiving read model
type GoodsReceiptRepository interface {
	FindByGRNo(ctx context.Context, companyID, grNo string) (*GoodsReceipt, error)
}

// ReferenceRepository resolves reference data owned by other services:
// order channels and valuation policy overrides. Missing entries resolve
// to empty values, not errors, except for unknown orders.
type ReferenceRepository interface {
	OrderChannel(ctx context.Context, companyID, orderID string) (string, error)
	SKUValuation(ctx context.Context, companyID, skuID string) (ValuationMethod, error)
	LocationValuation(ctx context.Context, companyID, locationID string) (ValuationMethod, error)
	CompanyValuation(ctx context.Context, companyID string) (ValuationMethod, error)
}
