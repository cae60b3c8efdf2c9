package application

import (
	"github.com/wms-platform/allocation-service/internal/domain"
)

// AllocationRequest asks for requiredQty units of a SKU at a location.
type AllocationRequest struct {
	SKUID           string                 `json:"skuId" binding:"required"`
	LocationID      string                 `json:"locationId"`
	RequiredQty     int                    `json:"requiredQty" binding:"required,gt=0"`
	ValuationMethod domain.ValuationMethod `json:"valuationMethod,omitempty"`
	PreferredBinID  string                 `json:"preferredBinId,omitempty"`
	OrderID         string                 `json:"orderId,omitempty"`
	OrderItemID     string                 `json:"orderItemId,omitempty"`
	WaveID          string                 `json:"waveId,omitempty"`
	PicklistID      string                 `json:"picklistId,omitempty"`
	PicklistItemID  string                 `json:"picklistItemId,omitempty"`
}

// BulkAllocationRequest allocates several lines in one call. Lines inherit
// the envelope orderId and locationId when their own fields are empty.
type BulkAllocationRequest struct {
	LocationID string              `json:"locationId" binding:"required"`
	OrderID    string              `json:"orderId,omitempty"`
	WaveID     string              `json:"waveId,omitempty"`
	Items      []AllocationRequest `json:"items" binding:"required,min=1,dive"`
}

// ConfirmPickCommand confirms a pick against an allocation
type ConfirmPickCommand struct {
	AllocationID string `json:"allocationId" binding:"required"`
	PickedQty    int    `json:"pickedQty" binding:"min=0"`
}

// SuggestBinCommand asks for putaway bin suggestions
type SuggestBinCommand struct {
	SKUID         string `json:"skuId" binding:"required"`
	LocationID    string `json:"locationId" binding:"required"`
	Quantity      int    `json:"quantity" binding:"required,gt=0"`
	PreferSameSKU bool   `json:"preferSameSku"`
	PreferEmpty   bool   `json:"preferEmpty"`
}

// CreatePutawayTasksCommand spawns tasks from a goods receipt
type CreatePutawayTasksCommand struct {
	GRNo        string `json:"grNo" binding:"required"`
	AutoSuggest bool   `json:"autoSuggest"`
}

// AssignTaskCommand hands a task to a worker
type AssignTaskCommand struct {
	TaskID     string `json:"taskId" binding:"required"`
	AssigneeID string `json:"assigneeId" binding:"required"`
}

// CompleteTaskCommand finishes a task, optionally recording deviations
type CompleteTaskCommand struct {
	TaskID      string `json:"taskId" binding:"required"`
	ActualBinID string `json:"actualBinId,omitempty"`
	ActualQty   *int   `json:"actualQty,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// CancelTaskCommand aborts a task
type CancelTaskCommand struct {
	TaskID string `json:"taskId" binding:"required"`
	Reason string `json:"reason,omitempty"`
}

// AdjustStockCommand adds quantity at a ledger key, creating the row on
// first receipt.
type AdjustStockCommand struct {
	SKUID      string   `json:"skuId" binding:"required"`
	LocationID string   `json:"locationId" binding:"required"`
	BinID      string   `json:"binId" binding:"required"`
	Quantity   int      `json:"quantity" binding:"required,gt=0"`
	BatchNo    string   `json:"batchNo,omitempty"`
	LotNo      string   `json:"lotNo,omitempty"`
	ExpiryDate *string  `json:"expiryDate,omitempty"`
	CostPrice  *float64 `json:"costPrice,omitempty"`
	MRP        *float64 `json:"mrp,omitempty"`
}
