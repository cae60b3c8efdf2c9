package application

import (
	"time"

	"github.com/wms-platform/allocation-service/internal/domain"
)

// AllocationDTO is the external view of an allocation
type AllocationDTO struct {
	ID              string     `json:"id"`
	AllocationNo    string     `json:"allocationNo"`
	SKUID           string     `json:"skuId"`
	LocationID      string     `json:"locationId"`
	BinID           string     `json:"binId"`
	BatchNo         string     `json:"batchNo,omitempty"`
	LotNo           string     `json:"lotNo,omitempty"`
	Channel         string     `json:"channel,omitempty"`
	ExpiryDate      *time.Time `json:"expiryDate,omitempty"`
	CostPrice       *float64   `json:"costPrice,omitempty"`
	FIFOSequence    int        `json:"fifoSequence"`
	ValuationMethod string     `json:"valuationMethod"`
	OrderID         string     `json:"orderId,omitempty"`
	OrderItemID     string     `json:"orderItemId,omitempty"`
	WaveID          string     `json:"waveId,omitempty"`
	AllocatedQty    int        `json:"allocatedQty"`
	PickedQty       int        `json:"pickedQty"`
	Status          string     `json:"status"`
	AllocatedAt     time.Time  `json:"allocatedAt"`
}

// AllocationResultDTO is the outcome of one allocation request. Shortfall
// is a result, not an error. Error carries a hard per-line failure inside a
// bulk request.
type AllocationResultDTO struct {
	SKUID       string          `json:"skuId"`
	Requested   int             `json:"requested"`
	Allocated   int             `json:"allocated"`
	Shortfall   int             `json:"shortfall"`
	Success     bool            `json:"success"`
	Allocations []AllocationDTO `json:"allocations"`
	Error       string          `json:"error,omitempty"`
}

// BulkAllocationResultDTO aggregates per-line allocation outcomes
type BulkAllocationResultDTO struct {
	Requested int                   `json:"requested"`
	Allocated int                   `json:"allocated"`
	Shortfall int                   `json:"shortfall"`
	Success   bool                  `json:"success"`
	Lines     []AllocationResultDTO `json:"lines"`
}

// AvailabilityDTO summarises stock at a (sku, location) pair
type AvailabilityDTO struct {
	SKUID      string `json:"skuId"`
	LocationID string `json:"locationId"`
	Available  int    `json:"available"`
	Total      int    `json:"total"`
	Sufficient bool   `json:"sufficient"`
}

// StockRowDTO is the external view of a ledger row
type StockRowDTO struct {
	ID           string     `json:"id"`
	SKUID        string     `json:"skuId"`
	LocationID   string     `json:"locationId"`
	BinID        string     `json:"binId"`
	BatchNo      string     `json:"batchNo,omitempty"`
	LotNo        string     `json:"lotNo,omitempty"`
	Quantity     int        `json:"quantity"`
	ReservedQty  int        `json:"reservedQty"`
	Available    int        `json:"available"`
	FIFOSequence int        `json:"fifoSequence"`
	ExpiryDate   *time.Time `json:"expiryDate,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// PutawayTaskDTO is the external view of a putaway task
type PutawayTaskDTO struct {
	ID             string     `json:"id"`
	TaskNo         string     `json:"taskNo"`
	SKUID          string     `json:"skuId"`
	LocationID     string     `json:"locationId"`
	GoodsReceiptID string     `json:"goodsReceiptId,omitempty"`
	FromBinID      string     `json:"fromBinId,omitempty"`
	ToBinID        string     `json:"toBinId"`
	Quantity       int        `json:"quantity"`
	BatchNo        string     `json:"batchNo,omitempty"`
	Priority       int        `json:"priority"`
	Status         string     `json:"status"`
	AssignedToID   string     `json:"assignedToId,omitempty"`
	ActualBinID    string     `json:"actualBinId,omitempty"`
	ActualQty      *int       `json:"actualQty,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// BinSuggestionsDTO is the ranked putaway target list
type BinSuggestionsDTO struct {
	Suggestions  []domain.BinSuggestion `json:"suggestions"`
	DefaultBinID string                 `json:"defaultBinId,omitempty"`
}

func toAllocationDTO(a *domain.Allocation) AllocationDTO {
	return AllocationDTO{
		ID:              a.ID.Hex(),
		AllocationNo:    a.AllocationNo,
		SKUID:           a.SKUID,
		LocationID:      a.LocationID,
		BinID:           a.BinID,
		BatchNo:         a.BatchNo,
		LotNo:           a.LotNo,
		Channel:         a.Channel,
		ExpiryDate:      a.ExpiryDate,
		CostPrice:       a.CostPrice,
		FIFOSequence:    a.FIFOSequence,
		ValuationMethod: a.ValuationMethod.String(),
		OrderID:         a.OrderID,
		OrderItemID:     a.OrderItemID,
		WaveID:          a.WaveID,
		AllocatedQty:    a.AllocatedQty,
		PickedQty:       a.PickedQty,
		Status:          string(a.Status),
		AllocatedAt:     a.AllocatedAt,
	}
}

func toStockRowDTO(r *domain.StockRow) StockRowDTO {
	return StockRowDTO{
		ID:           r.ID.Hex(),
		SKUID:        r.SKUID,
		LocationID:   r.LocationID,
		BinID:        r.BinID,
		BatchNo:      r.BatchNo,
		LotNo:        r.LotNo,
		Quantity:     r.Quantity,
		ReservedQty:  r.ReservedQty,
		Available:    r.Available(),
		FIFOSequence: r.FIFOSequence,
		ExpiryDate:   r.ExpiryDate,
		CreatedAt:    r.CreatedAt,
	}
}

func toPutawayTaskDTO(t *domain.PutawayTask) PutawayTaskDTO {
	return PutawayTaskDTO{
		ID:             t.ID.Hex(),
		TaskNo:         t.TaskNo,
		SKUID:          t.SKUID,
		LocationID:     t.LocationID,
		GoodsReceiptID: t.GoodsReceiptID,
		FromBinID:      t.FromBinID,
		ToBinID:        t.ToBinID,
		Quantity:       t.Quantity,
		BatchNo:        t.BatchNo,
		Priority:       t.Priority,
		Status:         string(t.Status),
		AssignedToID:   t.AssignedToID,
		ActualBinID:    t.ActualBinID,
		ActualQty:      t.ActualQty,
		CompletedAt:    t.CompletedAt,
		CreatedAt:      t.CreatedAt,
	}
}

func toPutawayTaskDTOs(tasks []*domain.PutawayTask) []PutawayTaskDTO {
	dtos := make([]PutawayTaskDTO, 0, len(tasks))
	for _, t := range tasks {
		dtos = append(dtos, toPutawayTaskDTO(t))
	}
	return dtos
}
