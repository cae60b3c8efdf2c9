package domain

import "time"

// DomainEvent is implemented by all events raised by aggregates
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// AllocationCreatedEvent is raised when stock is reserved for an order
type AllocationCreatedEvent struct {
	AllocationNo string    `json:"allocationNo"`
	CompanyID    string    `json:"companyId"`
	SKUID        string    `json:"skuId"`
	BinID        string    `json:"binId"`
	OrderID      string    `json:"orderId,omitempty"`
	Channel      string    `json:"channel,omitempty"`
	AllocatedQty int       `json:"allocatedQty"`
	Timestamp    time.Time `json:"timestamp"`
}

func (e AllocationCreatedEvent) EventType() string     { return "allocation.created" }
func (e AllocationCreatedEvent) OccurredAt() time.Time { return e.Timestamp }

// AllocationCancelledEvent is raised when a reservation is released
type AllocationCancelledEvent struct {
	AllocationNo string    `json:"allocationNo"`
	CompanyID    string    `json:"companyId"`
	SKUID        string    `json:"skuId"`
	ReleasedQty  int       `json:"releasedQty"`
	Timestamp    time.Time `json:"timestamp"`
}

func (e AllocationCancelledEvent) EventType() string     { return "allocation.cancelled" }
func (e AllocationCancelledEvent) OccurredAt() time.Time { return e.Timestamp }

// PickConfirmedEvent is raised when an allocation is picked
type PickConfirmedEvent struct {
	AllocationNo string    `json:"allocationNo"`
	CompanyID    string    `json:"companyId"`
	SKUID        string    `json:"skuId"`
	AllocatedQty int       `json:"allocatedQty"`
	PickedQty    int       `json:"pickedQty"`
	Timestamp    time.Time `json:"timestamp"`
}

func (e PickConfirmedEvent) EventType() string     { return "allocation.pick_confirmed" }
func (e PickConfirmedEvent) OccurredAt() time.Time { return e.Timestamp }

// StockRowCreatedEvent is raised when a new ledger row materialises
type StockRowCreatedEvent struct {
	CompanyID    string    `json:"companyId"`
	SKUID        string    `json:"skuId"`
	LocationID   string    `json:"locationId"`
	BinID        string    `json:"binId"`
	BatchNo      string    `json:"batchNo,omitempty"`
	Quantity     int       `json:"quantity"`
	FIFOSequence int       `json:"fifoSequence"`
	Timestamp    time.Time `json:"timestamp"`
}

func (e StockRowCreatedEvent) EventType() string     { return "stock.row_created" }
func (e StockRowCreatedEvent) OccurredAt() time.Time { return e.Timestamp }

// PutawayTaskCreatedEvent is raised when a putaway task is generated
type PutawayTaskCreatedEvent struct {
	TaskNo         string    `json:"taskNo"`
	CompanyID      string    `json:"companyId"`
	SKUID          string    `json:"skuId"`
	GoodsReceiptID string    `json:"goodsReceiptId"`
	ToBinID        string    `json:"toBinId"`
	Quantity       int       `json:"quantity"`
	Timestamp      time.Time `json:"timestamp"`
}

func (e PutawayTaskCreatedEvent) EventType() string     { return "putaway.task_created" }
func (e PutawayTaskCreatedEvent) OccurredAt() time.Time { return e.Timestamp }

// PutawayTaskCompletedEvent is raised when stock lands in its final bin
type PutawayTaskCompletedEvent struct {
	TaskNo    string    `json:"taskNo"`
	CompanyID string    `json:"companyId"`
	SKUID     string    `json:"skuId"`
	BinID     string    `json:"binId"`
	Quantity  int       `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

func (e PutawayTaskCompletedEvent) EventType() string     { return "putaway.task_completed" }
func (e PutawayTaskCompletedEvent) OccurredAt() time.Time { return e.Timestamp }

// PutawayTaskCancelledEvent is raised when a task is cancelled
type PutawayTaskCancelledEvent struct {
	TaskNo    string    `json:"taskNo"`
	CompanyID string    `json:"companyId"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e PutawayTaskCancelledEvent) EventType() string     { return "putaway.task_cancelled" }
func (e PutawayTaskCancelledEvent) OccurredAt() time.Time { return e.Timestamp }
