package domain

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PutawayStatus represents the lifecycle state of a putaway task
type PutawayStatus string

const (
	PutawayStatusPending    PutawayStatus = "PENDING"
	PutawayStatusAssigned   PutawayStatus = "ASSIGNED"
	PutawayStatusInProgress PutawayStatus = "IN_PROGRESS"
	PutawayStatusCompleted  PutawayStatus = "COMPLETED"
	PutawayStatusCancelled  PutawayStatus = "CANCELLED"
)

// CanTransitionTo checks if a status transition is valid
func (s PutawayStatus) CanTransitionTo(target PutawayStatus) bool {
	transitions := map[PutawayStatus][]PutawayStatus{
		PutawayStatusPending:    {PutawayStatusAssigned, PutawayStatusInProgress, PutawayStatusCompleted, PutawayStatusCancelled},
		PutawayStatusAssigned:   {PutawayStatusAssigned, PutawayStatusInProgress, PutawayStatusCompleted, PutawayStatusCancelled},
		PutawayStatusInProgress: {PutawayStatusCompleted, PutawayStatusCancelled},
		PutawayStatusCompleted:  {},
		PutawayStatusCancelled:  {},
	}
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status is final
func (s PutawayStatus) IsTerminal() bool {
	return s == PutawayStatusCompleted || s == PutawayStatusCancelled
}

const DefaultPutawayPriority = 5

// PutawayTask moves received stock from staging into a storage bin.
type PutawayTask struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TaskNo    string             `bson:"taskNo" json:"taskNo"`
	CompanyID string             `bson:"companyId" json:"companyId"`

	GoodsReceiptID     string `bson:"goodsReceiptId,omitempty" json:"goodsReceiptId,omitempty"`
	GoodsReceiptItemID string `bson:"goodsReceiptItemId,omitempty" json:"goodsReceiptItemId,omitempty"`

	SKUID      string `bson:"skuId" json:"skuId"`
	LocationID string `bson:"locationId" json:"locationId"`
	FromBinID  string `bson:"fromBinId,omitempty" json:"fromBinId,omitempty"`
	ToBinID    string `bson:"toBinId" json:"toBinId"`
	Quantity   int    `bson:"quantity" json:"quantity"`

	BatchNo    string     `bson:"batchNo,omitempty" json:"batchNo,omitempty"`
	LotNo      string     `bson:"lotNo,omitempty" json:"lotNo,omitempty"`
	ExpiryDate *time.Time `bson:"expiryDate,omitempty" json:"expiryDate,omitempty"`
	MfgDate    *time.Time `bson:"mfgDate,omitempty" json:"mfgDate,omitempty"`
	CostPrice  *float64   `bson:"costPrice,omitempty" json:"costPrice,omitempty"`
	MRP        *float64   `bson:"mrp,omitempty" json:"mrp,omitempty"`

	Priority int           `bson:"priority" json:"priority"`
	Status   PutawayStatus `bson:"status" json:"status"`

	AssignedToID string     `bson:"assignedToId,omitempty" json:"assignedToId,omitempty"`
	AssignedByID string     `bson:"assignedById,omitempty" json:"assignedById,omitempty"`
	AssignedAt   *time.Time `bson:"assignedAt,omitempty" json:"assignedAt,omitempty"`
	StartedAt    *time.Time `bson:"startedAt,omitempty" json:"startedAt,omitempty"`

	ActualBinID   string     `bson:"actualBinId,omitempty" json:"actualBinId,omitempty"`
	ActualQty     *int       `bson:"actualQty,omitempty" json:"actualQty,omitempty"`
	Notes         string     `bson:"notes,omitempty" json:"notes,omitempty"`
	CompletedByID string     `bson:"completedById,omitempty" json:"completedById,omitempty"`
	CompletedAt   *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CancelledByID string     `bson:"cancelledById,omitempty" json:"cancelledById,omitempty"`
	CancelledAt   *time.Time `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CancelReason  string     `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	events []DomainEvent
}

// NewPutawayTaskParams carries the fields needed to create a task
type NewPutawayTaskParams struct {
	CompanyID          string
	GoodsReceiptID     string
	GoodsReceiptItemID string
	SKUID              string
	LocationID         string
	FromBinID          string
	ToBinID            string
	Quantity           int
	BatchNo            string
	LotNo              string
	ExpiryDate         *time.Time
	MfgDate            *time.Time
	CostPrice          *float64
	MRP                *float64
}

// NewPutawayTask creates a PENDING task at default priority.
func NewPutawayTask(p NewPutawayTaskParams) (*PutawayTask, error) {
	if p.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if p.ToBinID == "" {
		return nil, fmt.Errorf("%w: target bin required", ErrBinNotFound)
	}
	now := time.Now().UTC()
	return &PutawayTask{
		CompanyID:          p.CompanyID,
		GoodsReceiptID:     p.GoodsReceiptID,
		GoodsReceiptItemID: p.GoodsReceiptItemID,
		SKUID:              p.SKUID,
		LocationID:         p.LocationID,
		FromBinID:          p.FromBinID,
		ToBinID:            p.ToBinID,
		Quantity:           p.Quantity,
		BatchNo:            p.BatchNo,
		LotNo:              p.LotNo,
		ExpiryDate:         p.ExpiryDate,
		MfgDate:            p.MfgDate,
		CostPrice:          p.CostPrice,
		MRP:                p.MRP,
		Priority:           DefaultPutawayPriority,
		Status:             PutawayStatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// RecordCreated appends the creation event once the task number is set.
func (t *PutawayTask) RecordCreated() {
	t.addEvent(PutawayTaskCreatedEvent{
		TaskNo:         t.TaskNo,
		CompanyID:      t.CompanyID,
		SKUID:          t.SKUID,
		GoodsReceiptID: t.GoodsReceiptID,
		ToBinID:        t.ToBinID,
		Quantity:       t.Quantity,
		Timestamp:      t.CreatedAt,
	})
}

// Assign hands the task to a worker. Allowed from PENDING or ASSIGNED;
// re-assignment replaces the previous assignee.
func (t *PutawayTask) Assign(assigneeID, assignerID string) error {
	if t.Status != PutawayStatusPending && t.Status != PutawayStatusAssigned {
		return fmt.Errorf("%w: cannot assign task in status %s", ErrInvalidTransition, t.Status)
	}
	now := time.Now().UTC()
	t.Status = PutawayStatusAssigned
	t.AssignedToID = assigneeID
	t.AssignedByID = assignerID
	t.AssignedAt = &now
	t.UpdatedAt = now
	return nil
}

// Start begins task execution, auto-assigning the starting user when the
// task has no assignee.
func (t *PutawayTask) Start(userID string) error {
	if t.Status != PutawayStatusPending && t.Status != PutawayStatusAssigned {
		return fmt.Errorf("%w: cannot start task in status %s", ErrInvalidTransition, t.Status)
	}
	now := time.Now().UTC()
	if t.AssignedToID == "" {
		t.AssignedToID = userID
		t.AssignedAt = &now
	}
	t.Status = PutawayStatusInProgress
	t.StartedAt = &now
	t.UpdatedAt = now
	return nil
}

// Complete finishes the task, recording actual bin and quantity deviations.
// The ledger posting happens in the application layer inside the same
// transaction.
func (t *PutawayTask) Complete(completerID, actualBinID string, actualQty *int, notes string) error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: cannot complete task in status %s", ErrInvalidTransition, t.Status)
	}
	if actualQty != nil && *actualQty <= 0 {
		return ErrInvalidQuantity
	}
	now := time.Now().UTC()
	t.ActualBinID = actualBinID
	t.ActualQty = actualQty
	t.Notes = notes
	t.Status = PutawayStatusCompleted
	t.CompletedByID = completerID
	t.CompletedAt = &now
	t.UpdatedAt = now

	t.addEvent(PutawayTaskCompletedEvent{
		TaskNo:    t.TaskNo,
		CompanyID: t.CompanyID,
		SKUID:     t.SKUID,
		BinID:     t.FinalBinID(),
		Quantity:  t.FinalQty(),
		Timestamp: now,
	})
	return nil
}

// Cancel aborts a non-terminal task without touching the ledger.
func (t *PutawayTask) Cancel(actorID, reason string) error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: cannot cancel task in status %s", ErrInvalidTransition, t.Status)
	}
	now := time.Now().UTC()
	t.Status = PutawayStatusCancelled
	t.CancelledByID = actorID
	t.CancelledAt = &now
	t.CancelReason = reason
	t.UpdatedAt = now

	t.addEvent(PutawayTaskCancelledEvent{
		TaskNo:    t.TaskNo,
		CompanyID: t.CompanyID,
		Reason:    reason,
		Timestamp: now,
	})
	return nil
}

// FinalBinID resolves where the stock actually landed
func (t *PutawayTask) FinalBinID() string {
	if t.ActualBinID != "" {
		return t.ActualBinID
	}
	return t.ToBinID
}

// FinalQty resolves the quantity that actually landed
func (t *PutawayTask) FinalQty() int {
	if t.ActualQty != nil {
		return *t.ActualQty
	}
	return t.Quantity
}

func (t *PutawayTask) addEvent(event DomainEvent) {
	t.events = append(t.events, event)
}

// Events returns uncommitted domain events
func (t *PutawayTask) Events() []DomainEvent {
	return t.events
}

// ClearEvents drops uncommitted events after publication
func (t *PutawayTask) ClearEvents() {
	t.events = nil
}
