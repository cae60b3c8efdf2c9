package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GoodsReceiptStatus represents receipt processing state
type GoodsReceiptStatus string

const (
	GoodsReceiptStatusOpen      GoodsReceiptStatus = "OPEN"
	GoodsReceiptStatusCompleted GoodsReceiptStatus = "COMPLETED"
	GoodsReceiptStatusCancelled GoodsReceiptStatus = "CANCELLED"
)

// GoodsReceiptItem is one received line. AcceptedQty drives putaway task
// generation; rejected units never reach the ledger.
type GoodsReceiptItem struct {
	ItemID       string     `bson:"itemId" json:"itemId"`
	SKUID        string     `bson:"skuId" json:"skuId"`
	ReceivedQty  int        `bson:"receivedQty" json:"receivedQty"`
	AcceptedQty  int        `bson:"acceptedQty" json:"acceptedQty"`
	RejectedQty  int        `bson:"rejectedQty" json:"rejectedQty"`
	TargetBinID  string     `bson:"targetBinId,omitempty" json:"targetBinId,omitempty"`
	StagingBinID string     `bson:"stagingBinId,omitempty" json:"stagingBinId,omitempty"`
	BatchNo      string     `bson:"batchNo,omitempty" json:"batchNo,omitempty"`
	LotNo        string     `bson:"lotNo,omitempty" json:"lotNo,omitempty"`
	ExpiryDate   *time.Time `bson:"expiryDate,omitempty" json:"expiryDate,omitempty"`
	MfgDate      *time.Time `bson:"mfgDate,omitempty" json:"mfgDate,omitempty"`
	CostPrice    *float64   `bson:"costPrice,omitempty" json:"costPrice,omitempty"`
	MRP          *float64   `bson:"mrp,omitempty" json:"mrp,omitempty"`
}

// GoodsReceipt is the read model of a receiving document. The receiving
// surface itself lives in another service; this service only consumes
// accepted lines to spawn putaway tasks.
type GoodsReceipt struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GRNo       string             `bson:"grNo" json:"grNo"`
	CompanyID  string             `bson:"companyId" json:"companyId"`
	LocationID string             `bson:"locationId" json:"locationId"`
	Status     GoodsReceiptStatus `bson:"status" json:"status"`
	Items      []GoodsReceiptItem `bson:"items" json:"items"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}
