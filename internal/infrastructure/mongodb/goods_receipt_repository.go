package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/allocation-service/internal/domain"
	"github.com/wms-platform/allocation-service/pkg/logging"
)

// GoodsReceiptRepository reads the receiving read model, projected into
// this service's database by the receiving pipeline.
type GoodsReceiptRepository struct {
	collection *mongo.Collection
	logger     *logging.Logger
}

// NewGoodsReceiptRepository creates a GoodsReceiptRepository
func NewGoodsReceiptRepository(db *mongo.Database, logger *logging.Logger) *GoodsReceiptRepository {
	r := &GoodsReceiptRepository{
		collection: db.Collection("goods_receipts"),
		logger:     logger.WithComponent("goods-receipt-repository"),
	}
	r.ensureIndexes()
	return r
}

func (r *GoodsReceiptRepository) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "companyId", Value: 1},
				{Key: "grNo", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		r.logger.WithError(err).Warn("Failed to ensure goods_receipts indexes")
	}
}

// FindByGRNo fetches a goods receipt by its business number
func (r *GoodsReceiptRepository) FindByGRNo(ctx context.Context, companyID, grNo string) (*domain.GoodsReceipt, error) {
	var receipt domain.GoodsReceipt
	err := r.collection.FindOne(ctx, bson.M{"companyId": companyID, "grNo": grNo}).Decode(&receipt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrGoodsReceiptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding goods receipt: %w", err)
	}
	return &receipt, nil
}
