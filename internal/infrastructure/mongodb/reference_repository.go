package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/allocation-service/internal/domain"
	"github.com/wms-platform/allocation-service/pkg/logging"
)

// ReferenceRepository resolves reference data projected from the order and
// catalog services: order channels and valuation policy overrides. Missing
// overrides resolve to empty values so policy resolution falls through.
type ReferenceRepository struct {
	orders    *mongo.Collection
	skus      *mongo.Collection
	locations *mongo.Collection
	companies *mongo.Collection
	logger    *logging.Logger
}

// NewReferenceRepository creates a ReferenceRepository
func NewReferenceRepository(db *mongo.Database, logger *logging.Logger) *ReferenceRepository {
	return &ReferenceRepository{
		orders:    db.Collection("orders"),
		skus:      db.Collection("skus"),
		locations: db.Collection("locations"),
		companies: db.Collection("companies"),
		logger:    logger.WithComponent("reference-repository"),
	}
}

// OrderChannel returns the sales channel of an order, or "" when the order
// carries none.
func (r *ReferenceRepository) OrderChannel(ctx context.Context, companyID, orderID string) (string, error) {
	var doc struct {
		Channel string `bson:"channel"`
	}
	err := r.orders.FindOne(ctx, bson.M{"companyId": companyID, "orderNo": orderID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", domain.ErrOrderNotFound
	}
	if err != nil {
		return "", fmt.Errorf("finding order channel: %w", err)
	}
	return doc.Channel, nil
}

// SKUValuation returns the SKU-level valuation override, "" when unset
func (r *ReferenceRepository) SKUValuation(ctx context.Context, companyID, skuID string) (domain.ValuationMethod, error) {
	return r.valuation(ctx, r.skus, bson.M{"companyId": companyID, "skuCode": skuID})
}

// LocationValuation returns the location-level valuation override
func (r *ReferenceRepository) LocationValuation(ctx context.Context, companyID, locationID string) (domain.ValuationMethod, error) {
	return r.valuation(ctx, r.locations, bson.M{"companyId": companyID, "locationCode": locationID})
}

// CompanyValuation returns the company default valuation method
func (r *ReferenceRepository) CompanyValuation(ctx context.Context, companyID string) (domain.ValuationMethod, error) {
	return r.valuation(ctx, r.companies, bson.M{"companyId": companyID})
}

func (r *ReferenceRepository) valuation(ctx context.Context, coll *mongo.Collection, filter bson.M) (domain.ValuationMethod, error) {
	var doc struct {
		ValuationMethod domain.ValuationMethod `bson:"valuationMethod"`
	}
	err := coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("finding valuation override: %w", err)
	}
	return doc.ValuationMethod, nil
}
