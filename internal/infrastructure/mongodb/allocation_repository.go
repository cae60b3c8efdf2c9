package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/allocation-service/internal/domain"
	"github.com/wms-platform/allocation-service/pkg/logging"
)

// AllocationRepository persists allocations and issues allocation numbers
// from an atomic counter.
type AllocationRepository struct {
	collection *mongo.Collection
	counters   *mongo.Collection
	logger     *logging.Logger
}

// NewAllocationRepository creates an AllocationRepository
func NewAllocationRepository(db *mongo.Database, logger *logging.Logger) *AllocationRepository {
	r := &AllocationRepository{
		collection: db.Collection("allocations"),
		counters:   db.Collection(countersCollection),
		logger:     logger.WithComponent("allocation-repository"),
	}
	r.ensureIndexes()
	return r
}

func (r *AllocationRepository) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "companyId", Value: 1},
				{Key: "allocationNo", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "companyId", Value: 1}, {Key: "orderId", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "companyId", Value: 1}, {Key: "waveId", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "inventoryId", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "companyId", Value: 1}, {Key: "picklistId", Value: 1}},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		r.logger.WithError(err).Warn("Failed to ensure allocations indexes")
	}
}

// NextAllocationNo issues the next "ALLOC-########" number for a company
func (r *AllocationRepository) NextAllocationNo(ctx context.Context, companyID string) (string, error) {
	seq, err := nextCounter(ctx, r.counters, "allocation:"+companyID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALLOC-%08d", seq), nil
}

// Insert stores a new allocation. Duplicate allocation numbers surface as
// conflicts for the caller to retry.
func (r *AllocationRepository) Insert(ctx context.Context, a *domain.Allocation) error {
	res, err := r.collection.InsertOne(ctx, a)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: allocationNo %s", domain.ErrConflict, a.AllocationNo)
		}
		return fmt.Errorf("inserting allocation: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		a.ID = oid
	}
	return nil
}

// FindByID fetches one allocation
func (r *AllocationRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.Allocation, error) {
	var a domain.Allocation
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrAllocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding allocation: %w", err)
	}
	return &a, nil
}

// FindActiveByOrder lists ALLOCATED allocations of an order
func (r *AllocationRepository) FindActiveByOrder(ctx context.Context, companyID, orderID string) ([]*domain.Allocation, error) {
	return r.findActive(ctx, bson.M{
		"companyId": companyID,
		"orderId":   orderID,
		"status":    domain.AllocationStatusAllocated,
	})
}

// FindActiveByWave lists ALLOCATED allocations of a wave
func (r *AllocationRepository) FindActiveByWave(ctx context.Context, companyID, waveID string) ([]*domain.Allocation, error) {
	return r.findActive(ctx, bson.M{
		"companyId": companyID,
		"waveId":    waveID,
		"status":    domain.AllocationStatusAllocated,
	})
}

func (r *AllocationRepository) findActive(ctx context.Context, filter bson.M) ([]*domain.Allocation, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("querying allocations: %w", err)
	}
	defer cursor.Close(ctx)

	var allocations []*domain.Allocation
	if err := cursor.All(ctx, &allocations); err != nil {
		return nil, fmt.Errorf("decoding allocations: %w", err)
	}
	return allocations, nil
}

// Update replaces the allocation document, guarded on the status it was
// read at. A racing transition wins and this write reports a conflict.
func (r *AllocationRepository) Update(ctx context.Context, a *domain.Allocation, from domain.AllocationStatus) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": a.ID, "status": from}, a)
	if err != nil {
		return fmt.Errorf("updating allocation: %w", err)
	}
	if res.MatchedCount == 0 {
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": a.ID})
		if err != nil {
			return fmt.Errorf("checking allocation existence: %w", err)
		}
		if count == 0 {
			return domain.ErrAllocationNotFound
		}
		return fmt.Errorf("%w: allocation %s left status %s", domain.ErrConflict, a.AllocationNo, from)
	}
	return nil
}
