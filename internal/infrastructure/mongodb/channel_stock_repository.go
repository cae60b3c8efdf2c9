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

// ChannelStockRepository persists channel pool shadows with the same
// guarded updates as the ledger.
type ChannelStockRepository struct {
	collection *mongo.Collection
	logger     *logging.Logger
}

// NewChannelStockRepository creates a ChannelStockRepository
func NewChannelStockRepository(db *mongo.Database, logger *logging.Logger) *ChannelStockRepository {
	r := &ChannelStockRepository{
		collection: db.Collection("channel_stock_rows"),
		logger:     logger.WithComponent("channel-stock-repository"),
	}
	r.ensureIndexes()
	return r
}

func (r *ChannelStockRepository) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "companyId", Value: 1},
				{Key: "skuId", Value: 1},
				{Key: "locationId", Value: 1},
				{Key: "channel", Value: 1},
			},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		r.logger.WithError(err).Warn("Failed to ensure channel_stock_rows indexes")
	}
}

// FindByID fetches one channel row
func (r *ChannelStockRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.ChannelStockRow, error) {
	var row domain.ChannelStockRow
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrStockRowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding channel stock row: %w", err)
	}
	return &row, nil
}

// FindCandidates returns channel rows with available quantity
func (r *ChannelStockRepository) FindCandidates(ctx context.Context, companyID, skuID, locationID, channel string) ([]*domain.ChannelStockRow, error) {
	filter := bson.M{
		"companyId":  companyID,
		"skuId":      skuID,
		"locationId": locationID,
		"channel":    channel,
		"$expr":      bson.M{"$gt": bson.A{"$quantity", "$reservedQty"}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "fifoSequence", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("querying channel stock rows: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []*domain.ChannelStockRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decoding channel stock rows: %w", err)
	}
	return rows, nil
}

// Reserve atomically holds n units on a channel row
func (r *ChannelStockRepository) Reserve(ctx context.Context, id primitive.ObjectID, n int) error {
	if n <= 0 {
		return domain.ErrInvalidQuantity
	}

	filter := bson.M{
		"_id":   id,
		"$expr": bson.M{"$gte": bson.A{bson.M{"$subtract": bson.A{"$quantity", "$reservedQty"}}, n}},
	}
	update := bson.M{
		"$inc": bson.M{"reservedQty": n},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("reserving channel stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.missOrGuard(ctx, id, domain.ErrInsufficientAvailable, n)
	}
	return nil
}

// Release returns up to n reserved units, flooring at zero
func (r *ChannelStockRepository) Release(ctx context.Context, id primitive.ObjectID, n int) error {
	if n <= 0 {
		return domain.ErrInvalidQuantity
	}

	update := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.M{
			"reservedQty": bson.M{"$max": bson.A{0, bson.M{"$subtract": bson.A{"$reservedQty", n}}}},
			"updatedAt":   time.Now().UTC(),
		}}},
	}

	res, err := r.collection.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("releasing channel stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrStockRowNotFound
	}
	return nil
}

// Consume converts a channel reservation into consumption
func (r *ChannelStockRepository) Consume(ctx context.Context, id primitive.ObjectID, pickedQty, allocatedQty int) error {
	if pickedQty < 0 || allocatedQty < 0 {
		return domain.ErrInvalidQuantity
	}

	filter := bson.M{
		"_id":      id,
		"quantity": bson.M{"$gte": pickedQty},
	}
	update := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.M{
			"quantity":    bson.M{"$subtract": bson.A{"$quantity", pickedQty}},
			"reservedQty": bson.M{"$max": bson.A{0, bson.M{"$subtract": bson.A{"$reservedQty", allocatedQty}}}},
			"updatedAt":   time.Now().UTC(),
		}}},
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("consuming channel stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.missOrGuard(ctx, id, domain.ErrInsufficientStock, pickedQty)
	}
	return nil
}

func (r *ChannelStockRepository) missOrGuard(ctx context.Context, id primitive.ObjectID, guardErr error, n int) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("checking channel row existence: %w", err)
	}
	if count == 0 {
		return domain.ErrStockRowNotFound
	}
	return fmt.Errorf("%w: requested %d", guardErr, n)
}
