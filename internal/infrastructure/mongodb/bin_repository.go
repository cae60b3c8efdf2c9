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

// BinRepository persists bins. Unit increments are capacity-guarded in the
// update filter so two racing putaway completions cannot overfill a bin.
type BinRepository struct {
	collection *mongo.Collection
	logger     *logging.Logger
}

// NewBinRepository creates a BinRepository
func NewBinRepository(db *mongo.Database, logger *logging.Logger) *BinRepository {
	r := &BinRepository{
		collection: db.Collection("bins"),
		logger:     logger.WithComponent("bin-repository"),
	}
	r.ensureIndexes()
	return r
}

func (r *BinRepository) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "companyId", Value: 1},
				{Key: "binId", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "companyId", Value: 1}, {Key: "locationId", Value: 1}},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		r.logger.WithError(err).Warn("Failed to ensure bins indexes")
	}
}

// FindByBinID fetches one bin
func (r *BinRepository) FindByBinID(ctx context.Context, companyID, binID string) (*domain.Bin, error) {
	var bin domain.Bin
	err := r.collection.FindOne(ctx, bson.M{"companyId": companyID, "binId": binID}).Decode(&bin)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrBinNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding bin: %w", err)
	}
	return &bin, nil
}

// FindByLocation lists the location's bins in pick-walk order
func (r *BinRepository) FindByLocation(ctx context.Context, companyID, locationID string) ([]*domain.Bin, error) {
	opts := options.Find().SetSort(bson.D{{Key: "pickSequence", Value: 1}, {Key: "binId", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"companyId": companyID, "locationId": locationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying bins: %w", err)
	}
	defer cursor.Close(ctx)

	var bins []*domain.Bin
	if err := cursor.All(ctx, &bins); err != nil {
		return nil, fmt.Errorf("decoding bins: %w", err)
	}
	return bins, nil
}

// AddUnits increments currentUnits, rejecting increments past maxUnits for
// bins that track capacity.
func (r *BinRepository) AddUnits(ctx context.Context, companyID, binID string, n int) error {
	if n <= 0 {
		return domain.ErrInvalidQuantity
	}

	filter := bson.M{
		"companyId": companyID,
		"binId":     binID,
		"$or": bson.A{
			bson.M{"maxUnits": bson.M{"$exists": false}},
			bson.M{"maxUnits": nil},
			bson.M{"$expr": bson.M{"$lte": bson.A{bson.M{"$add": bson.A{"$currentUnits", n}}, "$maxUnits"}}},
		},
	}
	update := bson.M{
		"$inc": bson.M{"currentUnits": n},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("adding bin units: %w", err)
	}
	if res.MatchedCount == 0 {
		count, err := r.collection.CountDocuments(ctx, bson.M{"companyId": companyID, "binId": binID})
		if err != nil {
			return fmt.Errorf("checking bin existence: %w", err)
		}
		if count == 0 {
			return domain.ErrBinNotFound
		}
		return fmt.Errorf("%w: bin %s cannot take %d more units", domain.ErrBinCapacityExceeded, binID, n)
	}
	return nil
}
