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

// StockRepository persists ledger rows in the stock_rows collection.
// Invariant-sensitive mutations use guarded atomic updates so concurrent
// allocators cannot oversell a row.
type StockRepository struct {
	collection *mongo.Collection
	logger     *logging.Logger
}

// NewStockRepository creates a StockRepository and ensures its indexes
func NewStockRepository(db *mongo.Database, logger *logging.Logger) *StockRepository {
	r := &StockRepository{
		collection: db.Collection("stock_rows"),
		logger:     logger.WithComponent("stock-repository"),
	}
	r.ensureIndexes()
	return r
}

func (r *StockRepository) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "companyId", Value: 1},
				{Key: "skuId", Value: 1},
				{Key: "locationId", Value: 1},
				{Key: "binId", Value: 1},
				{Key: "batchNo", Value: 1},
				{Key: "lotNo", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			// Assigned sequences are unique per pair; a stale max+1 loses the
			// race here instead of committing a duplicate.
			Keys: bson.D{
				{Key: "companyId", Value: 1},
				{Key: "skuId", Value: 1},
				{Key: "locationId", Value: 1},
				{Key: "fifoSequence", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"fifoSequence": bson.M{"$gt": 0}}),
		},
		{
			Keys: bson.D{
				{Key: "companyId", Value: 1},
				{Key: "locationId", Value: 1},
				{Key: "binId", Value: 1},
			},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		r.logger.WithError(err).Warn("Failed to ensure stock_rows indexes")
	}
}

// InsertOrMerge upserts on the row key, incrementing quantity when the row
// already exists. Returns the post-write state.
func (r *StockRepository) InsertOrMerge(ctx context.Context, row *domain.StockRow) (*domain.StockRow, error) {
	now := time.Now().UTC()
	key := row.Key()

	filter := bson.M{
		"companyId":  key.CompanyID,
		"skuId":      key.SKUID,
		"locationId": key.LocationID,
		"binId":      key.BinID,
		"batchNo":    key.BatchNo,
		"lotNo":      key.LotNo,
	}

	setOnInsert := bson.M{
		"companyId":    key.CompanyID,
		"skuId":        key.SKUID,
		"locationId":   key.LocationID,
		"binId":        key.BinID,
		"batchNo":      key.BatchNo,
		"lotNo":        key.LotNo,
		"reservedQty":  0,
		"fifoSequence": 0,
		"createdAt":    now,
	}
	if row.ExpiryDate != nil {
		setOnInsert["expiryDate"] = *row.ExpiryDate
	}
	if row.MfgDate != nil {
		setOnInsert["mfgDate"] = *row.MfgDate
	}
	if row.CostPrice != nil {
		setOnInsert["costPrice"] = *row.CostPrice
	}
	if row.MRP != nil {
		setOnInsert["mrp"] = *row.MRP
	}
	if len(row.SerialNumbers) > 0 {
		setOnInsert["serialNumbers"] = row.SerialNumbers
	}
	if row.ValuationMethod != "" {
		setOnInsert["valuationMethod"] = row.ValuationMethod
	}

	update := bson.M{
		"$inc":         bson.M{"quantity": row.Quantity},
		"$set":         bson.M{"updatedAt": now},
		"$setOnInsert": setOnInsert,
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var merged domain.StockRow
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&merged); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrConflict, err)
		}
		return nil, fmt.Errorf("upserting stock row: %w", err)
	}
	return &merged, nil
}

// FindByID fetches one row
func (r *StockRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.StockRow, error) {
	var row domain.StockRow
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrStockRowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding stock row: %w", err)
	}
	return &row, nil
}

// FindByKey fetches the row for a ledger key
func (r *StockRepository) FindByKey(ctx context.Context, key domain.StockKey) (*domain.StockRow, error) {
	filter := bson.M{
		"companyId":  key.CompanyID,
		"skuId":      key.SKUID,
		"locationId": key.LocationID,
		"binId":      key.BinID,
		"batchNo":    key.BatchNo,
		"lotNo":      key.LotNo,
	}
	var row domain.StockRow
	err := r.collection.FindOne(ctx, filter).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrStockRowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding stock row by key: %w", err)
	}
	return &row, nil
}

// FindCandidates returns rows with available quantity for the pair, in
// fifoSequence order as a stable base for policy sorting.
func (r *StockRepository) FindCandidates(ctx context.Context, companyID, skuID, locationID string) ([]*domain.StockRow, error) {
	filter := bson.M{
		"companyId":  companyID,
		"skuId":      skuID,
		"locationId": locationID,
		"$expr":      bson.M{"$gt": bson.A{"$quantity", "$reservedQty"}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "fifoSequence", Value: 1}})
	return r.findRows(ctx, filter, opts)
}

// FindActive returns rows with quantity > 0 ordered by creation
func (r *StockRepository) FindActive(ctx context.Context, companyID, skuID, locationID string) ([]*domain.StockRow, error) {
	filter := bson.M{
		"companyId":  companyID,
		"skuId":      skuID,
		"locationId": locationID,
		"quantity":   bson.M{"$gt": 0},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	return r.findRows(ctx, filter, opts)
}

func (r *StockRepository) findRows(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.StockRow, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("querying stock rows: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []*domain.StockRow
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decoding stock rows: %w", err)
	}
	return rows, nil
}

// Reserve atomically holds n units, failing when fewer are available.
func (r *StockRepository) Reserve(ctx context.Context, id primitive.ObjectID, n int) error {
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
		return fmt.Errorf("reserving stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.missOrInvariant(ctx, id, domain.ErrInsufficientAvailable, n)
	}
	return nil
}

// Release returns up to n reserved units, flooring at zero. Never fails on
// drifted counts.
func (r *StockRepository) Release(ctx context.Context, id primitive.ObjectID, n int) error {
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
		return fmt.Errorf("releasing stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrStockRowNotFound
	}
	return nil
}

// Consume decrements quantity by pickedQty and reservedQty by allocatedQty
// (floor zero) in one guarded update.
func (r *StockRepository) Consume(ctx context.Context, id primitive.ObjectID, pickedQty, allocatedQty int) error {
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
		return fmt.Errorf("consuming stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.missOrInvariant(ctx, id, domain.ErrInsufficientStock, pickedQty)
	}
	return nil
}

// AddQuantity increments on-hand quantity
func (r *StockRepository) AddQuantity(ctx context.Context, id primitive.ObjectID, n int) error {
	if n <= 0 {
		return domain.ErrInvalidQuantity
	}
	res, err := r.collection.UpdateByID(ctx, id, bson.M{
		"$inc": bson.M{"quantity": n},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("adding stock quantity: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrStockRowNotFound
	}
	return nil
}

// Delete removes a row
func (r *StockRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("deleting stock row: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrStockRowNotFound
	}
	return nil
}

// MaxSequence returns the highest fifoSequence for the pair, 0 when none
func (r *StockRepository) MaxSequence(ctx context.Context, companyID, skuID, locationID string) (int, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"companyId":  companyID,
			"skuId":      skuID,
			"locationId": locationID,
		}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id": nil,
			"max": bson.M{"$max": "$fifoSequence"},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("aggregating max sequence: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Max int `bson:"max"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("decoding max sequence: %w", err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Max, nil
}

// SetSequence writes the row's fifoSequence. A concurrent writer holding
// the same sequence surfaces as ErrConflict through the unique index.
func (r *StockRepository) SetSequence(ctx context.Context, id primitive.ObjectID, seq int) error {
	res, err := r.collection.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"fifoSequence": seq, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: fifoSequence %d already assigned", domain.ErrConflict, seq)
		}
		return fmt.Errorf("setting fifo sequence: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrStockRowNotFound
	}
	return nil
}

// ClearSequences zeroes every fifoSequence of the pair so a renumbering
// pass cannot collide with the sequences it is replacing.
func (r *StockRepository) ClearSequences(ctx context.Context, companyID, skuID, locationID string) error {
	_, err := r.collection.UpdateMany(ctx, bson.M{
		"companyId":    companyID,
		"skuId":        skuID,
		"locationId":   locationID,
		"fifoSequence": bson.M{"$gt": 0},
	}, bson.M{
		"$set": bson.M{"fifoSequence": 0, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("clearing fifo sequences: %w", err)
	}
	return nil
}

// ListSequencePairs enumerates the company's (sku, location) pairs
func (r *StockRepository) ListSequencePairs(ctx context.Context, companyID string) ([]domain.SequencePair, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"companyId": companyID}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id": bson.M{"skuId": "$skuId", "locationId": "$locationId"},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("listing sequence pairs: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		ID domain.SequencePair `bson:"_id"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decoding sequence pairs: %w", err)
	}

	pairs := make([]domain.SequencePair, 0, len(results))
	for _, res := range results {
		pairs = append(pairs, res.ID)
	}
	return pairs, nil
}

// SummarizeBinOccupancy reports stocked quantities per bin, split into the
// given SKU and everything else. Used by putaway scoring.
func (r *StockRepository) SummarizeBinOccupancy(ctx context.Context, companyID, locationID, skuID string) (map[string]domain.BinOccupancy, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"companyId":  companyID,
			"locationId": locationID,
			"quantity":   bson.M{"$gt": 0},
		}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id": "$binId",
			"sameSku": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$skuId", skuID}}, "$quantity", 0,
			}}},
			"otherSku": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$ne": bson.A{"$skuId", skuID}}, "$quantity", 0,
			}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("summarising bin occupancy: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		BinID    string `bson:"_id"`
		SameSKU  int    `bson:"sameSku"`
		OtherSKU int    `bson:"otherSku"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decoding bin occupancy: %w", err)
	}

	occupancy := make(map[string]domain.BinOccupancy, len(results))
	for _, res := range results {
		occupancy[res.BinID] = domain.BinOccupancy{
			SameSKUQty:  res.SameSKU,
			OtherSKUQty: res.OtherSKU,
		}
	}
	return occupancy, nil
}

// missOrInvariant distinguishes a missing row from a failed guard.
func (r *StockRepository) missOrInvariant(ctx context.Context, id primitive.ObjectID, guardErr error, n int) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("checking stock row existence: %w", err)
	}
	if count == 0 {
		return domain.ErrStockRowNotFound
	}
	return fmt.Errorf("%w: requested %d", guardErr, n)
}
