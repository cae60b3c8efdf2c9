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

// PutawayTaskRepository persists putaway tasks. Task numbers run per
// company per day from an atomic counter.
type PutawayTaskRepository struct {
	collection *mongo.Collection
	counters   *mongo.Collection
	logger     *logging.Logger
}

// NewPutawayTaskRepository creates a PutawayTaskRepository
func NewPutawayTaskRepository(db *mongo.Database, logger *logging.Logger) *PutawayTaskRepository {
	r := &PutawayTaskRepository{
		collection: db.Collection("putaway_tasks"),
		counters:   db.Collection(countersCollection),
		logger:     logger.WithComponent("putaway-task-repository"),
	}
	r.ensureIndexes()
	return r
}

func (r *PutawayTaskRepository) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "companyId", Value: 1},
				{Key: "taskNo", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "companyId", Value: 1}, {Key: "locationId", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "companyId", Value: 1}, {Key: "assignedToId", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "companyId", Value: 1}, {Key: "toBinId", Value: 1}},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		r.logger.WithError(err).Warn("Failed to ensure putaway_tasks indexes")
	}
}

// NextTaskNo issues the next "PUT-YYYYMMDD-####" number for the day
func (r *PutawayTaskRepository) NextTaskNo(ctx context.Context, companyID string, day time.Time) (string, error) {
	dayKey := day.UTC().Format("20060102")
	seq, err := nextCounter(ctx, r.counters, fmt.Sprintf("putaway:%s:%s", companyID, dayKey))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PUT-%s-%04d", dayKey, seq), nil
}

// Insert stores a new task
func (r *PutawayTaskRepository) Insert(ctx context.Context, task *domain.PutawayTask) error {
	res, err := r.collection.InsertOne(ctx, task)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: taskNo %s", domain.ErrConflict, task.TaskNo)
		}
		return fmt.Errorf("inserting putaway task: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		task.ID = oid
	}
	return nil
}

// FindByID fetches one task
func (r *PutawayTaskRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*domain.PutawayTask, error) {
	var task domain.PutawayTask
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding putaway task: %w", err)
	}
	return &task, nil
}

// FindByTaskNo fetches a task by its business number
func (r *PutawayTaskRepository) FindByTaskNo(ctx context.Context, companyID, taskNo string) (*domain.PutawayTask, error) {
	var task domain.PutawayTask
	err := r.collection.FindOne(ctx, bson.M{"companyId": companyID, "taskNo": taskNo}).Decode(&task)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding putaway task by number: %w", err)
	}
	return &task, nil
}

// Update replaces the task document, guarded on the status it was read at.
// A racing transition wins and this write reports a conflict, so a late
// cancel can never overwrite a completed task.
func (r *PutawayTaskRepository) Update(ctx context.Context, task *domain.PutawayTask, from domain.PutawayStatus) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": task.ID, "status": from}, task)
	if err != nil {
		return fmt.Errorf("updating putaway task: %w", err)
	}
	if res.MatchedCount == 0 {
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": task.ID})
		if err != nil {
			return fmt.Errorf("checking putaway task existence: %w", err)
		}
		if count == 0 {
			return domain.ErrTaskNotFound
		}
		return fmt.Errorf("%w: task %s left status %s", domain.ErrConflict, task.TaskNo, from)
	}
	return nil
}

// Summary counts tasks by status at a location
func (r *PutawayTaskRepository) Summary(ctx context.Context, companyID, locationID string) (*domain.PutawaySummary, error) {
	base := bson.M{"companyId": companyID}
	if locationID != "" {
		base["locationId"] = locationID
	}

	count := func(extra bson.M) (int, error) {
		filter := bson.M{}
		for k, v := range base {
			filter[k] = v
		}
		for k, v := range extra {
			filter[k] = v
		}
		n, err := r.collection.CountDocuments(ctx, filter)
		return int(n), err
	}

	summary := &domain.PutawaySummary{}
	var err error
	if summary.Pending, err = count(bson.M{"status": domain.PutawayStatusPending}); err != nil {
		return nil, fmt.Errorf("counting pending tasks: %w", err)
	}
	if summary.Assigned, err = count(bson.M{"status": domain.PutawayStatusAssigned}); err != nil {
		return nil, fmt.Errorf("counting assigned tasks: %w", err)
	}
	if summary.InProgress, err = count(bson.M{"status": domain.PutawayStatusInProgress}); err != nil {
		return nil, fmt.Errorf("counting in-progress tasks: %w", err)
	}

	startOfDay := time.Now().UTC().Truncate(24 * time.Hour)
	if summary.CompletedToday, err = count(bson.M{
		"status":      domain.PutawayStatusCompleted,
		"completedAt": bson.M{"$gte": startOfDay},
	}); err != nil {
		return nil, fmt.Errorf("counting completed tasks: %w", err)
	}

	return summary, nil
}
