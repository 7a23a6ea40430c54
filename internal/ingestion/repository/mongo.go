package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/docvault/docvault/internal/ingestion"
)

// MongoRepo implements a MongoDB-backed process repository. The conditional
// transitions filter on the current status inside a single UpdateOne, which
// is atomic per document and therefore safe against concurrent cancellation.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	idx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "documentId", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "documentOwner", Value: 1}}},
	}
	col.Indexes().CreateMany(context.Background(), idx)
	return &MongoRepo{col: col}
}

var activeStatuses = bson.A{ingestion.StatusPending, ingestion.StatusRunning}

func (m *MongoRepo) Create(ctx context.Context, p *ingestion.Process) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := m.col.InsertOne(ctx, p); err != nil {
		return "", err
	}
	return p.ID, nil
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*ingestion.Process, error) {
	var p ingestion.Process
	if err := m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (m *MongoRepo) FindActiveByDocument(ctx context.Context, documentID string) (*ingestion.Process, error) {
	var p ingestion.Process
	filter := bson.M{"documentId": documentID, "status": bson.M{"$in": activeStatuses}}
	if err := m.col.FindOne(ctx, filter).Decode(&p); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (m *MongoRepo) List(ctx context.Context, q ingestion.Query) ([]*ingestion.Process, int64, error) {
	filter := bson.M{}
	if q.DocumentOwner != "" {
		filter["documentOwner"] = q.DocumentOwner
	}
	if q.DocumentID != "" {
		filter["documentId"] = q.DocumentID
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}

	total, err := m.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	sortKey := q.SortBy
	switch sortKey {
	case "status", "updatedAt", "createdAt":
	default:
		sortKey = "createdAt"
	}
	dir := -1
	if q.SortOrder == "asc" || q.SortOrder == "ASC" {
		dir = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: sortKey, Value: dir}}).
		SetSkip(int64((q.Page - 1) * q.Limit)).
		SetLimit(int64(q.Limit))

	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := []*ingestion.Process{}
	for cur.Next(ctx) {
		var p ingestion.Process
		if err := cur.Decode(&p); err != nil {
			return nil, 0, err
		}
		out = append(out, &p)
	}
	return out, total, cur.Err()
}

func (m *MongoRepo) MarkRunning(ctx context.Context, id string, startedAt time.Time) error {
	filter := bson.M{"_id": id, "status": ingestion.StatusPending}
	set := bson.M{"status": ingestion.StatusRunning, "startedAt": startedAt, "updatedAt": time.Now().UTC()}
	return m.transition(ctx, id, filter, set)
}

func (m *MongoRepo) Complete(ctx context.Context, id string, res *ingestion.Result, completedAt time.Time) error {
	filter := bson.M{"_id": id, "status": bson.M{"$in": activeStatuses}}
	set := bson.M{"status": ingestion.StatusCompleted, "result": res, "completedAt": completedAt, "updatedAt": time.Now().UTC()}
	return m.transition(ctx, id, filter, set)
}

func (m *MongoRepo) Fail(ctx context.Context, id, message string, completedAt time.Time) error {
	filter := bson.M{"_id": id, "status": bson.M{"$in": activeStatuses}}
	set := bson.M{"status": ingestion.StatusFailed, "errorMessage": message, "completedAt": completedAt, "updatedAt": time.Now().UTC()}
	return m.transition(ctx, id, filter, set)
}

// transition applies a status-conditional $set. A zero match means either the
// process is gone (ErrNotFound) or its status no longer allows the
// transition (ErrTerminal).
func (m *MongoRepo) transition(ctx context.Context, id string, filter, set bson.M) error {
	res, err := m.col.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, gerr := m.Get(ctx, id); gerr != nil {
			return gerr
		}
		return ErrTerminal
	}
	return nil
}
