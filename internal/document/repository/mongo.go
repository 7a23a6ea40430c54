package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/docvault/docvault/internal/document"
)

// MongoRepo implements a MongoDB-backed repository for documents. Documents
// are stored with string UUIDs in _id so memory and Mongo repos are
// interchangeable.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	idx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdBy", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}
	col.Indexes().CreateMany(context.Background(), idx)
	return &MongoRepo{col: col}
}

func (m *MongoRepo) Create(ctx context.Context, doc *document.Document) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if _, err := m.col.InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	var d document.Document
	if err := m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (m *MongoRepo) List(ctx context.Context, q document.Query) ([]*document.Document, int64, error) {
	filter := bson.M{}
	if q.CreatedBy != "" {
		filter["createdBy"] = q.CreatedBy
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.Search != "" {
		re := primitive.Regex{Pattern: q.Search, Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"description": re},
		}
	}

	total, err := m.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	sortKey := q.SortBy
	switch sortKey {
	case "title", "status", "size", "updatedAt", "createdAt":
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

	out := []*document.Document{}
	for cur.Next(ctx) {
		var d document.Document
		if err := cur.Decode(&d); err != nil {
			return nil, 0, err
		}
		out = append(out, &d)
	}
	return out, total, cur.Err()
}

func (m *MongoRepo) Apply(ctx context.Context, id string, p document.Patch) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Metadata != nil {
		set["metadata"] = p.Metadata
	}
	return m.setFields(ctx, id, set)
}

func (m *MongoRepo) SetStatus(ctx context.Context, id string, st document.Status) error {
	return m.setFields(ctx, id, bson.M{"status": st, "updatedAt": time.Now().UTC()})
}

func (m *MongoRepo) SetExtraction(ctx context.Context, id, text string, st document.Status) error {
	return m.setFields(ctx, id, bson.M{"extractedText": text, "status": st, "updatedAt": time.Now().UTC()})
}

// setFields issues a $set limited to the named fields so concurrent writers
// never clobber fields they do not own.
func (m *MongoRepo) setFields(ctx context.Context, id string, set bson.M) error {
	res, err := m.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) Delete(ctx context.Context, id string) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
