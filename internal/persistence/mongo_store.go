package persistence

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoTimeout = 5 * time.Second

// MongoRunStore is a RunStore backed by a MongoDB collection.
type MongoRunStore struct {
	coll *mongo.Collection
}

// Ensure it implements RunStore.
var _ RunStore = (*MongoRunStore)(nil)

// NewMongoRunStore creates a Mongo-backed run store.
// dbName defaults to "toolflow" if empty, collName defaults to "runs".
func NewMongoRunStore(client *mongo.Client, dbName, collName string) *MongoRunStore {
	if dbName == "" {
		dbName = "toolflow"
	}
	if collName == "" {
		collName = "runs"
	}

	return &MongoRunStore{
		coll: client.Database(dbName).Collection(collName),
	}
}

type mongoRunDoc struct {
	ID           string `bson:"_id"`
	WorkflowID   string `bson:"workflow_id"`
	WorkflowName string `bson:"workflow_name,omitempty"`
	Status       string `bson:"status"`
	Error        string `bson:"error,omitempty"`
	Context      []byte `bson:"context,omitempty"`
	StartedAt    int64  `bson:"started_at"`
	FinishedAt   int64  `bson:"finished_at"`
}

func (d *mongoRunDoc) record() (*RunRecord, error) {
	fctx, err := DecodeContext(d.Context)
	if err != nil {
		return nil, err
	}
	return &RunRecord{
		ID:           d.ID,
		WorkflowID:   d.WorkflowID,
		WorkflowName: d.WorkflowName,
		Status:       RunStatus(d.Status),
		Error:        d.Error,
		Context:      fctx,
		StartedAt:    time.Unix(0, d.StartedAt).UTC(),
		FinishedAt:   time.Unix(0, d.FinishedAt).UTC(),
	}, nil
}

func (s *MongoRunStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	data, err := EncodeContext(rec.Context)
	if err != nil {
		return err
	}

	doc := mongoRunDoc{
		ID:           rec.ID,
		WorkflowID:   rec.WorkflowID,
		WorkflowName: rec.WorkflowName,
		Status:       string(rec.Status),
		Error:        rec.Error,
		Context:      data,
		StartedAt:    rec.StartedAt.UnixNano(),
		FinishedAt:   rec.FinishedAt.UnixNano(),
	}

	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": rec.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoRunStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	var doc mongoRunDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return doc.record()
}

func (s *MongoRunStore) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*mongoTimeout)
	defer cancel()

	bfilter := bson.M{}
	if filter.WorkflowID != "" {
		bfilter["workflow_id"] = filter.WorkflowID
	}
	if filter.Status != "" {
		bfilter["status"] = string(filter.Status)
	}

	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bfilter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var runs []*RunRecord
	for cur.Next(ctx) {
		var doc mongoRunDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		rec, err := doc.record()
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, cur.Err()
}
