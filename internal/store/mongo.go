package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	ingesterrors "github.com/argus-io/ingest-agent/internal/errors"
)

// MongoStore is the production Store backed by a MongoDB-compatible
// document database. Collection names are fixed: "cameras", "services",
// "detections".
type MongoStore struct {
	client   *mongo.Client
	database string
}

// NewMongoStore connects to uri and selects database dbName. The connection
// is established eagerly (with a ping) so startup failures surface as a
// ConfigError before the capture loop begins.
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, ingesterrors.NewConfigError("store.connect", fmt.Errorf("mongo connect: %w", err))
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, ingesterrors.NewConfigError("store.connect", fmt.Errorf("mongo ping: %w", err))
	}
	return &MongoStore{client: client, database: dbName}, nil
}

func (s *MongoStore) coll(name string) *mongo.Collection {
	return s.client.Database(s.database).Collection(name)
}

// GetCamera looks up the camera configuration document by its CAMERA_ID.
func (s *MongoStore) GetCamera(ctx context.Context, cameraID string) (*CameraRecord, error) {
	var rec CameraRecord
	err := s.coll("cameras").FindOne(ctx, bson.M{"_id": cameraID}).Decode(&rec)
	if err != nil {
		return nil, ingesterrors.NewConfigError("store.getCamera", fmt.Errorf("camera %s: %w", cameraID, err))
	}
	return &rec, nil
}

// GetService looks up the pipeline-descriptor-path document by SERVICE_ID.
func (s *MongoStore) GetService(ctx context.Context, serviceID string) (*ServiceRecord, error) {
	var rec ServiceRecord
	err := s.coll("services").FindOne(ctx, bson.M{"_id": serviceID}).Decode(&rec)
	if err != nil {
		return nil, ingesterrors.NewConfigError("store.getService", fmt.Errorf("service %s: %w", serviceID, err))
	}
	return &rec, nil
}

// InsertDetections bulk-inserts a batch of detection records. Failure is a
// SinkError: callers log and discard the batch rather than retrying,
// matching the Metadata Sink's at-most-once policy.
func (s *MongoStore) InsertDetections(ctx context.Context, records []DetectionRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]any, len(records))
	for i := range records {
		docs[i] = records[i]
	}
	if _, err := s.coll("detections").InsertMany(ctx, docs); err != nil {
		return ingesterrors.NewSinkError("metadata", "bulkInsert", err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
