// Package store defines the document-store interface the agent needs at
// startup (camera and service record lookup) and steady state (bulk
// detection insert), plus a MongoDB-backed implementation and an in-memory
// fake for tests.
package store

import "context"

// CameraRecord is the per-camera configuration document looked up by
// CAMERA_ID at startup.
type CameraRecord struct {
	CameraAddress    string   `bson:"camera_address"`
	DeviceName       string   `bson:"device_name"`
	DeviceID         string   `bson:"device_id,omitempty"`
	ProcessSkipFrame int      `bson:"process_skip_frame"`
	Rotation         int      `bson:"rotation"`
	Zones            []Zone   `bson:"zones"`
}

// Zone is one named polygonal region attached to a camera record.
type Zone struct {
	Name    string       `bson:"name"`
	Polygon [][2]float64 `bson:"polygon"`
}

// ServiceRecord is the pipeline-descriptor-path document looked up by
// SERVICE_ID at startup.
type ServiceRecord struct {
	PipelinePath string `bson:"pipeline_path"`
}

// DetectionRecord is the per-frame document emitted by the metadata sink.
type DetectionRecord struct {
	SeqNum          uint64                 `bson:"frame_seq_num"`
	CapturedAt      int64                  `bson:"captured_at"`
	DeviceName      string                 `bson:"device_name"`
	DeviceID        string                 `bson:"device_id,omitempty"`
	InferenceTimeMs float64                `bson:"inference_time_ms"`
	RawPath         string                 `bson:"raw_path"`
	PlottedPath     string                 `bson:"plotted_path"`
	Tracks          map[string]TrackRecord `bson:"tracks"`
}

// TrackRecord is one tracked object's detection within a DetectionRecord.
type TrackRecord struct {
	TrackID    string                     `bson:"track_id"`
	BBox       [4]int                     `bson:"bbox"`
	Confidence float64                    `bson:"confidence"`
	ClassID    int                        `bson:"class_id"`
	ClassName  string                     `bson:"class_name"`
	Zones      map[string]ZoneAttribution `bson:"zones"`
	CropPath   string                     `bson:"crop_path,omitempty"`
}

// ZoneAttribution records a track's inside/outside membership in a zone.
type ZoneAttribution struct {
	Location string `bson:"location"`
}

// Store is the document-store contract the agent depends on.
type Store interface {
	GetCamera(ctx context.Context, cameraID string) (*CameraRecord, error)
	GetService(ctx context.Context, serviceID string) (*ServiceRecord, error)
	InsertDetections(ctx context.Context, records []DetectionRecord) error
	Close(ctx context.Context) error
}
