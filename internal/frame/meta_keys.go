package frame

// Well-known Payload.Meta keys, written by the detector stage and read by
// downstream stages or the metadata sink. Keeping them centrally named
// here is the schema for the open extension map.
const (
	MetaRawPath       = "raw_path"
	MetaPlottedPath   = "plotted_path"
	MetaInferenceTime = "inference_time"
	MetaTracks        = "tracks"
	MetaDetections    = "detections"
)
