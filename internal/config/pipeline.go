package config

import (
	"encoding/json"
	"fmt"
	"os"

	ingesterrors "github.com/argus-io/ingest-agent/internal/errors"
)

// StageSpec is one entry in the pipeline descriptor: a logical name, an
// implementation selector resolved by the Stage Registry, and static
// per-stage configuration.
type StageSpec struct {
	Name       string          `json:"name"`
	ModulePath string          `json:"module_path"`
	ClassName  string          `json:"class_name"`
	Config     json.RawMessage `json:"config"`
}

// Selector is the two-string compound key (ModulePath + ClassName) the
// Stage Registry resolves against.
func (s StageSpec) Selector() string {
	return s.ModulePath + "." + s.ClassName
}

// PipelineDescriptor is the ordered list of stages to build. Order is
// semantically significant: stages run in array order.
type PipelineDescriptor struct {
	Modules []StageSpec `json:"modules"`
}

// LoadPipelineDescriptor reads and parses the pipeline descriptor JSON file
// at path. An empty module list or malformed JSON is a ConfigError, fatal
// at startup.
func LoadPipelineDescriptor(path string) (*PipelineDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ingesterrors.NewConfigError("pipeline.load", fmt.Errorf("read %s: %w", path, err))
	}

	var d PipelineDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, ingesterrors.NewConfigError("pipeline.load", fmt.Errorf("parse %s: %w", path, err))
	}
	if len(d.Modules) == 0 {
		return nil, ingesterrors.NewConfigError("pipeline.load", fmt.Errorf("%s declares no stages", path))
	}

	return &d, nil
}
