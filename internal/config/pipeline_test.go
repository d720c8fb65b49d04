package config

import (
	"os"
	"path/filepath"
	"testing"

	ingesterrors "github.com/argus-io/ingest-agent/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPipelineDescriptorValid(t *testing.T) {
	path := writeFile(t, `{
		"modules": [
			{"name": "limiter", "module_path": "stages.ratelimit", "class_name": "RateLimit", "config": {"fps": 5}},
			{"name": "detector", "module_path": "stages.detector", "class_name": "Detector", "config": {}}
		]
	}`)

	d, err := LoadPipelineDescriptor(path)
	require.NoError(t, err)
	require.Len(t, d.Modules, 2)
	assert.Equal(t, "stages.ratelimit.RateLimit", d.Modules[0].Selector())
	assert.Equal(t, "stages.detector.Detector", d.Modules[1].Selector())
}

func TestLoadPipelineDescriptorEmptyModules(t *testing.T) {
	path := writeFile(t, `{"modules": []}`)
	_, err := LoadPipelineDescriptor(path)
	require.Error(t, err)
	assert.True(t, ingesterrors.IsFatal(err))
}

func TestLoadPipelineDescriptorMalformed(t *testing.T) {
	path := writeFile(t, `not json`)
	_, err := LoadPipelineDescriptor(path)
	require.Error(t, err)
	assert.True(t, ingesterrors.IsFatal(err))
}

func TestLoadPipelineDescriptorMissingFile(t *testing.T) {
	_, err := LoadPipelineDescriptor("/nonexistent/path.json")
	require.Error(t, err)
	assert.True(t, ingesterrors.IsFatal(err))
}
