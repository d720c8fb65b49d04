// Package config loads the ingest agent's startup configuration: required
// environment variables, the externally supplied pipeline descriptor, and
// an optional YAML tunables file.
package config

import (
	"fmt"
	"os"

	ingesterrors "github.com/argus-io/ingest-agent/internal/errors"
)

// Env holds the environment-variable-derived startup configuration.
type Env struct {
	CameraID      string
	ServiceID     string
	MongoURI      string
	LogLevel      string
	TunablesPath  string
	AzureAccount  string
	AzureContainer string
}

const (
	envCameraID       = "CAMERA_ID"
	envServiceID      = "SERVICE_ID"
	envMongoURI       = "MONGODB_URI"
	envLogLevel       = "AGENT_LOG_LEVEL"
	envTunablesPath   = "AGENT_TUNABLES_PATH"
	envAzureAccount   = "AZURE_STORAGE_ACCOUNT"
	envAzureContainer = "AZURE_STORAGE_CONTAINER"
)

// LoadEnv reads the required and optional environment variables. CAMERA_ID,
// SERVICE_ID, and MONGODB_URI are required; a missing required variable is a
// ConfigError, fatal at startup.
func LoadEnv() (*Env, error) {
	e := &Env{
		CameraID:       os.Getenv(envCameraID),
		ServiceID:      os.Getenv(envServiceID),
		MongoURI:       os.Getenv(envMongoURI),
		LogLevel:       os.Getenv(envLogLevel),
		TunablesPath:   os.Getenv(envTunablesPath),
		AzureAccount:   os.Getenv(envAzureAccount),
		AzureContainer: os.Getenv(envAzureContainer),
	}

	var missing []string
	if e.CameraID == "" {
		missing = append(missing, envCameraID)
	}
	if e.ServiceID == "" {
		missing = append(missing, envServiceID)
	}
	if e.MongoURI == "" {
		missing = append(missing, envMongoURI)
	}
	if len(missing) > 0 {
		return nil, ingesterrors.NewConfigError("env.load",
			fmt.Errorf("missing required environment variables: %v", missing))
	}

	if e.LogLevel == "" {
		e.LogLevel = "info"
	}

	return e, nil
}

// AzureEnabled reports whether enough information was supplied to enable
// the Azure Blob mirror backend in the Artifact Sink.
func (e *Env) AzureEnabled() bool {
	return e.AzureAccount != "" && e.AzureContainer != ""
}
