package backend

import (
	"fmt"

	"cashflow/internal/config"
)

// Config holds configuration for backend creation
type Config struct {
	// Type is the preferred backend. Firestore also builds a local backend
	// for test mode and as the fallback when cloud is unavailable.
	Type Type

	// SQLite specific
	SQLiteDBPath string

	// Firestore specific
	FirebaseProjectID     string
	FirebaseAPIKey        string
	GoogleCredentialsFile string
	CloudConfigured       bool
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := Type(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:                  backendType,
		SQLiteDBPath:          appConfig.SQLiteDBPath,
		FirebaseProjectID:     appConfig.FirebaseProjectID,
		FirebaseAPIKey:        appConfig.FirebaseAPIKey,
		GoogleCredentialsFile: appConfig.GoogleCredentialsFile,
		CloudConfigured:       appConfig.CloudConfigured(),
	}, nil
}

// LocalType is the engine used for the local backend.
func (c Config) LocalType() Type {
	if c.Type == MemoryBackend {
		return MemoryBackend
	}
	return SQLiteBackend
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.LocalType() == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for %s backend", c.Type)
	}
	// Missing Firebase settings are not an error: the factory falls back to local.
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []Type {
	return []Type{FirestoreBackend, SQLiteBackend, MemoryBackend}
}
