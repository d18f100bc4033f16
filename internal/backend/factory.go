package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"cashflow/internal/storage"
)

// Result contains the backends built for one process.
type Result struct {
	// Cloud is nil when cloud persistence is not configured or failed to start.
	Cloud Backend
	// Local is always set; test mode uses it regardless of Cloud.
	Local Backend

	// Firebase is the app Cloud was built from, shared with authentication.
	Firebase *firebase.App
	// Repository is the SQLite store behind Local, nil for the memory engine.
	Repository *storage.SQLiteRepository

	// FellBack is true when cloud was requested but could not be used.
	FellBack bool
	Cleanup  CleanupFunc
}

// Preferred returns Cloud when available, otherwise Local.
func (r *Result) Preferred() Backend {
	if r.Cloud != nil {
		return r.Cloud
	}
	return r.Local
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	res := &Result{}
	var cleanups []CleanupFunc

	local, repo, err := f.createLocalBackend(config)
	if err != nil {
		return nil, err
	}
	res.Local = local
	res.Repository = repo
	cleanups = append(cleanups, local.Close)
	if repo != nil {
		cleanups = append(cleanups, repo.Close)
	}

	if config.Type == FirestoreBackend {
		cloud, app, err := f.createFirestoreBackend(ctx, config)
		if err != nil {
			f.logger.Warn("Cloud backend unavailable, falling back to local storage",
				"local_backend", config.LocalType(),
				"error", err)
			res.FellBack = true
		} else {
			res.Cloud = cloud
			res.Firebase = app
			cleanups = append(cleanups, cloud.Close)
		}
	}

	res.Cleanup = func() error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return res, nil
}

func (f *DefaultFactory) createLocalBackend(config Config) (*Local, *storage.SQLiteRepository, error) {
	switch config.LocalType() {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return NewLocal(repo, SQLiteBackend, f.logger), repo, nil
	default:
		f.logger.Info("Initialized memory backend")
		return NewLocal(NewMemoryKV(), MemoryBackend, f.logger), nil, nil
	}
}

var errCloudNotConfigured = errors.New("firebase project id or api key missing")

func (f *DefaultFactory) createFirestoreBackend(ctx context.Context, config Config) (*Firestore, *firebase.App, error) {
	if !config.CloudConfigured {
		return nil, nil, errCloudNotConfigured
	}

	var opts []option.ClientOption
	if config.GoogleCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.GoogleCredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: config.FirebaseProjectID}, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize Firestore client: %w", err)
	}

	f.logger.Info("Initialized Firestore backend", "project_id", config.FirebaseProjectID)
	return NewFirestore(client, f.logger), app, nil
}
