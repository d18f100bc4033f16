package backend

import (
	"context"
	"path/filepath"
	"testing"

	"cashflow/internal/config"
)

func TestCreateBackend(t *testing.T) {
	tests := []struct {
		name         string
		config       Config
		wantLocal    Type
		wantCloud    bool
		wantFellBack bool
		wantErr      bool
	}{
		{
			name:      "memory",
			config:    Config{Type: MemoryBackend},
			wantLocal: MemoryBackend,
		},
		{
			name:      "sqlite",
			config:    Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "a.db")},
			wantLocal: SQLiteBackend,
		},
		{
			name:         "firestore without credentials falls back",
			config:       Config{Type: FirestoreBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "b.db")},
			wantLocal:    SQLiteBackend,
			wantFellBack: true,
		},
		{
			name:    "sqlite without path",
			config:  Config{Type: SQLiteBackend},
			wantErr: true,
		},
		{
			name:    "invalid type",
			config:  Config{Type: "sheets"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewFactory(nil).CreateBackend(context.Background(), tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateBackend() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer res.Cleanup()

			if res.Local.Type() != tt.wantLocal {
				t.Fatalf("local type = %s, want %s", res.Local.Type(), tt.wantLocal)
			}
			if (res.Cloud != nil) != tt.wantCloud {
				t.Fatalf("cloud = %v, want %v", res.Cloud != nil, tt.wantCloud)
			}
			if res.FellBack != tt.wantFellBack {
				t.Fatalf("FellBack = %v, want %v", res.FellBack, tt.wantFellBack)
			}
			if res.Preferred() != res.Local {
				t.Fatalf("expected local backend to be preferred without cloud")
			}
			if (res.Repository != nil) != (tt.wantLocal == SQLiteBackend) {
				t.Fatalf("repository presence does not match local type")
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		DataBackend:       "firestore",
		SQLiteDBPath:      "./x.db",
		FirebaseProjectID: "YOUR_PROJECT_ID",
		FirebaseAPIKey:    "key",
	}
	bc, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if bc.Type != FirestoreBackend || bc.CloudConfigured {
		t.Fatalf("unexpected config %+v", bc)
	}
	if bc.LocalType() != SQLiteBackend {
		t.Fatalf("LocalType() = %s", bc.LocalType())
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "nope"}); err == nil {
		t.Fatalf("expected error for invalid backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
