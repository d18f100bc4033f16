package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "cashflow.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSnapshotRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, ok, err := repo.Get(ctx, "finance_app_data"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := repo.Put(ctx, "finance_app_data", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := repo.Put(ctx, "finance_app_data", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, ok, err := repo.Get(ctx, "finance_app_data")
	if err != nil || !ok || string(got) != `{"v":2}` {
		t.Fatalf("unexpected value %q ok=%v err=%v", got, ok, err)
	}
	if err := repo.Delete(ctx, "finance_app_data"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := repo.Get(ctx, "finance_app_data"); ok {
		t.Fatalf("expected key to be gone")
	}
}

func TestActivityLog(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"m1", "m2", "m3"} {
		inserted, err := repo.AppendActivity(ctx, ActivityEntry{
			MutationID: id,
			UID:        "local",
			Kind:       "add_transaction",
			Summary:    "expense Food",
			Amount:     "120.00",
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil || !inserted {
			t.Fatalf("append %s: inserted=%v err=%v", id, inserted, err)
		}
	}
	inserted, err := repo.AppendActivity(ctx, ActivityEntry{MutationID: "m2", UID: "local", Kind: "x", OccurredAt: base})
	if err != nil || inserted {
		t.Fatalf("duplicate should be ignored: inserted=%v err=%v", inserted, err)
	}

	entries, err := repo.ListActivity(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].MutationID != "m3" || entries[1].MutationID != "m2" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}
