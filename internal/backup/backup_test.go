package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vitrine-io/vitrine/internal/store"
	"github.com/vitrine-io/vitrine/pkg/protocol"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st := store.NewFileStore(filepath.Join(t.TempDir(), "catalog.json"))
	catalog := protocol.Catalog{}
	scope := catalog.Ensure("general")
	scope.Put(protocol.Product{Name: "sticker pack", Price: "2.50", Stock: 12})
	scope.Put(protocol.Product{Name: "beta key", Price: "10", Stock: 1, Coupon: "LAUNCH"})
	if err := st.Save(catalog); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return st
}

func TestSnapshot(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()

	r := New(st, dir, "@every 6h", nil)
	path, err := r.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("snapshot path = %q, want under %q", path, dir)
	}
	if !strings.HasPrefix(filepath.Base(path), "catalog-") {
		t.Errorf("snapshot name = %q", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var catalog protocol.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	scope, ok := catalog["general"]
	if !ok || scope.Len() != 2 {
		t.Fatalf("snapshot missing general scope: %+v", catalog)
	}
	if p, ok := scope.Get("beta key"); !ok || p.Coupon != "LAUNCH" {
		t.Errorf("beta key = %+v, ok = %v", p, ok)
	}
}

func TestSnapshotLeavesNoTemp(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()

	r := New(st, dir, "@every 6h", nil)
	if _, err := r.Snapshot(); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestStartInvalidSchedule(t *testing.T) {
	st := newTestStore(t)
	r := New(st, t.TempDir(), "not-a-schedule", nil)
	if err := r.Start(context.Background()); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestStartFiresSnapshot(t *testing.T) {
	st := newTestStore(t)
	dir := t.TempDir()

	r := New(st, dir, "@every 1s", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	r.Start(ctx)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) == 0 {
		t.Error("expected at least one snapshot")
	}
}
