package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func catalogBackends(t *testing.T) map[string]Catalog {
	t.Helper()
	sqlite, err := OpenSQLiteCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteCatalog returned error: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Catalog{
		"memory": NewMemoryCatalog(),
		"sqlite": sqlite,
	}
}

func TestCatalogContract(t *testing.T) {
	for name, cat := range catalogBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

			first := Summary{
				StudyUID: "1.2.1", PatientID: "A", PatientName: "DOE^A",
				StudyDate: "20240315", Modality: "CT",
				SeriesCount: 1, ImageCount: 2, CreatedAt: base,
			}
			second := first
			second.StudyUID = "1.2.2"
			second.CreatedAt = base.Add(time.Hour)
			third := first
			third.StudyUID = "1.2.0"
			third.CreatedAt = base.Add(time.Hour)

			for _, s := range []Summary{first, second, third} {
				if err := cat.Put(ctx, s); err != nil {
					t.Fatalf("Put(%s) returned error: %v", s.StudyUID, err)
				}
			}

			got, err := cat.Get(ctx, "1.2.1")
			if err != nil {
				t.Fatalf("Get returned error: %v", err)
			}
			if got != first {
				t.Errorf("Get = %+v, want %+v", got, first)
			}

			if _, err := cat.Get(ctx, "9.9.9"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
			}

			list, err := cat.List(ctx)
			if err != nil {
				t.Fatalf("List returned error: %v", err)
			}
			wantOrder := []string{"1.2.0", "1.2.2", "1.2.1"}
			if len(list) != len(wantOrder) {
				t.Fatalf("List returned %d entries, want %d", len(list), len(wantOrder))
			}
			for i, uid := range wantOrder {
				if list[i].StudyUID != uid {
					t.Errorf("List[%d] = %s, want %s", i, list[i].StudyUID, uid)
				}
			}

			// Re-put updates counts but keeps the original created-at.
			updated := first
			updated.ImageCount = 9
			updated.CreatedAt = base.Add(48 * time.Hour)
			if err := cat.Put(ctx, updated); err != nil {
				t.Fatalf("Put(update) returned error: %v", err)
			}
			got, err = cat.Get(ctx, "1.2.1")
			if err != nil {
				t.Fatalf("Get after update returned error: %v", err)
			}
			if got.ImageCount != 9 {
				t.Errorf("ImageCount = %d, want 9", got.ImageCount)
			}
			if !got.CreatedAt.Equal(base) {
				t.Errorf("CreatedAt = %v, want original %v", got.CreatedAt, base)
			}

			if err := cat.Remove(ctx, "1.2.2"); err != nil {
				t.Fatalf("Remove returned error: %v", err)
			}
			if err := cat.Remove(ctx, "no-such-study"); err != nil {
				t.Errorf("Remove(missing) returned error: %v", err)
			}
			list, err = cat.List(ctx)
			if err != nil {
				t.Fatalf("List returned error: %v", err)
			}
			if len(list) != 2 {
				t.Errorf("List after remove returned %d entries, want 2", len(list))
			}
		})
	}
}
