package tests

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	synth "github.com/pacslab/dicomsynth/internal/dicom"
	"github.com/pacslab/dicomsynth/internal/dicom/templates"
	"github.com/pacslab/dicomsynth/internal/pacs"
	"github.com/pacslab/dicomsynth/internal/store"
)

// TestErrors_UnknownTemplate checks template lookup failures carry a
// usable message.
func TestErrors_UnknownTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		errorMsg string
	}{
		{
			name:     "misspelled_name_suggests_closest",
			template: "mri-heda",
			errorMsg: `did you mean "mri-head"?`,
		},
		{
			name:     "garbage_name_no_suggestion",
			template: "zzzzzz",
			errorMsg: "unknown template",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := templates.Lookup(tt.template)
			if err == nil {
				t.Fatalf("Expected error but got nil")
			}
			if !errors.Is(err, templates.ErrUnknownTemplate) {
				t.Errorf("Expected ErrUnknownTemplate, got: %v", err)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Expected error containing %q, got: %v", tt.errorMsg, err)
			} else {
				t.Logf("✓ Got expected error: %v", err)
			}
		})
	}

	// The same failure must surface through study creation.
	_, err := synth.New(zerolog.Nop(), nil).CreateStudy(synth.StudyOptions{
		SeriesCount: 1,
		ImageCount:  1,
		Template:    "mri-heda",
	})
	if !errors.Is(err, templates.ErrUnknownTemplate) {
		t.Errorf("Expected CreateStudy to propagate ErrUnknownTemplate, got: %v", err)
	} else {
		t.Logf("✓ CreateStudy propagates the template error")
	}
}

// TestErrors_MissingStudy checks store operations on an absent study
// report ErrNotFound.
func TestErrors_MissingStudy(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	const uid = "1.2.826.0.1.3680043.8.498.0"

	if _, err := s.Load(ctx, uid); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Load: expected ErrNotFound, got: %v", err)
	} else {
		t.Logf("✓ Load reports ErrNotFound")
	}
	if _, err := s.Info(ctx, uid); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Info: expected ErrNotFound, got: %v", err)
	} else {
		t.Logf("✓ Info reports ErrNotFound")
	}
	if err := s.Delete(ctx, uid); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Delete: expected ErrNotFound, got: %v", err)
	} else {
		t.Logf("✓ Delete reports ErrNotFound")
	}
}

// TestErrors_ArchiveUnreachable checks transport failures abort a
// submission instead of being counted as rejections.
func TestErrors_ArchiveUnreachable(t *testing.T) {
	if _, err := pacs.NewClient(pacs.Options{}, zerolog.Nop()); err == nil {
		t.Error("Expected an error for an empty archive URL")
	} else {
		t.Logf("✓ Got expected error: %v", err)
	}

	// A server that is already gone.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, err := pacs.NewClient(pacs.Options{BaseURL: url}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if err := client.VerifyReachable(context.Background()); err == nil {
		t.Error("Expected VerifyReachable to fail against a closed server")
	} else if !strings.Contains(err.Error(), "archive unreachable") {
		t.Errorf("Expected an unreachable error, got: %v", err)
	} else {
		t.Logf("✓ Got expected error: %v", err)
	}

	study := makeStudy(t, synth.StudyOptions{SeriesCount: 1, ImageCount: 1, Rows: 16, Columns: 16, Seed: 3})
	if _, err := client.SubmitStudy(context.Background(), study); err == nil {
		t.Error("Expected SubmitStudy to fail against a closed server")
	} else {
		t.Logf("✓ Got expected error: %v", err)
	}
}

// TestErrors_ArchiveRejection checks rejected images are counted in
// the result rather than failing the whole submission.
func TestErrors_ArchiveRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	client, err := pacs.NewClient(pacs.Options{BaseURL: srv.URL}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	study := makeStudy(t, synth.StudyOptions{SeriesCount: 1, ImageCount: 3, Rows: 16, Columns: 16, Seed: 4})
	result, err := client.SubmitStudy(context.Background(), study)
	if err != nil {
		t.Fatalf("SubmitStudy should not fail on rejections: %v", err)
	}
	if result.AllSent() {
		t.Error("Expected AllSent to be false when the archive rejects")
	}
	if result.Sent != 0 {
		t.Errorf("Expected 0 sent, got %d", result.Sent)
	}
	if len(result.Failed) != 3 {
		t.Errorf("Expected 3 rejected UIDs, got %d", len(result.Failed))
	}
	t.Logf("✓ Rejections recorded: %d of %d", len(result.Failed), result.Total)
}

// TestEdgeCase_EmptyStudy checks zero counts produce an empty study
// without an error.
func TestEdgeCase_EmptyStudy(t *testing.T) {
	tests := []struct {
		name        string
		seriesCount int
		imageCount  int
	}{
		{name: "zero_series", seriesCount: 0, imageCount: 5},
		{name: "zero_images", seriesCount: 2, imageCount: 0},
		{name: "negative_counts", seriesCount: -3, imageCount: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			study := makeStudy(t, synth.StudyOptions{
				SeriesCount: tt.seriesCount,
				ImageCount:  tt.imageCount,
				Seed:        1,
			})
			if study.UID == "" {
				t.Error("Empty study should still carry a study UID")
			}
			if got := study.TotalImages(); got != 0 {
				t.Errorf("Expected 0 images, got %d", got)
			}
			t.Logf("✓ Empty study created without error")
		})
	}
}

// TestEdgeCase_DefaultDimensions checks images fall back to 512x512
// when nothing specifies a size.
func TestEdgeCase_DefaultDimensions(t *testing.T) {
	study := makeStudy(t, synth.StudyOptions{SeriesCount: 1, ImageCount: 1, Seed: 2})
	img := study.Series[0].Images[0]
	if img.Rows != 512 || img.Columns != 512 {
		t.Errorf("Expected 512x512, got %dx%d", img.Columns, img.Rows)
	}
	if len(img.Pixels) != 512*512 {
		t.Errorf("Expected %d pixels, got %d", 512*512, len(img.Pixels))
	}
	t.Logf("✓ Default dimensions applied: %dx%d", img.Columns, img.Rows)
}

// TestEdgeCase_WorkerCountStability checks the worker pool size never
// changes the generated pixels.
func TestEdgeCase_WorkerCountStability(t *testing.T) {
	base := synth.StudyOptions{
		SeriesCount: 2,
		ImageCount:  4,
		Modality:    "CT",
		Rows:        64,
		Columns:     64,
		Seed:        77,
	}

	serial := base
	serial.Workers = 1
	parallel := base
	parallel.Workers = 8

	first := makeStudy(t, serial)
	second := makeStudy(t, parallel)

	for si := range first.Series {
		for ii := range first.Series[si].Images {
			a := first.Series[si].Images[ii]
			b := second.Series[si].Images[ii]
			if a.UID != b.UID {
				t.Fatalf("Image %d/%d UID differs between worker counts", si, ii)
			}
			for p := range a.Pixels {
				if a.Pixels[p] != b.Pixels[p] {
					t.Fatalf("Pixel %d of image %d/%d differs between worker counts", p, si, ii)
				}
			}
		}
	}
	t.Logf("✓ 1 worker and 8 workers produce identical studies")
}
