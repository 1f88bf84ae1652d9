package tests

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	synth "github.com/pacslab/dicomsynth/internal/dicom"
	"github.com/pacslab/dicomsynth/internal/util"
)

// saveStudy generates a study, saves it, and returns the study with
// the sorted paths of its stored DICOM files.
func saveStudy(t *testing.T, opts synth.StudyOptions) (*synth.Study, []string) {
	t.Helper()
	s := openStore(t)
	study := makeStudy(t, opts)
	if err := s.Save(context.Background(), study); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	files, err := filepath.Glob(filepath.Join(s.Root(), study.UID, "series_*", "*.dcm"))
	if err != nil || len(files) == 0 {
		t.Fatalf("No stored DICOM files found: %v", err)
	}
	return study, files
}

func elementString(t *testing.T, ds dicom.Dataset, tg tag.Tag) string {
	t.Helper()
	el, err := ds.FindElementByTag(tg)
	if err != nil {
		t.Fatalf("Tag %v missing from dataset: %v", tg, err)
	}
	vals, ok := el.Value.GetValue().([]string)
	if !ok || len(vals) == 0 {
		t.Fatalf("Tag %v holds no string value", tg)
	}
	return vals[0]
}

func elementInt(t *testing.T, ds dicom.Dataset, tg tag.Tag) int {
	t.Helper()
	el, err := ds.FindElementByTag(tg)
	if err != nil {
		t.Fatalf("Tag %v missing from dataset: %v", tg, err)
	}
	vals, ok := el.Value.GetValue().([]int)
	if !ok || len(vals) == 0 {
		t.Fatalf("Tag %v holds no integer value", tg)
	}
	return vals[0]
}

// TestValidation_RequiredTags parses a stored file and checks every
// tag a viewer needs is present.
func TestValidation_RequiredTags(t *testing.T) {
	_, files := saveStudy(t, synth.StudyOptions{SeriesCount: 1, ImageCount: 1, Modality: "CT", Rows: 64, Columns: 64, Seed: 42})

	ds, err := dicom.ParseFile(files[0], nil)
	if err != nil {
		t.Fatalf("Failed to parse stored file: %v", err)
	}

	requiredTags := []struct {
		tag  tag.Tag
		name string
	}{
		{tag.PatientName, "PatientName"},
		{tag.PatientID, "PatientID"},
		{tag.PatientBirthDate, "PatientBirthDate"},
		{tag.PatientSex, "PatientSex"},
		{tag.StudyInstanceUID, "StudyInstanceUID"},
		{tag.StudyDate, "StudyDate"},
		{tag.StudyTime, "StudyTime"},
		{tag.AccessionNumber, "AccessionNumber"},
		{tag.SeriesInstanceUID, "SeriesInstanceUID"},
		{tag.SeriesNumber, "SeriesNumber"},
		{tag.Modality, "Modality"},
		{tag.SOPInstanceUID, "SOPInstanceUID"},
		{tag.SOPClassUID, "SOPClassUID"},
		{tag.InstanceNumber, "InstanceNumber"},
		{tag.Rows, "Rows"},
		{tag.Columns, "Columns"},
		{tag.BitsAllocated, "BitsAllocated"},
		{tag.PhotometricInterpretation, "PhotometricInterpretation"},
		{tag.PixelData, "PixelData"},
	}

	for _, rt := range requiredTags {
		if _, err := ds.FindElementByTag(rt.tag); err != nil {
			t.Errorf("Required tag %s missing: %v", rt.name, err)
		} else {
			t.Logf("✓ %s present", rt.name)
		}
	}
}

// TestValidation_FieldValues checks the stored values themselves are
// well formed.
func TestValidation_FieldValues(t *testing.T) {
	_, files := saveStudy(t, synth.StudyOptions{SeriesCount: 1, ImageCount: 1, Modality: "CT", Rows: 64, Columns: 64, Seed: 42})

	ds, err := dicom.ParseFile(files[0], nil)
	if err != nil {
		t.Fatalf("Failed to parse stored file: %v", err)
	}

	if got := elementString(t, ds, tag.Modality); got != "CT" {
		t.Errorf("Expected modality CT, got %s", got)
	}
	if got := elementString(t, ds, tag.PhotometricInterpretation); got != "MONOCHROME2" {
		t.Errorf("Expected MONOCHROME2, got %s", got)
	}
	if got := elementInt(t, ds, tag.BitsAllocated); got != 16 {
		t.Errorf("Expected 16 bits allocated, got %d", got)
	}
	if got := elementInt(t, ds, tag.Rows); got != 64 {
		t.Errorf("Expected 64 rows, got %d", got)
	}
	if got := elementInt(t, ds, tag.Columns); got != 64 {
		t.Errorf("Expected 64 columns, got %d", got)
	}

	name := elementString(t, ds, tag.PatientName)
	if !strings.Contains(name, "^") {
		t.Errorf("Patient name %q should use the LAST^FIRST form", name)
	}
	sex := elementString(t, ds, tag.PatientSex)
	if sex != "M" && sex != "F" && sex != "O" {
		t.Errorf("Patient sex %q is not one of M, F, O", sex)
	}
	for _, dateTag := range []tag.Tag{tag.PatientBirthDate, tag.StudyDate} {
		value := elementString(t, ds, dateTag)
		if _, err := time.Parse("20060102", value); err != nil {
			t.Errorf("Tag %v value %q is not a DICOM date: %v", dateTag, value, err)
		}
	}
	studyTime := elementString(t, ds, tag.StudyTime)
	if _, err := time.Parse("150405", studyTime); err != nil {
		t.Errorf("Study time %q is not a DICOM time: %v", studyTime, err)
	}
	t.Logf("✓ Field values are well formed")
}

// TestValidation_UIDFormat checks generated UIDs stay inside the DICOM
// grammar and under our root.
func TestValidation_UIDFormat(t *testing.T) {
	study, files := saveStudy(t, synth.StudyOptions{SeriesCount: 1, ImageCount: 1, Modality: "MR", Rows: 32, Columns: 32, Seed: 7})

	ds, err := dicom.ParseFile(files[0], nil)
	if err != nil {
		t.Fatalf("Failed to parse stored file: %v", err)
	}

	uidPattern := regexp.MustCompile(`^[0-9]+(\.[0-9]+)*$`)
	for _, uidTag := range []tag.Tag{tag.StudyInstanceUID, tag.SeriesInstanceUID, tag.SOPInstanceUID} {
		value := elementString(t, ds, uidTag)
		if len(value) > 64 {
			t.Errorf("UID %v is %d characters, limit is 64", uidTag, len(value))
		}
		if !uidPattern.MatchString(value) {
			t.Errorf("UID %v value %q contains characters outside digits and dots", uidTag, value)
		}
		if !strings.HasPrefix(value, util.UIDRoot) {
			t.Errorf("UID %v value %q is not under root %s", uidTag, value, util.UIDRoot)
		}
		t.Logf("✓ %v is a valid UID (%d chars)", uidTag, len(value))
	}

	if got := elementString(t, ds, tag.StudyInstanceUID); got != study.UID {
		t.Errorf("Stored study UID %s does not match generated %s", got, study.UID)
	}
}

// TestValidation_PatientConsistency checks every image of a study
// carries the same patient identity.
func TestValidation_PatientConsistency(t *testing.T) {
	_, files := saveStudy(t, synth.StudyOptions{
		SeriesCount: 2,
		ImageCount:  3,
		Modality:    "CR",
		Rows:        32,
		Columns:     32,
		Seed:        21,
	})
	if len(files) != 6 {
		t.Fatalf("Expected 6 stored files, got %d", len(files))
	}

	identityTags := []tag.Tag{tag.PatientID, tag.PatientName, tag.PatientSex, tag.PatientBirthDate, tag.StudyInstanceUID}
	reference := make(map[tag.Tag]string)

	for i, path := range files {
		ds, err := dicom.ParseFile(path, nil)
		if err != nil {
			t.Fatalf("Failed to parse image %d: %v", i, err)
		}
		for _, tg := range identityTags {
			value := elementString(t, ds, tg)
			if i == 0 {
				reference[tg] = value
				continue
			}
			if value != reference[tg] {
				t.Errorf("Image %d has a different %v: %s vs %s", i, tg, value, reference[tg])
			}
		}
	}
	t.Logf("✓ Patient identity consistent across %d images", len(files))
}

// TestValidation_UIDUniqueness checks SOP instance UIDs and instance
// numbers never repeat within a series.
func TestValidation_UIDUniqueness(t *testing.T) {
	study, files := saveStudy(t, synth.StudyOptions{
		SeriesCount: 1,
		ImageCount:  10,
		Modality:    "CT",
		Rows:        32,
		Columns:     32,
		Seed:        42,
	})
	if got := study.TotalImages(); got != 10 {
		t.Fatalf("Expected 10 images, got %d", got)
	}

	sopUIDs := make(map[string]bool)
	instanceNumbers := make(map[string]bool)
	for _, path := range files {
		ds, err := dicom.ParseFile(path, nil)
		if err != nil {
			t.Fatalf("Failed to parse %s: %v", path, err)
		}
		uid := elementString(t, ds, tag.SOPInstanceUID)
		if sopUIDs[uid] {
			t.Errorf("Duplicate SOP instance UID: %s", uid)
		}
		sopUIDs[uid] = true

		num := elementString(t, ds, tag.InstanceNumber)
		if instanceNumbers[num] {
			t.Errorf("Duplicate instance number: %s", num)
		}
		instanceNumbers[num] = true
	}
	if len(sopUIDs) != 10 {
		t.Errorf("Expected 10 unique SOP instance UIDs, got %d", len(sopUIDs))
	}
	t.Logf("✓ All %d SOP instance UIDs and instance numbers are unique", len(sopUIDs))
}

// TestValidation_PixelRoundTrip rebuilds the image from the stored
// file and compares pixels against the generated ones.
func TestValidation_PixelRoundTrip(t *testing.T) {
	study, files := saveStudy(t, synth.StudyOptions{SeriesCount: 1, ImageCount: 1, Modality: "CT", Rows: 48, Columns: 48, Seed: 99})

	ds, err := dicom.ParseFile(files[0], nil)
	if err != nil {
		t.Fatalf("Failed to parse stored file: %v", err)
	}
	img, err := synth.ImageFromDataset(ds)
	if err != nil {
		t.Fatalf("ImageFromDataset failed: %v", err)
	}

	want := study.Series[0].Images[0]
	if img.UID != want.UID {
		t.Fatalf("Expected image UID %s, got %s", want.UID, img.UID)
	}
	if len(img.Pixels) != 48*48 {
		t.Fatalf("Expected %d pixels, got %d", 48*48, len(img.Pixels))
	}
	for i := range want.Pixels {
		if img.Pixels[i] != want.Pixels[i] {
			t.Fatalf("Pixel %d differs: stored %d, generated %d", i, img.Pixels[i], want.Pixels[i])
		}
	}
	t.Logf("✓ Stored pixels match generated pixels")
}
