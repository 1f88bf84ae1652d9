package dicom

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/pacslab/dicomsynth/internal/dicom/rules"
)

func testImage() *Image {
	rows, cols := 8, 8
	pixels := make([]uint16, rows*cols)
	for i := range pixels {
		pixels[i] = uint16(i * 77)
	}
	return &Image{
		UID:            "1.2.840.99.3.1",
		InstanceNumber: 1,
		Rows:           rows,
		Columns:        cols,
		Pixels:         pixels,
		Fields: rules.Record{
			tag.PatientName:               "DOE^JANE",
			tag.PatientID:                 "PID42",
			tag.PatientBirthDate:          "19840214",
			tag.PatientSex:                "F",
			tag.StudyInstanceUID:          "1.2.840.99.1",
			tag.StudyDate:                 "20240315",
			tag.StudyTime:                 "143000",
			tag.AccessionNumber:           "20240315-0042",
			tag.SeriesInstanceUID:         "1.2.840.99.2",
			tag.SeriesNumber:              "1",
			tag.Modality:                  "CT",
			tag.SOPInstanceUID:            "1.2.840.99.3.1",
			tag.SOPClassUID:               "1.2.840.10008.5.1.4.1.1.2",
			tag.InstanceNumber:            "1",
			tag.Rows:                      "8",
			tag.Columns:                   "8",
			tag.BitsAllocated:             "16",
			tag.BitsStored:                "16",
			tag.HighBit:                   "15",
			tag.PixelRepresentation:       "0",
			tag.SamplesPerPixel:           "1",
			tag.PhotometricInterpretation: "MONOCHROME2",
			tag.WindowCenter:              "32767",
			tag.WindowWidth:               "65535",
		},
	}
}

func TestBuildDataset_ElementOrder(t *testing.T) {
	ds, err := BuildDataset(testImage())
	if err != nil {
		t.Fatalf("BuildDataset returned error: %v", err)
	}

	if len(ds.Elements) < 3 {
		t.Fatalf("dataset has only %d elements", len(ds.Elements))
	}
	if got := ds.Elements[0].Tag; got != tag.TransferSyntaxUID {
		t.Errorf("first element is %v, want TransferSyntaxUID", got)
	}
	if got := ds.Elements[len(ds.Elements)-1].Tag; got != tag.PixelData {
		t.Errorf("last element is %v, want PixelData", got)
	}

	rowsEl, err := ds.FindElementByTag(tag.Rows)
	if err != nil {
		t.Fatalf("Rows element missing: %v", err)
	}
	rows, ok := rowsEl.Value.GetValue().([]int)
	if !ok || len(rows) != 1 || rows[0] != 8 {
		t.Errorf("Rows value = %v, want [8]", rowsEl.Value.GetValue())
	}
}

func TestBuildDataset_Validation(t *testing.T) {
	img := testImage()
	img.Pixels = img.Pixels[:10]
	if _, err := BuildDataset(img); err == nil {
		t.Error("expected error for short pixel buffer, got nil")
	}

	img = testImage()
	img.Rows = 0
	if _, err := BuildDataset(img); err == nil {
		t.Error("expected error for zero rows, got nil")
	}

	img = testImage()
	img.Fields[tag.BitsAllocated] = "sixteen"
	if _, err := BuildDataset(img); err == nil {
		t.Error("expected error for non-integer BitsAllocated, got nil")
	}
}

func TestDatasetRoundTrip(t *testing.T) {
	want := testImage()
	ds, err := BuildDataset(want)
	if err != nil {
		t.Fatalf("BuildDataset returned error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "roundtrip.dcm")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if err := dicom.Write(f, ds); err != nil {
		t.Fatalf("Failed to write dataset: %v", err)
	}
	_ = f.Close()

	parsed, err := dicom.ParseFile(path, nil)
	if err != nil {
		t.Fatalf("Failed to parse written file: %v", err)
	}

	got, err := ImageFromDataset(parsed)
	if err != nil {
		t.Fatalf("ImageFromDataset returned error: %v", err)
	}

	if got.UID != want.UID {
		t.Errorf("UID = %q, want %q", got.UID, want.UID)
	}
	if got.InstanceNumber != want.InstanceNumber {
		t.Errorf("InstanceNumber = %d, want %d", got.InstanceNumber, want.InstanceNumber)
	}
	if got.Rows != want.Rows || got.Columns != want.Columns {
		t.Errorf("dimensions = %dx%d, want %dx%d", got.Columns, got.Rows, want.Columns, want.Rows)
	}
	for _, tg := range []tag.Tag{
		tag.PatientName, tag.PatientID, tag.StudyInstanceUID,
		tag.SeriesInstanceUID, tag.Modality, tag.AccessionNumber,
	} {
		if got.Fields[tg] != want.Fields[tg] {
			t.Errorf("field %v = %q, want %q", tg, got.Fields[tg], want.Fields[tg])
		}
	}
	if len(got.Pixels) != len(want.Pixels) {
		t.Fatalf("got %d pixels, want %d", len(got.Pixels), len(want.Pixels))
	}
	for i := range want.Pixels {
		if got.Pixels[i] != want.Pixels[i] {
			t.Fatalf("pixel %d = %d, want %d", i, got.Pixels[i], want.Pixels[i])
		}
	}
}

func TestImageFromDataset_MissingPixelData(t *testing.T) {
	img := testImage()
	ds, err := BuildDataset(img)
	if err != nil {
		t.Fatalf("BuildDataset returned error: %v", err)
	}
	ds.Elements = ds.Elements[:len(ds.Elements)-1]

	if _, err := ImageFromDataset(ds); err == nil {
		t.Error("expected error for dataset without pixel data, got nil")
	}
}
