// Package export converts generated studies into portable formats:
// per-series PNG trees with JSON manifests, and DICOM media file sets
// with a DICOMDIR index.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/suyashkumar/dicom/pkg/tag"

	synth "github.com/pacslab/dicomsynth/internal/dicom"
)

// Exporter writes studies to disk in presentation formats.
type Exporter struct {
	log zerolog.Logger
}

// New returns an exporter logging through log.
func New(log zerolog.Logger) *Exporter {
	return &Exporter{log: log}
}

// studyManifest mirrors the study_metadata.json layout.
type studyManifest struct {
	StudyInstanceUID string `json:"Study Instance UID"`
	PatientName      string `json:"Patient Name"`
	PatientID        string `json:"Patient ID"`
	StudyDate        string `json:"Study Date"`
	StudyTime        string `json:"Study Time"`
	AccessionNumber  string `json:"Accession Number"`
	NumberOfSeries   int    `json:"Number of Series"`
	TotalImages      int    `json:"Total Images"`
}

// seriesManifest mirrors the series_metadata.json layout.
type seriesManifest struct {
	SeriesNumber      int    `json:"Series Number"`
	SeriesInstanceUID string `json:"Series Instance UID"`
	Modality          string `json:"Modality"`
	NumberOfImages    int    `json:"Number of Images"`
	SeriesDescription string `json:"Series Description,omitempty"`
	StudyDescription  string `json:"Study Description,omitempty"`
}

// ToPNG writes the study as one directory per series, each holding the
// images as 8-bit grayscale PNGs next to per-image metadata text files,
// plus JSON manifests at the study and series level.
func (e *Exporter) ToPNG(ctx context.Context, study *synth.Study, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	if err := writeJSON(filepath.Join(outputDir, "study_metadata.json"), studyManifestFor(study)); err != nil {
		return fmt.Errorf("write study manifest: %w", err)
	}

	for seriesIdx, series := range study.Series {
		if err := ctx.Err(); err != nil {
			return err
		}
		seriesDir := filepath.Join(outputDir, fmt.Sprintf("series_%d", seriesIdx+1))
		if err := os.MkdirAll(seriesDir, 0755); err != nil {
			return fmt.Errorf("create series directory: %w", err)
		}
		if err := writeJSON(filepath.Join(seriesDir, "series_metadata.json"), seriesManifestFor(series, seriesIdx+1)); err != nil {
			return fmt.Errorf("write series manifest: %w", err)
		}
		for imageIdx, img := range series.Images {
			if err := exportImagePNG(img, seriesDir, imageIdx+1); err != nil {
				return fmt.Errorf("export image %d of series %d: %w", imageIdx+1, seriesIdx+1, err)
			}
		}
	}

	e.log.Info().
		Str("study_uid", study.UID).
		Str("path", outputDir).
		Int("images", study.TotalImages()).
		Msg("study exported to PNG")
	return nil
}

func studyManifestFor(study *synth.Study) studyManifest {
	studyTime, accession := "N/A", "N/A"
	if first := firstImage(study); first != nil {
		if v := first.Fields[tag.StudyTime]; v != "" {
			studyTime = v
		}
		if v := first.Fields[tag.AccessionNumber]; v != "" {
			accession = v
		}
	}
	return studyManifest{
		StudyInstanceUID: orNA(study.UID),
		PatientName:      orNA(study.PatientName),
		PatientID:        orNA(study.PatientID),
		StudyDate:        orNA(study.Date),
		StudyTime:        studyTime,
		AccessionNumber:  accession,
		NumberOfSeries:   len(study.Series),
		TotalImages:      study.TotalImages(),
	}
}

func seriesManifestFor(series *synth.Series, number int) seriesManifest {
	m := seriesManifest{
		SeriesNumber:      number,
		SeriesInstanceUID: orNA(series.UID),
		Modality:          orNA(series.Modality),
		NumberOfImages:    len(series.Images),
	}
	if len(series.Images) > 0 {
		first := series.Images[0]
		if v := first.Fields[tag.SeriesInstanceUID]; v != "" {
			m.SeriesInstanceUID = v
		}
		if v := first.Fields[tag.Modality]; v != "" {
			m.Modality = v
		}
		m.SeriesDescription = first.Fields[tag.SeriesDescription]
		m.StudyDescription = first.Fields[tag.StudyDescription]
	}
	return m
}

// exportImagePNG scales the 16-bit pixels to the full 8-bit range by
// the image's own min/max window and writes the PNG next to a plain
// text metadata file.
func exportImagePNG(img *synth.Image, dir string, number int) error {
	if img.Rows <= 0 || img.Columns <= 0 || len(img.Pixels) != img.Rows*img.Columns {
		return fmt.Errorf("image %s has inconsistent pixel data", img.UID)
	}

	lo, hi := img.Pixels[0], img.Pixels[0]
	for _, v := range img.Pixels {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := float64(hi) - float64(lo)

	gray := image.NewGray(image.Rect(0, 0, img.Columns, img.Rows))
	if span > 0 {
		for i, v := range img.Pixels {
			gray.Pix[i] = uint8(float64(v-lo) / span * 255)
		}
	}

	instance := img.Fields[tag.InstanceNumber]
	if instance == "" {
		instance = strconv.Itoa(number)
	}
	pngPath := filepath.Join(dir, fmt.Sprintf("image_%03d_instance_%s.png", number, instance))
	f, err := os.Create(pngPath)
	if err != nil {
		return err
	}
	if err := png.Encode(f, gray); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", pngPath, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("DICOM Image Metadata\n")
	b.WriteString("====================\n\n")
	fmt.Fprintf(&b, "Instance Number: %s\n", fieldOrNA(img, tag.InstanceNumber))
	fmt.Fprintf(&b, "SOP Instance UID: %s\n", fieldOrNA(img, tag.SOPInstanceUID))
	fmt.Fprintf(&b, "Modality: %s\n", fieldOrNA(img, tag.Modality))
	fmt.Fprintf(&b, "Rows: %s\n", fieldOrNA(img, tag.Rows))
	fmt.Fprintf(&b, "Columns: %s\n", fieldOrNA(img, tag.Columns))
	fmt.Fprintf(&b, "Bits Allocated: %s\n", fieldOrNA(img, tag.BitsAllocated))
	fmt.Fprintf(&b, "Bits Stored: %s\n", fieldOrNA(img, tag.BitsStored))
	fmt.Fprintf(&b, "Photometric Interpretation: %s\n", fieldOrNA(img, tag.PhotometricInterpretation))
	fmt.Fprintf(&b, "Patient Name: %s\n", fieldOrNA(img, tag.PatientName))
	fmt.Fprintf(&b, "Patient ID: %s\n", fieldOrNA(img, tag.PatientID))
	fmt.Fprintf(&b, "Study Date: %s\n", fieldOrNA(img, tag.StudyDate))
	fmt.Fprintf(&b, "Study Time: %s\n", fieldOrNA(img, tag.StudyTime))
	fmt.Fprintf(&b, "Accession Number: %s\n", fieldOrNA(img, tag.AccessionNumber))

	txtPath := filepath.Join(dir, fmt.Sprintf("image_%03d_metadata.txt", number))
	return os.WriteFile(txtPath, []byte(b.String()), 0644)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func fieldOrNA(img *synth.Image, t tag.Tag) string {
	if v, ok := img.Fields[t]; ok && v != "" {
		return v
	}
	return "N/A"
}

func firstImage(study *synth.Study) *synth.Image {
	for _, series := range study.Series {
		if len(series.Images) > 0 {
			return series.Images[0]
		}
	}
	return nil
}
