package export

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	synth "github.com/pacslab/dicomsynth/internal/dicom"
)

// File meta identifiers for the DICOMDIR file set.
const (
	transferSyntaxExplicitVRLE = "1.2.840.10008.1.2.1"
	mediaStorageDirectoryClass = "1.2.840.10008.1.3.10"
	directoryInstanceUID       = "1.2.826.0.1.3680043.8.498.1"
	implementationClassUID     = "1.2.826.0.1.3680043.8.498"
)

// dicomdirHeaderLen is the 128-byte preamble plus the "DICM" marker.
const dicomdirHeaderLen = 132

// recordLink names a directory record's successor and first child as
// indices into the flat record list. -1 means none.
type recordLink struct {
	next  int
	child int
}

// ToDICOMDIR writes the study as a DICOM media file set: the images in
// a PT/ST/SE/IM directory hierarchy, indexed by a DICOMDIR file at the
// root. Record offsets are unknown until the index is serialized, so
// the file is written once with zero offsets and the real byte
// positions are patched in afterwards.
func (e *Exporter) ToDICOMDIR(ctx context.Context, study *synth.Study, outputDir string) error {
	if study.TotalImages() == 0 {
		return fmt.Errorf("study %s has no images to export", study.UID)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	records, links, err := e.writeFileSet(ctx, study, outputDir)
	if err != nil {
		return err
	}

	dicomdirPath := filepath.Join(outputDir, "DICOMDIR")
	ds, err := directoryDataset(outputDir, records)
	if err != nil {
		return err
	}
	if err := writeDatasetToFile(dicomdirPath, ds); err != nil {
		return fmt.Errorf("write DICOMDIR: %w", err)
	}
	if err := patchRecordOffsets(dicomdirPath, links); err != nil {
		return fmt.Errorf("patch DICOMDIR offsets: %w", err)
	}

	e.log.Info().
		Str("study_uid", study.UID).
		Str("path", outputDir).
		Int("records", len(records)).
		Msg("study exported as DICOM media file set")
	return nil
}

// writeFileSet stores every image under PT000000/ST000000/SE*/IM* and
// returns the directory records describing the hierarchy, in the order
// they will appear in the DICOMDIR, along with their link topology.
// A generated study holds one patient and one study, so the tree has a
// single PT/ST spine.
func (e *Exporter) writeFileSet(ctx context.Context, study *synth.Study, outputDir string) ([][]*dicom.Element, []recordLink, error) {
	var (
		records [][]*dicom.Element
		links   []recordLink
	)

	first := firstImage(study)
	records = append(records, patientRecord(study))
	links = append(links, recordLink{next: -1, child: 1})
	records = append(records, studyRecord(study, first))
	links = append(links, recordLink{next: -1, child: 2})

	const patientDir, studyDir = "PT000000", "ST000000"
	for seriesIdx, series := range study.Series {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		seriesDir := fmt.Sprintf("SE%06d", seriesIdx)
		seriesPath := filepath.Join(outputDir, patientDir, studyDir, seriesDir)
		if err := os.MkdirAll(seriesPath, 0755); err != nil {
			return nil, nil, fmt.Errorf("create series directory: %w", err)
		}

		nextSeries := -1
		if seriesIdx+1 < len(study.Series) {
			nextSeries = len(records) + 1 + len(series.Images)
		}
		childImage := -1
		if len(series.Images) > 0 {
			childImage = len(records) + 1
		}
		records = append(records, seriesRecord(series))
		links = append(links, recordLink{next: nextSeries, child: childImage})

		for imageIdx, img := range series.Images {
			imageFile := fmt.Sprintf("IM%06d", imageIdx+1)
			ds, err := synth.BuildDataset(img)
			if err != nil {
				return nil, nil, fmt.Errorf("build dataset for %s: %w", img.UID, err)
			}
			if err := writeDatasetToFile(filepath.Join(seriesPath, imageFile), ds); err != nil {
				return nil, nil, fmt.Errorf("write %s: %w", imageFile, err)
			}

			nextImage := -1
			if imageIdx+1 < len(series.Images) {
				nextImage = len(records) + 1
			}
			relPath := path.Join(patientDir, studyDir, seriesDir, imageFile)
			records = append(records, imageRecord(img, relPath))
			links = append(links, recordLink{next: nextImage, child: -1})
		}
	}
	return records, links, nil
}

func recordHeader(recordType string) []*dicom.Element {
	return []*dicom.Element{
		mustNewElement(tag.OffsetOfTheNextDirectoryRecord, []int{0}),
		mustNewElement(tag.RecordInUseFlag, []int{0xFFFF}),
		mustNewElement(tag.OffsetOfReferencedLowerLevelDirectoryEntity, []int{0}),
		mustNewElement(tag.DirectoryRecordType, []string{recordType}),
	}
}

func patientRecord(study *synth.Study) []*dicom.Element {
	return append(recordHeader("PATIENT"),
		mustNewElement(tag.PatientID, []string{study.PatientID}),
		mustNewElement(tag.PatientName, []string{study.PatientName}),
	)
}

func studyRecord(study *synth.Study, first *synth.Image) []*dicom.Element {
	studyID := ""
	if first != nil {
		studyID = first.Fields[tag.StudyID]
	}
	return append(recordHeader("STUDY"),
		mustNewElement(tag.StudyInstanceUID, []string{study.UID}),
		mustNewElement(tag.StudyID, []string{studyID}),
		mustNewElement(tag.StudyDate, []string{study.Date}),
		mustNewElement(tag.StudyTime, []string{study.Time}),
	)
}

func seriesRecord(series *synth.Series) []*dicom.Element {
	return append(recordHeader("SERIES"),
		mustNewElement(tag.Modality, []string{series.Modality}),
		mustNewElement(tag.SeriesInstanceUID, []string{series.UID}),
		mustNewElement(tag.SeriesNumber, []string{fmt.Sprintf("%d", series.Number)}),
	)
}

func imageRecord(img *synth.Image, relPath string) []*dicom.Element {
	return append(recordHeader("IMAGE"),
		mustNewElement(tag.ReferencedFileID, strings.Split(relPath, "/")),
		mustNewElement(tag.ReferencedSOPClassUIDInFile, []string{img.Fields[tag.SOPClassUID]}),
		mustNewElement(tag.ReferencedSOPInstanceUIDInFile, []string{img.UID}),
		mustNewElement(tag.ReferencedTransferSyntaxUIDInFile, []string{transferSyntaxExplicitVRLE}),
	)
}

// directoryDataset assembles the DICOMDIR dataset with all record
// offsets zeroed.
func directoryDataset(outputDir string, records [][]*dicom.Element) (dicom.Dataset, error) {
	filesetID := filepath.Base(outputDir)
	if len(filesetID) > 16 {
		filesetID = filesetID[:16]
	}

	ds := dicom.Dataset{Elements: []*dicom.Element{
		mustNewElement(tag.TransferSyntaxUID, []string{transferSyntaxExplicitVRLE}),
		mustNewElement(tag.MediaStorageSOPClassUID, []string{mediaStorageDirectoryClass}),
		mustNewElement(tag.MediaStorageSOPInstanceUID, []string{directoryInstanceUID}),
		mustNewElement(tag.ImplementationClassUID, []string{implementationClassUID}),
		mustNewElement(tag.FileSetID, []string{filesetID}),
		mustNewElement(tag.OffsetOfTheFirstDirectoryRecordOfTheRootDirectoryEntity, []int{0}),
		mustNewElement(tag.OffsetOfTheLastDirectoryRecordOfTheRootDirectoryEntity, []int{0}),
		mustNewElement(tag.FileSetConsistencyFlag, []int{0}),
	}}

	seq, err := dicom.NewElement(tag.DirectoryRecordSequence, records)
	if err != nil {
		return dicom.Dataset{}, fmt.Errorf("build directory record sequence: %w", err)
	}
	ds.Elements = append(ds.Elements, seq)
	return ds, nil
}

// patchRecordOffsets rewrites the offset placeholders in a freshly
// written DICOMDIR. Every directory record begins with a sequence item
// tag, and since all offsets are still zero the byte positions of those
// item tags can be located with a plain scan.
func patchRecordOffsets(dicomdirPath string, links []recordLink) error {
	data, err := os.ReadFile(dicomdirPath)
	if err != nil {
		return err
	}

	positions := findItemPositions(data)
	if len(positions) != len(links) {
		return fmt.Errorf("found %d directory records, want %d", len(positions), len(links))
	}

	f, err := os.OpenFile(dicomdirPath, os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	// A single-patient file set has exactly one root record, so both
	// root offsets point at the PATIENT record.
	root := uint32(positions[0])
	if pos := findTagAfter(data, dicomdirHeaderLen, tag.OffsetOfTheFirstDirectoryRecordOfTheRootDirectoryEntity); pos >= 0 {
		if err := writeUint32At(f, pos+8, root); err != nil {
			return err
		}
	}
	if pos := findTagAfter(data, dicomdirHeaderLen, tag.OffsetOfTheLastDirectoryRecordOfTheRootDirectoryEntity); pos >= 0 {
		if err := writeUint32At(f, pos+8, root); err != nil {
			return err
		}
	}

	for i, link := range links {
		next, child := uint32(0), uint32(0)
		if link.next >= 0 {
			next = uint32(positions[link.next])
		}
		if link.child >= 0 {
			child = uint32(positions[link.child])
		}
		if pos := findTagAfter(data, positions[i], tag.OffsetOfTheNextDirectoryRecord); pos >= 0 {
			if err := writeUint32At(f, pos+8, next); err != nil {
				return err
			}
		}
		if pos := findTagAfter(data, positions[i], tag.OffsetOfReferencedLowerLevelDirectoryEntity); pos >= 0 {
			if err := writeUint32At(f, pos+8, child); err != nil {
				return err
			}
		}
	}
	return nil
}

// findItemPositions scans for sequence item tags (FFFE,E000) past the
// file header. The DICOMDIR carries no pixel data, so every match is a
// directory record start.
func findItemPositions(data []byte) []int {
	needle := []byte{0xFE, 0xFF, 0x00, 0xE0}
	var positions []int
	for i := dicomdirHeaderLen; i+4 <= len(data); i++ {
		if bytes.Equal(data[i:i+4], needle) {
			positions = append(positions, i)
			i += 3
		}
	}
	return positions
}

// findTagAfter locates the little-endian encoding of t within a short
// window after start, returning -1 when absent. Directory records are
// small, so a bounded window is enough.
func findTagAfter(data []byte, start int, t tag.Tag) int {
	needle := []byte{
		byte(t.Group), byte(t.Group >> 8),
		byte(t.Element), byte(t.Element >> 8),
	}
	end := start + 500
	if end > len(data)-4 {
		end = len(data) - 4
	}
	for i := start; i <= end; i++ {
		if bytes.Equal(data[i:i+4], needle) {
			return i
		}
	}
	return -1
}

// writeUint32At patches a little-endian uint32 at the given byte
// offset. The offset must point at the value of an explicit-VR UL
// element, 8 bytes past its tag.
func writeUint32At(f *os.File, offset int, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := f.WriteAt(buf[:], int64(offset))
	return err
}

func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}

func writeDatasetToFile(filename string, ds dicom.Dataset) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := dicom.Write(f, ds); err != nil {
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	return nil
}
