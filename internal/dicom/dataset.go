package dicom

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/pacslab/dicomsynth/internal/dicom/rules"
)

// transferSyntaxExplicitVRLE is the transfer syntax every generated
// file is written with.
const transferSyntaxExplicitVRLE = "1.2.840.10008.1.2.1"

// datasetTagOrder fixes the element order of generated files. Fields a
// record does not carry are skipped; fields outside this list follow in
// tag order.
var datasetTagOrder = []tag.Tag{
	tag.PatientName,
	tag.PatientID,
	tag.PatientBirthDate,
	tag.PatientSex,
	tag.StudyInstanceUID,
	tag.StudyID,
	tag.StudyDate,
	tag.StudyTime,
	tag.StudyDescription,
	tag.AccessionNumber,
	tag.SeriesInstanceUID,
	tag.SeriesNumber,
	tag.SeriesDescription,
	tag.Modality,
	tag.BodyPartExamined,
	tag.SOPInstanceUID,
	tag.SOPClassUID,
	tag.InstanceNumber,
	tag.WindowCenter,
	tag.WindowWidth,
	tag.Rows,
	tag.Columns,
	tag.BitsAllocated,
	tag.BitsStored,
	tag.HighBit,
	tag.PixelRepresentation,
	tag.SamplesPerPixel,
	tag.PhotometricInterpretation,
}

// intValueTags are written as integer values; everything else is text.
var intValueTags = map[tag.Tag]bool{
	tag.Rows:                true,
	tag.Columns:             true,
	tag.BitsAllocated:       true,
	tag.BitsStored:          true,
	tag.HighBit:             true,
	tag.PixelRepresentation: true,
	tag.SamplesPerPixel:     true,
}

// mustNewElement creates a new DICOM element, panicking on error.
func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}

// BuildDataset converts an image into a writable DICOM dataset: the
// transfer syntax first, the record fields in canonical order, and the
// pixel data as a single native 16-bit frame last.
func BuildDataset(img *Image) (dicom.Dataset, error) {
	if img.Rows <= 0 || img.Columns <= 0 {
		return dicom.Dataset{}, fmt.Errorf("invalid dimensions: %dx%d", img.Columns, img.Rows)
	}
	if len(img.Pixels) != img.Rows*img.Columns {
		return dicom.Dataset{}, fmt.Errorf("pixel buffer holds %d values, want %d", len(img.Pixels), img.Rows*img.Columns)
	}

	elements := make([]*dicom.Element, 0, len(img.Fields)+2)
	elements = append(elements, mustNewElement(tag.TransferSyntaxUID, []string{transferSyntaxExplicitVRLE}))

	ordered := make(map[tag.Tag]bool, len(datasetTagOrder))
	for _, t := range datasetTagOrder {
		ordered[t] = true
		value, ok := img.Fields[t]
		if !ok {
			continue
		}
		el, err := fieldElement(t, value)
		if err != nil {
			return dicom.Dataset{}, err
		}
		elements = append(elements, el)
	}

	var extra []tag.Tag
	for t := range img.Fields {
		if !ordered[t] {
			extra = append(extra, t)
		}
	}
	slices.SortFunc(extra, compareTags)
	for _, t := range extra {
		el, err := fieldElement(t, img.Fields[t])
		if err != nil {
			return dicom.Dataset{}, err
		}
		elements = append(elements, el)
	}

	pixelsPerFrame := img.Rows * img.Columns
	nativeFrame := frame.NewNativeFrame[uint16](16, img.Rows, img.Columns, pixelsPerFrame, 1)
	copy(nativeFrame.RawData, img.Pixels)
	elements = append(elements, mustNewElement(tag.PixelData, dicom.PixelDataInfo{
		Frames: []*frame.Frame{
			{
				Encapsulated: false,
				NativeData:   nativeFrame,
			},
		},
	}))

	return dicom.Dataset{Elements: elements}, nil
}

// ImageFromDataset rebuilds an image from a parsed dataset. File meta
// elements are dropped; every other element lands back in the field
// record as its string form.
func ImageFromDataset(ds dicom.Dataset) (*Image, error) {
	rec := rules.Record{}
	for _, el := range ds.Elements {
		if el.Tag.Group == 0x0002 || el.Tag == tag.PixelData {
			continue
		}
		switch v := el.Value.GetValue().(type) {
		case []string:
			if len(v) > 0 {
				rec[el.Tag] = v[0]
			}
		case []int:
			if len(v) > 0 {
				rec[el.Tag] = strconv.Itoa(v[0])
			}
		}
	}

	rows, err := strconv.Atoi(strings.TrimSpace(rec[tag.Rows]))
	if err != nil {
		return nil, fmt.Errorf("dataset has unusable Rows value %q", rec[tag.Rows])
	}
	cols, err := strconv.Atoi(strings.TrimSpace(rec[tag.Columns]))
	if err != nil {
		return nil, fmt.Errorf("dataset has unusable Columns value %q", rec[tag.Columns])
	}

	pixelEl, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("dataset has no pixel data: %w", err)
	}
	info := dicom.MustGetPixelDataInfo(pixelEl.Value)
	if len(info.Frames) == 0 {
		return nil, errors.New("pixel data has no frames")
	}
	nativeFrame, ok := info.Frames[0].NativeData.(*frame.NativeFrame[uint16])
	if !ok {
		return nil, errors.New("pixel data is not a native 16-bit frame")
	}

	instance, _ := strconv.Atoi(strings.TrimSpace(rec[tag.InstanceNumber]))

	return &Image{
		UID:            rec[tag.SOPInstanceUID],
		InstanceNumber: instance,
		Fields:         rec,
		Rows:           rows,
		Columns:        cols,
		Pixels:         slices.Clone(nativeFrame.RawData),
	}, nil
}

func fieldElement(t tag.Tag, value string) (*dicom.Element, error) {
	if intValueTags[t] {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("tag %v needs an integer value, got %q", t, value)
		}
		return mustNewElement(t, []int{n}), nil
	}
	return mustNewElement(t, []string{value}), nil
}

func compareTags(a, b tag.Tag) int {
	if a.Group != b.Group {
		return int(a.Group) - int(b.Group)
	}
	return int(a.Element) - int(b.Element)
}
