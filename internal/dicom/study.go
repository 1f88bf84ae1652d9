package dicom

import "github.com/pacslab/dicomsynth/internal/dicom/rules"

// Study is a generated study with its full series tree.
type Study struct {
	UID         string
	Date        string
	Time        string
	PatientID   string
	PatientName string
	Series      []*Series
}

// Series groups the images sharing one series UID.
type Series struct {
	UID      string
	Number   int
	Modality string
	Images   []*Image
}

// Image is a single generated instance: its resolved field map plus the
// synthesized pixel buffer, row-major uint16 samples sized Rows*Columns.
type Image struct {
	UID            string
	InstanceNumber int
	Fields         rules.Record
	Rows           int
	Columns        int
	Pixels         []uint16
}

// TotalImages counts the images across all series.
func (s *Study) TotalImages() int {
	n := 0
	for _, se := range s.Series {
		n += len(se.Images)
	}
	return n
}
