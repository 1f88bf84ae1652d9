package rules

import (
	"maps"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// Record holds the resolved field values of one record, keyed by DICOM
// tag. Values carry their DICOM string representation: numeric fields
// such as SeriesNumber store the decimal text that is later written to
// the file.
type Record map[tag.Tag]string

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	return maps.Clone(r)
}
