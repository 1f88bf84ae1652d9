// Package templates holds the named study presets. Each preset bundles
// a modality, an anatomical region, description text and image
// dimensions; the generator applies them as lowest-precedence defaults.
package templates

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/pacslab/dicomsynth/internal/util"
)

// ErrUnknownTemplate is returned by Lookup for names not in the catalog.
var ErrUnknownTemplate = errors.New("unknown template")

// Template is one catalog preset.
type Template struct {
	Name              string
	Modality          string
	Region            string
	StudyDescription  string
	SeriesDescription string
	Rows              int
	Columns           int
}

// FieldOverrides returns the preset as a convenience-key field map, the
// form the generator merges beneath user-supplied fields.
func (t Template) FieldOverrides() map[string]string {
	return map[string]string{
		"modality":           t.Modality,
		"study_description":  t.StudyDescription,
		"series_description": t.SeriesDescription,
		"rows":               strconv.Itoa(t.Rows),
		"columns":            strconv.Itoa(t.Columns),
	}
}

var catalog = map[string]Template{
	"chest x-ray": {
		Name:              "chest x-ray",
		Modality:          "CR",
		Region:            "chest",
		StudyDescription:  "Chest X-Ray",
		SeriesDescription: "PA and Lateral",
		Rows:              1024,
		Columns:           1024,
	},
	"ct-chest": {
		Name:              "ct-chest",
		Modality:          "CT",
		Region:            "chest",
		StudyDescription:  "CT Chest",
		SeriesDescription: "Axial",
		Rows:              512,
		Columns:           512,
	},
	"ct-abdomen": {
		Name:              "ct-abdomen",
		Modality:          "CT",
		Region:            "abdomen",
		StudyDescription:  "CT Abdomen",
		SeriesDescription: "Axial",
		Rows:              512,
		Columns:           512,
	},
	"mri-head": {
		Name:              "mri-head",
		Modality:          "MR",
		Region:            "head",
		StudyDescription:  "MRI Head",
		SeriesDescription: "T1 Axial",
		Rows:              256,
		Columns:           256,
	},
	"ultrasound-abdomen": {
		Name:              "ultrasound-abdomen",
		Modality:          "US",
		Region:            "abdomen",
		StudyDescription:  "Ultrasound Abdomen",
		SeriesDescription: "Abdominal Survey",
		Rows:              480,
		Columns:           640,
	},
	"mammography": {
		Name:              "mammography",
		Modality:          "MG",
		Region:            "breast",
		StudyDescription:  "Mammography",
		SeriesDescription: "CC and MLO",
		Rows:              1024,
		Columns:           1024,
	},
}

// Lookup resolves a preset by name, case-insensitively. Unknown names
// return an error wrapping ErrUnknownTemplate, with the closest catalog
// name when one is near.
func Lookup(name string) (Template, error) {
	norm := strings.ToLower(strings.TrimSpace(name))
	if t, ok := catalog[norm]; ok {
		return t, nil
	}

	if suggestion := util.ClosestMatch(norm, slices.Sorted(maps.Keys(catalog))); suggestion != "" {
		return Template{}, fmt.Errorf("%w %q, did you mean %q?", ErrUnknownTemplate, name, suggestion)
	}
	return Template{}, fmt.Errorf("%w %q", ErrUnknownTemplate, name)
}

// Names returns the catalog's template names, sorted.
func Names() []string {
	return slices.Sorted(maps.Keys(catalog))
}
