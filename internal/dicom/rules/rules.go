package rules

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/pacslab/dicomsynth/internal/dicom/modalities"
)

// Kind is the value kind a rule enforces.
type Kind int

const (
	// KindString accepts free text, optionally constrained by length,
	// an allowed-value set, or a date/time format.
	KindString Kind = iota
	// KindInt accepts decimal integer text, optionally with a minimum.
	KindInt
	// KindUID accepts dotted-numeric DICOM UIDs.
	KindUID
)

// Format constrains the textual shape of a string value.
type Format int

const (
	FormatNone Format = iota
	// FormatDate requires YYYYMMDD with a real calendar date.
	FormatDate
	// FormatTime requires HHMMSS on a 24-hour clock.
	FormatTime
)

// Rule describes the constraints on a single field.
type Rule struct {
	Tag       tag.Tag
	Name      string
	Kind      Kind
	Required  bool
	MaxLength int
	Min       int
	Allowed   []string
	Format    Format
}

// Validate reports whether value satisfies the rule. The empty string is
// rejected only for required fields.
func (r Rule) Validate(value string) error {
	if value == "" {
		if r.Required {
			return fmt.Errorf("%s must not be empty", r.Name)
		}
		return nil
	}

	switch r.Kind {
	case KindInt:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", r.Name, value)
		}
		if n < r.Min {
			return fmt.Errorf("%s must be at least %d, got %d", r.Name, r.Min, n)
		}
	case KindUID:
		if !IsValidUID(value) {
			return fmt.Errorf("%s is not a valid UID: %q", r.Name, value)
		}
	case KindString:
		if r.MaxLength > 0 && len(value) > r.MaxLength {
			return fmt.Errorf("%s exceeds %d characters", r.Name, r.MaxLength)
		}
		if len(r.Allowed) > 0 && !slices.Contains(r.Allowed, value) {
			return fmt.Errorf("%s must be one of %s, got %q", r.Name, strings.Join(r.Allowed, ", "), value)
		}
		switch r.Format {
		case FormatDate:
			if _, err := time.Parse("20060102", value); err != nil {
				return fmt.Errorf("%s must be a valid YYYYMMDD date, got %q", r.Name, value)
			}
		case FormatTime:
			if _, err := time.Parse("150405", value); err != nil {
				return fmt.Errorf("%s must be a valid HHMMSS time, got %q", r.Name, value)
			}
		}
	}
	return nil
}

// IsValidUID reports whether uid is a dotted-numeric DICOM UID:
// non-empty, digits and dots only, with at least one digit.
func IsValidUID(uid string) bool {
	digits := 0
	for i := 0; i < len(uid); i++ {
		switch {
		case uid[i] >= '0' && uid[i] <= '9':
			digits++
		case uid[i] == '.':
		default:
			return false
		}
	}
	return digits > 0
}

// fieldRules is the closed constraint table. Dispatch is by tag; fields
// without an entry are accepted verbatim.
var fieldRules = map[tag.Tag]Rule{
	tag.PatientName:      {Tag: tag.PatientName, Name: "PatientName", Kind: KindString, Required: true, MaxLength: 64},
	tag.PatientID:        {Tag: tag.PatientID, Name: "PatientID", Kind: KindString, Required: true, MaxLength: 64},
	tag.PatientBirthDate: {Tag: tag.PatientBirthDate, Name: "PatientBirthDate", Kind: KindString, Format: FormatDate},
	tag.PatientSex:       {Tag: tag.PatientSex, Name: "PatientSex", Kind: KindString, Allowed: []string{"M", "F", "O"}},

	tag.StudyInstanceUID: {Tag: tag.StudyInstanceUID, Name: "StudyInstanceUID", Kind: KindUID, Required: true},
	tag.StudyDate:        {Tag: tag.StudyDate, Name: "StudyDate", Kind: KindString, Required: true, Format: FormatDate},
	tag.StudyTime:        {Tag: tag.StudyTime, Name: "StudyTime", Kind: KindString, Required: true, Format: FormatTime},
	tag.AccessionNumber:  {Tag: tag.AccessionNumber, Name: "AccessionNumber", Kind: KindString, Required: true, MaxLength: 16},

	tag.SeriesInstanceUID: {Tag: tag.SeriesInstanceUID, Name: "SeriesInstanceUID", Kind: KindUID, Required: true},
	tag.SeriesNumber:      {Tag: tag.SeriesNumber, Name: "SeriesNumber", Kind: KindInt, Required: true, Min: 1},
	tag.Modality:          {Tag: tag.Modality, Name: "Modality", Kind: KindString, Required: true, Allowed: modalities.Names()},

	tag.SOPInstanceUID: {Tag: tag.SOPInstanceUID, Name: "SOPInstanceUID", Kind: KindUID, Required: true},
	tag.SOPClassUID:    {Tag: tag.SOPClassUID, Name: "SOPClassUID", Kind: KindUID, Required: true},
	tag.InstanceNumber: {Tag: tag.InstanceNumber, Name: "InstanceNumber", Kind: KindInt, Required: true, Min: 1},
}

// mandatoryByLevel lists the tags every record must carry at each level,
// in the order they are checked and reported.
var mandatoryByLevel = map[Level][]tag.Tag{
	LevelPatient: {tag.PatientName, tag.PatientID, tag.PatientBirthDate},
	LevelStudy:   {tag.StudyInstanceUID, tag.StudyDate, tag.StudyTime, tag.AccessionNumber},
	LevelSeries:  {tag.SeriesInstanceUID, tag.SeriesNumber, tag.Modality},
	LevelImage:   {tag.SOPInstanceUID, tag.SOPClassUID, tag.InstanceNumber},
}

// RuleFor returns the rule for a tag, if one exists.
func RuleFor(t tag.Tag) (Rule, bool) {
	r, ok := fieldRules[t]
	return r, ok
}

// MandatoryTags returns the mandatory tag set for a level in check order.
func MandatoryTags(level Level) []tag.Tag {
	return slices.Clone(mandatoryByLevel[level])
}
