package rules

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/pacslab/dicomsynth/internal/util"
)

// FieldInfo identifies a recognized user-facing field keyword.
type FieldInfo struct {
	Name  string
	Tag   tag.Tag
	Level Level
}

// fieldRegistry maps normalized keywords to field info. Keys are
// lowercase with separators removed, so "PatientSex", "patient_sex" and
// "patientsex" all resolve to the same field.
var fieldRegistry = map[string]FieldInfo{
	// Patient level
	"patientname":      {Name: "PatientName", Tag: tag.PatientName, Level: LevelPatient},
	"patientid":        {Name: "PatientID", Tag: tag.PatientID, Level: LevelPatient},
	"patientbirthdate": {Name: "PatientBirthDate", Tag: tag.PatientBirthDate, Level: LevelPatient},
	"patientsex":       {Name: "PatientSex", Tag: tag.PatientSex, Level: LevelPatient},

	// Study level
	"studyinstanceuid": {Name: "StudyInstanceUID", Tag: tag.StudyInstanceUID, Level: LevelStudy},
	"studydate":        {Name: "StudyDate", Tag: tag.StudyDate, Level: LevelStudy},
	"studytime":        {Name: "StudyTime", Tag: tag.StudyTime, Level: LevelStudy},
	"accessionnumber":  {Name: "AccessionNumber", Tag: tag.AccessionNumber, Level: LevelStudy},
	"studydescription": {Name: "StudyDescription", Tag: tag.StudyDescription, Level: LevelStudy},
	"studyid":          {Name: "StudyID", Tag: tag.StudyID, Level: LevelStudy},

	// Series level
	"seriesinstanceuid": {Name: "SeriesInstanceUID", Tag: tag.SeriesInstanceUID, Level: LevelSeries},
	"seriesnumber":      {Name: "SeriesNumber", Tag: tag.SeriesNumber, Level: LevelSeries},
	"modality":          {Name: "Modality", Tag: tag.Modality, Level: LevelSeries},
	"seriesdescription": {Name: "SeriesDescription", Tag: tag.SeriesDescription, Level: LevelSeries},
	"bodypartexamined":  {Name: "BodyPartExamined", Tag: tag.BodyPartExamined, Level: LevelSeries},

	// Image level
	"sopinstanceuid": {Name: "SOPInstanceUID", Tag: tag.SOPInstanceUID, Level: LevelImage},
	"sopclassuid":    {Name: "SOPClassUID", Tag: tag.SOPClassUID, Level: LevelImage},
	"instancenumber": {Name: "InstanceNumber", Tag: tag.InstanceNumber, Level: LevelImage},
}

// convenienceKeys are shorthand keys the generator consumes directly
// (identifiers, descriptions, image dimensions). The engine skips them
// when applying user fields; matching is on the exact key.
var convenienceKeys = map[string]bool{
	"patient_name":       true,
	"patient_id":         true,
	"study_uid":          true,
	"study_date":         true,
	"study_time":         true,
	"accession_number":   true,
	"series_uid":         true,
	"series_number":      true,
	"modality":           true,
	"sop_instance_uid":   true,
	"instance_number":    true,
	"study_description":  true,
	"series_description": true,
	"rows":               true,
	"columns":            true,
}

// IsConvenienceKey reports whether key is one of the generator-level
// shorthand keys rather than a DICOM field keyword.
func IsConvenienceKey(key string) bool {
	return convenienceKeys[key]
}

// FieldByKeyword resolves a user-facing field keyword to its tag. The
// lookup is case-insensitive and ignores underscores and spaces. Unknown
// keywords produce an error carrying the closest known keyword when one
// is within editing distance.
func FieldByKeyword(key string) (FieldInfo, error) {
	norm := normalizeKeyword(key)
	if info, ok := fieldRegistry[norm]; ok {
		return info, nil
	}

	if suggestion := closestKeyword(norm); suggestion != "" {
		return FieldInfo{}, fmt.Errorf("unknown field %q, did you mean %q?", key, suggestion)
	}
	return FieldInfo{}, fmt.Errorf("unknown field %q", key)
}

// Keywords returns the recognized field keywords in their canonical
// spelling, sorted alphabetically.
func Keywords() []string {
	names := make([]string, 0, len(fieldRegistry))
	for _, info := range fieldRegistry {
		names = append(names, info.Name)
	}
	slices.Sort(names)
	return names
}

func normalizeKeyword(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, "_", "")
	key = strings.ReplaceAll(key, " ", "")
	return key
}

// closestKeyword returns the canonical name of the registry entry
// nearest to norm, or the empty string when nothing is close.
func closestKeyword(norm string) string {
	keys := slices.Sorted(maps.Keys(fieldRegistry))
	match := util.ClosestMatch(norm, keys)
	if match == "" {
		return ""
	}
	return fieldRegistry[match].Name
}
