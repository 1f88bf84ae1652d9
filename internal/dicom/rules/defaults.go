package rules

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/pacslab/dicomsynth/internal/dicom/modalities"
	"github.com/pacslab/dicomsynth/internal/util"
)

const (
	minAgeYears = 18
	maxAgeYears = 80
)

// defaultFor synthesizes a replacement value for tag t. Some defaults
// depend on values already present in the record, so the record is
// consulted but never modified here.
func (e *Engine) defaultFor(t tag.Tag, rec Record) string {
	switch t {
	case tag.PatientName:
		return "Patient_" + e.shortID()
	case tag.PatientID:
		return e.shortID()
	case tag.PatientBirthDate:
		return e.randomBirthDate()
	case tag.PatientSex:
		return "O"
	case tag.StudyInstanceUID, tag.SeriesInstanceUID, tag.SOPInstanceUID:
		return util.GenerateUID(e.rng)
	case tag.StudyDate:
		return e.now().Format("20060102")
	case tag.StudyTime:
		return e.now().Format("150405")
	case tag.AccessionNumber:
		return fmt.Sprintf("%s-%04d", e.now().Format("20060102"), e.rng.IntN(10000))
	case tag.SeriesNumber, tag.InstanceNumber:
		return "1"
	case tag.Modality:
		return string(modalities.CR)
	case tag.SOPClassUID:
		return modalities.SOPClassFor(rec[tag.Modality])
	}

	if rule, ok := fieldRules[t]; ok && rule.Kind == KindInt {
		return "1"
	}
	return fmt.Sprintf("Generated_%04X_%04X", t.Group, t.Element)
}

// shortID returns the first 8 hex digits of a random UUID drawn from
// the engine's RNG.
func (e *Engine) shortID() string {
	id := uuid.Must(uuid.NewRandomFromReader(rngReader{e.rng}))
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}

// randomBirthDate picks a date making the patient between minAgeYears
// and maxAgeYears old, inclusive.
func (e *Engine) randomBirthDate() string {
	maxBirth := e.now().AddDate(0, 0, -minAgeYears*365)
	span := (maxAgeYears - minAgeYears) * 365
	birth := maxBirth.AddDate(0, 0, -e.rng.IntN(span+1))
	return birth.Format("20060102")
}

// rngReader adapts a seeded RNG to io.Reader so uuid generation stays
// deterministic under a fixed seed.
type rngReader struct {
	rng interface{ Uint64() uint64 }
}

func (r rngReader) Read(p []byte) (int, error) {
	var buf [8]byte
	for n := 0; n < len(p); n += 8 {
		binary.LittleEndian.PutUint64(buf[:], r.rng.Uint64())
		copy(p[n:], buf[:])
	}
	return len(p), nil
}
