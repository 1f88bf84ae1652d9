package util

import (
	"math/rand/v2"
	"strings"
)

// UIDRoot is the organizational root prefix for every UID minted by this
// tool. Generated UIDs are recognizable test data and must never collide
// with identifiers issued by real modalities.
const UIDRoot = "1.2.826.0.1.3680043.8.498."

// GenerateUID mints a fresh DICOM UID under UIDRoot. The result is
// always exactly 64 characters (the UI value representation maximum),
// contains only digits and dots, and its random component never starts
// with a zero.
func GenerateUID(rng *rand.Rand) string {
	var b strings.Builder
	b.Grow(64)
	b.WriteString(UIDRoot)
	b.WriteByte('1' + byte(rng.IntN(9)))
	for b.Len() < 64 {
		b.WriteByte('0' + byte(rng.IntN(10)))
	}
	return b.String()
}
