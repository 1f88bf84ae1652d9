package rules

// Level identifies the hierarchy level a field belongs to.
type Level int

const (
	// LevelPatient covers patient identity fields shared by every image.
	LevelPatient Level = iota
	// LevelStudy covers fields consistent within a study.
	LevelStudy
	// LevelSeries covers fields consistent within a series.
	LevelSeries
	// LevelImage covers fields that vary per image.
	LevelImage
)

// String returns the level name used in healing events and logs.
func (l Level) String() string {
	switch l {
	case LevelPatient:
		return "patient"
	case LevelStudy:
		return "study"
	case LevelSeries:
		return "series"
	case LevelImage:
		return "image"
	default:
		return "unknown"
	}
}

// Levels returns the hierarchy levels in generation order.
func Levels() []Level {
	return []Level{LevelPatient, LevelStudy, LevelSeries, LevelImage}
}
