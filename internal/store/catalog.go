package store

import (
	"context"
	"time"
)

// Summary is the catalog's view of one stored study.
type Summary struct {
	StudyUID    string
	PatientID   string
	PatientName string
	StudyDate   string
	Modality    string
	SeriesCount int
	ImageCount  int
	CreatedAt   time.Time
}

// Catalog indexes study summaries. Put keeps the CreatedAt of an
// existing entry; List orders newest first, ties broken by study UID;
// Remove of an absent study is a no-op.
type Catalog interface {
	Put(ctx context.Context, summary Summary) error
	Get(ctx context.Context, studyUID string) (Summary, error)
	List(ctx context.Context) ([]Summary, error)
	Remove(ctx context.Context, studyUID string) error
	Close() error
}
