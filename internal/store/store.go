// Package store persists generated studies as DICOM files on disk and
// keeps a queryable catalog of their summaries.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	synth "github.com/pacslab/dicomsynth/internal/dicom"
)

// ErrNotFound marks lookups of studies the store does not hold.
var ErrNotFound = errors.New("study not found")

// Store lays out studies as <root>/<study uid>/series_<n>/<sop uid>.dcm
// and mirrors a summary of each saved study into the catalog.
type Store struct {
	root    string
	catalog Catalog
	log     zerolog.Logger
}

// New opens a store rooted at root, creating the directory if needed.
// A nil catalog falls back to an in-memory one.
func New(root string, catalog Catalog, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	if catalog == nil {
		catalog = NewMemoryCatalog()
	}
	return &Store{root: root, catalog: catalog, log: log}, nil
}

// Root returns the directory the store writes under.
func (s *Store) Root() string {
	return s.root
}

// Save writes every image of the study to disk and records its summary
// in the catalog. An existing study with the same UID is overwritten
// file by file.
func (s *Store) Save(ctx context.Context, study *synth.Study) error {
	studyDir := filepath.Join(s.root, study.UID)
	if err := os.MkdirAll(studyDir, 0755); err != nil {
		return fmt.Errorf("create study directory: %w", err)
	}

	for _, series := range study.Series {
		seriesDir := filepath.Join(studyDir, fmt.Sprintf("series_%d", series.Number))
		if err := os.MkdirAll(seriesDir, 0755); err != nil {
			return fmt.Errorf("create series directory: %w", err)
		}
		for _, img := range series.Images {
			if err := ctx.Err(); err != nil {
				return err
			}
			ds, err := synth.BuildDataset(img)
			if err != nil {
				return fmt.Errorf("build dataset for %s: %w", img.UID, err)
			}
			path := filepath.Join(seriesDir, img.UID+".dcm")
			if err := writeDatasetToFile(path, ds); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
		}
	}

	if err := s.catalog.Put(ctx, summarize(study)); err != nil {
		return fmt.Errorf("catalog study %s: %w", study.UID, err)
	}

	s.log.Info().
		Str("study_uid", study.UID).
		Str("path", studyDir).
		Int("series", len(study.Series)).
		Int("images", study.TotalImages()).
		Msg("study saved")
	return nil
}

// Load reads a stored study back from disk, series and images ordered
// by their numbers.
func (s *Store) Load(ctx context.Context, studyUID string) (*synth.Study, error) {
	studyDir := filepath.Join(s.root, studyUID)
	if _, err := os.Stat(studyDir); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("study %s: %w", studyUID, ErrNotFound)
		}
		return nil, err
	}

	entries, err := os.ReadDir(studyDir)
	if err != nil {
		return nil, fmt.Errorf("read study directory: %w", err)
	}

	study := &synth.Study{UID: studyUID}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		num, ok := seriesNumber(entry.Name())
		if !ok {
			continue
		}
		series, err := loadSeries(filepath.Join(studyDir, entry.Name()), num)
		if err != nil {
			return nil, err
		}
		study.Series = append(study.Series, series)
	}
	slices.SortFunc(study.Series, func(a, b *synth.Series) int { return a.Number - b.Number })

	if first := firstImage(study); first != nil {
		study.Date = first.Fields[tag.StudyDate]
		study.Time = first.Fields[tag.StudyTime]
		study.PatientID = first.Fields[tag.PatientID]
		study.PatientName = first.Fields[tag.PatientName]
	}
	return study, nil
}

// List returns the catalog summaries, newest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	return s.catalog.List(ctx)
}

// Info returns the catalog summary of one study.
func (s *Store) Info(ctx context.Context, studyUID string) (Summary, error) {
	return s.catalog.Get(ctx, studyUID)
}

// Delete removes a study's files and its catalog entry.
func (s *Store) Delete(ctx context.Context, studyUID string) error {
	studyDir := filepath.Join(s.root, studyUID)
	if _, err := os.Stat(studyDir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("study %s: %w", studyUID, ErrNotFound)
		}
		return err
	}
	if err := os.RemoveAll(studyDir); err != nil {
		return fmt.Errorf("delete study files: %w", err)
	}
	if err := s.catalog.Remove(ctx, studyUID); err != nil {
		return fmt.Errorf("remove catalog entry: %w", err)
	}
	s.log.Info().Str("study_uid", studyUID).Msg("study deleted")
	return nil
}

// CleanupEmpty removes study directories that contain no DICOM files
// and drops their catalog entries. It returns the number of directories
// removed.
func (s *Store) CleanupEmpty(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("read store root: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(s.root, entry.Name())
		has, err := hasDICOMFiles(dir)
		if err != nil {
			return removed, err
		}
		if has {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return removed, fmt.Errorf("remove %s: %w", dir, err)
		}
		if err := s.catalog.Remove(ctx, entry.Name()); err != nil {
			return removed, fmt.Errorf("remove catalog entry: %w", err)
		}
		s.log.Debug().Str("path", dir).Msg("removed empty study directory")
		removed++
	}
	return removed, nil
}

func loadSeries(dir string, number int) (*synth.Series, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read series directory: %w", err)
	}

	series := &synth.Series{Number: number}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".dcm") {
			continue
		}
		path := filepath.Join(dir, f.Name())
		ds, err := dicom.ParseFile(path, nil)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		img, err := synth.ImageFromDataset(ds)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		series.Images = append(series.Images, img)
	}
	slices.SortStableFunc(series.Images, func(a, b *synth.Image) int { return a.InstanceNumber - b.InstanceNumber })

	if len(series.Images) > 0 {
		first := series.Images[0]
		series.UID = first.Fields[tag.SeriesInstanceUID]
		series.Modality = first.Fields[tag.Modality]
	}
	return series, nil
}

// writeDatasetToFile writes a DICOM dataset to a file.
func writeDatasetToFile(path string, ds dicom.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return dicom.Write(f, ds)
}

func summarize(study *synth.Study) Summary {
	modality := ""
	if len(study.Series) > 0 {
		modality = study.Series[0].Modality
	}
	return Summary{
		StudyUID:    study.UID,
		PatientID:   study.PatientID,
		PatientName: study.PatientName,
		StudyDate:   study.Date,
		Modality:    modality,
		SeriesCount: len(study.Series),
		ImageCount:  study.TotalImages(),
		CreatedAt:   time.Now().UTC(),
	}
}

func firstImage(study *synth.Study) *synth.Image {
	for _, series := range study.Series {
		if len(series.Images) > 0 {
			return series.Images[0]
		}
	}
	return nil
}

func seriesNumber(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "series_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func hasDICOMFiles(dir string) (bool, error) {
	found := false
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".dcm") {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	return found, err
}
