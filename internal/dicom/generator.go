// Package dicom generates synthetic studies: hierarchical records whose
// fields pass through the rule engine and whose pixel buffers come from
// the procedural compositor. Records are resolved sequentially so a
// fixed seed reproduces the same study; only pixel synthesis fans out
// to workers.
package dicom

import (
	"fmt"
	"hash/fnv"
	"maps"
	"math/rand/v2"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/pacslab/dicomsynth/internal/dicom/rules"
	"github.com/pacslab/dicomsynth/internal/dicom/templates"
	"github.com/pacslab/dicomsynth/internal/image"
	"github.com/pacslab/dicomsynth/internal/util"
)

// defaultDimension is the image edge used when neither a template nor
// user fields specify rows/columns.
const defaultDimension = 512

// StudyOptions configures one CreateStudy call.
type StudyOptions struct {
	SeriesCount int // number of series (negative treated as 0)
	ImageCount  int // images per series (negative treated as 0)

	Modality string // modality code; invalid values heal to CR
	Region   string // anatomical region; unknown falls back to generic

	Rows    int // image height in pixels; 0 uses template or 512
	Columns int // image width in pixels; 0 uses template or 512

	Template string // catalog preset name; empty for none

	// Fields carries user field overrides, keyed by registry keyword
	// (e.g. "PatientSex") or convenience key (e.g. "patient_name").
	// Overrides win over template presets and generated identifiers.
	Fields map[string]string

	BurnInText     bool // burn identifying text into the pixel data
	RealisticNames bool // synthesize a plausible patient name when none given

	Seed    uint64 // 0 seeds from system entropy
	Workers int    // parallel pixel workers; 0 = NumCPU
}

// Generator creates studies.
type Generator struct {
	log zerolog.Logger
	obs rules.Observer
}

// New returns a generator logging through log. A nil obs routes healing
// events to the logger.
func New(log zerolog.Logger, obs rules.Observer) *Generator {
	if obs == nil {
		obs = rules.NewLogObserver(log)
	}
	return &Generator{log: log, obs: obs}
}

// pixelTask carries one image's pixel synthesis work into the worker
// pool. The image's record is fully resolved before the task is built,
// so workers touch disjoint images only.
type pixelTask struct {
	index    int
	img      *Image
	modality string
	region   string
	seed     uint64
	burnIn   bool
}

// CreateStudy builds a study of SeriesCount series with ImageCount
// images each. Field problems never fail the call; they are healed by
// the rule engine and reported to the observer. The only errors are an
// unknown template name and pixel synthesis failures.
func (g *Generator) CreateStudy(opts StudyOptions) (*Study, error) {
	rng := util.NewRNG(opts.Seed)
	engine := rules.NewEngine(rng, g.obs)

	var tpl templates.Template
	hasTemplate := opts.Template != ""
	if hasTemplate {
		t, err := templates.Lookup(opts.Template)
		if err != nil {
			return nil, err
		}
		tpl = t
		g.log.Debug().Str("template", tpl.Name).Msg("resolved template preset")
	}

	// Template presets sit below explicit options, which sit below the
	// user field map.
	eff := map[string]string{}
	if hasTemplate {
		maps.Copy(eff, tpl.FieldOverrides())
	}
	if opts.Modality != "" {
		eff["modality"] = opts.Modality
	}
	if opts.Rows > 0 {
		eff["rows"] = strconv.Itoa(opts.Rows)
	}
	if opts.Columns > 0 {
		eff["columns"] = strconv.Itoa(opts.Columns)
	}
	maps.Copy(eff, opts.Fields)

	region := strings.ToLower(strings.TrimSpace(opts.Region))
	if region == "" && hasTemplate {
		region = tpl.Region
	}
	if region == "" {
		region = "chest"
	}

	engine.ReportUnknownFields(eff)

	rows := g.resolveDimension(eff["rows"], tag.Rows, "Rows")
	cols := g.resolveDimension(eff["columns"], tag.Columns, "Columns")

	seriesCount := max(opts.SeriesCount, 0)
	imageCount := max(opts.ImageCount, 0)

	// Patient and study level fields resolve once and are shared by
	// every image.
	studyRec := rules.Record{}
	if opts.RealisticNames {
		sex := eff["PatientSex"]
		if sex != "M" && sex != "F" {
			sex = util.RandomSex(rng)
		}
		studyRec[tag.PatientSex] = sex
		studyRec[tag.PatientName] = util.GeneratePatientName(sex, rng)
	}
	applyConvenience(studyRec, eff, rules.LevelPatient)
	engine.ValidateAndFill(studyRec, rules.LevelPatient, eff)
	applyConvenience(studyRec, eff, rules.LevelStudy)
	engine.ValidateAndFill(studyRec, rules.LevelStudy, eff)

	studyUID := studyRec[tag.StudyInstanceUID]
	if _, ok := studyRec[tag.StudyID]; !ok {
		studyRec[tag.StudyID] = shortUID(studyUID)
	}
	if _, ok := studyRec[tag.StudyDescription]; !ok {
		studyRec[tag.StudyDescription] = "Synthetic Study " + shortUID(studyUID)
	}

	study := &Study{
		UID:         studyUID,
		Date:        studyRec[tag.StudyDate],
		Time:        studyRec[tag.StudyTime],
		PatientID:   studyRec[tag.PatientID],
		PatientName: studyRec[tag.PatientName],
		Series:      make([]*Series, 0, seriesCount),
	}

	// Phase 1: resolve all records sequentially so runs with the same
	// seed produce identical studies regardless of worker count.
	baseSeed := rng.Uint64()
	tasks := make([]pixelTask, 0, seriesCount*imageCount)
	globalIndex := 1

	for seriesNum := 1; seriesNum <= seriesCount; seriesNum++ {
		seriesRec := studyRec.Clone()
		seriesRec[tag.SeriesInstanceUID] = util.GenerateUID(rng)
		seriesRec[tag.SeriesNumber] = strconv.Itoa(seriesNum)
		applyConvenience(seriesRec, eff, rules.LevelSeries)
		engine.ValidateAndFill(seriesRec, rules.LevelSeries, eff)
		if _, ok := seriesRec[tag.SeriesDescription]; !ok {
			seriesRec[tag.SeriesDescription] = "Synthetic Series " + seriesRec[tag.SeriesNumber]
		}

		modality := seriesRec[tag.Modality]
		series := &Series{
			UID:      seriesRec[tag.SeriesInstanceUID],
			Number:   seriesNum,
			Modality: modality,
			Images:   make([]*Image, 0, imageCount),
		}

		for imageIdx := 1; imageIdx <= imageCount; imageIdx++ {
			imageRec := seriesRec.Clone()
			imageRec[tag.SOPInstanceUID] = util.GenerateUID(rng)
			imageRec[tag.InstanceNumber] = strconv.Itoa(imageIdx)
			applyConvenience(imageRec, eff, rules.LevelImage)
			engine.ValidateAndFill(imageRec, rules.LevelImage, eff)

			imageRec[tag.Rows] = strconv.Itoa(rows)
			imageRec[tag.Columns] = strconv.Itoa(cols)
			imageRec[tag.BitsAllocated] = "16"
			imageRec[tag.BitsStored] = "16"
			imageRec[tag.HighBit] = "15"
			imageRec[tag.PixelRepresentation] = "0"
			imageRec[tag.SamplesPerPixel] = "1"
			imageRec[tag.PhotometricInterpretation] = "MONOCHROME2"

			img := &Image{
				UID:            imageRec[tag.SOPInstanceUID],
				InstanceNumber: imageIdx,
				Fields:         imageRec,
				Rows:           rows,
				Columns:        cols,
			}
			series.Images = append(series.Images, img)

			// Per-image pixel seed derived from the master seed, so
			// each image gets an independent deterministic stream.
			h := fnv.New64a()
			_, _ = fmt.Fprintf(h, "%d_pixel_%d", baseSeed, globalIndex)
			tasks = append(tasks, pixelTask{
				index:    globalIndex,
				img:      img,
				modality: modality,
				region:   region,
				seed:     h.Sum64(),
				burnIn:   opts.BurnInText,
			})
			globalIndex++
		}

		study.Series = append(study.Series, series)
	}

	// Phase 2: synthesize pixel data in parallel.
	if len(tasks) > 0 {
		if err := g.renderAll(tasks, opts.Workers); err != nil {
			return nil, err
		}
	}

	g.log.Info().
		Str("study_uid", study.UID).
		Int("series", len(study.Series)).
		Int("images", study.TotalImages()).
		Msg("study created")

	return study, nil
}

func (g *Generator) renderAll(tasks []pixelTask, workers int) error {
	numWorkers := workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(tasks) {
		numWorkers = len(tasks)
	}

	taskChan := make(chan pixelTask, len(tasks))
	resultChan := make(chan struct {
		index int
		err   error
	}, len(tasks))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskChan {
				err := g.renderTask(task)
				resultChan <- struct {
					index int
					err   error
				}{task.index, err}
			}
		}()
	}

	for _, task := range tasks {
		taskChan <- task
	}
	close(taskChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var firstErr error
	for result := range resultChan {
		if result.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("render image %d: %w", result.index, result.err)
		}
	}
	return firstErr
}

// renderTask synthesizes one image's pixels and derives its windowing
// fields. Overlay failure is not fatal; the image keeps the pre-overlay
// buffer.
func (g *Generator) renderTask(t pixelTask) error {
	rng := rand.New(rand.NewPCG(t.seed, t.seed))

	buf, err := image.Synthesize(image.Config{
		Width:    t.img.Columns,
		Height:   t.img.Rows,
		Modality: t.modality,
		Region:   t.region,
		RNG:      rng,
	})
	if err != nil {
		return err
	}

	if t.burnIn {
		fields := image.BurnInFields{
			PatientName:     t.img.Fields[tag.PatientName],
			PatientID:       t.img.Fields[tag.PatientID],
			StudyUID:        t.img.Fields[tag.StudyInstanceUID],
			SeriesUID:       t.img.Fields[tag.SeriesInstanceUID],
			Modality:        t.img.Fields[tag.Modality],
			StudyDate:       t.img.Fields[tag.StudyDate],
			AccessionNumber: t.img.Fields[tag.AccessionNumber],
		}
		if err := image.ApplyTextOverlay(buf, fields); err != nil {
			g.log.Warn().Err(err).Str("sop_instance_uid", t.img.UID).Msg("text overlay failed")
		}
	}

	t.img.Pixels = buf.Pix

	lo, hi := buf.Pix[0], buf.Pix[0]
	for _, v := range buf.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	width := float64(hi) - float64(lo)
	if width < 1 {
		width = 1
	}
	t.img.Fields[tag.WindowCenter] = floatToDS((float64(lo) + float64(hi)) / 2)
	t.img.Fields[tag.WindowWidth] = floatToDS(width)
	return nil
}

// resolveDimension parses a rows/columns override, falling back to the
// default edge and reporting the repair when the value is unusable.
func (g *Generator) resolveDimension(value string, t tag.Tag, name string) int {
	if value == "" {
		return defaultDimension
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		g.obs.FieldHealed(rules.Event{
			Level:  rules.LevelImage,
			Tag:    t,
			Name:   name,
			Value:  strconv.Itoa(defaultDimension),
			Reason: "invalid user value",
		})
		return defaultDimension
	}
	return n
}

// convenienceTags maps the generator-level shorthand keys to their tags,
// grouped by the level at which each applies.
var convenienceTags = map[rules.Level]map[string]tag.Tag{
	rules.LevelPatient: {
		"patient_name": tag.PatientName,
		"patient_id":   tag.PatientID,
	},
	rules.LevelStudy: {
		"study_uid":         tag.StudyInstanceUID,
		"study_date":        tag.StudyDate,
		"study_time":        tag.StudyTime,
		"accession_number":  tag.AccessionNumber,
		"study_description": tag.StudyDescription,
	},
	rules.LevelSeries: {
		"series_uid":         tag.SeriesInstanceUID,
		"series_number":      tag.SeriesNumber,
		"modality":           tag.Modality,
		"series_description": tag.SeriesDescription,
	},
	rules.LevelImage: {
		"sop_instance_uid": tag.SOPInstanceUID,
		"instance_number":  tag.InstanceNumber,
	},
}

func applyConvenience(rec rules.Record, fields map[string]string, level rules.Level) {
	for key, t := range convenienceTags[level] {
		if v, ok := fields[key]; ok {
			rec[t] = v
		}
	}
}

func shortUID(uid string) string {
	if len(uid) > 8 {
		return uid[:8]
	}
	return uid
}

// floatToDS converts a float64 to a DICOM Decimal String.
func floatToDS(f float64) string {
	return fmt.Sprintf("%.6g", f)
}
