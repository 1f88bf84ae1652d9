package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pacslab/dicomsynth/internal/config"
	synth "github.com/pacslab/dicomsynth/internal/dicom"
	"github.com/pacslab/dicomsynth/internal/dicom/modalities"
	"github.com/pacslab/dicomsynth/internal/dicom/templates"
	"github.com/pacslab/dicomsynth/internal/export"
	"github.com/pacslab/dicomsynth/internal/pacs"
	"github.com/pacslab/dicomsynth/internal/store"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "create":
		err = runCreate(args)
	case "list":
		err = runList(args)
	case "info":
		err = runInfo(args)
	case "delete":
		err = runDelete(args)
	case "send":
		err = runSend(args)
	case "verify":
		err = runVerify(args)
	case "export":
		err = runExport(args)
	case "cleanup":
		err = runCleanup(args)
	case "templates":
		err = runTemplates(args)
	case "version", "-version", "--version":
		fmt.Printf("dicomsynth %s\n", version)
	case "help", "-help", "--help":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", cmd)
		printHelp()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	configPath string
	outputDir  string
	logLevel   string
}

func registerCommon(fs *flag.FlagSet, cf *commonFlags) {
	fs.StringVar(&cf.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&cf.outputDir, "output", "", "studies directory (overrides config)")
	fs.StringVar(&cf.logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// loadConfig layers flag overrides on top of the config file on top of
// the built-in defaults.
func loadConfig(cf commonFlags) (config.Config, error) {
	cfg := config.Default()
	if cf.configPath != "" {
		loaded, err := config.Load(cf.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = *loaded
	}
	if cf.outputDir != "" {
		cfg.OutputDir = cf.outputDir
	}
	if cf.logLevel != "" {
		cfg.Logging.Level = cf.logLevel
	}
	return cfg, nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// openStore opens the studies directory with its SQLite catalog.
func openStore(cfg config.Config, log zerolog.Logger) (*store.Store, func(), error) {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create studies directory: %w", err)
	}
	catalog, err := store.OpenSQLiteCatalog(filepath.Join(cfg.OutputDir, "catalog.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open catalog: %w", err)
	}
	s, err := store.New(cfg.OutputDir, catalog, log)
	if err != nil {
		_ = catalog.Close()
		return nil, nil, err
	}
	return s, func() { _ = catalog.Close() }, nil
}

func parseFieldFlags(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	fields := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid -field %q, want 'Keyword=Value'", entry)
		}
		fields[key] = value
	}
	return fields, nil
}

// seedFor spreads one base seed over several studies while keeping the
// run reproducible. Base 0 stays 0 so every study draws fresh entropy.
func seedFor(base uint64, study int) uint64 {
	if base == 0 {
		return 0
	}
	return base + uint64(study)
}

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	var cf commonFlags
	registerCommon(fs, &cf)
	studyCount := fs.Int("studies", 1, "number of studies to create")
	seriesCount := fs.Int("series", 1, "series per study")
	imageCount := fs.Int("images", 1, "images per series")
	modality := fs.String("modality", "", "imaging modality: "+strings.Join(modalities.Names(), ", "))
	region := fs.String("region", "", "anatomical region for pixel synthesis (chest, head, abdomen, ...)")
	rows := fs.Int("rows", 0, "image height in pixels (default per template, else 512)")
	columns := fs.Int("columns", 0, "image width in pixels (default per template, else 512)")
	template := fs.String("template", "", "study template preset, see 'dicomsynth templates'")
	seed := fs.Uint64("seed", 0, "seed for reproducibility (0 = random)")
	workers := fs.Int("workers", 0, fmt.Sprintf("parallel pixel workers (default: %d = CPU cores)", runtime.NumCPU()))
	burnIn := fs.Bool("burn-in", false, "burn patient and study text into the pixel data")
	realistic := fs.Bool("realistic-names", false, "generate plausible patient names instead of anonymous IDs")
	var fieldFlags []string
	fs.Func("field", "set a DICOM field: 'Keyword=Value' (repeatable)", func(s string) error {
		fieldFlags = append(fieldFlags, s)
		return nil
	})
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *studyCount <= 0 {
		return fmt.Errorf("-studies must be > 0")
	}
	fields, err := parseFieldFlags(fieldFlags)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cf)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	baseSeed := *seed
	if baseSeed == 0 {
		baseSeed = cfg.Seed
	}
	poolSize := *workers
	if poolSize == 0 {
		poolSize = cfg.Workers
	}

	s, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	gen := synth.New(log, nil)
	ctx := context.Background()

	fmt.Printf("Creating %d study(ies) with %d series each...\n", *studyCount, *seriesCount)
	for i := 0; i < *studyCount; i++ {
		study, err := gen.CreateStudy(synth.StudyOptions{
			SeriesCount:    *seriesCount,
			ImageCount:     *imageCount,
			Modality:       *modality,
			Region:         *region,
			Rows:           *rows,
			Columns:        *columns,
			Template:       *template,
			Fields:         fields,
			BurnInText:     *burnIn,
			RealisticNames: *realistic,
			Seed:           seedFor(baseSeed, i),
			Workers:        poolSize,
		})
		if err != nil {
			return fmt.Errorf("create study: %w", err)
		}
		if err := s.Save(ctx, study); err != nil {
			return fmt.Errorf("save study: %w", err)
		}
		fmt.Printf("Created study %s (%d series, %d images)\n",
			study.UID, len(study.Series), study.TotalImages())
	}

	fmt.Printf("\n✓ Created %d study(ies) in %s\n", *studyCount, cfg.OutputDir)
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	var cf commonFlags
	registerCommon(fs, &cf)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(cf)
	if err != nil {
		return err
	}
	s, closeStore, err := openStore(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer closeStore()

	summaries, err := s.List(context.Background())
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No studies found.")
		return nil
	}

	fmt.Printf("Found %d study(ies):\n", len(summaries))
	for _, sum := range summaries {
		fmt.Printf("  %s  %s  %-4s %d series, %d images  %s\n",
			sum.StudyUID, sum.StudyDate, sum.Modality,
			sum.SeriesCount, sum.ImageCount, sum.PatientID)
	}
	return nil
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	var cf commonFlags
	registerCommon(fs, &cf)
	if err := fs.Parse(args); err != nil {
		return err
	}
	studyUID := fs.Arg(0)
	if studyUID == "" {
		return fmt.Errorf("usage: dicomsynth info [options] <study-uid>")
	}

	cfg, err := loadConfig(cf)
	if err != nil {
		return err
	}
	s, closeStore, err := openStore(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer closeStore()
	ctx := context.Background()

	sum, err := s.Info(ctx, studyUID)
	if err != nil {
		return err
	}
	study, err := s.Load(ctx, studyUID)
	if err != nil {
		return err
	}

	fmt.Printf("Study:     %s\n", sum.StudyUID)
	fmt.Printf("Patient:   %s (%s)\n", sum.PatientName, sum.PatientID)
	fmt.Printf("Date:      %s\n", sum.StudyDate)
	fmt.Printf("Modality:  %s\n", sum.Modality)
	fmt.Printf("Series:    %d\n", sum.SeriesCount)
	fmt.Printf("Images:    %d\n", sum.ImageCount)
	fmt.Printf("Created:   %s\n", sum.CreatedAt.Format(time.RFC3339))
	for _, series := range study.Series {
		fmt.Printf("  series %d: %s  %s  %d image(s)\n",
			series.Number, series.UID, series.Modality, len(series.Images))
	}
	return nil
}

func runDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	var cf commonFlags
	registerCommon(fs, &cf)
	if err := fs.Parse(args); err != nil {
		return err
	}
	studyUID := fs.Arg(0)
	if studyUID == "" {
		return fmt.Errorf("usage: dicomsynth delete [options] <study-uid>")
	}

	cfg, err := loadConfig(cf)
	if err != nil {
		return err
	}
	s, closeStore, err := openStore(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer closeStore()

	if err := s.Delete(context.Background(), studyUID); err != nil {
		return err
	}
	fmt.Printf("Deleted study %s\n", studyUID)
	return nil
}

// pacsClient builds the archive client from flags and config.
func pacsClient(cfg config.Config, log zerolog.Logger, url, callingAE, calledAE string) (*pacs.Client, error) {
	opts := pacs.Options{
		BaseURL:   cfg.PACS.URL,
		CallingAE: cfg.PACS.CallingAE,
		CalledAE:  cfg.PACS.CalledAE,
		Timeout:   cfg.PACS.Timeout,
	}
	if url != "" {
		opts.BaseURL = url
	}
	if callingAE != "" {
		opts.CallingAE = callingAE
	}
	if calledAE != "" {
		opts.CalledAE = calledAE
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("no archive URL: set -url or pacs.url in the config file")
	}
	return pacs.NewClient(opts, log)
}

func runSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	var cf commonFlags
	registerCommon(fs, &cf)
	url := fs.String("url", "", "DICOMweb base URL, e.g. http://pacs:8042/dicom-web")
	callingAE := fs.String("calling-ae", "", "our AE title")
	calledAE := fs.String("called-ae", "", "archive AE title")
	if err := fs.Parse(args); err != nil {
		return err
	}
	studyUID := fs.Arg(0)
	if studyUID == "" {
		return fmt.Errorf("usage: dicomsynth send [options] <study-uid>")
	}

	cfg, err := loadConfig(cf)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	client, err := pacsClient(cfg, log, *url, *callingAE, *calledAE)
	if err != nil {
		return err
	}

	s, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	ctx := context.Background()

	fmt.Println("Verifying connection...")
	if err := client.VerifyReachable(ctx); err != nil {
		return fmt.Errorf("connection verification failed: %w", err)
	}

	study, err := s.Load(ctx, studyUID)
	if err != nil {
		return err
	}

	fmt.Printf("Sending study %s (%d images)...\n", studyUID, study.TotalImages())
	result, err := client.SubmitStudy(ctx, study)
	if err != nil {
		return err
	}
	if !result.AllSent() {
		return fmt.Errorf("sent %d of %d images, rejected: %s",
			result.Sent, result.Total, strings.Join(result.Failed, ", "))
	}
	fmt.Printf("✓ Study sent successfully! (%d images)\n", result.Sent)
	return nil
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	var cf commonFlags
	registerCommon(fs, &cf)
	url := fs.String("url", "", "DICOMweb base URL, e.g. http://pacs:8042/dicom-web")
	callingAE := fs.String("calling-ae", "", "our AE title")
	calledAE := fs.String("called-ae", "", "archive AE title")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(cf)
	if err != nil {
		return err
	}
	client, err := pacsClient(cfg, newLogger(cfg), *url, *callingAE, *calledAE)
	if err != nil {
		return err
	}

	fmt.Println("Verifying connection...")
	if err := client.VerifyReachable(context.Background()); err != nil {
		return fmt.Errorf("✗ connection failed: %w", err)
	}
	fmt.Println("✓ Connection verified successfully!")
	return nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	var cf commonFlags
	registerCommon(fs, &cf)
	format := fs.String("format", "png", "export format: png or dicomdir")
	dest := fs.String("to", "", "destination directory (default: <export_dir>/<study-uid>)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	studyUID := fs.Arg(0)
	if studyUID == "" {
		return fmt.Errorf("usage: dicomsynth export [options] <study-uid>")
	}

	cfg, err := loadConfig(cf)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	s, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	ctx := context.Background()

	study, err := s.Load(ctx, studyUID)
	if err != nil {
		return err
	}

	outDir := *dest
	if outDir == "" {
		outDir = filepath.Join(cfg.ExportDir, studyUID)
	}

	e := export.New(log)
	switch strings.ToLower(*format) {
	case "png":
		err = e.ToPNG(ctx, study, outDir)
	case "dicomdir":
		err = e.ToDICOMDIR(ctx, study, outDir)
	default:
		return fmt.Errorf("unknown export format %q, valid options: png, dicomdir", *format)
	}
	if err != nil {
		return err
	}
	fmt.Printf("✓ Exported study %s to %s\n", studyUID, outDir)
	return nil
}

func runCleanup(args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	var cf commonFlags
	registerCommon(fs, &cf)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(cf)
	if err != nil {
		return err
	}
	s, closeStore, err := openStore(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer closeStore()

	removed, err := s.CleanupEmpty(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d empty study director(ies)\n", removed)
	return nil
}

func runTemplates(args []string) error {
	fs := flag.NewFlagSet("templates", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Println("Available templates:")
	for _, name := range templates.Names() {
		t, err := templates.Lookup(name)
		if err != nil {
			return err
		}
		fmt.Printf("  %-14s %-3s %4dx%-4d  %s\n", t.Name, t.Modality, t.Columns, t.Rows, t.StudyDescription)
	}
	return nil
}

func printHelp() {
	fmt.Println("dicomsynth")
	fmt.Println("==========")
	fmt.Println()
	fmt.Println("Create synthetic DICOM studies and send them to PACS systems.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  dicomsynth <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  create     Create synthetic DICOM studies")
	fmt.Println("  list       List stored studies")
	fmt.Println("  info       Show one study's details")
	fmt.Println("  delete     Delete a stored study")
	fmt.Println("  send       Send a study to a DICOMweb archive (STOW-RS)")
	fmt.Println("  verify     Check the archive answers QIDO-RS queries")
	fmt.Println("  export     Export a study as a PNG tree or DICOM media file set")
	fmt.Println("  cleanup    Remove study directories holding no DICOM files")
	fmt.Println("  templates  List study template presets")
	fmt.Println("  version    Print the version")
	fmt.Println()
	fmt.Println("Common options (every command):")
	fmt.Println("  -config <FILE>     YAML configuration file")
	fmt.Println("  -output <DIR>      Studies directory (default: 'studies')")
	fmt.Println("  -log-level <LVL>   Log level: debug, info, warn, error (default: info)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Create one CR study with a single image")
	fmt.Println("  dicomsynth create")
	fmt.Println()
	fmt.Println("  # Create 3 CT chest studies, 2 series of 10 images each")
	fmt.Println("  dicomsynth create -studies 3 -series 2 -images 10 -modality CT")
	fmt.Println()
	fmt.Println("  # Reproducible MRI head study from a template")
	fmt.Println("  dicomsynth create -template mri-head -seed 42 -realistic-names")
	fmt.Println()
	fmt.Println("  # Override individual DICOM fields")
	fmt.Println("  dicomsynth create -field \"PatientName=DOE^JANE\" -field \"AccessionNumber=ACC001\"")
	fmt.Println()
	fmt.Println("  # Send a study to Orthanc and check it arrived")
	fmt.Println("  dicomsynth send -url http://localhost:8042/dicom-web 1.2.826.0.1.3680043.8.498.123...")
	fmt.Println()
	fmt.Println("  # Export a study as PNGs for eyeballing")
	fmt.Println("  dicomsynth export -format png 1.2.826.0.1.3680043.8.498.123...")
	fmt.Println()
	fmt.Println("Run 'dicomsynth <command> -help' for the options of one command.")
}
