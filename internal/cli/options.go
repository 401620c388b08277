// internal/cli/options.go
package cli

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"annovcf/internal/annotate"
	"annovcf/internal/config"
	"annovcf/internal/extsort"
	"annovcf/internal/pipeline"
	"annovcf/internal/sortkey"
	"annovcf/internal/spill"
)

// Flag names. Config file keys and ANNOVCF_* variables use the same names.
const (
	FlagOutfile         = "outfile"
	FlagSilent          = "silent"
	FlagProcesses       = "processes"
	FlagQueueSize       = "queue-size"
	FlagSort            = "sort"
	FlagFamilyID        = "family-id"
	FlagChunkRecords    = "chunk-records"
	FlagFanIn           = "fan-in"
	FlagChunkCodec      = "chunk-codec"
	FlagTempDir         = "temp-dir"
	FlagCADDFile        = "cadd-file"
	FlagCADD1000G       = "cadd-1000g"
	FlagCADDExAC        = "cadd-exac"
	FlagCADDESP         = "cadd-esp"
	FlagCADDIndels      = "cadd-indels"
	FlagCADDRaw         = "cadd-raw"
	FlagThousandG       = "thousand-g"
	FlagExAC            = "exac"
	FlagAnnotateRegions = "annotate-regions"
	FlagAnnotationDir   = "annotation-dir"
	FlagMetricsFile     = "metrics-file"
	FlagLogLevel        = "log-level"
	FlagQuiet           = "quiet"
	FlagVersion         = "version"
)

// Options holds all CLI flags and arguments.
type Options struct {
	// Input / output
	Input   string // path or "-"
	OutFile string
	Silent  bool

	// Performance
	Processes    int // 0 = auto
	QueueSize    int
	ChunkRecords int
	FanIn        int
	ChunkCodec   spill.Codec
	TempDir      string

	// Ordering
	Sort     sortkey.Mode
	FamilyID string

	// Sources
	CADDFile        string
	CADD1000G       string
	CADDExAC        string
	CADDESP         string
	CADDIndels      string
	CADDRaw         bool
	ThousandG       string
	ExAC            string
	AnnotateRegions bool
	AnnotationDir   string

	// Diagnostics
	MetricsFile string
	LogLevel    string
	Quiet       bool
	Config      string

	Version bool
}

// Register defines every flag on fs.
func Register(fs *pflag.FlagSet) {
	fs.StringP(FlagOutfile, "o", "", "write the annotated VCF to this file (default stdout)")
	fs.BoolP(FlagSilent, "s", false, "do not print the variants when no --outfile is given")

	fs.IntP(FlagProcesses, "p", 0, "annotation workers (0 = auto: 4, or 8 with CADD, capped by CPUs)")
	fs.Int(FlagQueueSize, pipeline.DefaultQueueSize, "capacity of the work queue")
	fs.Int(FlagChunkRecords, extsort.DefaultChunkRecords, "records held in memory per sort chunk")
	fs.Int(FlagFanIn, extsort.DefaultFanIn, "chunk files merged at once")
	fs.String(FlagChunkCodec, spill.CodecNone.String(), "sort chunk compression: none | lz4 | zstd")
	fs.String(FlagTempDir, "", "directory for spill and chunk files (default system temp)")

	fs.String(FlagSort, sortkey.ModeRank.String(), "output order: rank | coordinate | input")
	fs.String(FlagFamilyID, "", "family whose RankScore orders the output (default first listed)")

	fs.String(FlagCADDFile, "", "CADD table with scores for all possible SNVs")
	fs.String(FlagCADD1000G, "", "CADD table for the 1000G variants")
	fs.String(FlagCADDExAC, "", "CADD table for the ExAC variants")
	fs.String(FlagCADDESP, "", "CADD table for the ESP6500 variants")
	fs.String(FlagCADDIndels, "", "CADD table for InDels")
	fs.Bool(FlagCADDRaw, false, "also add the raw CADD score (CADD_raw)")
	fs.String(FlagThousandG, "", "1000G frequency VCF (adds 1000GAF)")
	fs.String(FlagExAC, "", "ExAC frequency VCF (adds ExACAF)")
	fs.BoolP(FlagAnnotateRegions, "r", false, "annotate genes and exonic variants")
	fs.StringP(FlagAnnotationDir, "a", "", "directory holding genes.bed and exons.bed")

	fs.String(FlagMetricsFile, "", "write run metrics in Prometheus textfile format")
	fs.String(FlagLogLevel, "info", "log level: debug | info | warn | error")
	fs.BoolP(FlagQuiet, "q", false, "only log errors")
	fs.String(config.FileFlag, "", "YAML, TOML or JSON file of flag defaults")
	fs.BoolP(FlagVersion, "v", false, "print version and exit")
}

// FromViper reads Options from a loaded configuration plus the positional args.
func FromViper(v *viper.Viper, args []string) (Options, error) {
	opt := Options{
		OutFile:         v.GetString(FlagOutfile),
		Silent:          v.GetBool(FlagSilent),
		Processes:       v.GetInt(FlagProcesses),
		QueueSize:       v.GetInt(FlagQueueSize),
		ChunkRecords:    v.GetInt(FlagChunkRecords),
		FanIn:           v.GetInt(FlagFanIn),
		TempDir:         v.GetString(FlagTempDir),
		FamilyID:        v.GetString(FlagFamilyID),
		CADDFile:        v.GetString(FlagCADDFile),
		CADD1000G:       v.GetString(FlagCADD1000G),
		CADDExAC:        v.GetString(FlagCADDExAC),
		CADDESP:         v.GetString(FlagCADDESP),
		CADDIndels:      v.GetString(FlagCADDIndels),
		CADDRaw:         v.GetBool(FlagCADDRaw),
		ThousandG:       v.GetString(FlagThousandG),
		ExAC:            v.GetString(FlagExAC),
		AnnotateRegions: v.GetBool(FlagAnnotateRegions),
		AnnotationDir:   v.GetString(FlagAnnotationDir),
		MetricsFile:     v.GetString(FlagMetricsFile),
		LogLevel:        v.GetString(FlagLogLevel),
		Quiet:           v.GetBool(FlagQuiet),
		Config:          v.GetString(config.FileFlag),
		Version:         v.GetBool(FlagVersion),
	}
	if opt.Version {
		return opt, nil
	}

	var err error
	if opt.Sort, err = sortkey.ParseMode(v.GetString(FlagSort)); err != nil {
		return opt, errors.Wrap(err, "--sort")
	}
	if opt.ChunkCodec, err = spill.ParseCodec(v.GetString(FlagChunkCodec)); err != nil {
		return opt, errors.Wrap(err, "--chunk-codec")
	}
	switch len(args) {
	case 0:
		return opt, errors.New("missing input: give a VCF file or - for stdin")
	case 1:
		opt.Input = args[0]
	default:
		return opt, errors.Errorf("expected exactly one input, got %d", len(args))
	}
	return opt, Validate(opt)
}

// Validate checks flag combinations and that every configured file exists.
func Validate(opt Options) error {
	if opt.Processes < 0 {
		return errors.New("--processes must be ≥ 0")
	}
	if opt.QueueSize < 1 {
		return errors.New("--queue-size must be ≥ 1")
	}
	if opt.ChunkRecords < 1 {
		return errors.New("--chunk-records must be ≥ 1")
	}
	if opt.FanIn < 2 {
		return errors.New("--fan-in must be ≥ 2")
	}
	if opt.CADDRaw && !opt.Sources().AnyCADD() {
		return errors.New("--cadd-raw needs at least one CADD table")
	}
	if opt.AnnotateRegions && opt.AnnotationDir == "" {
		return errors.New("--annotate-regions needs --annotation-dir")
	}
	if opt.Input != "-" {
		if err := mustExist("input", opt.Input); err != nil {
			return err
		}
	}
	for _, f := range []struct{ flag, path string }{
		{FlagCADDFile, opt.CADDFile},
		{FlagCADD1000G, opt.CADD1000G},
		{FlagCADDExAC, opt.CADDExAC},
		{FlagCADDESP, opt.CADDESP},
		{FlagCADDIndels, opt.CADDIndels},
		{FlagThousandG, opt.ThousandG},
		{FlagExAC, opt.ExAC},
	} {
		if f.path == "" {
			continue
		}
		if err := mustExist("--"+f.flag, f.path); err != nil {
			return err
		}
	}
	if opt.AnnotateRegions {
		fi, err := os.Stat(opt.AnnotationDir)
		if err != nil || !fi.IsDir() {
			return errors.Errorf("--annotation-dir %s is not a directory", opt.AnnotationDir)
		}
	}
	return nil
}

func mustExist(what, path string) error {
	if _, err := os.Stat(path); err != nil {
		return errors.Errorf("%s %s does not exist", what, path)
	}
	return nil
}

// Sources maps the source flags to annotation sources. CADD tables are
// consulted in flag order.
func (o Options) Sources() annotate.Sources {
	var cadd []string
	for _, p := range []string{o.CADDFile, o.CADD1000G, o.CADDExAC, o.CADDESP, o.CADDIndels} {
		if p != "" {
			cadd = append(cadd, p)
		}
	}
	return annotate.Sources{
		CADDFiles:       cadd,
		CADDRaw:         o.CADDRaw,
		ThousandG:       o.ThousandG,
		ExAC:            o.ExAC,
		AnnotateRegions: o.AnnotateRegions,
		AnnotationDir:   o.AnnotationDir,
	}
}

// Warnings lists accepted but ineffective flag combinations.
func Warnings(o Options) []string {
	var out []string
	if o.Silent && o.OutFile != "" {
		out = append(out, "--silent has no effect with --outfile")
	}
	if o.FamilyID != "" && o.Sort != sortkey.ModeRank {
		out = append(out, "--family-id only applies to --sort rank")
	}
	return out
}
