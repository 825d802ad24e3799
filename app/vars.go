package app

import (
	"io"
	"log/slog"
	"os"

	"github.com/lixiaoqing/t2t/nlp/decoder"
	"github.com/lixiaoqing/t2t/nlp/format/arpa"
	"github.com/lixiaoqing/t2t/nlp/format/ruletable"
	"github.com/lixiaoqing/t2t/nlp/lm"
	"github.com/lixiaoqing/t2t/util"
	"github.com/lixiaoqing/t2t/util/conf"
	"github.com/lixiaoqing/t2t/util/store"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"
	"github.com/pkg/errors"
)

const (
	DEFAULT_NBEST_FILE = "nbest.txt"
	DEFAULT_DUMP_FILE  = "applied-rules.txt"
)

var (
	// file names
	configFile string
	inputFile  string
	outputFile string
	nbestFile  string
	dumpFile   string
	cacheDir   string

	// processing options
	nbestNum, beamSize     int
	senThreads, spanThread int

	// observability
	metricsAddr   string
	traceExporter string
	verbose       bool
	logJSON       bool
)

func VerifyFlags(cmd *commander.Command, required []string) error {
	for _, name := range required {
		f := cmd.Flag.Lookup(name)
		if f == nil || f.Value.String() == "" {
			cmd.Usage()
			return errors.Errorf("required flag -%s not set", name)
		}
	}
	return nil
}

// modelFlags registers the flags shared by every subcommand that loads a model
func modelFlags(fs *flag.FlagSet) {
	fs.StringVar(&configFile, "c", "", "Configuration file (.ini or .yaml)")
	fs.IntVar(&beamSize, "b", 0, "Beam size, overrides the configuration")
	fs.IntVar(&spanThread, "pthreads", 0, "Threads per span width, overrides the configuration")
	fs.StringVar(&cacheDir, "cache", "", "Directory of the translation cache")
	fs.StringVar(&traceExporter, "trace", "", "Trace exporter (stdout)")
	fs.BoolVar(&verbose, "v", false, "Verbose logging")
	fs.BoolVar(&logJSON, "logjson", false, "Log in JSON")
}

func NewLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if logJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// LoadConfig reads the configuration file and applies the command line overrides
func LoadConfig() (*conf.Config, error) {
	config, err := conf.ReadFile(configFile)
	if err != nil {
		return nil, err
	}
	if inputFile != "" {
		config.InputFile = inputFile
	}
	if outputFile != "" {
		config.OutputFile = outputFile
	}
	if nbestFile != "" {
		config.NBestFile = nbestFile
		config.PrintNBest = true
	}
	if nbestNum > 0 {
		config.NBest = nbestNum
	}
	if dumpFile != "" {
		config.DumpRule = true
	}
	if beamSize > 0 {
		config.BeamSize = beamSize
	}
	if senThreads > 0 {
		config.SenThreads = senThreads
	}
	if spanThread > 0 {
		config.SpanThreads = spanThread
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func ConfigOut(config *conf.Config, logger *slog.Logger) {
	logger.Info("configuration",
		"rule-table", config.RuleTableFile,
		"lm", config.LMFile,
		"beam", config.BeamSize,
		"sen-threads", config.SenThreads,
		"span-threads", config.SpanThreads,
		"nbest", config.NBest,
		"rule-limit", config.RuleLimit,
		"weights", config.Weights,
	)
}

// LoadDecoder reads the vocabularies, the rule table and the language model
func LoadDecoder(config *conf.Config, logger *slog.Logger) (*decoder.Decoder, error) {
	src, err := util.ReadVocabFile(config.SrcVocabFile)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded source vocabulary", "file", config.SrcVocabFile, "words", src.Len())
	tgt, err := util.ReadVocabFile(config.TgtVocabFile)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded target vocabulary", "file", config.TgtVocabFile, "words", tgt.Len())

	opts := ruletable.Options{
		NumProbs:  config.NumProbs,
		Limit:     config.RuleLimit,
		Alignment: config.LoadAlignment,
	}
	table, err := ruletable.ReadFile(config.RuleTableFile, src, config.Weights.Trans, opts, logger)
	if err != nil {
		return nil, err
	}
	model, err := arpa.ReadFile(config.LMFile, logger)
	if err != nil {
		return nil, err
	}

	util.LogMemory(logger)

	digest, err := util.DigestFiles(config.SrcVocabFile, config.TgtVocabFile, config.RuleTableFile, config.LMFile)
	if err != nil {
		return nil, err
	}
	dconf := decoder.DefaultConfig()
	dconf.ModelDigest = digest
	dconf.BeamSize = config.BeamSize
	dconf.NBest = config.NBest
	dconf.SpanThreads = config.SpanThreads
	weights := decoder.Weights{
		Trans: config.Weights.Trans,
		LM:    config.Weights.LM,
		Len:   config.Weights.Len,
		Rule:  config.Weights.RuleNum,
	}
	return decoder.New(dconf, weights, table, lm.NewScorer(model, tgt), tgt, logger)
}

// OpenCache returns nil when no cache directory was given
func OpenCache(logger *slog.Logger) (decoder.Cache, func() error, error) {
	if cacheDir == "" {
		return nil, func() error { return nil }, nil
	}
	cache, err := store.Open(store.Config{Path: cacheDir, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("opened translation cache", "dir", cacheDir)
	return cache, cache.Close, nil
}

func createFile(name string) (*os.File, error) {
	file, err := os.Create(name)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", name)
	}
	return file, nil
}
