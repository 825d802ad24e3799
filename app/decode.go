package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/lixiaoqing/t2t/nlp/decoder"
	"github.com/lixiaoqing/t2t/nlp/format/bracket"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

func Decode(cmd *commander.Command, args []string) error {
	if err := VerifyFlags(cmd, []string{"c"}); err != nil {
		return err
	}
	runID := uuid.New()
	logger := NewLogger(os.Stderr).With("run", runID.String())

	config, err := LoadConfig()
	if err != nil {
		return err
	}
	ConfigOut(config, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	shutdown, err := SetupTracing(traceExporter, runID)
	if err != nil {
		return err
	}
	defer shutdown(context.Background())
	if metricsAddr != "" {
		srv := ServeMetrics(metricsAddr, logger)
		defer srv.Close()
	}

	dec, err := LoadDecoder(config, logger)
	if err != nil {
		return err
	}
	cache, closeCache, err := OpenCache(logger)
	if err != nil {
		return err
	}
	defer closeCache()

	lines, err := readInput(config.InputFile)
	if err != nil {
		return err
	}
	logger.Info("decoding", "sentences", len(lines))
	start := time.Now()
	batch := &decoder.Batch{
		Decoder:     dec,
		Threads:     config.SenThreads,
		Derivations: config.DumpRule,
		Cache:       cache,
		Log:         logger,
	}
	results, err := batch.Translate(ctx, lines)
	if err != nil {
		return err
	}
	logger.Info("decoding over", "sentences", len(results), "elapsed", time.Since(start))

	if err := writeTo(config.OutputFile, results, WriteTranslations); err != nil {
		return err
	}
	if config.PrintNBest {
		name := config.NBestFile
		if name == "" {
			name = DEFAULT_NBEST_FILE
		}
		if err := writeTo(name, results, WriteNBest); err != nil {
			return err
		}
	}
	if config.DumpRule {
		name := dumpFile
		if name == "" {
			name = DEFAULT_DUMP_FILE
		}
		if err := writeTo(name, results, WriteDerivations); err != nil {
			return err
		}
	}
	return nil
}

func readInput(name string) ([]string, error) {
	if name == "" || name == "-" {
		return bracket.ReadLines(os.Stdin)
	}
	file, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "opening input")
	}
	defer file.Close()
	return bracket.ReadLines(file)
}

func writeTo(name string, results []*decoder.Translation, write func(io.Writer, []*decoder.Translation) error) error {
	if name == "" || name == "-" {
		return write(os.Stdout, results)
	}
	file, err := createFile(name)
	if err != nil {
		return err
	}
	if err := write(file, results); err != nil {
		file.Close()
		return errors.Wrapf(err, "writing %s", name)
	}
	slog.Debug("wrote output", "file", name)
	return file.Close()
}

// WriteTranslations writes one translation per input line
func WriteTranslations(w io.Writer, results []*decoder.Translation) error {
	out := bufio.NewWriter(w)
	for _, t := range results {
		out.WriteString(t.Text)
		out.WriteByte('\n')
	}
	return out.Flush()
}

// WriteNBest writes lines of the form "id ||| translation ||| f1 f2 ... ||| score"
func WriteNBest(w io.Writer, results []*decoder.Translation) error {
	out := bufio.NewWriter(w)
	for i, t := range results {
		for _, e := range t.NBest {
			feats := make([]string, len(e.Features))
			for j, f := range e.Features {
				feats[j] = strconv.FormatFloat(f, 'g', 6, 64)
			}
			fmt.Fprintf(out, "%d ||| %s ||| %s ||| %s\n", i, e.Translation, strings.Join(feats, " "), strconv.FormatFloat(e.Score, 'g', 6, 64))
		}
	}
	return out.Flush()
}

// WriteDerivations writes the 1-based sentence number followed by the
// applied rules of its best derivation.
func WriteDerivations(w io.Writer, results []*decoder.Translation) error {
	out := bufio.NewWriter(w)
	for i, t := range results {
		fmt.Fprintf(out, "%d\n", i+1)
		for _, rule := range t.Derivation {
			out.WriteString(rule)
			out.WriteByte('\n')
		}
	}
	return out.Flush()
}

func DecodeCmd() *commander.Command {
	cmd := &commander.Command{
		Run:       Decode,
		UsageLine: "decode <file options> [arguments]",
		Short:     "translate bracketed source trees",
		Long: `
translate bracketed source trees, one per line

	$ ./t2t decode -c config.ini [-in <input>] [-out <output>] [options]

`,
		Flag: *flag.NewFlagSet("decode", flag.ExitOnError),
	}
	modelFlags(&cmd.Flag)
	cmd.Flag.StringVar(&inputFile, "in", "", "Input trees, one per line (default: configuration, then stdin)")
	cmd.Flag.StringVar(&outputFile, "out", "", "Output translations (default: configuration, then stdout)")
	cmd.Flag.StringVar(&nbestFile, "nbest", "", "Write the n-best list to this file")
	cmd.Flag.IntVar(&nbestNum, "n", 0, "Size of the n-best list")
	cmd.Flag.StringVar(&dumpFile, "dump", "", "Write the applied rules of each best derivation to this file")
	cmd.Flag.IntVar(&senThreads, "sthreads", 0, "Sentences decoded in parallel, overrides the configuration")
	cmd.Flag.StringVar(&metricsAddr, "metrics", "", "Serve prometheus metrics on this address")
	return cmd
}
