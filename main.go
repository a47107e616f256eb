// Command filecompress is the CLI front end: an operation flag, an
// algorithm choice, a compression level, optional directory/multi-file
// archiving, and an optional encryption envelope. The engine itself
// (internal/codec, internal/rle, internal/huffman, internal/hybrid,
// internal/container, internal/crypt) does all the work; this file only
// parses flags and wires the dispatcher.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/quiflern/filecompress/internal/codec"
	"github.com/quiflern/filecompress/internal/dispatch"
	"github.com/quiflern/filecompress/internal/report"
)

// logger reports fatal per-operation errors at this, the orchestration
// layer. Library packages (internal/dispatch, internal/rle, ...) never
// log — they only return errors.
var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s -c|-d [-a rle|huffman|hybrid] [-l fast|balanced|max] [options] input output\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "       %s -benchmark [-a rle|huffman|hybrid] [-l fast|balanced|max] input\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("filecompress", flag.ContinueOnError)
	fs.Usage = usage

	compressMode := fs.Bool("c", false, "compress")
	decompressMode := fs.Bool("d", false, "decompress")
	benchmarkMode := fs.Bool("benchmark", false, "measure CPU time and peak RSS across all algorithms")
	algoFlag := fs.String("a", "rle", "algorithm: rle, huffman, or hybrid")
	levelFlag := fs.String("l", "balanced", "level: fast, balanced, or max")
	dirFlag := fs.String("dir", "", "archive this directory instead of a single file")
	filesFlag := fs.String("files", "", "comma-separated glob patterns selecting files under -dir")
	encryptFlag := fs.Bool("encrypt", false, "wrap output in an AES-256-CBC envelope")
	decryptFlag := fs.Bool("decrypt", false, "unwrap an AES-256-CBC envelope before decompressing")
	passwordFlag := fs.String("password", "", "password for -encrypt/-decrypt")
	importXZFlag := fs.Bool("import-xz", false, "decode a pre-existing .xz input before compressing")
	reportFlag := fs.String("report", "", "write a compression_report.txt-style summary to this path")
	compareFlag := fs.Bool("compare", false, "include a zstd reference-compression data point (benchmark mode only)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	switch {
	case *benchmarkMode:
		// without an explicit -a, benchmark every algorithm
		benchAlgo := ""
		fs.Visit(func(f *flag.Flag) {
			if f.Name == "a" {
				benchAlgo = *algoFlag
			}
		})
		return runBenchmark(fs.Args(), benchAlgo, *levelFlag, *compareFlag)
	case *compressMode == *decompressMode:
		fmt.Fprintln(os.Stderr, "exactly one of -c or -d is required")
		usage()
		return 2
	default:
		return runTransform(fs.Args(), transformOptions{
			compress:  *compressMode,
			algorithm: *algoFlag,
			level:     *levelFlag,
			dir:       *dirFlag,
			files:     *filesFlag,
			encrypt:   *encryptFlag,
			decrypt:   *decryptFlag,
			password:  *passwordFlag,
			importXZ:  *importXZFlag,
			reportOut: *reportFlag,
		})
	}
}

type transformOptions struct {
	compress  bool
	algorithm string
	level     string
	dir       string
	files     string
	encrypt   bool
	decrypt   bool
	password  string
	importXZ  bool
	reportOut string
}

func runTransform(positional []string, opt transformOptions) int {
	wantArgs := 2
	if opt.dir != "" {
		wantArgs = 1 // the lone positional is the archive file itself
	}
	if len(positional) != wantArgs {
		fmt.Fprintln(os.Stderr, "expected the right number of positional arguments (see usage)")
		usage()
		return 2
	}
	var input, output string
	if opt.dir != "" {
		if opt.compress {
			output = positional[0]
		} else {
			input = positional[0]
		}
	} else {
		input, output = positional[0], positional[1]
	}

	alg, err := codec.ParseAlgorithm(opt.algorithm)
	if err != nil {
		logger.Error("invalid algorithm", "err", err)
		return 1
	}
	if !opt.compress && alg == codec.Hybrid {
		fmt.Fprintln(os.Stderr, "dispatch: invalid argument: hybrid is not a valid decompression algorithm; supply the resolved algorithm")
		return 1
	}
	level, err := codec.ParseLevel(opt.level)
	if err != nil {
		logger.Error("invalid level", "err", err)
		return 1
	}
	if opt.encrypt && opt.decrypt {
		fmt.Fprintln(os.Stderr, "dispatch: invalid argument: -encrypt and -decrypt are mutually exclusive")
		return 1
	}
	if (opt.encrypt || opt.decrypt) && opt.password == "" {
		fmt.Fprintln(os.Stderr, "dispatch: invalid argument: -password is required with -encrypt/-decrypt")
		return 1
	}

	d, err := dispatch.New(1024)
	if err != nil {
		logger.Error("dispatcher init failed", "err", err)
		return 1
	}
	defer d.Close()

	dopt := dispatch.Options{Algorithm: alg, Level: level, ImportXZ: opt.importXZ}
	if opt.encrypt || opt.decrypt {
		dopt.Password = opt.password
	}

	if opt.dir != "" {
		return runArchive(d, opt, dopt, input, output)
	}

	in, err := os.Open(input)
	if err != nil {
		logger.Error("open input", "path", input, "err", err)
		return 1
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		logger.Error("stat input", "path", input, "err", err)
		return 1
	}

	out, err := os.Create(output)
	if err != nil {
		logger.Error("create output", "path", output, "err", err)
		return 1
	}
	defer out.Close()

	var rep report.Report
	if opt.compress {
		rep, err = d.Compress(in, out, info.Size(), dopt)
	} else {
		err = d.Decompress(in, out, dopt)
	}
	if err != nil {
		logger.Error("transform failed", "err", err)
		os.Remove(output)
		return 1
	}

	if opt.compress && opt.reportOut != "" {
		if err := writeReport(opt.reportOut, rep); err != nil {
			logger.Error("write report", "err", err)
			return 1
		}
	}
	return 0
}

func runArchive(d *dispatch.Dispatcher, opt transformOptions, dopt dispatch.Options, input, output string) int {
	var include []string
	if opt.files != "" {
		include = splitCSV(opt.files)
	}

	if opt.compress {
		out, err := os.Create(output)
		if err != nil {
			logger.Error("create archive output", "path", output, "err", err)
			return 1
		}
		defer out.Close()

		fsys := os.DirFS(opt.dir)
		rep, err := d.CompressArchive(fsys, opt.dir, ".", include, out, dopt, func(path, reason string) {
			logger.Warn("skipping entry", "path", path, "reason", reason)
		})
		if err != nil {
			logger.Error("archive compression failed", "err", err)
			os.Remove(output)
			return 1
		}
		if opt.reportOut != "" {
			if err := writeReport(opt.reportOut, rep); err != nil {
				logger.Error("write report", "err", err)
				return 1
			}
		}
		return 0
	}

	in, err := os.Open(input)
	if err != nil {
		logger.Error("open archive", "path", input, "err", err)
		return 1
	}
	defer in.Close()
	if err := d.ExtractArchive(in, opt.dir, dopt); err != nil {
		logger.Error("archive extraction failed", "err", err)
		return 1
	}
	return 0
}

func writeReport(path string, rep report.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return report.Render(f, rep)
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func runBenchmark(positional []string, algoFlag, levelFlag string, compare bool) int {
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "benchmark mode expects exactly one input file")
		usage()
		return 2
	}
	input := positional[0]
	data, err := os.ReadFile(input)
	if err != nil {
		logger.Error("read benchmark input", "path", input, "err", err)
		return 1
	}

	level, err := codec.ParseLevel(levelFlag)
	if err != nil {
		logger.Error("invalid level", "err", err)
		return 1
	}

	algorithms := []codec.Algorithm{codec.RLE, codec.Huffman, codec.Hybrid}
	if algoFlag != "" {
		alg, err := codec.ParseAlgorithm(algoFlag)
		if err != nil {
			logger.Error("invalid algorithm", "err", err)
			return 1
		}
		algorithms = []codec.Algorithm{alg}
	}

	bm := report.NewBenchmarker()
	d, err := dispatch.New(1)
	if err != nil {
		logger.Error("dispatcher init failed", "err", err)
		return 1
	}
	defer d.Close()

	for _, alg := range algorithms {
		sample, err := bm.Measure(func() (report.Report, error) {
			src, err := os.Open(input)
			if err != nil {
				return report.Report{}, err
			}
			defer src.Close()
			return d.Compress(src, discardWriter{}, int64(len(data)), dispatch.Options{Algorithm: alg, Level: level})
		})
		if err != nil {
			logger.Error("benchmark run failed", "algorithm", alg, "err", err)
			continue
		}
		fmt.Printf("%-8s level=%-9s original=%d compressed=%d ratio=%.4f wall=%.4fs cpu=%.4fs peak_rss=%dKiB\n",
			sample.Report.Algorithm, sample.Report.Level, sample.Report.OriginalSize,
			sample.Report.CompressedSize, sample.Report.Ratio, sample.Report.WallTime.Seconds(),
			sample.CPUTime, sample.PeakRSSKiB)
	}

	if compare {
		ref, err := report.Compare(data)
		if err != nil {
			logger.Error("zstd comparison failed", "err", err)
		} else {
			fmt.Printf("%-8s compressed=%d\n", ref.Name, ref.CompressedSize)
		}
	}
	return 0
}

// discardWriter throws away benchmark output; only sizes and timings
// matter in -benchmark mode, not the compressed bytes themselves.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
