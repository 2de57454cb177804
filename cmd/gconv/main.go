// Package main provides the gconv CLI: it runs a configured grouped
// convolution over random operands and prints the execution plan.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/born-ml/gconv/backend/cpu"
	"github.com/born-ml/gconv/conv"
	"github.com/born-ml/gconv/tensor"
)

const version = "v0.1.0-dev"

type options struct {
	config   string
	backend  string
	dtype    string
	runs     int
	batch    int
	channels int
	height   int
	width    int
	seed     int64
	legacy   int
	verbose  bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "gconv: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("gconv", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	showVersion := fs.Bool("version", false, "print version and exit")
	fs.StringVar(&o.config, "config", "", "YAML convolution config (default: 3x3, 8 filters, 2 groups)")
	fs.StringVar(&o.backend, "backend", "cpu", "backend: "+strings.Join(backendNames(), ", "))
	fs.StringVar(&o.dtype, "dtype", "float32", "element type: float32 or float64")
	fs.IntVar(&o.runs, "n", 1, "number of forward passes")
	fs.IntVar(&o.batch, "batch", 1, "batch size N")
	fs.IntVar(&o.channels, "channels", 4, "input channels C")
	fs.IntVar(&o.height, "height", 16, "input height H")
	fs.IntVar(&o.width, "width", 16, "input width W")
	fs.Int64Var(&o.seed, "seed", 1, "random seed for operands")
	fs.IntVar(&o.legacy, "cpu-version", 0, "emulated revision of the cpu backend (0 for current)")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Fprintf(stdout, "gconv %s\n", version)
		return nil
	}

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(o.config)
	if err != nil {
		return err
	}
	dtype, ok := tensor.ParseDataType(o.dtype)
	if !ok {
		return fmt.Errorf("unknown dtype %q", o.dtype)
	}
	if o.runs < 1 {
		return fmt.Errorf("-n must be positive, got %d", o.runs)
	}

	h, err := newBackend(o.backend, o.legacy)
	if err != nil {
		return err
	}
	stream := conv.NewStream(h)
	defer func() {
		if err := stream.Close(); err != nil {
			logger.Warn("close stream", "err", err)
		}
	}()

	op, err := conv.New(cfg, conv.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := op.Close(); err != nil {
			logger.Warn("close operator", "err", err)
		}
	}()

	in, out, err := operands(cfg, o, dtype)
	if err != nil {
		return err
	}
	defer func() {
		for _, t := range append(in, out...) {
			t.Release()
		}
	}()

	ctx := conv.NewContext(stream)
	start := time.Now()
	for i := 0; i < o.runs; i++ {
		op.Forward(ctx, in, nil, out)
	}
	elapsed := time.Since(start)
	logger.Info("forward done",
		"backend", h.Name(),
		"runs", o.runs,
		"elapsed", elapsed,
		"per_run", elapsed/time.Duration(o.runs),
		"scratch_peak_bytes", stream.Scratch().Stats().PeakBytes,
	)

	plan, err := op.PlanJSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(plan))
	return err
}

func loadConfig(path string) (conv.Config, error) {
	if path == "" {
		cfg := conv.DefaultConfig()
		cfg.Kernel = [2]int{3, 3}
		cfg.Pad = [2]int{1, 1}
		cfg.NumFilter = 8
		cfg.NumGroup = 2
		return cfg, cfg.Validate()
	}
	f, err := os.Open(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return conv.Config{}, err
	}
	defer f.Close()
	cfg, err := conv.LoadConfig(f)
	if err != nil {
		return conv.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// operands builds random data, weight and bias tensors and a zeroed output
// shaped for cfg.
func operands(cfg conv.Config, o options, dtype tensor.DataType) (in, out []*tensor.RawTensor, err error) {
	if o.channels%cfg.NumGroup != 0 {
		return nil, nil, fmt.Errorf("%d channels not divisible by %d groups", o.channels, cfg.NumGroup)
	}
	oh, ow := cfg.OutputSize(o.height, o.width)
	if oh < 1 || ow < 1 {
		return nil, nil, fmt.Errorf("input %dx%d too small for kernel %v", o.height, o.width, cfg.Kernel)
	}

	rng := rand.New(rand.NewSource(o.seed)) //nolint:gosec // operand values only
	shapes := []tensor.Shape{
		{o.batch, o.channels, o.height, o.width},
		{cfg.NumFilter, o.channels / cfg.NumGroup, cfg.Kernel[0], cfg.Kernel[1]},
	}
	if !cfg.NoBias {
		shapes = append(shapes, tensor.Shape{cfg.NumFilter})
	}
	for _, s := range shapes {
		t, err := tensor.Randn(s, dtype, rng)
		if err != nil {
			return nil, nil, err
		}
		in = append(in, t)
	}

	y, err := tensor.NewRaw(tensor.Shape{o.batch, cfg.NumFilter, oh, ow}, dtype, tensor.CPU)
	if err != nil {
		return nil, nil, err
	}
	return in, []*tensor.RawTensor{y}, nil
}

func newCPU(v int) *cpu.Backend {
	if v == 0 {
		return cpu.New()
	}
	return cpu.New(cpu.WithVersion(v))
}
