// Package cli implements the elavm command: running, debugging,
// disassembling and packing module images.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/funvibe/ela/internal/config"
	"github.com/funvibe/ela/internal/diagnostics"
	"github.com/funvibe/ela/internal/logs"
	"github.com/funvibe/ela/internal/object"
	"github.com/funvibe/ela/internal/vm"
)

// MainFunction is the export called with the program arguments after the
// entry module ran.
const MainFunction = "main"

// App is one invocation of the command with its standard streams.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Color enables ANSI colours in diagnostics.
	Color bool

	// Executable locates the running binary, which may carry an image.
	Executable func() (string, error)
}

// Main runs the command with the process streams and returns the exit code.
func Main(args []string) int {
	fd := os.Stderr.Fd()
	app := &App{
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		Color:      isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
		Executable: os.Executable,
	}
	return app.Run(args)
}

// Run dispatches args to a command. A binary packed with an image runs the
// image and passes every argument to it.
func (a *App) Run(args []string) int {
	if img := a.embeddedImage(); img != nil {
		return a.execute(img, args, runOptions{dir: "."})
	}
	if len(args) == 0 {
		a.usage()
		return 2
	}

	switch args[0] {
	case "run":
		return a.cmdRun(args[1:], false)
	case "debug":
		return a.cmdRun(args[1:], true)
	case "disasm":
		return a.cmdDisasm(args[1:])
	case "pack":
		return a.cmdPack(args[1:])
	case "batch":
		return a.cmdBatch(args[1:])
	case "version", "-v", "--version":
		fmt.Fprintf(a.Stdout, "elavm %s (%s %s/%s)\n", config.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return 0
	case "help", "-h", "--help":
		a.usage()
		return 0
	}
	if strings.HasSuffix(args[0], config.ImageFileExt) {
		return a.cmdRun(args, false)
	}
	a.errorf("unknown command %q", args[0])
	a.usage()
	return 2
}

func (a *App) usage() {
	fmt.Fprint(a.Stdout, `Usage: elavm <command> [flags] [arguments]

Commands:
  run [--config f] [--stats] <image> [args...]   Run an image; main receives the args
  debug [--config f] <image> [args...]           Run an image under the debugger
  disasm <image>                                  Print the bytecode of every module
  pack [-o out] [--host bin] [--embed files] <image>
                                                  Build a self-contained binary
  batch [-j n] [--stats] <image> <function> <arg>...
                                                  Call function once per argument in parallel
  version                                         Print the version

Arguments are read as Ela literals; anything else is passed as a string.
--embed takes path[@alias@[glob]], comma separated, and may be repeated.
`)
}

func (a *App) errorf(format string, args ...interface{}) {
	prefix := "error:"
	if a.Color {
		prefix = "\x1b[1;31merror:\x1b[0m"
	}
	fmt.Fprintf(a.Stderr, "%s %s\n", prefix, fmt.Sprintf(format, args...))
}

// report prints an evaluation error with its stack trace.
func (a *App) report(err error) {
	a.errorf("%v", err)
	var de *diagnostics.Error
	if errors.As(err, &de) && len(de.Trace) > 0 {
		trace := de.StackTrace()
		if a.Color {
			trace = "\x1b[2m" + trace + "\x1b[0m"
		}
		fmt.Fprintf(a.Stderr, "stack trace:%s\n", trace)
	}
}

func (a *App) embeddedImage() *vm.Image {
	if a.Executable == nil {
		return nil
	}
	exe, err := a.Executable()
	if err != nil {
		return nil
	}
	data, err := os.ReadFile(exe)
	if err != nil {
		return nil
	}
	img, err := vm.ExtractEmbeddedImage(data)
	if err != nil {
		return nil
	}
	return img
}

// loadImage reads an image file or a binary packed with one.
func loadImage(path string) (*vm.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := vm.ExtractEmbeddedImage(data)
	if err != nil || img != nil {
		return img, err
	}
	img, err = vm.DeserializeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// setup loads the configuration and builds the logger.
func (a *App) setup(configPath, dir string) (*config.Config, *logs.Logger, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
	} else {
		cfg, _, err = config.Resolve(dir)
	}
	if err != nil {
		return nil, nil, err
	}
	logger, err := logs.New(cfg.Log, a.Stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// parseArgs reads each argument as a literal, falling back to a string.
func parseArgs(args []string) []object.Value {
	out := make([]object.Value, len(args))
	for i, s := range args {
		v, err := object.Read(s)
		if err != nil {
			v = object.String(s)
		}
		out[i] = v
	}
	return out
}

type runOptions struct {
	configPath string
	dir        string
	stats      bool
	debug      bool
}

func (a *App) cmdRun(args []string, debug bool) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(a.Stderr)
	opts := runOptions{debug: debug}
	fs.StringVar(&opts.configPath, "config", "", "configuration file")
	fs.BoolVar(&opts.stats, "stats", false, "print execution statistics")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		a.errorf("run: missing image")
		return 2
	}
	path := fs.Arg(0)
	img, err := loadImage(path)
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	opts.dir = filepath.Dir(path)
	return a.execute(img, fs.Args()[1:], opts)
}

// execute runs the entry module of img, then calls its main export with
// the program arguments as a list when there is one.
func (a *App) execute(img *vm.Image, progArgs []string, opts runOptions) int {
	cfg, logger, err := a.setup(opts.configPath, opts.dir)
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	defer logger.Close()

	asm, entry, err := img.Assemble(vm.Builtins(a.Stdout))
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	w, err := vm.NewWorker(asm, cfg.VMOptions(logger.Logger))
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	logger.Debug("running image", "entry", img.Entry, "modules", len(img.Modules), "worker", w.ID)

	var result object.Value
	if opts.debug {
		dbg := vm.NewDebugger(a.Stdout)
		vm.NewDebuggerCLI(dbg, a.Stdin, a.Stdout)
		result, err = dbg.Run(w, entry)
		if errors.Is(err, vm.ErrQuit) {
			return 0
		}
	} else {
		result, err = w.Run(entry)
	}
	if err == nil {
		if fn, ok := w.Global(entry, MainFunction); ok {
			result, err = w.Call(fn, object.NewList(parseArgs(progArgs)...))
		}
	}
	if err == nil {
		result, err = object.Force(w.Context(), result)
	}
	if err != nil {
		a.report(err)
		return 1
	}

	if !result.IsUnit() {
		fmt.Fprintln(a.Stdout, object.ShowString(w.Context(), result))
	}
	if opts.stats {
		a.printStats(w.Stats())
	}
	return 0
}

func (a *App) printStats(st vm.Stats) {
	fmt.Fprintf(a.Stderr, "%s instructions, %s calls, max depth %d\n",
		humanize.Comma(int64(st.Instructions)), humanize.Comma(int64(st.Calls)), st.MaxDepth)
}

func (a *App) cmdDisasm(args []string) int {
	if len(args) != 1 {
		a.errorf("disasm: expected one image")
		return 2
	}
	img, err := loadImage(args[0])
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	for _, m := range img.Modules {
		fmt.Fprint(a.Stdout, vm.Disassemble(m))
		for i := range m.Matches {
			fmt.Fprint(a.Stdout, vm.DisassembleMatch(m, i))
		}
		fmt.Fprintln(a.Stdout)
	}
	for _, name := range sortedKeys(img.Resources) {
		fmt.Fprintf(a.Stdout, "resource %s (%s)\n", name, humanize.Bytes(uint64(len(img.Resources[name]))))
	}
	return 0
}

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string     { return strings.Join(*l, ",") }
func (l *listFlag) Set(s string) error { *l = append(*l, s); return nil }

func (a *App) cmdPack(args []string) int {
	fs := flag.NewFlagSet("pack", flag.ContinueOnError)
	fs.SetOutput(a.Stderr)
	out := fs.String("o", "", "output binary (default: image name without extension)")
	host := fs.String("host", "", "host binary (default: this executable)")
	var embeds listFlag
	fs.Var(&embeds, "embed", "files to embed as resources")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		a.errorf("pack: expected one image")
		return 2
	}
	path := fs.Arg(0)
	img, err := loadImage(path)
	if err != nil {
		a.errorf("%v", err)
		return 1
	}

	for _, e := range embeds {
		if img.Resources == nil {
			img.Resources = make(map[string][]byte)
		}
		if err := collectResources(e, img.Resources); err != nil {
			a.errorf("embed: %v", err)
			return 1
		}
	}

	hostPath := *host
	if hostPath == "" {
		if hostPath, err = a.Executable(); err != nil {
			a.errorf("locating host binary: %v", err)
			return 1
		}
	}
	hostData, err := os.ReadFile(hostPath)
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	// a packed host would end up with two images; keep only the runtime
	if embedded, _ := vm.ExtractEmbeddedImage(hostData); embedded != nil {
		a.errorf("host %s already carries an image", hostPath)
		return 1
	}

	packed, err := vm.PackSelfContained(hostData, img)
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	target := *out
	if target == "" {
		target = strings.TrimSuffix(path, filepath.Ext(path))
	}
	if err := os.WriteFile(target, packed, 0755); err != nil {
		a.errorf("%v", err)
		return 1
	}
	fmt.Fprintf(a.Stdout, "Packed %s -> %s (%s, %d resources)\n",
		path, target, humanize.Bytes(uint64(len(packed))), len(img.Resources))
	return 0
}

func (a *App) cmdBatch(args []string) int {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(a.Stderr)
	jobs := fs.Int("j", 0, "parallel workers (default: workers from the configuration)")
	configPath := fs.String("config", "", "configuration file")
	stats := fs.Bool("stats", false, "print execution statistics")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 2 {
		a.errorf("batch: expected an image and a function")
		return 2
	}
	path, fn := fs.Arg(0), fs.Arg(1)
	img, err := loadImage(path)
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	cfg, logger, err := a.setup(*configPath, filepath.Dir(path))
	if err != nil {
		a.errorf("%v", err)
		return 1
	}
	defer logger.Close()

	// print of the core module is not serialized between workers
	asm, _, err := img.Assemble(vm.Builtins(io.Discard))
	if err != nil {
		a.errorf("%v", err)
		return 1
	}

	inputs := fs.Args()[2:]
	units := make([]vm.Unit, len(inputs))
	for i, v := range parseArgs(inputs) {
		units[i] = vm.Unit{Module: img.Entry, Function: fn, Args: []object.Value{v}}
	}

	limit := *jobs
	if limit <= 0 {
		limit = cfg.Workers
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := vm.RunUnits(ctx, asm, cfg.VMOptions(logger.Logger), limit, units)
	if err != nil {
		a.errorf("%v", err)
		return 1
	}

	show := object.NewContext(nil, cfg.Format)
	failed := 0
	var total vm.Stats
	for i, r := range results {
		unitCtx := logs.WithUnit(ctx, fmt.Sprintf("%s.%s(%s)", img.Entry, fn, inputs[i]))
		logger.DebugContext(unitCtx, "unit finished", "worker", r.Worker, "instructions", r.Stats.Instructions)
		total.Instructions += r.Stats.Instructions
		total.Calls += r.Stats.Calls
		total.MaxDepth = max(total.MaxDepth, r.Stats.MaxDepth)
		if r.Err != nil {
			failed++
			fmt.Fprintf(a.Stdout, "%s => ", inputs[i])
			a.report(r.Err)
			continue
		}
		fmt.Fprintf(a.Stdout, "%s => %s\n", inputs[i], object.ShowString(show, r.Value))
	}
	if *stats {
		a.printStats(total)
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func sortedKeys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
