package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ansel1/merry"
	"github.com/sirupsen/logrus"

	"bf16lut/pkg/common"
	"bf16lut/pkg/config"
	"bf16lut/pkg/core"
	"bf16lut/pkg/core/generator"
	"bf16lut/pkg/emit"
	"bf16lut/pkg/golden"
	"bf16lut/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "generate", "gen":
		err = runGenerate(args)
	case "replay":
		err = runReplay(args)
	case "analyze":
		err = runAnalyze(args)
	case "runs":
		err = runList(args)
	case "help", "-h", "--help":
		printHelp()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: '%s'.\n", cmd)
		printHelp()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Fprintln(os.Stderr, `Usage: lutgen <command> [flags]

Commands:
  generate   Fit a table and write the C++ headers and CSV
  replay     Write the golden HEX_IN HEX_OUT file for a table
  analyze    Score a golden file against the target function
  runs       List archived runs

Run 'lutgen <command> -h' for the flags of a command.`)
}

// runFlags are the generation flags shared by generate and replay. Unset
// flags fall back to the config file.
type runFlags struct {
	configPath string
	start      float64
	end        float64
	bins       int
	policy     string
	function   string
	runID      int64
	noArchive  bool
}

func (rf *runFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&rf.configPath, "config", "", "config file (default: configs/lutgen.yaml)")
	fs.Float64Var(&rf.start, "start", 0, "interval start")
	fs.Float64Var(&rf.end, "end", 0, "interval end")
	fs.IntVar(&rf.bins, "bins", 0, "number of LUT entries")
	fs.StringVar(&rf.policy, "policy", "", "geometric or equal-count")
	fs.StringVar(&rf.function, "function", "", "target function ("+strings.Join(generator.Functions(), ", ")+")")
	fs.Int64Var(&rf.runID, "run", 0, "load an archived run by id instead of generating")
	fs.BoolVar(&rf.noArchive, "no-archive", false, "skip the run archive")
}

// setup loads config and logger, applies the flags and opens the engine.
func (rf *runFlags) setup(fs *flag.FlagSet) (*config.Config, *logrus.Logger, *core.Engine, error) {
	cfg, err := config.Load(rf.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "start":
			cfg.Generation.Start = rf.start
		case "end":
			cfg.Generation.End = rf.end
		case "bins":
			cfg.Generation.Bins = rf.bins
		case "policy":
			cfg.Generation.Policy = rf.policy
		case "function":
			cfg.Generation.Function = rf.function
		}
	})
	if rf.noArchive {
		cfg.Storage.Enabled = false
	}

	log, err := logger.New(cfg.Log, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	engine, err := core.NewEngine(cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, engine, nil
}

func (rf *runFlags) table(engine *core.Engine, log logrus.FieldLogger) (*generator.Table, error) {
	if rf.runID != 0 {
		return engine.Load(rf.runID)
	}
	req := engine.DefaultRequest()
	iv := common.NormalizeInterval(req.Start, req.End)
	if iv.Start != req.Start {
		log.WithField("interval", iv.String()).Warn("interval bounds swapped")
	}
	req.Start, req.End = iv.Start, iv.End

	t, cached, err := engine.Generate(req, nil)
	if err != nil {
		return nil, err
	}
	if cached {
		log.Info("reusing archived run")
	}
	return t, nil
}

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	var rf runFlags
	rf.register(fs)
	out := fs.String("out", "", "C++ header path (default: emit.output)")
	packed := fs.String("packed", "", "packed fixed-point header path")
	csvPath := fs.String("csv", "", "per-entry CSV path")
	diagPath := fs.String("diag", "", "per-point fit diagnostics CSV path")
	namespace := fs.String("namespace", "", "C++ namespace (default: emit.namespace)")
	fs.Parse(args)

	cfg, log, engine, err := rf.setup(fs)
	if err != nil {
		return err
	}
	defer engine.Close()

	start := time.Now()
	t, err := rf.table(engine, log)
	if err != nil {
		return err
	}
	printSummary(os.Stdout, t, time.Since(start))

	headerPath := *out
	if headerPath == "" {
		headerPath = cfg.Emit.Output
	}
	ns := *namespace
	if ns == "" {
		ns = cfg.Emit.Namespace
	}
	opts := emit.HeaderOptions{Namespace: ns, Generated: time.Now()}

	if err := writeFile(headerPath, func(w io.Writer) error { return emit.WriteHeader(w, t, opts) }); err != nil {
		return err
	}
	log.WithField("path", headerPath).Info("header written")

	if *packed != "" {
		fixed := emit.FixedFormat{IntBits: cfg.Emit.CoeffIntBits, FracBits: cfg.Emit.CoeffFracBits}
		popts := emit.HeaderOptions{Generated: opts.Generated}
		if err := writeFile(*packed, func(w io.Writer) error { return emit.WritePackedHeader(w, t, fixed, popts) }); err != nil {
			return err
		}
		log.WithField("path", *packed).Info("packed header written")
	}
	if *csvPath != "" {
		if err := writeFile(*csvPath, func(w io.Writer) error { return emit.WriteCSV(w, t) }); err != nil {
			return err
		}
		log.WithField("path", *csvPath).Info("entry csv written")
	}
	if *diagPath != "" {
		pts, err := t.Diagnostics()
		if err != nil {
			return err
		}
		if err := writeFile(*diagPath, func(w io.Writer) error { return emit.WriteDiagnosticsCSV(w, pts) }); err != nil {
			return err
		}
		log.WithField("path", *diagPath).Info("diagnostics csv written")
	}
	return nil
}

func runReplay(args []string) error {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	var rf runFlags
	rf.register(fs)
	out := fs.String("out", "", "golden file path (default: stdout)")
	precision := fs.String("precision", "binary32", "a*x+b arithmetic: binary32 or binary64")
	fs.Parse(args)

	prec, err := golden.ParsePrecision(*precision)
	if err != nil {
		return err
	}
	_, log, engine, err := rf.setup(fs)
	if err != nil {
		return err
	}
	defer engine.Close()

	t, err := rf.table(engine, log)
	if err != nil {
		return err
	}

	var n int
	write := func(w io.Writer) error {
		var err error
		n, err = golden.ReplayWith(w, t, prec)
		return err
	}
	if *out == "" {
		err = write(os.Stdout)
	} else {
		err = writeFile(*out, write)
	}
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"lines": n, "path": *out, "precision": prec.String()}).Info("golden file written")
	return nil
}

func runAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	in := fs.String("in", "", "golden file (HEX_IN HEX_OUT per line)")
	function := fs.String("function", generator.DefaultFunction, "reference function ("+strings.Join(generator.Functions(), ", ")+")")
	annotated := fs.String("annotated", "", "write HEX_IN HEX_OUT ULP lines here")
	sorted := fs.String("sorted", "", "write finite pairs sorted by x as CSV here")
	fs.Parse(args)

	if *in == "" {
		fs.Usage()
		return merry.New("analyze: -in is required")
	}
	tf, err := generator.Lookup(*function)
	if err != nil {
		return err
	}

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	pairs, st, err := golden.Read(f)
	f.Close()
	if err != nil {
		return err
	}
	if st.ParseErrors > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d unparsable lines skipped\n", st.ParseErrors)
	}

	var rep golden.Report
	if *annotated != "" {
		err = writeFile(*annotated, func(w io.Writer) error {
			var err error
			rep, err = golden.WriteAnnotated(w, pairs, tf.Eval)
			return err
		})
		if err != nil {
			return err
		}
	} else {
		rep = golden.Analyze(pairs, tf.Eval)
	}

	if *sorted != "" {
		if err := writeFile(*sorted, func(w io.Writer) error {
			_, err := golden.ExportSorted(w, pairs)
			return err
		}); err != nil {
			return err
		}
	}

	fmt.Printf("Pairs:         %d (%d with finite error)\n", rep.Count, rep.Valid)
	fmt.Printf("Maximum ULP:   %.4f at input 0x%04X (%s)\n", rep.MaxUlp, uint16(rep.MaxInput), rep.MaxInput)
	fmt.Printf("Average ULP:   %.4f\n", rep.MeanUlp)
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	configPath := fs.String("config", "", "config file (default: configs/lutgen.yaml)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log, nil)
	if err != nil {
		return err
	}
	engine, err := core.NewEngine(cfg, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	runs, err := engine.Runs()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFUNCTION\tPOLICY\tINTERVAL\tBINS\tWORST ULP\tAVG ULP\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t[%g, %g]\t%d\t%.4f\t%.4f\t%s\n",
			r.ID, r.Function, r.Policy, r.Start, r.End, r.Bins, r.WorstError, r.MeanError,
			r.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func printSummary(w io.Writer, t *generator.Table, elapsed time.Duration) {
	fmt.Fprintf(w, "%s(x) over %s, %d entries, %s policy (%v)\n",
		t.Function, t.Interval, t.Size(), t.Policy, elapsed.Round(time.Millisecond))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IDX\tDOMAIN\tSLOPE\tINTERCEPT\tMAX ULP\tAVG ULP\tPOINTS")
	for _, e := range t.Entries {
		mark := ""
		if e.Synthetic {
			mark = " *"
		}
		fmt.Fprintf(tw, "%d\t[%.6f, %.6f]\t% .10e\t% .10e\t%.4f\t%.4f\t%d%s\n",
			e.Index, e.DomainStart, e.DomainEnd, e.Slope, e.Intercept, e.MaxError, e.AvgError, e.Points, mark)
	}
	tw.Flush()
	fmt.Fprintf(w, "Worst-case: %.6f ULP  Average: %.6f ULP  Mean of max: %.6f ULP\n",
		t.WorstError(), t.MeanError(), t.AvgMaxError())
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
