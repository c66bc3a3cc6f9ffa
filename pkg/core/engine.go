package core

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"bf16lut/pkg/bf16"
	"bf16lut/pkg/common"
	"bf16lut/pkg/config"
	"bf16lut/pkg/core/generator"
	"bf16lut/pkg/core/memory"
	"bf16lut/pkg/core/partition"
	"bf16lut/pkg/model"
	"bf16lut/pkg/monitor"
	"bf16lut/pkg/optimizer"
	"bf16lut/pkg/storage"
)

// Request names one generation run.
type Request struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Bins     int     `json:"bins"`
	Policy   string  `json:"policy"`
	Function string  `json:"function"`
}

// EvalResult is one lookup through the current table.
type EvalResult struct {
	X float64 `json:"x"`
	// Index is the formula bin; Bin is the entry whose coefficients were
	// used. They differ only for equal-count tables.
	Index     int     `json:"index"`
	Bin       int     `json:"bin"`
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	Approx    float64 `json:"y_hat"`
	// Served is what the emitted kernel returns: formula bin, a*x+b, RNE.
	// It equals Approx for geometric tables.
	Served float64 `json:"y_served"`
	Truth  float64 `json:"y_true"`
	Ulp    float64 `json:"ulp"`
	InBin  bool    `json:"in_bin"`
	// Representable reports whether x is itself a bf16 value.
	Representable bool `json:"representable"`
}

// Engine owns the current table and everything around it: archive cache,
// lookup routing and run statistics. Safe for concurrent use.
type Engine struct {
	conf    *config.Config
	log     logrus.FieldLogger
	stats   *monitor.RunStats
	archive storage.Archive

	mu      sync.RWMutex
	table   *generator.Table
	lut     *model.LUT
	locator Locator
	// runMu serialises generation; readers keep the previous table meanwhile.
	runMu sync.Mutex
}

// NewEngine opens the archive when storage is enabled. log may be nil.
func NewEngine(cfg *config.Config, log logrus.FieldLogger) (*Engine, error) {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	e := &Engine{
		conf:  cfg,
		log:   log.WithField("component", "engine"),
		stats: monitor.NewRunStats(),
	}
	if cfg.Storage.Enabled {
		a, err := storage.NewSQLiteArchive(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		e.archive = a
		e.log.WithField("path", cfg.Storage.Path).Info("archive opened")
	}
	return e, nil
}

func (e *Engine) Close() {
	if e.archive != nil {
		e.archive.Close()
	}
}

func (e *Engine) Stats() *monitor.RunStats {
	return e.stats
}

// FitOptions maps the optimizer config section onto the fitter.
func (e *Engine) FitOptions() model.FitOptions {
	o := e.conf.Optimizer
	return model.FitOptions{
		Simplex:    optimizer.Options{MaxIter: o.MaxIter, MaxEval: o.MaxEval, XTol: o.XATol, FTol: o.FATol},
		Coordinate: optimizer.Options{MaxIter: o.PowellMaxIter, MaxEval: o.MaxEval, XTol: o.XTol, FTol: o.FTol},
	}
}

// DefaultRequest is the run described by the generation config section.
func (e *Engine) DefaultRequest() Request {
	g := e.conf.Generation
	return Request{Start: g.Start, End: g.End, Bins: g.Bins, Policy: g.Policy, Function: g.Function}
}

// Generate runs req, or loads it from the archive when an identical run was
// stored before. cached reports the latter. The result becomes the current
// table.
func (e *Engine) Generate(req Request, progress func(common.Entry)) (t *generator.Table, cached bool, err error) {
	policy, err := partition.ParsePolicy(req.Policy)
	if err != nil {
		return nil, false, err
	}
	tf, err := generator.Lookup(req.Function)
	if err != nil {
		return nil, false, err
	}
	iv := common.Interval{Start: req.Start, End: req.End}
	opts := e.FitOptions()
	key := storage.RunKey(tf.Name, policy.String(), iv, req.Bins, opts)

	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.archive != nil {
		t, ok, err := e.archive.Load(key)
		if err != nil {
			e.log.WithError(err).Warn("archived run unreadable, regenerating")
		} else if ok {
			e.stats.RecordCacheHit()
			e.log.WithField("key", key).Info("table loaded from archive")
			e.install(t)
			return t, true, nil
		}
	}

	gen := generator.New(generator.Options{
		Function: tf,
		Fit:      opts,
		Logger:   e.log,
		Progress: progress,
		Stats:    e.stats,
	})
	start := time.Now()
	t, err = gen.Generate(iv, req.Bins, policy)
	if err != nil {
		return nil, false, err
	}
	e.log.WithField("elapsed", time.Since(start).String()).Info("run complete")

	if e.archive != nil {
		if id, err := e.archive.Save(key, t); err != nil {
			e.log.WithError(err).Error("archive save failed")
		} else {
			e.log.WithField("run_id", id).Debug("table archived")
		}
	}
	e.install(t)
	return t, false, nil
}

// Load installs an archived run by id.
func (e *Engine) Load(id int64) (*generator.Table, error) {
	if e.archive == nil {
		return nil, common.ErrNoTable.WithValue("id", id)
	}
	t, err := e.archive.Get(id)
	if err != nil {
		return nil, err
	}
	e.install(t)
	return t, nil
}

func (e *Engine) install(t *generator.Table) {
	var loc Locator
	if t.Policy == partition.Geometric {
		loc = NewFormulaLocator(t)
	} else {
		bi := memory.NewBinIndex(16)
		bi.Load(t.Entries)
		loc = bi
	}

	lut := t.LUT()

	e.mu.Lock()
	e.table = t
	e.lut = lut
	e.locator = loc
	e.mu.Unlock()
}

// current returns the installed table with its consumer view and locator,
// all from the same install.
func (e *Engine) current() (*generator.Table, *model.LUT, Locator, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.table == nil {
		return nil, nil, nil, common.ErrNoTable
	}
	return e.table, e.lut, e.locator, nil
}

func (e *Engine) Table() (*generator.Table, error) {
	t, _, _, err := e.current()
	return t, err
}

// Eval looks x up in the current table and scores the rounded result.
func (e *Engine) Eval(x float64) (EvalResult, error) {
	t, lut, loc, err := e.current()
	if err != nil {
		return EvalResult{}, err
	}
	tf, err := generator.Lookup(t.Function)
	if err != nil {
		return EvalResult{}, err
	}
	e.stats.RecordLookup()

	entry, _ := loc.Get(x)
	truth := tf.Eval(x)
	errs := model.Score([]common.Point{{X: x, Y: truth}}, entry.Slope, entry.Intercept)
	return EvalResult{
		X:         x,
		Index:     t.Index(x),
		Bin:       entry.Index,
		Slope:     entry.Slope,
		Intercept: entry.Intercept,
		Approx:    bf16.Quantize(entry.Slope*x + entry.Intercept),
		Served:    bf16.Quantize(lut.Predict(x)),
		Truth:     truth,
		Ulp:       errs[0],
		InBin:     x >= entry.DomainStart && x <= entry.DomainEnd,

		Representable: bf16.IsRepresentable(x),
	}, nil
}

func (e *Engine) Diagnostics() ([]generator.DiagnosticPoint, error) {
	t, err := e.Table()
	if err != nil {
		return nil, err
	}
	return t.Diagnostics()
}

func (e *Engine) Runs() ([]storage.RunInfo, error) {
	if e.archive == nil {
		return nil, nil
	}
	return e.archive.List()
}

// Summary reports the current table and counters.
func (e *Engine) Summary() map[string]interface{} {
	out := map[string]interface{}{
		"stats":           e.stats.Snapshot(),
		"archive_enabled": e.archive != nil,
	}
	if t, _, loc, err := e.current(); err == nil {
		out["function"] = t.Function
		out["policy"] = t.Policy.String()
		out["interval"] = t.Interval
		out["bins"] = len(t.Entries)
		out["worst_ulp"] = t.WorstError()
		out["avg_ulp"] = t.MeanError()
		out["avg_max_ulp"] = t.AvgMaxError()
		out["locator"] = loc.Type()
		out["locator_entries"] = loc.Count()
	}
	return out
}

// BenchmarkLookup times the formula against the btree on the same random
// bf16 inputs and returns the average nanoseconds per lookup of each.
func (e *Engine) BenchmarkLookup(iterations int) (float64, float64, error) {
	t, err := e.Table()
	if err != nil {
		return 0, 0, err
	}
	xs := bf16.Enumerate(t.Interval)
	if len(xs) == 0 || iterations <= 0 {
		return 0, 0, nil
	}

	keys := make([]float64, iterations)
	for i := range keys {
		keys[i] = xs[rand.Intn(len(xs))]
	}

	formula := NewFormulaLocator(t)
	tree := memory.NewBinIndex(16)
	tree.Load(t.Entries)

	startFormula := time.Now()
	for _, x := range keys {
		formula.Get(x)
	}
	avgFormula := float64(time.Since(startFormula).Nanoseconds()) / float64(iterations)

	startTree := time.Now()
	for _, x := range keys {
		tree.Get(x)
	}
	avgTree := float64(time.Since(startTree).Nanoseconds()) / float64(iterations)

	return avgFormula, avgTree, nil
}

// Reset forgets the current table, the counters and every archived run.
func (e *Engine) Reset() error {
	e.mu.Lock()
	e.table = nil
	e.lut = nil
	e.locator = nil
	e.mu.Unlock()

	e.stats.Reset()
	if e.archive != nil {
		return e.archive.Truncate()
	}
	return nil
}
