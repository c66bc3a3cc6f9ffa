package generator

import (
	"io"

	"github.com/sirupsen/logrus"

	"bf16lut/pkg/common"
	"bf16lut/pkg/core/partition"
	"bf16lut/pkg/model"
	"bf16lut/pkg/monitor"
)

type Options struct {
	Function TargetFunc
	Fit      model.FitOptions
	Logger   logrus.FieldLogger
	// Progress is called once per fitted bin, in index order.
	Progress func(common.Entry)
	Stats    *monitor.RunStats
}

// Generator runs the enumerate, partition and fit pipeline. It holds no state
// between runs.
type Generator struct {
	opts Options
}

func New(opts Options) *Generator {
	if opts.Function.Eval == nil {
		opts.Function, _ = Lookup(DefaultFunction)
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}
	return &Generator{opts: opts}
}

func (g *Generator) Function() TargetFunc {
	return g.opts.Function
}

// Generate fits n bins over iv. The interval must already be ordered; it is
// validated, never repaired.
func (g *Generator) Generate(iv common.Interval, n int, policy partition.Policy) (*Table, error) {
	log := g.opts.Logger.WithFields(logrus.Fields{
		"function": g.opts.Function.Name,
		"interval": iv.String(),
		"bins":     n,
		"policy":   policy.String(),
	})

	bins, err := partition.Split(policy, iv, n, g.opts.Function.Eval)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, b := range bins {
		if !b.Synthetic {
			total += len(b.Points)
		}
	}
	log.WithField("points", total).Info("generating table")

	every := max(1, n/10)
	entries := make([]common.Entry, n)
	for i, b := range bins {
		fit := model.FitMinimax(b.Points, g.opts.Fit)
		entries[i] = common.Entry{
			Index:       b.Index,
			DomainStart: b.Lo,
			DomainEnd:   b.Hi,
			Slope:       fit.Slope,
			Intercept:   fit.Intercept,
			MaxError:    fit.MaxError,
			AvgError:    fit.AvgError,
			Points:      len(b.Points),
			Synthetic:   b.Synthetic,
		}

		if g.opts.Stats != nil {
			g.opts.Stats.RecordBin(fit.Evaluations, fit.Phase == model.PhaseCoordinate, b.Synthetic)
			if !fit.Converged {
				g.opts.Stats.RecordUnconverged()
			}
		}
		if g.opts.Progress != nil {
			g.opts.Progress(entries[i])
		}

		fields := logrus.Fields{
			"bin":       i,
			"lo":        b.Lo,
			"hi":        b.Hi,
			"max_ulp":   fit.MaxError,
			"avg_ulp":   fit.AvgError,
			"phase":     fit.Phase.String(),
			"converged": fit.Converged,
		}
		if b.Synthetic {
			log.WithFields(fields).Warn("empty bin, fitted midpoint sample")
		} else if (i+1)%every == 0 || i == n-1 {
			log.WithFields(fields).Info("bin fitted")
		} else {
			log.WithFields(fields).Debug("bin fitted")
		}
	}

	if g.opts.Stats != nil {
		g.opts.Stats.RecordRun()
	}

	t := &Table{
		Function: g.opts.Function.Name,
		Policy:   policy,
		Interval: iv,
		Entries:  entries,
		Bins:     bins,
	}
	served := t.ServedError()
	log.WithFields(logrus.Fields{
		"worst_ulp":   t.WorstError(),
		"avg_max_ulp": t.AvgMaxError(),
		"served_ulp":  served,
	}).Info("table generated")
	return t, nil
}
