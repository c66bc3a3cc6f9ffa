package monitor

import (
	"sync/atomic"
)

// RunStats counts generator and engine activity. Safe for concurrent use: the
// HTTP server reads it while a run may be in progress.
type RunStats struct {
	Runs           uint64
	Bins           uint64
	Evaluations    uint64
	SimplexWins    uint64
	CoordinateWins uint64
	SyntheticBins  uint64
	Unconverged    uint64
	CacheHits      uint64
	Lookups        uint64
}

// Snapshot is a point-in-time copy of RunStats for reporting.
type Snapshot struct {
	Runs           uint64  `json:"runs"`
	Bins           uint64  `json:"bins"`
	Evaluations    uint64  `json:"evaluations"`
	SimplexWins    uint64  `json:"simplex_wins"`
	CoordinateWins uint64  `json:"coordinate_wins"`
	SyntheticBins  uint64  `json:"synthetic_bins"`
	Unconverged    uint64  `json:"unconverged_bins"`
	CacheHits      uint64  `json:"cache_hits"`
	Lookups        uint64  `json:"lookups"`
	CoordinateRate float64 `json:"coordinate_rate"`
}

func NewRunStats() *RunStats {
	return &RunStats{}
}

func (rs *RunStats) RecordRun() {
	atomic.AddUint64(&rs.Runs, 1)
}

// RecordBin counts one fitted bin. coordinate reports whether the second
// refinement phase produced the kept coefficients.
func (rs *RunStats) RecordBin(evaluations int, coordinate, synthetic bool) {
	atomic.AddUint64(&rs.Bins, 1)
	atomic.AddUint64(&rs.Evaluations, uint64(evaluations))
	if coordinate {
		atomic.AddUint64(&rs.CoordinateWins, 1)
	} else {
		atomic.AddUint64(&rs.SimplexWins, 1)
	}
	if synthetic {
		atomic.AddUint64(&rs.SyntheticBins, 1)
	}
}

// RecordUnconverged counts a bin whose kept phase stopped on a cap rather
// than its tolerances.
func (rs *RunStats) RecordUnconverged() {
	atomic.AddUint64(&rs.Unconverged, 1)
}

func (rs *RunStats) RecordCacheHit() {
	atomic.AddUint64(&rs.CacheHits, 1)
}

func (rs *RunStats) RecordLookup() {
	atomic.AddUint64(&rs.Lookups, 1)
}

// CoordinateRate is the share of bins won by the coordinate phase.
func (rs *RunStats) CoordinateRate() float64 {
	bins := atomic.LoadUint64(&rs.Bins)
	if bins == 0 {
		return 0.0
	}
	return float64(atomic.LoadUint64(&rs.CoordinateWins)) / float64(bins)
}

func (rs *RunStats) Snapshot() Snapshot {
	return Snapshot{
		Runs:           atomic.LoadUint64(&rs.Runs),
		Bins:           atomic.LoadUint64(&rs.Bins),
		Evaluations:    atomic.LoadUint64(&rs.Evaluations),
		SimplexWins:    atomic.LoadUint64(&rs.SimplexWins),
		CoordinateWins: atomic.LoadUint64(&rs.CoordinateWins),
		SyntheticBins:  atomic.LoadUint64(&rs.SyntheticBins),
		Unconverged:    atomic.LoadUint64(&rs.Unconverged),
		CacheHits:      atomic.LoadUint64(&rs.CacheHits),
		Lookups:        atomic.LoadUint64(&rs.Lookups),
		CoordinateRate: rs.CoordinateRate(),
	}
}

func (rs *RunStats) Reset() {
	atomic.StoreUint64(&rs.Runs, 0)
	atomic.StoreUint64(&rs.Bins, 0)
	atomic.StoreUint64(&rs.Evaluations, 0)
	atomic.StoreUint64(&rs.SimplexWins, 0)
	atomic.StoreUint64(&rs.CoordinateWins, 0)
	atomic.StoreUint64(&rs.SyntheticBins, 0)
	atomic.StoreUint64(&rs.Unconverged, 0)
	atomic.StoreUint64(&rs.CacheHits, 0)
	atomic.StoreUint64(&rs.Lookups, 0)
}
