package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ansel1/merry"
	"github.com/sirupsen/logrus"

	"bf16lut/pkg/core"
	"bf16lut/pkg/emit"
	"bf16lut/pkg/golden"
)

const benchmarkIterations = 50000

type Server struct {
	engine *core.Engine
	log    logrus.FieldLogger
	fixed  emit.FixedFormat
}

func NewServer(engine *core.Engine, log logrus.FieldLogger, fixed emit.FixedFormat) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{engine: engine, log: log.WithField("component", "api"), fixed: fixed}
}

// Handler returns the routed endpoints. Start serves it.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/table", s.handleTable)
	mux.HandleFunc("/api/eval", s.handleEval)
	mux.HandleFunc("/api/export", s.handleExport)
	mux.HandleFunc("/api/header", s.handleHeader)
	mux.HandleFunc("/api/golden", s.handleGolden)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/load", s.handleLoad)
	mux.HandleFunc("/api/benchmark", s.handleBenchmark)
	mux.HandleFunc("/api/reset", s.handleReset)
	return mux
}

func (s *Server) Start(addr string) error {
	s.log.WithField("addr", addr).Info("server listening")
	return http.ListenAndServe(addr, s.Handler())
}

// writeError answers with the status code carried by err, 500 otherwise.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := merry.HTTPCode(err)
	if code >= http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": merry.Message(err),
		"code":  code,
	})
}

// writeJSON encodes v before touching the response, so a value that cannot
// be encoded (a NaN or infinite error, say) becomes a 500 instead of an
// empty 200.
func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		s.writeError(w, merry.Wrap(err).WithHTTPCode(http.StatusInternalServerError))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf.Bytes())
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Fields left out of the body fall back to the configured run.
	req := s.engine.DefaultRequest()
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid body", http.StatusBadRequest)
			return
		}
	}

	start := time.Now()
	t, cached, err := s.engine.Generate(req, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"function":    t.Function,
		"policy":      t.Policy.String(),
		"interval":    t.Interval,
		"bins":        t.Size(),
		"worst_ulp":   t.WorstError(),
		"avg_ulp":     t.MeanError(),
		"avg_max_ulp": t.AvgMaxError(),
		"cached":      cached,
		"latency_ms":  float64(time.Since(start).Microseconds()) / 1000,
	})
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	t, err := s.engine.Table()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, t)
}

func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	x, err := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
	if err != nil {
		http.Error(w, "Invalid x", http.StatusBadRequest)
		return
	}

	start := time.Now()
	res, err := s.engine.Eval(x)
	duration := time.Since(start)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"result":     res,
		"latency_ns": duration.Nanoseconds(),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	var err error
	if r.URL.Query().Get("kind") == "entries" {
		t, terr := s.engine.Table()
		if terr != nil {
			s.writeError(w, terr)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment;filename=lut_entries.csv")
		err = emit.WriteCSV(w, t)
	} else {
		pts, derr := s.engine.Diagnostics()
		if derr != nil {
			s.writeError(w, derr)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment;filename=lut_fit.csv")
		err = emit.WriteDiagnosticsCSV(w, pts)
	}
	if err != nil {
		s.log.WithError(err).Warn("export interrupted")
	}
}

func (s *Server) handleHeader(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	t, err := s.engine.Table()
	if err != nil {
		s.writeError(w, err)
		return
	}

	opts := emit.HeaderOptions{Namespace: r.URL.Query().Get("namespace")}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if r.URL.Query().Get("format") == "packed" {
		err = emit.WritePackedHeader(w, t, s.fixed, opts)
	} else {
		err = emit.WriteHeader(w, t, opts)
	}
	if err != nil {
		s.log.WithError(err).Warn("header write interrupted")
	}
}

func (s *Server) handleGolden(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	prec, err := golden.ParsePrecision(r.URL.Query().Get("precision"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	t, err := s.engine.Table()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := golden.ReplayWith(w, t, prec); err != nil {
		s.log.WithError(err).Warn("golden replay interrupted")
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	s.writeJSON(w, s.engine.Summary())
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	runs, err := s.engine.Runs()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return
	}
	t, err := s.engine.Load(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"id":       id,
		"function": t.Function,
		"policy":   t.Policy.String(),
		"bins":     t.Size(),
	})
}

func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	formulaTime, treeTime, err := s.engine.BenchmarkLookup(benchmarkIterations)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result := map[string]interface{}{
		"iterations":     benchmarkIterations,
		"formula_avg_ns": fmt.Sprintf("%.2f ns", formulaTime),
		"btree_avg_ns":   fmt.Sprintf("%.2f ns", treeTime),
		"winner": func() string {
			if formulaTime <= treeTime {
				return "Formula"
			}
			return "BTree"
		}(),
	}
	if formulaTime > 0 {
		result["speedup"] = fmt.Sprintf("%.2fx", treeTime/formulaTime)
	}
	s.writeJSON(w, result)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.engine.Reset(); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Reset Successful"))
}
