package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	_, err := Load("/nonexistent/path/lutgen.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent path")
	}
	// Load with empty path uses default search (may use defaults if no config file)
	cfg, _ := Load("")
	if cfg.Server.Addr != ":8080" {
		t.Errorf("default addr: got %s", cfg.Server.Addr)
	}
	if cfg.Generation.Start != 0.25 || cfg.Generation.End != 0.5 {
		t.Errorf("default interval: got [%g, %g]", cfg.Generation.Start, cfg.Generation.End)
	}
	if cfg.Generation.Bins != 16 {
		t.Errorf("default bins: got %d", cfg.Generation.Bins)
	}
	if cfg.Generation.Policy != "geometric" {
		t.Errorf("default policy: got %s", cfg.Generation.Policy)
	}
	if cfg.Optimizer.MaxIter != 10000 || cfg.Optimizer.XTol != 1e-14 {
		t.Errorf("default optimizer: got %+v", cfg.Optimizer)
	}
	if cfg.Emit.CoeffIntBits != 1 || cfg.Emit.CoeffFracBits != 25 {
		t.Errorf("default fixed format: got %d.%d", cfg.Emit.CoeffIntBits, cfg.Emit.CoeffFracBits)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	content := `
generation:
  start: -1
  end: 1
  bins: 64
  policy: equal-count
optimizer:
  max_iter: 500
  max_eval: 2000
storage:
  path: "runs.db"
  enabled: false
server:
  addr: ":9000"
log:
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr: got %s", cfg.Server.Addr)
	}
	if cfg.Generation.Start != -1 || cfg.Generation.End != 1 {
		t.Errorf("interval: got [%g, %g]", cfg.Generation.Start, cfg.Generation.End)
	}
	if cfg.Generation.Bins != 64 {
		t.Errorf("bins: got %d", cfg.Generation.Bins)
	}
	if cfg.Generation.Policy != "equal-count" {
		t.Errorf("policy: got %s", cfg.Generation.Policy)
	}
	if cfg.Generation.Function != "exp2" {
		t.Errorf("function: got %s", cfg.Generation.Function)
	}
	if cfg.Optimizer.MaxIter != 500 {
		t.Errorf("max_iter: got %d", cfg.Optimizer.MaxIter)
	}
	if cfg.Optimizer.MaxEval != 2000 {
		t.Errorf("max_eval: got %d", cfg.Optimizer.MaxEval)
	}
	if cfg.Optimizer.PowellMaxIter != 10000 {
		t.Errorf("powell_max_iter: got %d", cfg.Optimizer.PowellMaxIter)
	}
	if cfg.Storage.Enabled {
		t.Error("storage should be disabled")
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Errorf("log: got %+v", cfg.Log)
	}
}

func TestLoadRepairsZeroValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zero.yaml")
	content := `
generation:
  bins: 0
  policy: ""
optimizer:
  xatol: 0
emit:
  coeff_frac_bits: -3
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Generation.Bins != 16 {
		t.Errorf("bins: got %d", cfg.Generation.Bins)
	}
	if cfg.Generation.Policy != "geometric" {
		t.Errorf("policy: got %q", cfg.Generation.Policy)
	}
	if cfg.Optimizer.XATol != 1e-12 {
		t.Errorf("xatol: got %g", cfg.Optimizer.XATol)
	}
	if cfg.Emit.CoeffFracBits != 25 {
		t.Errorf("coeff_frac_bits: got %d", cfg.Emit.CoeffFracBits)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("generation: [1, 2"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
