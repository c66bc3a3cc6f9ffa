package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Generation GenerationConfig `yaml:"generation"`
	Optimizer  OptimizerConfig  `yaml:"optimizer"`
	Emit       EmitConfig       `yaml:"emit"`
	Storage    StorageConfig    `yaml:"storage"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

type GenerationConfig struct {
	Start    float64 `yaml:"start"`
	End      float64 `yaml:"end"`
	Bins     int     `yaml:"bins"`
	Policy   string  `yaml:"policy"`   // "geometric" or "equal-count"
	Function string  `yaml:"function"` // "exp2", "exp", "log2"
}

type OptimizerConfig struct {
	MaxIter       int     `yaml:"max_iter"` // Nelder-Mead iteration cap
	MaxEval       int     `yaml:"max_eval"` // objective evaluations per phase, 0 for no cap
	XATol         float64 `yaml:"xatol"`
	FATol         float64 `yaml:"fatol"`
	PowellMaxIter int     `yaml:"powell_max_iter"`
	XTol          float64 `yaml:"xtol"`
	FTol          float64 `yaml:"ftol"`
}

type EmitConfig struct {
	Output        string `yaml:"output"`    // header path
	Namespace     string `yaml:"namespace"` // C++ namespace, derived from the function when empty
	CoeffIntBits  int    `yaml:"coeff_int_bits"`
	CoeffFracBits int    `yaml:"coeff_frac_bits"`
}

type StorageConfig struct {
	Path    string `yaml:"path"` // SQLite archive file
	Enabled bool   `yaml:"enabled"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"` // HTTP Listen Address (e.g. :8080)
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

func Default() *Config {
	return &Config{
		Generation: GenerationConfig{
			Start:    0.25,
			End:      0.5,
			Bins:     16,
			Policy:   "geometric",
			Function: "exp2",
		},
		Optimizer: OptimizerConfig{
			MaxIter:       10000,
			XATol:         1e-12,
			FATol:         1e-12,
			PowellMaxIter: 10000,
			XTol:          1e-14,
			FTol:          1e-14,
		},
		Emit: EmitConfig{
			Output:        "bf16_exp2_coeffs.hpp",
			CoeffIntBits:  1,
			CoeffFracBits: 25,
		},
		Storage: StorageConfig{
			Path:    "lutgen.db",
			Enabled: true,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		for _, p := range []string{"configs/lutgen.yaml", "lutgen.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return cfg, err
				}
				applyDefaults(cfg)
				return cfg, nil
			}
		}
		applyDefaults(cfg)
		return cfg, nil // no file found: use defaults
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults repairs zero values a partial file leaves behind. The
// interval is not touched: an explicit start >= end must reach validation.
func applyDefaults(cfg *Config) {
	if cfg.Generation.Bins <= 0 {
		cfg.Generation.Bins = 16
	}
	if cfg.Generation.Policy == "" {
		cfg.Generation.Policy = "geometric"
	}
	if cfg.Generation.Function == "" {
		cfg.Generation.Function = "exp2"
	}
	if cfg.Optimizer.MaxIter <= 0 {
		cfg.Optimizer.MaxIter = 10000
	}
	if cfg.Optimizer.XATol <= 0 {
		cfg.Optimizer.XATol = 1e-12
	}
	if cfg.Optimizer.FATol <= 0 {
		cfg.Optimizer.FATol = 1e-12
	}
	if cfg.Optimizer.PowellMaxIter <= 0 {
		cfg.Optimizer.PowellMaxIter = 10000
	}
	if cfg.Optimizer.XTol <= 0 {
		cfg.Optimizer.XTol = 1e-14
	}
	if cfg.Optimizer.FTol <= 0 {
		cfg.Optimizer.FTol = 1e-14
	}
	if cfg.Emit.CoeffIntBits <= 0 {
		cfg.Emit.CoeffIntBits = 1
	}
	if cfg.Emit.CoeffFracBits <= 0 {
		cfg.Emit.CoeffFracBits = 25
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "lutgen.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
