package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"bf16lut/pkg/config"
)

// New builds a logger from the log section of the config. Output goes to
// stderr when out is nil so stdout stays free for generated artifacts.
func New(cfg config.LogConfig, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	if out == nil {
		out = os.Stderr
	}
	log.SetOutput(out)

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}

	level := logrus.InfoLevel
	if cfg.Level != "" {
		var err error
		level, err = logrus.ParseLevel(cfg.Level)
		if err != nil {
			return log, err
		}
	}
	log.SetLevel(level)
	return log, nil
}
