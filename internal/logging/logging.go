package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config 日志配置
type Config struct {
	Level  string `toml:"level" env:"LEVEL"`   // debug/info/warn/error
	Format string `toml:"format" env:"FORMAT"` // text/json
}

// Setup 按配置初始化全局 logrus
func Setup(cfg Config, out io.Writer) error {
	if out == nil {
		out = os.Stderr
	}
	logrus.SetOutput(out)

	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return err
		}
		level = parsed
	}
	logrus.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
