package main

import (
	"os"
	"path/filepath"
	"strings"

	lg "github.com/Andrej220/go-utils/zlog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SetupLogger builds a zap.Logger from c and installs it as the global
// logger. The caller should defer logger.Sync().
func SetupLogger(c LogConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	switch strings.ToLower(c.Level) {
	case "debug":
		level.SetLevel(zap.DebugLevel)
	case "warn", "warning":
		level.SetLevel(zap.WarnLevel)
	case "error":
		level.SetLevel(zap.ErrorLevel)
	default:
		level.SetLevel(zap.InfoLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	if c.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	var encoder zapcore.Encoder
	if strings.ToLower(c.Format) == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	outputs := c.Outputs
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	var cores []zapcore.Core
	for _, out := range outputs {
		var ws zapcore.WriteSyncer
		switch strings.ToLower(out) {
		case "stdout":
			ws = zapcore.AddSync(os.Stdout)
		case "stderr":
			ws = zapcore.AddSync(os.Stderr)
		default:
			if dir := filepath.Dir(out); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, err
				}
			}
			f, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, err
			}
			ws = zapcore.AddSync(f)
		}
		cores = append(cores, zapcore.NewCore(encoder, ws, level))
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)}
	if c.Development {
		opts = append(opts, zap.Development())
	}

	logger := zap.New(zapcore.NewTee(cores...), opts...)
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// zapZLogger lets the pool log through the logger built by SetupLogger,
// so its level, format and outputs apply to pool records too.
type zapZLogger struct{ l *zap.Logger }

func newZLogger(l *zap.Logger) lg.ZLogger { return &zapZLogger{l: l} }

func (z *zapZLogger) Debug(msg string, fields ...lg.Field) { z.l.Debug(msg, fields...) }
func (z *zapZLogger) Info(msg string, fields ...lg.Field)  { z.l.Info(msg, fields...) }
func (z *zapZLogger) Warn(msg string, fields ...lg.Field)  { z.l.Warn(msg, fields...) }
func (z *zapZLogger) Error(msg string, fields ...lg.Field) { z.l.Error(msg, fields...) }
func (z *zapZLogger) Sync() error                          { return z.l.Sync() }

func (z *zapZLogger) With(fields ...lg.Field) lg.ZLogger {
	return &zapZLogger{l: z.l.With(fields...)}
}
