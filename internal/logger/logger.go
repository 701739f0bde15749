package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys shared by the engine, orchestrator and server.
const (
	FieldJobRequestID = "job_request_id"
	FieldCandidateID  = "candidate_id"
	FieldStatus       = "status"
	FieldActorID      = "actor_id"
	FieldKind         = "error_kind"
)

// New builds a JSON (production) or console logger writing to stderr.
func New(json bool, debug bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	encoding := "console"
	if json {
		encoding = "json"
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cfg := zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:   "msg",
			LevelKey:     "level",
			EncodeLevel:  zapcore.LowercaseLevelEncoder,
			TimeKey:      "time",
			EncodeTime:   zapcore.RFC3339TimeEncoder,
			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,
		},
	}
	return cfg.Build()
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger { return zap.NewNop() }

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
