package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls the shared logger.
type Options struct {
	// Debug lowers the level to debug and colours the console output.
	Debug bool
	// File, when set, receives a copy of every entry and is rotated by size.
	File string
	// JSON switches the encoder from console to JSON.
	JSON bool
	// Output replaces stderr as the console destination.
	Output io.Writer
}

var (
	once   sync.Once
	logger *zap.Logger
)

// New builds a logger from opts.
func New(opts Options) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "name",
		CallerKey:        "caller",
		MessageKey:       "message",
		StacktraceKey:    zapcore.OmitKey,
		ConsoleSeparator: "|",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format(time.RFC3339Nano))
		},
		EncodeName:     zapcore.FullNameEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	var encoder zapcore.Encoder
	if opts.JSON {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		if opts.Debug {
			encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
			encoderConfig.ConsoleSeparator = " "
		}
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var out io.Writer = os.Stderr
	if opts.Output != nil {
		out = opts.Output
	}
	syncers := []zapcore.WriteSyncer{zapcore.AddSync(out)}
	if opts.File != "" {
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     28,
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), level)
	return zap.New(core, zap.AddCaller())
}

// Configure initializes the shared logger. Only the first call has an effect.
func Configure(opts Options) *zap.Logger {
	once.Do(func() {
		logger = New(opts)
	})
	return logger
}

// Logger returns the shared logger, configuring it with defaults on first use if necessary.
func Logger() *zap.Logger {
	return Configure(Options{})
}
