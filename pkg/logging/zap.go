package logging

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements the Logger interface using uber-go/zap
type ZapLogger struct {
	logger *zap.Logger
	fields []Field
}

// ZapOption configures the zap-backed logger
type ZapOption func(*zapOptions)

type zapOptions struct {
	development bool
	level       *zapcore.Level
	outputPaths []string
}

// WithDevelopmentMode enables the human-friendly development encoder
func WithDevelopmentMode() ZapOption {
	return func(opts *zapOptions) {
		opts.development = true
	}
}

// WithLogLevel sets the minimum level
func WithLogLevel(level Level) ZapOption {
	return func(opts *zapOptions) {
		var zl zapcore.Level
		switch level {
		case DEBUG:
			zl = zapcore.DebugLevel
		case WARN:
			zl = zapcore.WarnLevel
		case ERROR:
			zl = zapcore.ErrorLevel
		default:
			zl = zapcore.InfoLevel
		}
		opts.level = &zl
	}
}

// WithOutputPaths sets the log output paths
func WithOutputPaths(paths ...string) ZapOption {
	return func(opts *zapOptions) {
		opts.outputPaths = paths
	}
}

// NewZapLogger creates a Logger backed by zap. Falls back to the plain
// logger when the zap build fails.
func NewZapLogger(options ...ZapOption) Logger {
	opts := &zapOptions{outputPaths: []string{"stdout"}}
	for _, opt := range options {
		opt(opts)
	}

	config := zap.NewProductionConfig()
	if opts.development {
		config = zap.NewDevelopmentConfig()
	}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = opts.outputPaths
	if opts.level != nil {
		config.Level = zap.NewAtomicLevelAt(*opts.level)
	}

	logger, err := config.Build(
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return NewLogger()
	}
	return &ZapLogger{logger: logger}
}

// Debug implements Logger interface
func (l *ZapLogger) Debug(msg string, fields ...Field) {
	if ce := l.logger.Check(zapcore.DebugLevel, msg); ce != nil {
		ce.Write(l.convertFields(fields...)...)
	}
}

// Info implements Logger interface
func (l *ZapLogger) Info(msg string, fields ...Field) {
	if ce := l.logger.Check(zapcore.InfoLevel, msg); ce != nil {
		ce.Write(l.convertFields(fields...)...)
	}
}

// Warn implements Logger interface
func (l *ZapLogger) Warn(msg string, fields ...Field) {
	if ce := l.logger.Check(zapcore.WarnLevel, msg); ce != nil {
		ce.Write(l.convertFields(fields...)...)
	}
}

// Error implements Logger interface
func (l *ZapLogger) Error(msg string, fields ...Field) {
	if ce := l.logger.Check(zapcore.ErrorLevel, msg); ce != nil {
		ce.Write(l.convertFields(fields...)...)
	}
}

// WithFields implements Logger interface
func (l *ZapLogger) WithFields(fields ...Field) Logger {
	child := &ZapLogger{logger: l.logger}
	child.fields = make([]Field, 0, len(l.fields)+len(fields))
	child.fields = append(child.fields, l.fields...)
	child.fields = append(child.fields, fields...)
	return child
}

// SetLevel implements Logger interface. The zap level is fixed at build
// time, so this is a no-op.
func (l *ZapLogger) SetLevel(level Level) {}

// SetOutput implements Logger interface
func (l *ZapLogger) SetOutput(w io.Writer) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	atom := zap.NewAtomicLevel()
	atom.SetLevel(l.logger.Level())

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		atom,
	)
	l.logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

// Close flushes any buffered log entries
func (l *ZapLogger) Close() error {
	return l.logger.Sync()
}

func (l *ZapLogger) convertFields(fields ...Field) []zap.Field {
	zapFields := make([]zap.Field, 0, len(l.fields)+len(fields))
	for _, f := range l.fields {
		zapFields = append(zapFields, zap.Any(f.Key, f.Value))
	}
	for _, f := range fields {
		zapFields = append(zapFields, zap.Any(f.Key, f.Value))
	}
	return zapFields
}
