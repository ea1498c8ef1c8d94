package logger

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.Logger with the account-monitor process's structured
// logging conventions: lifecycle events, rule-reload events, and alert
// events each get their own helper so call sites don't hand-assemble
// zap.Field slices inline.
type Logger struct {
	*zap.Logger
	config Config
}

// Config is the process's logging configuration (the container starts from
// DefaultConfig and copies only config.LoggingConfig's Level onto it).
type Config struct {
	Level      string   `yaml:"level"`       // debug, info, warn, error
	Outputs    []string `yaml:"outputs"`     // stdout, file
	OutputFile string   `yaml:"output_file"` // process log path
	ErrorFile  string   `yaml:"error_file"`  // error-level-only log path
	Format     string   `yaml:"format"`      // json or console
	MaxSize    int      `yaml:"max_size"`    // rotate a file once it exceeds this many MB
	MaxBackups int      `yaml:"max_backups"` // not read here: rotated backups are never pruned
	MaxAge     int      `yaml:"max_age"`     // retention window in days (unused until a cron sweep reaps MaxAge-old backups)
}

// DefaultConfig returns the baseline logging configuration: stdout only,
// JSON-encoded, info level.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Outputs:    []string{"stdout"},
		Format:     "json",
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
	}
}

// New 创建新的Logger实例
func New(cfg Config) (*Logger, error) {
	// 解析日志级别
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	// 构建核心
	cores := []zapcore.Core{}

	// 标准输出
	if contains(cfg.Outputs, "stdout") {
		var encoder zapcore.Encoder
		if cfg.Format == "console" {
			encoder = zapcore.NewConsoleEncoder(encoderConfig)
		} else {
			encoder = zapcore.NewJSONEncoder(encoderConfig)
		}
		cores = append(cores, zapcore.NewCore(
			encoder,
			zapcore.AddSync(os.Stdout),
			level,
		))
	}

	// process log file, rotated in place if it's grown past MaxSize
	if contains(cfg.Outputs, "file") && cfg.OutputFile != "" {
		if err := rotateIfOversized(cfg.OutputFile, cfg.MaxSize); err != nil {
			return nil, fmt.Errorf("rotate log file: %w", err)
		}
		fileWriter, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file failed: %w", err)
		}

		encoder := zapcore.NewJSONEncoder(encoderConfig)
		cores = append(cores, zapcore.NewCore(
			encoder,
			zapcore.AddSync(fileWriter),
			level,
		))
	}

	// error-only file, kept separate so an on-call reader never has to grep
	// the full process log for failures
	if cfg.ErrorFile != "" {
		if err := rotateIfOversized(cfg.ErrorFile, cfg.MaxSize); err != nil {
			return nil, fmt.Errorf("rotate error log file: %w", err)
		}
		errorWriter, err := os.OpenFile(cfg.ErrorFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open error log file failed: %w", err)
		}

		encoder := zapcore.NewJSONEncoder(encoderConfig)
		cores = append(cores, zapcore.NewCore(
			encoder,
			zapcore.AddSync(errorWriter),
			zapcore.ErrorLevel,
		))
	}

	core := zapcore.NewTee(cores...)
	zapLogger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return &Logger{
		Logger: zapLogger,
		config: cfg,
	}, nil
}

// WithFields returns a child logger carrying fields on every subsequent
// line, without mutating l.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return &Logger{
		Logger: l.Logger.With(zapFields...),
		config: l.config,
	}
}

// LogLifecycleEvent records a container start/stop/readiness transition.
func (l *Logger) LogLifecycleEvent(event string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["event"] = event
	fields["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	l.Info("lifecycle_event", zapFields...)
}

// LogRuleReload records a position-rules config hot-reload.
func (l *Logger) LogRuleReload(configPath string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["config_path"] = configPath
	fields["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	l.Info("rule_reload_event", zapFields...)
}

// LogError records an error with its surrounding context.
func (l *Logger) LogError(err error, context map[string]interface{}) {
	if context == nil {
		context = make(map[string]interface{})
	}
	context["error"] = err.Error()
	context["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	zapFields := make([]zap.Field, 0, len(context))
	for k, v := range context {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	l.Error("error_event", zapFields...)
}

// LogAlertEvent records a position-rule issue or recovery routed through the
// alert manager.
func (l *Logger) LogAlertEvent(rule string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["rule"] = rule
	fields["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	l.Warn("alert_event", zapFields...)
}

// Close flushes buffered log entries.
func (l *Logger) Close() error {
	return l.Sync()
}

// rotateIfOversized renames path to a timestamped backup once it exceeds
// maxSizeMB, so the next OpenFile starts a fresh file. A no-op when the file
// doesn't exist yet or maxSizeMB is non-positive.
func rotateIfOversized(path string, maxSizeMB int) error {
	if maxSizeMB <= 0 {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if info.Size() < int64(maxSizeMB)*1024*1024 {
		return nil
	}
	backup := path + "." + time.Now().UTC().Format("20060102T150405")
	return os.Rename(path, backup)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
