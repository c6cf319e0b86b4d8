package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func New(level, format string) (*zap.Logger, error) {
	var config zap.Config

	switch format {
	case "json":
		config = zap.NewProductionConfig()
	default:
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	// Установка уровня логирования
	switch level {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// CLI пишет результат в stdout, логи уходят в stderr
	config.OutputPaths = []string{"stderr"}

	return config.Build()
}

// AuditLog дублирует событие аудита в структурированный лог.
// Вызывается, когда запись в журнал аудита не удалась.
func AuditLog(logger *zap.Logger, userID, eventType string, details map[string]any, cause error) {
	fields := []zap.Field{
		zap.String("user_id", userID),
		zap.String("event_type", eventType),
	}
	if cause != nil {
		fields = append(fields, zap.NamedError("cause", cause))
	}

	for k, v := range details {
		fields = append(fields, zap.Any(k, v))
	}

	logger.Warn("audit_log", fields...)
}
