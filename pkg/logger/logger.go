package logger

import (
	"os"

	"tutor_backend/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 在 InitLogger 之前为空实现，便于单元测试直接使用
var Log = zap.NewNop()

// level 所有输出共享，配置热更新时原地调整
var level = zap.NewAtomicLevelAt(zap.InfoLevel)

// InitLogger 文件输出 JSON，控制台输出可读格式，每条日志带服务名和主机名
func InitLogger(cfg *config.Config) {
	SetLevel(cfg.Log.Level, cfg.Server.Mode)

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoder()), rotatingFile(cfg.Log), level),
	}
	if cfg.Log.Console {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoder(cfg.Server.Mode)),
			zapcore.Lock(os.Stdout),
			level,
		))
	}

	host, _ := os.Hostname()
	Log = zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
		zap.Fields(
			zap.String("service", cfg.Tracing.ServiceName),
			zap.String("host", host),
		),
	)
}

// SetLevel raw 无法解析时退回到按运行模式推断的级别
func SetLevel(raw, mode string) {
	if raw != "" {
		if parsed, err := zapcore.ParseLevel(raw); err == nil {
			level.SetLevel(parsed)
			return
		}
	}
	if mode == "debug" {
		level.SetLevel(zap.DebugLevel)
		return
	}
	level.SetLevel(zap.InfoLevel)
}

// Level 当前生效的日志级别
func Level() zapcore.Level {
	return level.Level()
}

func rotatingFile(cfg config.LogConfig) zapcore.WriteSyncer {
	file := cfg.File
	if file == "" {
		file = "logs/tutor.log"
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	})
}

func fileEncoder() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder
	return ec
}

func consoleEncoder(mode string) zapcore.EncoderConfig {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	ec.EncodeDuration = zapcore.StringDurationEncoder
	if mode == "debug" {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return ec
}
