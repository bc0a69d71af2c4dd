package logging

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.elastic.co/ecszap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LogLevelKey  = "LOG_LEVEL"
	LogLevelProd = "prod"
	LogLevelELK  = "elk"
)

type WriteSyncer struct {
	io.Writer
}

func (ws WriteSyncer) Sync() error {
	return nil
}

// GetWriteSyncer returns a rotating file sink.
func GetWriteSyncer(logName string) zapcore.WriteSyncer {
	var ioWriter = &lumberjack.Logger{
		Filename:   logName,
		MaxSize:    20, // MB
		MaxBackups: 5,
		MaxAge:     28, // days
		LocalTime:  true,
		Compress:   false,
	}
	return WriteSyncer{ioWriter}
}

// SetupLogger builds the process logger: JSON to a rotating file, console
// encoding to stdout/stderr, errors split to stderr. LOG_LEVEL=elk switches
// to the ECS layout for log shippers.
func SetupLogger(fileName string) *zap.Logger {
	if viper.GetString(LogLevelKey) == LogLevelELK {
		return SetupLoggerELK()
	}

	highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})
	lowPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl < zapcore.ErrorLevel
	})

	logFile := GetWriteSyncer(fileName)
	fileDebugging := zapcore.AddSync(logFile)
	fileErrors := zapcore.AddSync(logFile)

	consoleDebugging := zapcore.Lock(os.Stdout)
	consoleErrors := zapcore.Lock(os.Stderr)

	var config zap.Config
	if strings.EqualFold(viper.GetString(LogLevelKey), LogLevelProd) {
		config = zap.NewProductionConfig()
		config.EncoderConfig = zap.NewProductionEncoderConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	configConsole := config
	configConsole.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	fileEncoder := zapcore.NewJSONEncoder(config.EncoderConfig)
	consoleEncoder := zapcore.NewConsoleEncoder(configConsole.EncoderConfig)

	core := zapcore.NewTee(
		zapcore.NewCore(fileEncoder, fileErrors, highPriority),
		zapcore.NewCore(consoleEncoder, consoleErrors, highPriority),
		zapcore.NewCore(fileEncoder, fileDebugging, lowPriority),
		zapcore.NewCore(consoleEncoder, consoleDebugging, lowPriority),
	)

	return zap.New(core, zap.AddCaller())
}

// SetupLoggerELK builds an ECS-formatted logger for ELK ingestion.
func SetupLoggerELK() *zap.Logger {
	encoderConfig := ecszap.EncoderConfig{
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   ecszap.FullCallerEncoder,
	}
	core := ecszap.NewCore(encoderConfig, os.Stdout, zap.DebugLevel)
	return zap.New(core, zap.AddCaller())
}
