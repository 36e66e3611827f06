package server

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 全局 SugaredLogger；InitLogger 之前为 no-op，测试里不产生输出
var Log = zap.NewNop().Sugar()

// InitLogger 按配置把日志写入滚动文件，可选同时输出到 stderr
func InitLogger(cfg Config) error {
	core, err := newLogCore(cfg, zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
	}))
	if err != nil {
		return err
	}
	Log = zap.New(core, zap.AddCaller()).Named("worldsync").Sugar()
	return nil
}

func newLogCore(cfg Config, sink zapcore.WriteSyncer) (zapcore.Core, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	switch cfg.LogFormat {
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	case "console", "":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}

	if cfg.LogToStderr {
		sink = zapcore.NewMultiWriteSyncer(sink, zapcore.Lock(os.Stderr))
	}
	// 逐帧日志走 Debug，生产环境用 WORLDSYNC_LOG_LEVEL=info 关掉
	return zapcore.NewCore(encoder, sink, level), nil
}

// SyncLogger 刷出缓冲
func SyncLogger() {
	_ = Log.Sync()
}
