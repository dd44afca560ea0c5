// Package logger は zap のロガーを組み立てる。
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultLevel = "info"

// development はコンソール出力、それ以外は JSON
func New(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "development" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.DisableStacktrace = true
	}
	cfg.Level = parseLevel(level)

	return cfg.Build()
}

func parseLevel(level string) zap.AtomicLevel {
	lv := zap.NewAtomicLevel()
	if err := lv.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil || level == "" {
		_ = lv.UnmarshalText([]byte(defaultLevel))
	}
	return lv
}

// 手動での突き合わせが必要な事象に付けるフィールド
func ManualReconciliation() zap.Field {
	return zap.Bool("manual_reconciliation", true)
}
