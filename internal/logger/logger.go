package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "shopstore"

// Init installs the global zap logger. Production uses JSON output,
// anything else a colored console encoder at debug level.
func Init(environment string) error {
	var conf zap.Config
	if environment == "production" {
		conf = zap.NewProductionConfig()
		conf.EncoderConfig.TimeKey = "@timestamp"
		conf.EncoderConfig.MessageKey = "message"
		conf.EncoderConfig.LevelKey = "level"
		conf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		conf = zap.NewDevelopmentConfig()
		conf.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := conf.Build(zap.Fields(zap.String("service", serviceName)))
	if err != nil {
		return fmt.Errorf("conf.Build -> %w", err)
	}

	zap.ReplaceGlobals(l)
	return nil
}
