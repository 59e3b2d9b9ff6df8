package logger

import (
	"go.uber.org/zap"
)

// Init builds the process logger and installs it as the zap global so
// packages can log through zap.S() without threading a logger everywhere.
func Init(env string) (*zap.Logger, error) {
	var log *zap.Logger
	var err error

	if env == "production" {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(log)
	return log, nil
}
