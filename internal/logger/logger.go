package logger

import (
	"os"

	"go.uber.org/zap"
)

var Lg = zap.NewNop()

func InitLogger() {
	var err error
	if os.Getenv("LOG_DEV") != "" {
		Lg, err = zap.NewDevelopment()
	} else {
		Lg, err = zap.NewProduction()
	}
	if err != nil {
		Lg = zap.NewNop()
	}
}
