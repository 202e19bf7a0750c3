package logging

import (
	"log"

	"go.uber.org/zap"
)

// Init 初始化全局 zap logger，之后统一用 zap.L() 记录日志
func Init(debug bool) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	zap.ReplaceGlobals(logger)
}
