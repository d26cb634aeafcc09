// Package log provides the daemon-wide logger, backed by zap.
package log

import (
	"fmt"

	"go.uber.org/zap"
)

var log *zap.SugaredLogger

// Init initializes the package-level logger. With debug set, the
// development encoder is used and debug-level output is enabled.
func Init(debug bool) error {
	var zapLogger *zap.Logger
	var err error

	if debug {
		zapLogger, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		zapLogger, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %v", err)
	}

	log = zapLogger.Sugar()
	return nil
}

func logger() *zap.SugaredLogger {
	if log == nil {
		// Fallback logger if Init was never called (tests, library use).
		base, _ := zap.NewProduction(zap.AddCallerSkip(1))
		log = base.Sugar()
	}
	return log
}

// Sync flushes any buffered log entries.
func Sync() {
	if log != nil {
		log.Sync()
	}
}

func Debug(args ...interface{}) {
	logger().Debug(args...)
}

func Debugf(template string, args ...interface{}) {
	logger().Debugf(template, args...)
}

func Debugw(msg string, keysAndValues ...interface{}) {
	logger().Debugw(msg, keysAndValues...)
}

func Info(args ...interface{}) {
	logger().Info(args...)
}

func Infof(template string, args ...interface{}) {
	logger().Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	logger().Infow(msg, keysAndValues...)
}

func Warn(args ...interface{}) {
	logger().Warn(args...)
}

func Warnf(template string, args ...interface{}) {
	logger().Warnf(template, args...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	logger().Warnw(msg, keysAndValues...)
}

func Error(args ...interface{}) {
	logger().Error(args...)
}

func Errorf(template string, args ...interface{}) {
	logger().Errorf(template, args...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	logger().Errorw(msg, keysAndValues...)
}

// Fatalf logs the message and then calls os.Exit(1).
func Fatalf(template string, args ...interface{}) {
	logger().Fatalf(template, args...)
}
