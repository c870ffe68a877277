package logger

import (
	"fmt"

	"github.com/pion/logging"
	"go.uber.org/zap"
)

// PionLoggerFactory routes pion's internal logging into zap.
type PionLoggerFactory struct {
	logger *zap.SugaredLogger
}

func NewPionLoggerFactory(l *zap.SugaredLogger) *PionLoggerFactory {
	return &PionLoggerFactory{logger: l}
}

func (f *PionLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &logAdapter{logger: f.logger.With("pion", scope)}
}

// implements logging.LeveledLogger
type logAdapter struct {
	logger *zap.SugaredLogger
}

func (l *logAdapter) Trace(msg string) {
	// ignore trace
}

func (l *logAdapter) Tracef(format string, args ...interface{}) {
	// ignore trace
}

func (l *logAdapter) Debug(msg string) {
	l.logger.Debug(msg)
}

func (l *logAdapter) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *logAdapter) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logAdapter) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

// pion is chatty at warn level during normal ICE churn, keep it at debug
func (l *logAdapter) Warn(msg string) {
	l.logger.Debug(msg)
}

func (l *logAdapter) Warnf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *logAdapter) Error(msg string) {
	l.logger.Error(msg)
}

func (l *logAdapter) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}
