package logger

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"
)

// StyledLogger wraps slog.Logger with terminal-aware accents for the
// handful of message shapes the engine repeats constantly.
type StyledLogger struct {
	logger *slog.Logger
}

func NewStyledLogger(logger *slog.Logger) *StyledLogger {
	return &StyledLogger{logger: logger}
}

func (sl *StyledLogger) Debug(msg string, args ...any) {
	sl.logger.Debug(msg, args...)
}

func (sl *StyledLogger) Info(msg string, args ...any) {
	sl.logger.Info(msg, args...)
}

func (sl *StyledLogger) Warn(msg string, args ...any) {
	sl.logger.Warn(msg, args...)
}

func (sl *StyledLogger) Error(msg string, args ...any) {
	sl.logger.Error(msg, args...)
}

func (sl *StyledLogger) InfoWithCount(msg string, count int, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Gray("(", count, ")"))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) InfoWithModel(msg string, model string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Cyan(model))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) WarnWithSource(msg string, source string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Yellow(source))
	sl.logger.Warn(styledMsg, args...)
}

func (sl *StyledLogger) With(args ...any) *StyledLogger {
	return &StyledLogger{logger: sl.logger.With(args...)}
}

func (sl *StyledLogger) Underlying() *slog.Logger {
	return sl.logger
}
