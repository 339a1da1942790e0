// Package logging adapts a phase/task console logger onto a structured
// zerolog backend instead of bare fmt.Printf.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger mirrors a phase-oriented console logger: a current
// phase name, and Start/Complete/Fail bracketing around named tasks, but
// emits structured events instead of printing decorated strings.
type Logger struct {
	zl    zerolog.Logger
	phase string
}

// New builds a Logger writing to w (os.Stdout in production, a buffer in
// tests) with a human-readable console writer while keeping the event
// structured.
func New(w io.Writer) *Logger {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	zl := zerolog.New(cw).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// Default builds a Logger on os.Stdout.
func Default() *Logger {
	return New(os.Stdout)
}

// SetPhase records the current pipeline phase (e.g. "schema_selector",
// "candidate_generator") attached to every subsequent log line.
func (l *Logger) SetPhase(phase string) {
	l.phase = phase
	l.zl.Info().Str("phase", phase).Msg("phase started")
}

// StartTask logs the beginning of a named unit of work within the
// current phase and returns a function to call on completion, mirroring
// StartTask/CompleteTask pairing.
func (l *Logger) StartTask(task string) func(err error) {
	started := time.Now()
	l.zl.Info().Str("phase", l.phase).Str("task", task).Msg("task started")
	return func(err error) {
		elapsed := time.Since(started)
		ev := l.zl.Info()
		if err != nil {
			ev = l.zl.Error().Err(err)
		}
		ev.Str("phase", l.phase).Str("task", task).Dur("elapsed", elapsed).Msg("task finished")
	}
}

// Info, Warn, Error forward to zerolog at the matching level, tagged
// with the current phase.
func (l *Logger) Info(msg string, fields map[string]any)  { l.emit(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields map[string]any)  { l.emit(l.zl.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields map[string]any) { l.emit(l.zl.Error(), msg, fields) }

func (l *Logger) emit(ev *zerolog.Event, msg string, fields map[string]any) {
	ev = ev.Str("phase", l.phase)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

// ToolCall logs a single tool invocation the way ReAct
// step box does, but as one structured line per call.
func (l *Logger) ToolCall(agent, tool string, tokensUsed int, ok bool) {
	ev := l.zl.Info()
	if !ok {
		ev = l.zl.Warn()
	}
	ev.Str("phase", l.phase).Str("agent", agent).Str("tool", tool).
		Int("tokens_used", tokensUsed).Bool("success", ok).Msg("tool call")
}
