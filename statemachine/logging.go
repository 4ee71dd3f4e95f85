package statemachine

import (
	"context"
	"log/slog"

	"github.com/amp-labs/amp-hfsm/logger"
)

// Logger provides logging hooks for engine execution. States are passed as any so that
// one Logger serves machines of every state type.
type Logger interface {
	StateEntered(ctx context.Context, machine string, state any)
	StateExited(ctx context.Context, machine string, state any)
	TransitionExecuted(ctx context.Context, machine string, from, to any)
	EventDelegated(ctx context.Context, machine string, from, to any)
	EventFailed(ctx context.Context, machine string, state any, err error)
}

// DefaultLogger implements Logger using slog. Hook-level records are logged at Debug,
// transitions at Info, recoverable failures at Warn and everything else at Error.
type DefaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger creates a DefaultLogger writing to l, or to logger.Get() if l is nil.
func NewDefaultLogger(l *slog.Logger) *DefaultLogger {
	if l == nil {
		l = logger.Get()
	}

	return &DefaultLogger{logger: l}
}

func (l *DefaultLogger) StateEntered(ctx context.Context, machine string, state any) {
	l.logger.DebugContext(ctx, "State entered",
		"machine", machine,
		"state", state,
	)
}

func (l *DefaultLogger) StateExited(ctx context.Context, machine string, state any) {
	l.logger.DebugContext(ctx, "State exited",
		"machine", machine,
		"state", state,
	)
}

func (l *DefaultLogger) TransitionExecuted(ctx context.Context, machine string, from, to any) {
	l.logger.InfoContext(ctx, "Transition executed",
		"machine", machine,
		"from", from,
		"to", to,
	)
}

func (l *DefaultLogger) EventDelegated(ctx context.Context, machine string, from, to any) {
	l.logger.DebugContext(ctx, "Event delegated to superstate",
		"machine", machine,
		"from", from,
		"to", to,
	)
}

func (l *DefaultLogger) EventFailed(ctx context.Context, machine string, state any, err error) {
	level := slog.LevelError
	if IsRecoverable(err) {
		level = slog.LevelWarn
	}

	l.logger.Log(ctx, level, "Event failed",
		"machine", machine,
		"state", state,
		"error", err,
	)
}
