package statemachine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "state error",
			err:  WrapStateError("Idle", ErrUnhandledEvent),
			want: "state Idle: unhandled event",
		},
		{
			name: "state error with message",
			err:  &StateError[string]{State: "Idle", Message: "busy", Err: ErrInvalidEvent},
			want: "state Idle: invalid event: busy",
		},
		{
			name: "transition error",
			err:  WrapTransitionError(1, 2, ErrStateNotRegistered),
			want: "transition 1 -> 2: state not registered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.err.Error())
		})
	}

	assert.NoError(t, WrapStateError("Idle", nil))
	assert.NoError(t, WrapTransitionError("A", "B", nil))
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err         error
		recoverable bool
		defect      bool
	}{
		{err: ErrInvalidEvent, recoverable: true},
		{err: ErrUnhandledEvent, recoverable: true},
		{err: ErrEventTimeout, recoverable: true},
		{err: ErrStateNotRegistered, defect: true},
		{err: ErrCycleDetected, defect: true},
		{err: ErrInvalidConfig, defect: true},
		{err: ErrTransitionChainTooDeep},
		{err: ErrAlreadyInitialized},
		{err: ErrNotInitialized},
		{err: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			t.Parallel()

			wrapped := fmt.Errorf("outer: %w", WrapStateError("S", tt.err))

			assert.Equal(t, tt.recoverable, IsRecoverable(wrapped))
			assert.Equal(t, tt.defect, IsConfigurationDefect(wrapped))
			assert.ErrorIs(t, wrapped, tt.err)
		})
	}
}
