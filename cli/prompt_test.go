package cli

import (
	"testing"
	"time"

	"github.com/amp-labs/amp-hfsm/optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonEmpty(t *testing.T) {
	t.Parallel()

	require.NoError(t, nonEmpty("Settings"))
	require.ErrorIs(t, nonEmpty("  "), ErrEmptyInput)
	require.ErrorIs(t, nonEmpty(""), ErrEmptyInput)
}

func TestStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		state   optional.Value[string]
		timeout optional.Value[time.Duration]
		want    string
	}{
		{
			name:  "not started",
			state: optional.None[string](),
			want:  "[device] not started",
		},
		{
			name:    "no timeout",
			state:   optional.Some("Off"),
			timeout: optional.None[time.Duration](),
			want:    "[device] state=Off",
		},
		{
			name:    "with timeout",
			state:   optional.Some("On"),
			timeout: optional.Some(30 * time.Second),
			want:    "[device] state=On timeout=30s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, Status("device", tt.state, tt.timeout))
		})
	}
}
