package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	} {
		log, err := New(in)
		require.NoError(t, err, in)
		require.True(t, log.Core().Enabled(want), in)
		if want > zapcore.DebugLevel {
			require.False(t, log.Core().Enabled(want-1), in)
		}
	}
}

func TestNew_BadLevel(t *testing.T) {
	t.Parallel()
	_, err := New("loud")
	require.Error(t, err)
}
