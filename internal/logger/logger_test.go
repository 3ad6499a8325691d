package logger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/invoice-engine/internal/logger"
)

func TestNewLogger_Levels(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		t.Run(level, func(t *testing.T) {
			l, err := logger.NewLogger(level)
			require.NoError(t, err)
			require.NotNil(t, l)
			l.With("component", "test").Debugw("message", "key", "value")
		})
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := logger.NewLogger("chatty")
	assert.Error(t, err)
}

func TestNewNop(t *testing.T) {
	l := logger.NewNop()
	assert.NotPanics(t, func() {
		l.Infow("discarded", "n", 1)
		l.Desugar().Info("discarded")
	})
}
