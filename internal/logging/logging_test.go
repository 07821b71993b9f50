package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Level(t *testing.T) {
	logger, err := New("warn", "production")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New("loud", "development")
	assert.Error(t, err)
}

func TestMust_FallsBack(t *testing.T) {
	assert.NotNil(t, Must("loud", "development"))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
