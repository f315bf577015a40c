package cmd

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tagwise/tagwise/internal/conf"
)

func TestLogLevelFollowsDebugSetting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelInfo, logLevel(&conf.Settings{}))

	debug := &conf.Settings{Debug: true}
	assert.Equal(t, slog.LevelDebug, logLevel(debug))
}
