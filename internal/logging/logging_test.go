package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qad/internal/config"
)

func TestNew_WritesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.New()
	cfg.ProjectPath = dir
	cfg.Log.Level = "error"
	cfg.Log.File = "logs/qad.log"

	logger, err := New(cfg)
	require.NoError(t, err)

	logger.Debug("drain started")

	data, err := os.ReadFile(filepath.Join(dir, "logs", "qad.log"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "drain started"), "file sink should receive debug lines")
}

func TestNew_RejectsBadSettings(t *testing.T) {
	cfg := config.New()
	cfg.Log.Level = "loud"
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = config.New()
	cfg.Log.Format = "xml"
	_, err = New(cfg)
	assert.Error(t, err)
}
