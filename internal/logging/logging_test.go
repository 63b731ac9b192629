package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(Config{Level: "WARN", Format: "json"}, &buf))
	t.Cleanup(func() { _ = Setup(Config{}, nil) })

	logrus.Info("hidden")
	logrus.WithField("period", "2025-1").Warn("visible")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "visible", entry["msg"])
	assert.Equal(t, "2025-1", entry["period"])
}

func TestSetup_BadLevel(t *testing.T) {
	assert.Error(t, Setup(Config{Level: "loud"}, &bytes.Buffer{}))
}
