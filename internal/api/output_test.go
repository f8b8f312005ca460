package api

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputTo(t *testing.T) {
	data := map[string]any{"status": "ok"}

	var buf bytes.Buffer
	require.NoError(t, OutputTo(&buf, OutputFormatJSON, data))
	assert.Contains(t, buf.String(), `"status": "ok"`)

	buf.Reset()
	require.NoError(t, OutputTo(&buf, OutputFormatYAML, data))
	assert.Contains(t, buf.String(), "status: ok")

	assert.Error(t, OutputTo(&buf, OutputFormat("toml"), data))
}

func TestSetOutputFormatFallsBackToYAML(t *testing.T) {
	defer SetOutputFormat("yaml")

	SetOutputFormat("json")
	assert.Equal(t, OutputFormatJSON, globalOutputFormat)

	SetOutputFormat("csv")
	assert.Equal(t, OutputFormatYAML, globalOutputFormat)
}
