package logs

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, log.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, log.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, log.InfoLevel, ParseLevel("verbose"))
}

func TestNew_Outputs(t *testing.T) {
	assert.Equal(t, OutputStderr, New(Config{}).Output())
	assert.Equal(t, OutputStdout, New(Config{Output: OutputStdout}).Output())
	assert.Equal(t, OutputDiscard, New(Config{Output: OutputDiscard}).Output())
}

func TestNewWithWriter_LogfmtWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, OutputStderr, Config{Level: "info", Prefix: "kforge"})

	l.Debug("hidden")
	l.Info("Stage completed", "stage", "link")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=\"Stage completed\"")
	assert.Contains(t, out, "stage=link")
	assert.False(t, IsTerminal(&buf))
}
