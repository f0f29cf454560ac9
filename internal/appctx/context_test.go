package appctx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matmarket/market-cli/internal/config"
	"github.com/matmarket/market-cli/internal/output"
)

func newTestApp(t *testing.T) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	t.Setenv("MARKET_NO_KEYRING", "1")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(DebugEnv, "")

	cfg := config.Default()
	cfg.CacheEnabled = false
	app := NewApp(cfg)

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	app.SetStreams(stdout, stderr)
	return app, stdout, stderr
}

func TestNewAppWiring(t *testing.T) {
	app, _, _ := newTestApp(t)

	require.NotNil(t, app.Market)
	assert.NotNil(t, app.Market.Listings)
	assert.NotNil(t, app.Market.Users)
	assert.Equal(t, "en", app.Client.Language())
	assert.Same(t, app.Hooks, app.Client.Hooks())
	assert.Equal(t, 0, app.Hooks.Level())
}

func TestVerboseLevel(t *testing.T) {
	tests := []struct {
		name string
		flag int
		env  string
		want int
	}{
		{"no flag no env", 0, "", 0},
		{"flag only", 1, "", 1},
		{"env raises", 0, "2", 2},
		{"flag beats lower env", 2, "1", 2},
		{"env true is full", 0, "true", 2},
		{"env TRUE is full", 1, "TRUE", 2},
		{"garbage env ignored", 1, "loud", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerboseLevel(tt.flag, tt.env))
		})
	}
}

func TestOutputFormatPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		flags  GlobalFlags
		config string
		want   output.Format
	}{
		{"default auto", GlobalFlags{}, "auto", output.FormatAuto},
		{"config json", GlobalFlags{}, "json", output.FormatJSON},
		{"format flag beats config", GlobalFlags{Format: "yaml"}, "json", output.FormatYAML},
		{"json flag", GlobalFlags{JSON: true}, "yaml", output.FormatJSON},
		{"ids beats json", GlobalFlags{IDsOnly: true, JSON: true}, "", output.FormatIDs},
		{"count beats quiet", GlobalFlags{Count: true, Quiet: true}, "", output.FormatCount},
		{"md", GlobalFlags{MD: true}, "", output.FormatMarkdown},
		{"styled", GlobalFlags{Styled: true}, "", output.FormatStyled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &App{Config: &config.Config{Format: tt.config}, Flags: tt.flags}
			assert.Equal(t, tt.want, app.OutputFormat())
		})
	}
}

func TestApplyFlagsRejectsUnknownFormat(t *testing.T) {
	app, _, _ := newTestApp(t)
	app.Flags.Format = "xml"

	err := app.ApplyFlags()
	require.Error(t, err)
	assert.Equal(t, output.CodeUsage, output.AsError(err).Code)
}

func TestApplyFlagsRejectsBadJQ(t *testing.T) {
	app, _, _ := newTestApp(t)
	app.Flags.JQ = ".data["

	err := app.ApplyFlags()
	require.Error(t, err)
	assert.Equal(t, "Invalid --jq expression", output.AsError(err).Message)
}

func TestApplyFlagsVerbosity(t *testing.T) {
	app, _, _ := newTestApp(t)
	app.Flags.Verbose = 2

	require.NoError(t, app.ApplyFlags())
	assert.Equal(t, 2, app.Hooks.Level())
	assert.True(t, app.Logger.Enabled(context.Background(), -4))
}

func TestApplyFlagsDebugEnv(t *testing.T) {
	app, _, _ := newTestApp(t)
	t.Setenv(DebugEnv, "true")

	require.NoError(t, app.ApplyFlags())
	assert.Equal(t, 2, app.Hooks.Level())
}

func TestDefaultLoggerQuiet(t *testing.T) {
	app, _, _ := newTestApp(t)
	require.NoError(t, app.ApplyFlags())
	assert.False(t, app.Logger.Enabled(context.Background(), 0))
}

func TestOKWithStatsInJSON(t *testing.T) {
	app, stdout, stderr := newTestApp(t)
	app.Flags.JSON = true
	app.Flags.Stats = true
	require.NoError(t, app.ApplyFlags())

	require.NoError(t, app.OK(map[string]string{"id": "1"}))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	meta, ok := resp["meta"].(map[string]any)
	require.True(t, ok, "meta present")
	assert.Contains(t, meta, "stats")
	assert.Empty(t, stderr.String())
}

func TestErrWithStatsInStyledGoesToStderr(t *testing.T) {
	app, _, stderr := newTestApp(t)
	app.Flags.Styled = true
	app.Flags.Stats = true
	require.NoError(t, app.ApplyFlags())

	require.NoError(t, app.Err(output.ErrUsage("bad")))
	assert.Contains(t, stderr.String(), "Stats:")
}

func TestNoticeGoesToStderrOnlyWhenEnvelopeDropped(t *testing.T) {
	app, stdout, stderr := newTestApp(t)
	app.Flags.JSON = true
	require.NoError(t, app.ApplyFlags())

	require.NoError(t, app.OK(map[string]string{"id": "1"}, app.Notice("favorites failed")))
	assert.Contains(t, stdout.String(), `"notice": "favorites failed"`)
	assert.Empty(t, stderr.String())

	stdout.Reset()
	app.Flags = GlobalFlags{Quiet: true}
	require.NoError(t, app.ApplyFlags())

	require.NoError(t, app.OK(map[string]string{"id": "1"}, app.Notice("favorites failed")))
	assert.NotContains(t, stdout.String(), "notice")
	assert.Equal(t, "warning: favorites failed\n", stderr.String())
}

func TestIsInteractiveFalseForBuffers(t *testing.T) {
	app, _, _ := newTestApp(t)
	assert.False(t, app.IsInteractive())
}

func TestWithAppRoundTrip(t *testing.T) {
	app := &App{}
	ctx := WithApp(context.Background(), app)
	assert.Same(t, app, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}
