package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFormatter(format string, verbose bool) (*OutputFormatter, *bytes.Buffer, *bytes.Buffer) {
	var out, diag bytes.Buffer
	return &OutputFormatter{Format: format, Writer: &out, ErrWriter: &diag, Verbose: verbose}, &out, &diag
}

func decodeResponse(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func TestFormatterSuccess(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		f, out, _ := testFormatter("json", false)
		require.NoError(t, f.Success(map[string]int{"fields": 2}))

		resp := decodeResponse(t, out.Bytes())
		assert.Equal(t, StatusOK, resp["status"])
		assert.Equal(t, map[string]any{"fields": float64(2)}, resp["data"])
		assert.NotContains(t, resp, "error")
		assert.Contains(t, out.String(), "\n  \"status\"", "response is indented")
	})

	t.Run("text", func(t *testing.T) {
		f, out, _ := testFormatter("text", false)
		require.NoError(t, f.Success("2 fields"))
		assert.Equal(t, "2 fields\n", out.String())
	})
}

func TestFormatterFailure(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		f, out, _ := testFormatter("json", false)
		require.NoError(t, f.Failure([]string{"a"}, "E_TEST_FAILED", "1 scenario(s) failed"))

		resp := decodeResponse(t, out.Bytes())
		assert.Equal(t, StatusError, resp["status"])
		assert.Equal(t, []any{"a"}, resp["data"])
		assert.Equal(t, map[string]any{"code": "E_TEST_FAILED", "message": "1 scenario(s) failed"}, resp["error"])
	})

	t.Run("text writes nothing", func(t *testing.T) {
		f, out, diag := testFormatter("text", true)
		require.NoError(t, f.Failure([]string{"a"}, "E_TEST_FAILED", "failed"))
		assert.Empty(t, out.String())
		assert.Empty(t, diag.String())
	})
}

func TestFormatterError(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		f, out, _ := testFormatter("json", false)
		require.NoError(t, f.Error("E001", "bad config", map[string]string{"file": "fields.cue"}))

		resp := decodeResponse(t, out.Bytes())
		assert.Equal(t, StatusError, resp["status"])
		assert.NotContains(t, resp, "data")
		assert.Equal(t, map[string]any{
			"code":    "E001",
			"message": "bad config",
			"details": map[string]any{"file": "fields.cue"},
		}, resp["error"])
	})

	t.Run("text", func(t *testing.T) {
		f, out, _ := testFormatter("text", false)
		require.NoError(t, f.Error("E001", "bad config", "fields.cue:3"))
		assert.Equal(t, "Error [E001]: bad config\n", out.String())
	})

	t.Run("text verbose shows details", func(t *testing.T) {
		f, out, _ := testFormatter("text", true)
		require.NoError(t, f.Error("E001", "bad config", "fields.cue:3"))
		assert.Equal(t, "Error [E001]: bad config\nDetails: fields.cue:3\n", out.String())
	})
}

func TestFormatterVerboseLog(t *testing.T) {
	f, out, diag := testFormatter("json", true)
	f.VerboseLog("loading %s", "config")
	assert.Empty(t, out.String())
	assert.Equal(t, "loading config\n", diag.String())

	quiet, out, diag := testFormatter("text", false)
	quiet.VerboseLog("loading %s", "config")
	assert.Empty(t, out.String())
	assert.Empty(t, diag.String())

	var buf bytes.Buffer
	noDiag := &OutputFormatter{Format: "text", Writer: &buf, Verbose: true}
	noDiag.VerboseLog("fallback")
	assert.Equal(t, "fallback\n", buf.String())
}

func TestGetExitCode(t *testing.T) {
	cause := errors.New("disk full")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"exit error", NewExitError(ExitCommandError, "no journal"), ExitCommandError},
		{"wrapped exit error", fmt.Errorf("trace: %w", NewExitError(ExitFailure, "conflict")), ExitFailure},
		{"plain error", cause, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError(t *testing.T) {
	cause := errors.New("disk full")

	wrapped := WrapExitError(ExitCommandError, "failed to open database", cause)
	assert.Equal(t, "failed to open database: disk full", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)

	bare := NewExitError(ExitFailure, "1 scenario(s) failed")
	assert.Equal(t, "1 scenario(s) failed", bare.Error())
	assert.Nil(t, bare.Unwrap())
}
