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

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp Response
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(CodeConfig, "invalid config", nil)
	require.NoError(t, err)

	var resp Response
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, CodeConfig, resp.Error.Code)
	assert.Equal(t, "invalid config", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"path": "api.list_url"}
	err := formatter.Error(CodeConfig, "invalid config", details)
	require.NoError(t, err)

	var resp Response
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("millsync dev")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "millsync dev")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Error(CodeScan, "source directory unreadable", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [SCAN]")
	assert.Contains(t, buf.String(), "source directory unreadable")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	err := formatter.Error(CodeConfig, "invalid config", map[string]string{"path": "location"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [CONFIG]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_SuccessRun(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.SuccessRun("run-1", map[string]int{"created": 2}))

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
}

func TestOutputFormatter_ErrOut(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	assert.Same(t, out, (&OutputFormatter{Writer: out}).ErrOut())
	assert.Same(t, errOut, (&OutputFormatter{Writer: out, ErrWriter: errOut}).ErrOut())
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"exit error", NewExitError(ExitFailure, "failures"), ExitFailure},
		{"wrapped", fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "config", errors.New("bad"))), ExitCommandError},
		{"plain", errors.New("unknown flag"), ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError_Message(t *testing.T) {
	err := WrapExitError(ExitCommandError, "failed to load config", errors.New("no such file"))
	assert.Equal(t, "failed to load config: no such file", err.Error())
	assert.Equal(t, "plain", NewExitError(ExitFailure, "plain").Error())
}
