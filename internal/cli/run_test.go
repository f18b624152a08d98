package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/roach88/millsync/internal/journal"
	"github.com/roach88/millsync/internal/reconcile"
	"github.com/roach88/millsync/internal/testutil"
)

const odlogFixture = `FIle Open :kim_crown.nc
Auto START : (2025 / 03 / 04)- 09 : 14 : 36
WORK END : (2025 / 03 / 04)- 09 : 58 : 06
FIle Open :lee_bridge.nc
Auto START : (2025 / 03 / 04)- 10 : 02 : 00
`

type runFixture struct {
	dir     string
	config  string
	journal string
}

// newRunFixture writes a config with odlog enabled on a one-file log
// directory. extraYAML is appended under sources.
func newRunFixture(t *testing.T, extraYAML string) runFixture {
	t.Helper()
	dir := t.TempDir()
	odlogDir := filepath.Join(dir, "odlog")
	require.NoError(t, os.MkdirAll(odlogDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(odlogDir, "20250304"), []byte(odlogFixture), 0o644))

	cfg := `
api:
  list_url: http://127.0.0.1:1/list
  create_url: http://127.0.0.1:1/create
  update_url: http://127.0.0.1:1/update
location: UTC
sources:
  odlog:
    enabled: true
    dir: ` + odlogDir + `
    cooldown: 1ms
` + extraYAML
	path := filepath.Join(dir, "millsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return runFixture{dir: dir, config: path, journal: filepath.Join(dir, "journal.db")}
}

func executeRun(t *testing.T, fx runFixture, gw reconcile.Gateway, format string, args ...string) (string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: format, Config: fx.config},
		Gateway:     gw,
	}
	cmd := newRunCommand(opts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRun_CreatesThenSkips(t *testing.T) {
	fx := newRunFixture(t, "")
	gw := &testutil.FakeGateway{}

	out, err := executeRun(t, fx, gw, "text", "--journal", fx.journal)
	require.NoError(t, err)
	assert.Contains(t, out, "  created      2\n")
	assert.Equal(t, []string{"list", "create", "create"}, gw.Ops())

	// The same logs against the now-populated ledger change nothing.
	out, err = executeRun(t, fx, gw, "text", "--journal", fx.journal)
	require.NoError(t, err)
	assert.Contains(t, out, "  skipped      2\n")
	assert.Equal(t, 2, gw.Mutations())

	j, err := journal.Open(fx.journal)
	require.NoError(t, err)
	defer j.Close()
	runs, err := j.Runs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[1].Created)
	assert.Equal(t, 2, runs[0].Skipped)
}

func TestRun_JSON(t *testing.T) {
	fx := newRunFixture(t, "")
	out, err := executeRun(t, fx, &testutil.FakeGateway{}, "json")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		RunID  string            `json:"run_id"`
		Data   reconcile.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, 2, resp.Data.Created)
	assert.Equal(t, 2, resp.Data.Jobs)
}

func TestRun_DryRunSendsNoMutations(t *testing.T) {
	fx := newRunFixture(t, "")
	gw := &testutil.FakeGateway{}

	out, err := executeRun(t, fx, gw, "text", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "(dry run)")
	assert.Contains(t, out, "  created      2\n")
	assert.Equal(t, []string{"list"}, gw.Ops())
}

func TestRun_DegradedLedgerStillCreates(t *testing.T) {
	fx := newRunFixture(t, "")
	gw := &testutil.FakeGateway{ListErr: errors.New("connection refused")}

	out, err := executeRun(t, fx, gw, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "empty ledger (connection refused)")
	assert.Equal(t, 2, gw.Mutations())
}

func TestRun_StrictFailures(t *testing.T) {
	fx := newRunFixture(t, "")
	gw := &testutil.FakeGateway{CreateErr: errors.New("HTTP 500")}

	_, err := executeRun(t, fx, gw, "text")
	require.NoError(t, err, "failures alone do not fail the command")

	_, err = executeRun(t, fx, &testutil.FakeGateway{CreateErr: errors.New("HTTP 500")}, "text", "--strict")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "2 failed jobs")
}

func TestRun_UnreadableSourceIsCommandError(t *testing.T) {
	fx := newRunFixture(t, "  xml:\n    enabled: true\n    dir: /nonexistent/millsync/xml\n")
	gw := &testutil.FakeGateway{}

	_, err := executeRun(t, fx, gw, "text")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, reconcile.IsScanError(err))
}

func TestRun_SourceSelection(t *testing.T) {
	fx := newRunFixture(t, "")

	_, err := executeRun(t, fx, &testutil.FakeGateway{}, "text", "--source", "dwx")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "not enabled")

	_, err = executeRun(t, fx, &testutil.FakeGateway{}, "text", "--source", "laser")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --source")

	gw := &testutil.FakeGateway{}
	_, err = executeRun(t, fx, gw, "text", "--source", "odlog")
	require.NoError(t, err)
	assert.Equal(t, 2, gw.Mutations())
}

func TestRun_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("location: UTC\n"), 0o644))

	_, err := executeRun(t, runFixture{config: path}, &testutil.FakeGateway{}, "text")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestRun_XLSXExport(t *testing.T) {
	fx := newRunFixture(t, "")
	path := filepath.Join(fx.dir, "outcomes.xlsx")

	_, err := executeRun(t, fx, &testutil.FakeGateway{}, "text", "--xlsx", path)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Outcomes")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
