package ledger

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/millsync/internal/job"
	"github.com/roach88/millsync/internal/timefmt"
)

func TestMatcher_TimeEquality(t *testing.T) {
	tests := []struct {
		name  string
		diff  time.Duration
		match bool
		rule  MatchRule
	}{
		{"identical", 0, true, RuleWindow},
		{"59999ms", 59_999 * time.Millisecond, true, RuleWindow},
		{"60000ms is exclusive", 60_000 * time.Millisecond, false, ""},
		{"exactly 1h", 3_600_000 * time.Millisecond, true, RuleSkew},
		{"exactly 8h", 28_800_000 * time.Millisecond, true, RuleSkew},
		{"exactly 9h", 32_400_000 * time.Millisecond, true, RuleSkew},
		{"8h plus 1ms", 28_800_001 * time.Millisecond, false, ""},
		{"1h minus 1s", time.Hour - time.Second, false, ""},
		{"2h", 2 * time.Hour, false, ""},
	}
	m := Matcher{Skew: FullSkew}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, sign := range []time.Duration{1, -1} {
				l := New([]Order{{OrderCode: "o1", Orderer: "Kim", WorkStart: base.Add(sign * tt.diff), Result: ResultInProgress}})
				got, ok := m.Find(job.Job{Orderer: "Kim", WorkStart: base}, l)
				assert.Equal(t, tt.match, ok, "sign %d", sign)
				if ok {
					assert.Equal(t, tt.rule, got.Rule)
					assert.Equal(t, 0, got.Index)
				}
			}
			_, ok := m.accept(absDiff(base, base.Add(tt.diff)))
			assert.Equal(t, tt.match, ok)
			_, ok = m.accept(absDiff(base.Add(tt.diff), base))
			assert.Equal(t, tt.match, ok, "symmetric")
		})
	}
}

func TestMatcher_SkewIsPerPolicy(t *testing.T) {
	l := New([]Order{{Orderer: "Kim", WorkStart: base.Add(8 * time.Hour), Result: ResultCompleted}})

	_, ok := Matcher{Skew: SkewAllowList{time.Hour, 9 * time.Hour}}.Find(job.Job{Orderer: "Kim", WorkStart: base}, l)
	assert.False(t, ok, "8h is not in this allow-list")

	_, ok = Matcher{}.Find(job.Job{Orderer: "Kim", WorkStart: base}, l)
	assert.False(t, ok, "empty allow-list is window only")
}

func TestMatcher_OrdererMustBeExact(t *testing.T) {
	l := New([]Order{
		{OrderCode: "o1", Orderer: "kim", WorkStart: base, Result: ResultInProgress},
		{OrderCode: "o2", Orderer: "Kim ", WorkStart: base, Result: ResultInProgress},
	})
	_, ok := Matcher{Skew: FullSkew}.Find(job.Job{Orderer: "Kim", WorkStart: base}, l)
	assert.False(t, ok)
}

func TestMatcher_FirstMatchWins(t *testing.T) {
	l := New([]Order{
		{OrderCode: "completed", Orderer: "Kim", WorkStart: base, Result: ResultCompleted},
		{OrderCode: "skewed", Orderer: "Kim", WorkStart: base.Add(time.Hour), Result: ResultInProgress},
		{OrderCode: "other", Orderer: "Lee", WorkStart: base, Result: ResultInProgress},
	})

	got, ok := Matcher{Skew: FullSkew}.Find(job.Job{Orderer: "Kim", WorkStart: base}, l)
	require.True(t, ok)
	assert.Equal(t, "skewed", got.Order.OrderCode, "in-progress prefix is searched first, no best-match ranking")
	assert.Equal(t, RuleSkew, got.Rule)
}

func TestMatcher_UsesTransmittedStart(t *testing.T) {
	// The remote stores offset-suffixed values shifted by -9h.
	l := New([]Order{{OrderCode: "o1", Orderer: "Kim", WorkStart: base.Add(-9 * time.Hour), Result: ResultInProgress}})

	got, ok := Matcher{}.Find(job.Job{Orderer: "Kim", WorkStart: base, Encoding: timefmt.EncodingOffsetSuffixed}, l)
	require.True(t, ok)
	assert.Equal(t, RuleWindow, got.Rule)
	assert.Equal(t, time.Duration(0), got.Diff)
}

func TestMatcher_DebugDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l := New([]Order{{OrderCode: "o1", Orderer: "Kim", WorkStart: base.Add(2 * time.Hour), Result: ResultInProgress}})

	_, ok := Matcher{Skew: FullSkew, Logger: logger}.Find(job.Job{Orderer: "Kim", WorkStart: base}, l)
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "diff_ms=7200000")
	assert.Contains(t, buf.String(), "matched=false")
}
