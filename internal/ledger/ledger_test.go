package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/millsync/internal/job"
)

var base = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

func order(code, orderer string, result Result) Order {
	return Order{OrderCode: code, Orderer: orderer, WorkStart: base, Result: result}
}

func codes(l Ledger) []string {
	var out []string
	for _, o := range l.Orders() {
		out = append(out, o.OrderCode)
	}
	return out
}

func TestNew_InProgressFirst(t *testing.T) {
	l := New([]Order{
		order("c1", "a", ResultCompleted),
		order("p1", "b", ResultInProgress),
		order("c2", "c", ResultCompleted),
		order("p2", "d", ResultInProgress),
	})
	assert.Equal(t, []string{"p1", "p2", "c1", "c2"}, codes(l))

	inProgress, completed := l.Counts()
	assert.Equal(t, 2, inProgress)
	assert.Equal(t, 2, completed)
}

func TestInsert(t *testing.T) {
	l := New([]Order{order("p1", "a", ResultInProgress), order("c1", "b", ResultCompleted)})

	t.Run("in progress is prepended", func(t *testing.T) {
		got := l.Insert(order("p2", "c", ResultInProgress))
		assert.Equal(t, []string{"p2", "p1", "c1"}, codes(got))
	})

	t.Run("completed is appended", func(t *testing.T) {
		got := l.Insert(order("c2", "c", ResultCompleted))
		assert.Equal(t, []string{"p1", "c1", "c2"}, codes(got))
	})

	t.Run("receiver untouched", func(t *testing.T) {
		_ = l.Insert(order("x", "c", ResultInProgress))
		assert.Equal(t, []string{"p1", "c1"}, codes(l))
	})
}

func TestReplace_KeepsSlot(t *testing.T) {
	l := New([]Order{
		order("p1", "a", ResultInProgress),
		order("p2", "b", ResultInProgress),
		order("c1", "c", ResultCompleted),
	})
	end := base.Add(time.Hour)
	minutes := 60
	updated := UpdateRequest{Orderer: "b", WorkStart: base, WorkEnd: end, TotalMinutes: &minutes}.Apply(l.At(1))

	got, err := l.Replace(1, updated)
	require.NoError(t, err)

	assert.Equal(t, []string{"p1", "p2", "c1"}, codes(got))
	assert.Equal(t, ResultCompleted, got.At(1).Result)
	assert.Equal(t, ResultInProgress, l.At(1).Result, "receiver must not change")

	_, err = l.Replace(3, updated)
	assert.Error(t, err)
}

func TestCreateRequest_Order(t *testing.T) {
	end := base.Add(time.Hour)
	req := CreateRequest{Orderer: "Kim", WorkStart: base, WorkEnd: &end, Result: job.StatusFailed, Error: "E1"}
	o := req.Order()
	assert.Equal(t, ResultCompleted, o.Result, "failed jobs are completed by end-time presence")
	assert.Equal(t, "E1", o.Error)
	assert.Empty(t, o.OrderCode)

	req = CreateRequest{Orderer: "Lee", WorkStart: base, Result: job.StatusInProgress}
	assert.Equal(t, ResultInProgress, req.Order().Result)
}

func TestUpdateRequest_Apply(t *testing.T) {
	o := order("p1", "Kim", ResultInProgress)
	o.Error = "old"
	end := base.Add(time.Hour)

	got := UpdateRequest{Orderer: "Kim", WorkStart: base, WorkEnd: end}.Apply(o)
	assert.Equal(t, "p1", got.OrderCode)
	assert.Equal(t, ResultCompleted, got.Result)
	require.NotNil(t, got.WorkEnd)
	assert.True(t, end.Equal(*got.WorkEnd))
	assert.Nil(t, got.TotalMinutes)
	assert.Equal(t, "old", got.Error)
}
