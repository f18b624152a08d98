package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/millsync/internal/job"
	"github.com/roach88/millsync/internal/ledger"
	"github.com/roach88/millsync/internal/timefmt"
)

var kst = time.FixedZone("KST", 9*60*60)

type recorded struct {
	method    string
	path      string
	userAgent string
	body      map[string]any
}

func newServer(t *testing.T, status int, response string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, userAgent: r.UserAgent()}
		if r.Body != nil {
			data, _ := io.ReadAll(r.Body)
			if len(data) > 0 {
				assert.NoError(t, json.Unmarshal(data, &rec.body))
			}
		}
		calls = append(calls, rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newClient(srv *httptest.Server) *Client {
	return NewClient(Endpoints{
		List:   srv.URL + "/orders",
		Create: srv.URL + "/orders/create",
		Update: srv.URL + "/orders/update",
	}, WithLocation(kst), WithUserAgent("millsync-test"), WithTimeout(2*time.Second))
}

func TestList(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `{
		"success": true,
		"message": "ok",
		"data": [
			{"orderCode": "A-1", "orderer": "Kim", "workStartTime": "2025-01-01 10:00:00", "workEndTime": null, "totalWorkTime": null, "result": "작업중"},
			{"orderCode": 42, "orderer": "Lee", "workStartTime": "2025-01-01 09:00:00", "workEndTime": "2025-01-01 10:00:00", "totalWorkTime": 60, "result": "완료"},
			{"orderCode": "A-3", "orderer": "Park", "workStartTime": "2025-01-01 08:00:00", "workEndTime": "2025-01-01 08:30:00", "result": "실패"},
			{"orderCode": "bad", "orderer": "Choi", "workStartTime": "not a time", "result": "완료"}
		]
	}`)

	orders, err := newClient(srv).List(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 3, "unparseable order is dropped")

	assert.Equal(t, "GET", (*calls)[0].method)
	assert.Equal(t, "millsync-test", (*calls)[0].userAgent)

	assert.Equal(t, "A-1", orders[0].OrderCode)
	assert.Equal(t, ledger.ResultInProgress, orders[0].Result)
	assert.Nil(t, orders[0].WorkEnd)
	assert.Equal(t, "2025-01-01 10:00:00", timefmt.Format(orders[0].WorkStart, kst))

	assert.Equal(t, "42", orders[1].OrderCode)
	assert.Equal(t, ledger.ResultCompleted, orders[1].Result)
	require.NotNil(t, orders[1].TotalMinutes)
	assert.Equal(t, 60, *orders[1].TotalMinutes)

	assert.Equal(t, ledger.ResultCompleted, orders[2].Result, "unknown result falls back to end-time presence")
}

func TestList_SuccessFalseIsRejection(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"success": false, "message": "maintenance", "data": null}`)

	_, err := newClient(srv).List(context.Background())
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.Equal(t, http.StatusOK, StatusCode(err))
	assert.Contains(t, err.Error(), "maintenance")
}

func TestList_Non2xx(t *testing.T) {
	srv, _ := newServer(t, http.StatusInternalServerError, `boom`)

	_, err := newClient(srv).List(context.Background())
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.False(t, IsConnectivity(err))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestList_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Endpoints{List: url + "/orders"}, WithTimeout(time.Second))
	_, err := c.List(context.Background())
	require.Error(t, err)
	assert.True(t, IsConnectivity(err))

	ce, ok := asConnectivity(err)
	require.True(t, ok)
	assert.Equal(t, KindRefused, ce.Kind)
	assert.Equal(t, "list", ce.Op)
}

func TestCreate_Payload(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `{"success": true, "message": "created", "data": {"orderCode": "N-1", "orderer": "Kim", "workStartTime": "2025-07-08 07:49:56", "workEndTime": null, "totalWorkTime": null, "result": "작업중"}}`)

	start := time.Date(2025, 7, 8, 7, 49, 56, 0, kst)
	got, err := newClient(srv).Create(context.Background(), ledger.CreateRequest{
		EquipmentModel: "DWX-52D",
		Orderer:        "Kim",
		WorkStart:      start,
		Result:         job.StatusInProgress,
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "N-1", got.OrderCode)
	assert.Equal(t, ledger.ResultInProgress, got.Result)

	body := (*calls)[0].body
	assert.Equal(t, "POST", (*calls)[0].method)
	assert.Equal(t, "/orders/create", (*calls)[0].path)
	assert.Equal(t, "DWX-52D", body["equipmentModel"])
	assert.Equal(t, "2025-07-08 07:49:56", body["workStartTime"])
	assert.Nil(t, body["workEndTime"])
	assert.Nil(t, body["totalWorkTime"])
	assert.Equal(t, WireInProgress, body["result"])
	assert.NotContains(t, body, "error")
}

func TestCreate_FailedJob(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `{"success": true, "message": "created"}`)

	start := time.Date(2025, 1, 1, 10, 0, 0, 0, kst)
	end := start.Add(30 * time.Minute)
	minutes := 30
	got, err := newClient(srv).Create(context.Background(), ledger.CreateRequest{
		Orderer:      "Kim",
		WorkStart:    start,
		WorkEnd:      &end,
		TotalMinutes: &minutes,
		Result:       job.StatusFailed,
		Error:        "E1, E2",
	})
	require.NoError(t, err)
	assert.Nil(t, got, "no order body")

	body := (*calls)[0].body
	assert.Equal(t, WireFailed, body["result"])
	assert.Equal(t, "E1, E2", body["error"])
	assert.Equal(t, "2025-01-01 10:30:00", body["workEndTime"])
	assert.EqualValues(t, 30, body["totalWorkTime"])
}

func TestCreate_PartialEcho(t *testing.T) {
	tests := []struct {
		name string
		data string
		code string
	}{
		{"code without identity", `{"orderCode": "A1"}`, "A1"},
		{"missing start time", `{"orderCode": "A1", "orderer": "Kim"}`, "A1"},
		{"offset without colon", `{"orderCode": 77, "orderer": "Kim", "workStartTime": "2025-07-08T07:49:56+0900"}`, "77"},
		{"wrong field type", `{"orderCode": "A2", "orderer": "Kim", "workStartTime": "2025-07-08 07:49:56", "totalWorkTime": "sixty"}`, "A2"},
		{"nothing usable", `{"orderer": "Kim"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := newServer(t, http.StatusOK, `{"success": true, "message": "created", "data": `+tt.data+`}`)

			got, err := newClient(srv).Create(context.Background(), ledger.CreateRequest{
				Orderer:   "Kim",
				WorkStart: time.Date(2025, 7, 8, 7, 49, 56, 0, kst),
				Result:    job.StatusInProgress,
			})
			require.NoError(t, err, "accepted create must not fail on its echo")
			require.Len(t, *calls, 1)
			if tt.code == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.code, got.OrderCode)
			assert.Empty(t, got.Orderer)
			assert.True(t, got.WorkStart.IsZero())
		})
	}
}

func TestUpdate_Payload(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `{"success": true, "message": "updated", "data": {}}`)

	start := time.Date(2025, 1, 1, 10, 0, 0, 0, kst)
	minutes := 60
	got, err := newClient(srv).Update(context.Background(), ledger.UpdateRequest{
		Orderer:      "Kim",
		WorkStart:    start,
		WorkEnd:      start.Add(time.Hour),
		TotalMinutes: &minutes,
	})
	require.NoError(t, err)
	assert.Nil(t, got)

	body := (*calls)[0].body
	assert.Equal(t, "/orders/update", (*calls)[0].path)
	assert.Equal(t, WireCompleted, body["result"])
	assert.Equal(t, "2025-01-01 10:00:00", body["workStartTime"])
	assert.Equal(t, "2025-01-01 11:00:00", body["workEndTime"])
	assert.EqualValues(t, 60, body["totalWorkTime"])
}

func TestUpdate_Rejected(t *testing.T) {
	srv, _ := newServer(t, http.StatusNotFound, `{"success": false, "message": "order not found"}`)

	_, err := newClient(srv).Update(context.Background(), ledger.UpdateRequest{Orderer: "Kim"})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.Contains(t, err.Error(), "order not found")
}

func TestHealth(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `{"success": true, "message": "ok", "data": []}`)

	results := newClient(srv).Health(context.Background(), false)
	require.Len(t, results, 1)
	assert.True(t, results[0].OK)
	assert.Len(t, *calls, 1)

	results = newClient(srv).Health(context.Background(), true)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.OK, r.Endpoint)
	}
	assert.Equal(t, HealthCheckOrderer, (*calls)[2].body["orderer"])
	assert.Equal(t, "2025-01-01 00:00:00", (*calls)[2].body["workStartTime"])
	assert.Equal(t, "2025-01-01 01:00:00", (*calls)[3].body["workEndTime"])
}

func TestHealth_Failure(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadGateway, `down`)

	results := newClient(srv).Health(context.Background(), false)
	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.Equal(t, http.StatusBadGateway, results[0].StatusCode)
	assert.NotEmpty(t, results[0].Error)
}

func TestParseResult(t *testing.T) {
	end := time.Now()
	assert.Equal(t, ledger.ResultInProgress, ParseResult(WireInProgress, &end))
	assert.Equal(t, ledger.ResultCompleted, ParseResult(WireCompleted, nil))
	assert.Equal(t, ledger.ResultInProgress, ParseResult("", nil))
	assert.Equal(t, ledger.ResultCompleted, ParseResult(WireFailed, &end))
}

func TestDryRun(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, `{"success": true, "data": []}`)
	d := DryRun{Lister: newClient(srv)}

	_, err := d.List(context.Background())
	require.NoError(t, err)

	got, err := d.Create(context.Background(), ledger.CreateRequest{Orderer: "Kim"})
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = d.Update(context.Background(), ledger.UpdateRequest{Orderer: "Kim"})
	require.NoError(t, err)

	assert.Len(t, *calls, 1, "only the listing reaches the server")
}
