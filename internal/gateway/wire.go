package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/millsync/internal/job"
	"github.com/roach88/millsync/internal/ledger"
	"github.com/roach88/millsync/internal/timefmt"
)

// Remote result vocabulary.
const (
	WireInProgress = "작업중"
	WireCompleted  = "완료"
	WireFailed     = "실패"
)

// envelope wraps every API response.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// code accepts an order code sent as either a JSON string or number.
type code string

func (c *code) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = code(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("order code: %w", err)
	}
	*c = code(n.String())
	return nil
}

// wireOrder is the JSON shape of an order.
type wireOrder struct {
	OrderCode      code    `json:"orderCode,omitempty"`
	EquipmentModel string  `json:"equipmentModel,omitempty"`
	Orderer        string  `json:"orderer"`
	WorkStartTime  string  `json:"workStartTime"`
	WorkEndTime    *string `json:"workEndTime"`
	TotalWorkTime  *int    `json:"totalWorkTime"`
	Result         string  `json:"result"`
	Error          string  `json:"error,omitempty"`
}

type createPayload struct {
	EquipmentModel string  `json:"equipmentModel"`
	Orderer        string  `json:"orderer"`
	WorkStartTime  string  `json:"workStartTime"`
	WorkEndTime    *string `json:"workEndTime"`
	TotalWorkTime  *int    `json:"totalWorkTime"`
	Result         string  `json:"result"`
	Error          string  `json:"error,omitempty"`
}

type updatePayload struct {
	Orderer       string `json:"orderer"`
	WorkStartTime string `json:"workStartTime"`
	Result        string `json:"result"`
	WorkEndTime   string `json:"workEndTime"`
	TotalWorkTime *int   `json:"totalWorkTime"`
	Error         string `json:"error,omitempty"`
}

// WireStatus maps a job status onto the remote result vocabulary.
func WireStatus(s job.Status) string {
	switch s {
	case job.StatusInProgress:
		return WireInProgress
	case job.StatusCompleted:
		return WireCompleted
	default:
		return WireFailed
	}
}

// ParseResult classifies a remote result string. Unknown values fall back
// to end-time presence.
func ParseResult(s string, end *time.Time) ledger.Result {
	switch s {
	case WireInProgress:
		return ledger.ResultInProgress
	case WireCompleted:
		return ledger.ResultCompleted
	default:
		return ledger.ResultFromEnd(end)
	}
}

func (w wireOrder) toOrder(loc *time.Location) (ledger.Order, error) {
	start, err := timefmt.ParseRemote(w.WorkStartTime, loc)
	if err != nil {
		return ledger.Order{}, fmt.Errorf("order %q workStartTime: %w", w.OrderCode, err)
	}
	var end *time.Time
	if w.WorkEndTime != nil && *w.WorkEndTime != "" {
		t, err := timefmt.ParseRemote(*w.WorkEndTime, loc)
		if err != nil {
			return ledger.Order{}, fmt.Errorf("order %q workEndTime: %w", w.OrderCode, err)
		}
		end = &t
	}
	return ledger.Order{
		OrderCode:      string(w.OrderCode),
		EquipmentModel: w.EquipmentModel,
		Orderer:        w.Orderer,
		WorkStart:      start,
		WorkEnd:        end,
		TotalMinutes:   w.TotalWorkTime,
		Result:         ParseResult(w.Result, end),
		Error:          w.Error,
	}, nil
}

func newCreatePayload(r ledger.CreateRequest, loc *time.Location) createPayload {
	p := createPayload{
		EquipmentModel: r.EquipmentModel,
		Orderer:        r.Orderer,
		WorkStartTime:  timefmt.Format(r.WorkStart, loc),
		TotalWorkTime:  r.TotalMinutes,
		Result:         WireStatus(r.Result),
		Error:          r.Error,
	}
	if r.WorkEnd != nil {
		s := timefmt.Format(*r.WorkEnd, loc)
		p.WorkEndTime = &s
	}
	return p
}

func newUpdatePayload(r ledger.UpdateRequest, loc *time.Location) updatePayload {
	return updatePayload{
		Orderer:       r.Orderer,
		WorkStartTime: timefmt.Format(r.WorkStart, loc),
		Result:        WireCompleted,
		WorkEndTime:   timefmt.Format(r.WorkEnd, loc),
		TotalWorkTime: r.TotalMinutes,
		Error:         r.Error,
	}
}

// decodeOrder decodes an optional order body. A null, empty or non-object
// body yields nil without error. A body with a code but no identity
// yields an order carrying only the code.
func decodeOrder(raw json.RawMessage, loc *time.Location) (*ledger.Order, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil
	}
	var w wireOrder
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	if w.Orderer == "" && w.WorkStartTime == "" {
		if w.OrderCode == "" {
			return nil, nil
		}
		return &ledger.Order{OrderCode: string(w.OrderCode)}, nil
	}
	o, err := w.toOrder(loc)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// echoedCode extracts just the order code from an order body.
func echoedCode(raw json.RawMessage) string {
	var w struct {
		OrderCode code `json:"orderCode"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(raw), &w); err != nil {
		return ""
	}
	return string(w.OrderCode)
}

func formatMinutes(n *int) string {
	if n == nil {
		return "null"
	}
	return strconv.Itoa(*n)
}
