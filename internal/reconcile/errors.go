package reconcile

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes reconciliation failures.
type ErrorCode string

const (
	// CodeCreateFailed indicates the remote create call failed.
	CodeCreateFailed ErrorCode = "CREATE_FAILED"

	// CodeUpdateFailed indicates the remote update call failed.
	CodeUpdateFailed ErrorCode = "UPDATE_FAILED"

	// CodeScanFailed indicates a source directory could not be read.
	CodeScanFailed ErrorCode = "SCAN_FAILED"
)

// Error is a failure scoped to one job or one source.
type Error struct {
	Code    ErrorCode
	Source  string
	Orderer string
	Err     error
}

func (e *Error) Error() string {
	if e.Orderer != "" {
		return fmt.Sprintf("%s: %v (source=%s, orderer=%s)", e.Code, e.Err, e.Source, e.Orderer)
	}
	return fmt.Sprintf("%s: %v (source=%s)", e.Code, e.Err, e.Source)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsScanError returns true if err is a source scan failure.
// Scan failures abort the run.
func IsScanError(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == CodeScanFailed
	}
	return false
}
