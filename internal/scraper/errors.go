package scraper

import (
	"errors"
	"fmt"
	"strings"
)

// FetchReason classifies why a page could not be fetched.
type FetchReason string

// Supported fetch failure reasons.
const (
	ReasonTimeout    FetchReason = "timeout"
	ReasonHTTPStatus FetchReason = "http_status"
	ReasonNetwork    FetchReason = "network"
)

// FetchError reports a transport level failure for a single URL.
type FetchError struct {
	URL        string
	Reason     FetchReason
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Reason == ReasonHTTPStatus {
		return fmt.Sprintf("fetch %s: %s %d: %v", e.URL, e.Reason, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StructureError means the catalog page no longer has the expected layout.
// It is fatal for a run because no detail URLs can be collected.
type StructureError struct {
	Landmark string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("catalog structure changed: landmark %q not found", e.Landmark)
}

// ExtractionMiss reports a detail page that did not yield a complete record.
type ExtractionMiss struct {
	URL     string
	Missing []string
}

func (e *ExtractionMiss) Error() string {
	return fmt.Sprintf("incomplete record for %s: missing %s", e.URL, strings.Join(e.Missing, ","))
}

// IOError wraps a failure to persist an already extracted record.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ErrIncompleteRecord is returned by sinks handed a record with empty fields.
var ErrIncompleteRecord = errors.New("record is incomplete")

// IsMiss reports whether err is a per-item extraction miss.
func IsMiss(err error) bool {
	var miss *ExtractionMiss
	return errors.As(err, &miss)
}
