package corpus

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrSourceNotFound is returned by VectorStore.GetSource for an unknown ID.
// Callers distinguish "new source" from store failure with errors.Is.
var ErrSourceNotFound = errors.New("source not found")

// ErrValidation reports malformed input. It is non-fatal by policy: callers
// log it, fall back to defaults, and continue.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ErrProvider reports an embedding provider failure that survived retry.
type ErrProvider struct {
	Provider string
	Message  string
}

func (e *ErrProvider) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrStoreUnavailable means the vector store could not serve the calling
// operation. It is fatal for that operation and never swallowed into an empty
// result a caller could mistake for "no relevant content".
type ErrStoreUnavailable struct {
	Op  string
	Err error
}

func (e *ErrStoreUnavailable) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *ErrStoreUnavailable) Unwrap() error { return e.Err }

// ErrHTTP carries a non-2xx provider response for the retry middleware.
// RetryAfter is parsed from the Retry-After header when present.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ParseRetryAfter parses a Retry-After header value (delta-seconds or HTTP
// date) into a duration. Returns 0 for empty or unparseable values.
func ParseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
