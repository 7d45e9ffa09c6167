package imagejob

import (
	"encoding/json"
	"fmt"
	"time"
)

// SubmissionError reports a rejected job submission. The raw response body is
// kept for diagnostics.
type SubmissionError struct {
	Status int
	Body   string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("job submission rejected: status=%d body=%s", e.Status, e.Body)
}

// TransportError reports a non-2xx response on a poll request. It aborts the
// poll loop immediately: a broken token never recovers by waiting.
type TransportError struct {
	Op     string
	Status int
	Body   string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s poll request failed: status=%d body=%s", e.Op, e.Status, e.Body)
}

// TimeoutError reports attempt exhaustion with no terminal status observed.
type TimeoutError struct {
	Op       string
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s polling timed out after %d attempts (%s)", e.Op, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

// FailedError reports a job that reached the failed state, carrying the
// service's error detail verbatim.
type FailedError struct {
	Op     string
	Errors json.RawMessage
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%s job failed: %s", e.Op, string(e.Errors))
}
