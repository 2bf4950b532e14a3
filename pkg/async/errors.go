package async

import (
	"errors"
	"fmt"
	"time"
)

// ErrJobNotFinished signals that a job's result was requested while the
// job was still running. It is a local, immediate signal: no polling or
// network retry is implied.
var ErrJobNotFinished = errors.New("job is not finished yet")

// UnexpectedResponseError reports a poll response that is neither a 200
// status document nor a 303 redirect. It is fatal to the resolve call
// and is never retried at this layer.
type UnexpectedResponseError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected response from %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// OperationFailedError reports that the platform marked the tracked
// operation as failed or aborted. Body carries the full status payload
// for diagnostics.
type OperationFailedError struct {
	URL    string
	Status Status
	Body   string
}

func (e *OperationFailedError) Error() string {
	return fmt.Sprintf("operation at %s did not complete successfully: status %q: %s", e.URL, e.Status.Status, e.Body)
}

// TimeoutError reports that the wait budget elapsed while the operation
// was still pending. Distinguishable from OperationFailedError so callers
// can decide whether retrying with a larger budget makes sense.
type TimeoutError struct {
	URL            string
	MaxWait        time.Duration
	LastStatusCode int
	LastBody       string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation at %s did not resolve within %s: last status %d: %s", e.URL, e.MaxWait, e.LastStatusCode, e.LastBody)
}
