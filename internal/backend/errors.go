package backend

import (
	"errors"
	"fmt"
)

// ErrRateLimited indicates the analyzer returned a rate-limit error. Callers
// should surface a 30-60s retry-after hint; the client never retries itself.
var ErrRateLimited = errors.New("analyzer traffic limit reached; wait 30-60s before the next scan")

// ErrAnalysisTimeout indicates the scan request exceeded its deadline and
// the in-flight request was cancelled.
var ErrAnalysisTimeout = errors.New("document analysis timed out")

// AnalysisError is a structured analyzer failure with a user-visible message.
type AnalysisError struct {
	Message string
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed: %s", e.Message)
}
