package scanning

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// Stage identifies which pipeline stage produced a failure.
type Stage string

const (
	StageTranscribe Stage = "transcribe"
	StageStructure  Stage = "structure"
)

// ErrNoImage is returned when a scan is invoked without image data.
var ErrNoImage = errors.New("no image provided")

// ServiceUnavailableError means the hosted model reported overload or
// unavailability at one of the stages. Callers should suggest retrying
// shortly.
type ServiceUnavailableError struct {
	Stage Stage
	Err   error
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("the scanning service is overloaded or unavailable, please try again shortly (%s stage): %v", e.Stage, e.Err)
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Err }

// ExtractionError means a stage returned no usable output or failed
// validation. The stage name and underlying error are kept for diagnostics.
type ExtractionError struct {
	Stage Stage
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting receipt data failed (%s stage): %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// classifyStageError wraps a stage failure in the pipeline error taxonomy.
// Structured status codes are checked first; the substring match is only a
// fallback for providers that return bare error strings.
func classifyStageError(stage Stage, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusServiceUnavailable || apiErr.Code == http.StatusTooManyRequests {
			return &ServiceUnavailableError{Stage: stage, Err: err}
		}
		return &ExtractionError{Stage: stage, Err: err}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "503") || strings.Contains(msg, "overloaded") || strings.Contains(msg, "unavailable") {
		return &ServiceUnavailableError{Stage: stage, Err: err}
	}
	return &ExtractionError{Stage: stage, Err: err}
}
