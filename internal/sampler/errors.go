package sampler

import "fmt"

// ExtractionError reports that the sampling stage as a whole produced no
// usable output.
type ExtractionError struct {
	Msg string
	Err error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("frame extraction failed: %s: %v", e.Msg, e.Err)
	}
	return "frame extraction failed: " + e.Msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func extractionErrorf(err error, format string, args ...any) *ExtractionError {
	return &ExtractionError{Msg: fmt.Sprintf(format, args...), Err: err}
}
