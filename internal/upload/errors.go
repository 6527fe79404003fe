package upload

import "fmt"

// UploadError reports that the upload stage as a whole failed.
type UploadError struct {
	Msg string
	Err error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload failed: %s: %v", e.Msg, e.Err)
	}
	return "upload failed: " + e.Msg
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

func uploadErrorf(err error, format string, args ...any) *UploadError {
	return &UploadError{Msg: fmt.Sprintf(format, args...), Err: err}
}

// StatusError is returned for a single attempt that got a response other
// than 200.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status: %d, response: %s", e.StatusCode, e.Body)
}
