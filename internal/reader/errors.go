package reader

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Fatal error codes (E001-E099). Everything else that goes wrong while a
// record is translated is recorded on the record as a record.FieldError.
const (
	ErrInvalidBlob     = "E001" // nil, empty or unreadable blob
	ErrInvalidOutput   = "E002" // nil output factory or factory returned nil
	ErrUnknownFormat   = "E003" // no preparer for the requested input format
	ErrModelResolution = "E004" // the requested models do not resolve
)

// ReaderError aborts a translation before any field is processed.
type ReaderError struct {
	Code    string
	Message string
	Err     error
}

func (e *ReaderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ReaderError) Unwrap() error {
	return e.Err
}

// IsReaderError returns the *ReaderError in err's chain.
func IsReaderError(err error) (*ReaderError, bool) {
	var re *ReaderError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

func readerError(code, msg string, err error) *ReaderError {
	return &ReaderError{Code: code, Message: msg, Err: err}
}
