package retrieval

import (
	"github.com/jmgilman/go/errors"
)

// Error kinds surfaced by Retrieve, expressed as platform error codes so they
// survive fmt.Errorf wrapping.
const (
	CodeValidation = errors.CodeInvalidInput
	CodeStore      = errors.CodeDatabase
	CodeOrigin     = errors.CodeNetwork
	CodeTimeout    = errors.CodeTimeout
)

// ValidationError reports caller input the normalizer rejected.
func ValidationError(msg string) errors.PlatformError {
	return errors.New(CodeValidation, msg)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	return errors.GetCode(err) == CodeValidation
}

// IsStoreError reports whether err came from the cache store.
func IsStoreError(err error) bool {
	return errors.GetCode(err) == CodeStore
}

// IsOriginError reports whether err came from the origin API, including timeouts.
func IsOriginError(err error) bool {
	switch errors.GetCode(err) {
	case CodeOrigin, CodeTimeout:
		return true
	}
	return false
}

// Message returns the human-readable part of err without the code prefix.
func Message(err error) string {
	var pe errors.PlatformError
	if errors.As(err, &pe) {
		return pe.Message()
	}
	return err.Error()
}
