package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// GetContext returns the context map of the first coded error in err's chain.
func GetContext(err error) map[string]string {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Context
	}
	return nil
}

// GetCode returns the code of the first coded error in err's chain, or ""
// when err carries no code.
func GetCode(err error) string {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code.String()
	}
	return ""
}

// FormatError renders err as a multi-line description for logs.
func FormatError(err error) string {
	var coded *Error
	if !stderrors.As(err, &coded) {
		return err.Error()
	}

	parts := []string{
		fmt.Sprintf("Code: %s", coded.Code),
		fmt.Sprintf("Message: %s", coded.Message),
	}

	if len(coded.Context) > 0 {
		keys := make([]string, 0, len(coded.Context))
		for k := range coded.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts = append(parts, "Context:")
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("  %s: %s", k, coded.Context[k]))
		}
	}

	if coded.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause: %v", coded.Cause))
	}

	return strings.Join(parts, "\n")
}

// AsError converts any error to the coded format:
//   - InternalError types are transformed using their Transform() method
//   - coded errors anywhere in the chain are returned as-is
//   - anything else is wrapped with the given fallback code
//
// Example:
//
//	if err := src.Fetch(ctx, q); err != nil {
//	    return AsError(err, FetchFailed).AddContext("source", name)
//	}
func AsError(err error, fallback Code) *Error {
	if err == nil {
		return nil
	}

	if ie, ok := err.(InternalError); ok {
		return ie.Transform()
	}

	var coded *Error
	if stderrors.As(err, &coded) {
		return coded
	}

	return New(fallback, err.Error(), err)
}
