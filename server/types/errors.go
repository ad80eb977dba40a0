package types

import (
	"fmt"
	"strings"

	"github.com/gear6io/dataagent/pkg/errors"
)

// Error kinds shared by the registry and every driver
var (
	ErrSourceNotFound   = errors.MustNewCode("source.not_found")
	ErrSourceValidation = errors.MustNewCode("source.validation")
	ErrFetchFailed      = errors.MustNewCode("source.fetch_failed")
	ErrChartInvalid     = errors.MustNewCode("chart.invalid")
	ErrTransformInvalid = errors.MustNewCode("transform.invalid")
)

// NewSourceNotFound reports an unknown source name together with what is available
func NewSourceNotFound(name string, available []string) *errors.Error {
	avail := "none"
	if len(available) > 0 {
		avail = strings.Join(available, ", ")
	}
	return errors.New(ErrSourceNotFound, fmt.Sprintf("Data source '%s' not found. Available: %s", name, avail), nil).
		AddContext("source", name).
		AddContext("available", strings.Join(available, ","))
}

// NewValidation builds a validation error for source; source may be empty
func NewValidation(source, format string, args ...any) *errors.Error {
	err := errors.Newf(ErrSourceValidation, format, args...)
	if source != "" {
		err.AddContext("source", source)
	}
	return err
}

// NewIdentifierRejected reports an identifier that may not reach a query string
func NewIdentifierRejected(source, identifier, reason string) *errors.Error {
	return NewValidation(source, "%s: %q", reason, identifier).AddContext("identifier", identifier)
}

// NewFetch wraps a backend failure during query execution
func NewFetch(source string, cause error, format string, args ...any) *errors.Error {
	err := errors.Wrapf(ErrFetchFailed, cause, format, args...)
	if source != "" {
		err.AddContext("source", source)
	}
	return err
}

// NewChartInvalid reports bad chart parameters
func NewChartInvalid(format string, args ...any) *errors.Error {
	return errors.Newf(ErrChartInvalid, format, args...)
}

// NewTransformInvalid reports bad transform parameters
func NewTransformInvalid(format string, args ...any) *errors.Error {
	return errors.Newf(ErrTransformInvalid, format, args...)
}

// IsNotFound reports whether err is a source-not-found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSourceNotFound)
}

// IsValidation reports whether err is a source validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrSourceValidation)
}

// IsFetch reports whether err is a fetch error
func IsFetch(err error) bool {
	return errors.Is(err, ErrFetchFailed)
}
