// Package parsererror defines the error types surfaced by the format parsers.
// A parser error aborts an import before any row is written; row-level
// problems are handled inside the parsers and never reach this package.
package parsererror

import (
	"fmt"
	"strings"
)

// ParseError represents a failure to parse a specific field or document.
type ParseError struct {
	Parser string
	Field  string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: failed to parse %s='%s': %v",
		e.Parser, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// InvalidFormatError represents an input file that does not conform to the
// format the parser expects. The import orchestrator marks the file failed.
type InvalidFormatError struct {
	Filename       string
	ExpectedFormat string
	Msg            string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid format in file '%s': %s. Expected: %s",
		e.Filename, e.Msg, e.ExpectedFormat)
}

// MissingColumnError represents a CSV mapping whose required logical field
// could not be resolved to any physical column. The available headers are
// included so the operator can fix the mapping.
type MissingColumnError struct {
	Field            string
	MappedColumn     string
	AvailableHeaders []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("required column for '%s' not found (mapped to '%s'); available headers: %s",
		e.Field, e.MappedColumn, strings.Join(e.AvailableHeaders, ", "))
}
