package parser

import (
	"io"

	"churn/pkg/records"
)

// Parser turns a raw byte stream into a sequence of named-field records.
// The int result is the number of rows skipped due to parse errors.
type Parser interface {
	Parse(r io.Reader) ([]records.Record, int, error)
}
