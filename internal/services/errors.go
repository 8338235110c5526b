package services

import (
	"fmt"
	"strings"
)

// SchemaError reports a sheet whose layout cannot be ingested: missing
// required columns, an unknown payment direction, or no data rows at
// all. It aborts the whole batch.
type SchemaError struct {
	File    string
	Sheet   string
	Missing []string
	Detail  string
}

func (e *SchemaError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("file %s sheet %q: missing required columns: %s", e.File, e.Sheet, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("file %s sheet %q: %s", e.File, e.Sheet, e.Detail)
}

// DateParseError reports a delivery-date value that none of the
// configured formats accept. It aborts the whole batch.
type DateParseError struct {
	File  string
	Sheet string
	Value string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("file %s sheet %q: unparsable delivery date %q", e.File, e.Sheet, e.Value)
}
