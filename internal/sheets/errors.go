package sheets

import (
	"errors"
	"fmt"
)

// ErrShareUnconfigured is returned by Open when creation is requested
// but no grantee is configured: a freshly created spreadsheet would be
// private to the service account and unreachable by anyone else.
var ErrShareUnconfigured = errors.New("creating spreadsheets is not possible without a configured share-with grantee")

type (
	// NotFoundError reports a spreadsheet title that is not visible to
	// the authenticated identity.
	NotFoundError struct {
		Title          string
		ServiceAccount string
	}

	// WorksheetError reports a worksheet ordinal outside the
	// spreadsheet's range.
	WorksheetError struct {
		Worksheet int
		Count     int
	}
)

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("spreadsheet %q not found. Try sharing the spreadsheet with %s", e.Title, e.ServiceAccount)
}

func (e *WorksheetError) Error() string {
	if e.Worksheet < 1 {
		return fmt.Sprintf("worksheet number %d is invalid: worksheets are numbered from 1", e.Worksheet)
	}
	return fmt.Sprintf("worksheet %d does not exist: spreadsheet has %d worksheets", e.Worksheet, e.Count)
}
