package sheets

import (
	"context"

	"sheetlink/internal/core"
)

// Spreadsheet is a handle to a remote spreadsheet resource. It is
// fetched or created per call and owned by the caller, not the
// connector.
type Spreadsheet struct {
	ID    string
	Title string
}

// Ports for spreadsheet adapters. Worksheet numbers are 1-based
// everywhere in this interface; adapters perform whatever index shift
// their backend needs.
type (
	Opener interface {
		// Open returns the spreadsheet with the given title. When
		// create is true and no such spreadsheet exists, a new one is
		// created and shared with the adapter's configured grantee.
		Open(ctx context.Context, title string, create bool) (Spreadsheet, error)
	}

	TableWriter interface {
		// Write overwrites the worksheet's top-left rectangle with the
		// table, header row first.
		Write(ctx context.Context, sheet Spreadsheet, t core.Table, worksheet int) error
	}

	TableReader interface {
		// Read returns the worksheet as a table, treating row 1 as the
		// header row. A non-nil types map validates the named columns.
		Read(ctx context.Context, sheet Spreadsheet, worksheet int, types map[string]core.Kind) (core.Table, error)
	}

	WorksheetCounter interface {
		// Worksheets returns the number of worksheets in the spreadsheet.
		Worksheets(ctx context.Context, sheet Spreadsheet) (int, error)
	}

	// Connector is the full surface the services layer works against.
	Connector interface {
		Opener
		TableWriter
		TableReader
		WorksheetCounter
	}
)
