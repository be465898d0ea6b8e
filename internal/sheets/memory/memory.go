package memory

import (
	"context"
	"fmt"
	"sync"

	"sheetlink/internal/core"
	ports "sheetlink/internal/sheets"
)

// Identity reported in NotFound messages, standing in for the service
// account a real backend would have.
const Identity = "memory@localhost"

type (
	// Store is an in-memory spreadsheet backend with the same indexing
	// semantics as the Google adapter. It backs tests and the offline
	// CLI backend.
	Store struct {
		mu        sync.Mutex
		shareWith string
		nextID    int
		sheets    map[string]*spreadsheet
		grants    map[string][]string
	}

	spreadsheet struct {
		id         string
		title      string
		worksheets [][][]interface{}
	}
)

var _ ports.Connector = (*Store)(nil)

func New(shareWith string) *Store {
	return &Store{
		shareWith: shareWith,
		sheets:    make(map[string]*spreadsheet),
		grants:    make(map[string][]string),
	}
}

// Open implements ports.Opener with the connector's open-or-create
// contract. New spreadsheets start with a single empty worksheet.
func (s *Store) Open(_ context.Context, title string, create bool) (ports.Spreadsheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sheet := range s.sheets {
		if sheet.title == title {
			return ports.Spreadsheet{ID: sheet.id, Title: sheet.title}, nil
		}
	}

	if !create {
		return ports.Spreadsheet{}, &ports.NotFoundError{Title: title, ServiceAccount: Identity}
	}
	if s.shareWith == "" {
		return ports.Spreadsheet{}, ports.ErrShareUnconfigured
	}

	s.nextID++
	sheet := &spreadsheet{
		id:         fmt.Sprintf("mem-%d", s.nextID),
		title:      title,
		worksheets: [][][]interface{}{nil},
	}
	s.sheets[sheet.id] = sheet
	s.grants[sheet.id] = append(s.grants[sheet.id], s.shareWith)
	return ports.Spreadsheet{ID: sheet.id, Title: sheet.title}, nil
}

// Write implements ports.TableWriter.
func (s *Store) Write(_ context.Context, sheet ports.Spreadsheet, t core.Table, worksheet int) error {
	if t.Cols() == 0 {
		return core.ErrEmptyTable
	}
	index, err := ports.WorksheetIndex(worksheet)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sheets[sheet.ID]
	if !ok {
		return &ports.NotFoundError{Title: sheet.Title, ServiceAccount: Identity}
	}
	if index >= len(stored.worksheets) {
		return &ports.WorksheetError{Worksheet: worksheet, Count: len(stored.worksheets)}
	}
	stored.worksheets[index] = ports.ValuesMatrix(t)
	return nil
}

// Read implements ports.TableReader.
func (s *Store) Read(_ context.Context, sheet ports.Spreadsheet, worksheet int, types map[string]core.Kind) (core.Table, error) {
	index, err := ports.WorksheetIndex(worksheet)
	if err != nil {
		return core.Table{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sheets[sheet.ID]
	if !ok {
		return core.Table{}, &ports.NotFoundError{Title: sheet.Title, ServiceAccount: Identity}
	}
	if index >= len(stored.worksheets) {
		return core.Table{}, &ports.WorksheetError{Worksheet: worksheet, Count: len(stored.worksheets)}
	}

	t, err := ports.TableFromValues(stored.worksheets[index])
	if err != nil {
		return core.Table{}, err
	}
	if types != nil {
		if err := t.Cast(types); err != nil {
			return core.Table{}, err
		}
	}
	return t, nil
}

// Worksheets implements ports.WorksheetCounter.
func (s *Store) Worksheets(_ context.Context, sheet ports.Spreadsheet) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sheets[sheet.ID]
	if !ok {
		return 0, &ports.NotFoundError{Title: sheet.Title, ServiceAccount: Identity}
	}
	return len(stored.worksheets), nil
}

// AddWorksheet appends an empty worksheet and returns its 1-based
// number. Test helper; the Google adapter has no counterpart.
func (s *Store) AddWorksheet(sheet ports.Spreadsheet) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sheets[sheet.ID]
	if !ok {
		return 0, &ports.NotFoundError{Title: sheet.Title, ServiceAccount: Identity}
	}
	stored.worksheets = append(stored.worksheets, nil)
	return len(stored.worksheets), nil
}

// SharedWith returns the grantees recorded for the spreadsheet.
func (s *Store) SharedWith(sheet ports.Spreadsheet) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.grants[sheet.ID]...)
}
