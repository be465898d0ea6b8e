package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sheetlink/internal/core"
	ports "sheetlink/internal/sheets"

	gdrive "google.golang.org/api/drive/v3"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeBackend emulates the handful of Sheets and Drive endpoints the
// connector touches, recording call counts so tests can assert on the
// number of round trips.
type fakeBackend struct {
	t *testing.T

	// Drive state
	files       []*gdrive.File
	permissions []*gdrive.Permission

	// Sheets state
	worksheets []string
	values     [][]interface{}

	// Call counters
	lastQuery     string
	fileLists     int
	creates       int
	shares        int
	batchUpdates  int
	valueGets     int
	metadataGets  int
	lastBatchBody gsheet.BatchUpdateValuesRequest
}

func (f *fakeBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case r.Method == http.MethodGet && path == "/files":
			f.fileLists++
			f.lastQuery = r.URL.Query().Get("q")
			writeJSON(w, &gdrive.FileList{Files: f.files})

		case r.Method == http.MethodPost && strings.HasSuffix(path, "/permissions"):
			f.shares++
			var p gdrive.Permission
			decodeJSON(f.t, r.Body, &p)
			f.permissions = append(f.permissions, &p)
			writeJSON(w, &gdrive.Permission{Id: "perm-1"})

		case r.Method == http.MethodGet && strings.HasSuffix(path, "/permissions"):
			writeJSON(w, &gdrive.PermissionList{Permissions: f.permissions})

		case r.Method == http.MethodPost && path == "/v4/spreadsheets":
			f.creates++
			var s gsheet.Spreadsheet
			decodeJSON(f.t, r.Body, &s)
			writeJSON(w, &gsheet.Spreadsheet{
				SpreadsheetId: "created-id",
				Properties:    s.Properties,
			})

		case r.Method == http.MethodPost && strings.HasSuffix(path, "/values:batchUpdate"):
			f.batchUpdates++
			decodeJSON(f.t, r.Body, &f.lastBatchBody)
			// Mirror the written matrix back into the readable state.
			if len(f.lastBatchBody.Data) > 0 {
				f.values = f.lastBatchBody.Data[0].Values
			}
			writeJSON(w, &gsheet.BatchUpdateValuesResponse{TotalUpdatedCells: 1})

		case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
			f.valueGets++
			writeJSON(w, &gsheet.ValueRange{Values: f.values})

		case r.Method == http.MethodGet && strings.HasPrefix(path, "/v4/spreadsheets/"):
			f.metadataGets++
			meta := &gsheet.Spreadsheet{}
			for i, title := range f.worksheets {
				meta.Sheets = append(meta.Sheets, &gsheet.Sheet{
					Properties: &gsheet.SheetProperties{Title: title, Index: int64(i)},
				})
			}
			writeJSON(w, meta)

		default:
			f.t.Errorf("unexpected request: %s %s", r.Method, path)
			http.Error(w, "unexpected request", http.StatusNotFound)
		}
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(t *testing.T, r io.Reader, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
}

func newFake(t *testing.T, shareWith string) (*fakeBackend, *Connector) {
	t.Helper()
	backend := &fakeBackend{t: t, worksheets: []string{"Sheet1"}}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	ctx := context.Background()
	sheetsSvc, err := gsheet.NewService(ctx, goption.WithoutAuthentication(), goption.WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("sheets service: %v", err)
	}
	driveSvc, err := gdrive.NewService(ctx, goption.WithoutAuthentication(), goption.WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("drive service: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	connector := NewWithServices(sheetsSvc, driveSvc, Config{ShareWith: shareWith}, "robot@project.iam.gserviceaccount.com", logger)
	return backend, connector
}

func TestOpenExisting(t *testing.T) {
	backend, connector := newFake(t, "")
	backend.files = []*gdrive.File{{Id: "abc123", Name: "Budget"}}

	sheet, err := connector.Open(context.Background(), "Budget", false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if sheet.ID != "abc123" || sheet.Title != "Budget" {
		t.Fatalf("handle: got %+v", sheet)
	}
	if backend.creates != 0 {
		t.Fatalf("expected no create calls, got %d", backend.creates)
	}
}

func TestOpenNotFound(t *testing.T) {
	backend, connector := newFake(t, "someone@example.com")

	_, err := connector.Open(context.Background(), "Missing", false)
	var notFound *ports.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if notFound.Title != "Missing" {
		t.Fatalf("title: got %q", notFound.Title)
	}
	if !strings.Contains(err.Error(), "robot@project.iam.gserviceaccount.com") {
		t.Fatalf("message should name the service account: %q", err.Error())
	}
	if backend.creates != 0 {
		t.Fatalf("NotFound must never create, got %d creates", backend.creates)
	}
}

func TestOpenCreateWithoutGrantee(t *testing.T) {
	backend, connector := newFake(t, "")

	_, err := connector.Open(context.Background(), "Missing", true)
	if !errors.Is(err, ports.ErrShareUnconfigured) {
		t.Fatalf("expected ErrShareUnconfigured, got %v", err)
	}
	if backend.creates != 0 {
		t.Fatalf("expected no remote create call, got %d", backend.creates)
	}
}

func TestOpenCreateAndShare(t *testing.T) {
	backend, connector := newFake(t, "someone@example.com")

	sheet, err := connector.Open(context.Background(), "Fresh", true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if sheet.ID != "created-id" || sheet.Title != "Fresh" {
		t.Fatalf("handle: got %+v", sheet)
	}
	if backend.creates != 1 {
		t.Fatalf("creates: got %d, want 1", backend.creates)
	}
	if backend.shares != 1 {
		t.Fatalf("shares: got %d, want 1", backend.shares)
	}
	p := backend.permissions[0]
	if p.Type != "user" || p.Role != "writer" || p.EmailAddress != "someone@example.com" {
		t.Fatalf("permission: got %+v", p)
	}
}

func TestVerifyShared(t *testing.T) {
	backend, connector := newFake(t, "")
	backend.permissions = []*gdrive.Permission{
		{EmailAddress: "reader@example.com", Role: "reader"},
		{EmailAddress: "Someone@Example.com", Role: "writer"},
	}
	sheet := ports.Spreadsheet{ID: "abc123", Title: "Budget"}

	ok, err := connector.VerifyShared(context.Background(), sheet, "someone@example.com")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected writer grant to verify")
	}

	ok, err = connector.VerifyShared(context.Background(), sheet, "reader@example.com")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatalf("reader grant must not count as writer access")
	}
}

func TestWriteSingleBatchUpdate(t *testing.T) {
	backend, connector := newFake(t, "")
	sheet := ports.Spreadsheet{ID: "abc123", Title: "Budget"}

	table, err := core.NewTable(
		core.Column{Name: "name", Values: []string{"ada", "grace", "edsger"}},
		core.Column{Name: "age", Values: []string{"36", "45", "72"}},
	)
	if err != nil {
		t.Fatalf("table: %v", err)
	}

	if err := connector.Write(context.Background(), sheet, table, 1); err != nil {
		t.Fatalf("write: %v", err)
	}
	if backend.batchUpdates != 1 {
		t.Fatalf("batch updates: got %d, want exactly 1", backend.batchUpdates)
	}

	body := backend.lastBatchBody
	if len(body.Data) != 1 {
		t.Fatalf("value ranges: got %d", len(body.Data))
	}
	if body.Data[0].Range != "'Sheet1'!A1:B4" {
		t.Fatalf("range: got %q", body.Data[0].Range)
	}
	values := body.Data[0].Values
	if values[0][0] != "name" || values[0][1] != "age" {
		t.Fatalf("header row: got %v", values[0])
	}
	if values[3][0] != "edsger" || values[3][1] != "72" {
		t.Fatalf("last row: got %v", values[3])
	}
}

func TestWriteHeaderOnly(t *testing.T) {
	backend, connector := newFake(t, "")
	sheet := ports.Spreadsheet{ID: "abc123", Title: "Budget"}

	table, err := core.NewEmptyTable("name", "age")
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	if err := connector.Write(context.Background(), sheet, table, 1); err != nil {
		t.Fatalf("write: %v", err)
	}
	if backend.lastBatchBody.Data[0].Range != "'Sheet1'!A1:B1" {
		t.Fatalf("range: got %q", backend.lastBatchBody.Data[0].Range)
	}
}

func TestWriteEmptyTable(t *testing.T) {
	backend, connector := newFake(t, "")
	sheet := ports.Spreadsheet{ID: "abc123", Title: "Budget"}

	err := connector.Write(context.Background(), sheet, core.Table{}, 1)
	if !errors.Is(err, core.ErrEmptyTable) {
		t.Fatalf("expected ErrEmptyTable, got %v", err)
	}
	if backend.batchUpdates != 0 || backend.metadataGets != 0 {
		t.Fatalf("expected no remote calls for an empty table")
	}
}

func TestWriteWorksheetOrdinal(t *testing.T) {
	backend, connector := newFake(t, "")
	backend.worksheets = []string{"First", "Second"}
	sheet := ports.Spreadsheet{ID: "abc123", Title: "Budget"}

	table, _ := core.NewTable(core.Column{Name: "x", Values: []string{"1"}})
	if err := connector.Write(context.Background(), sheet, table, 2); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := backend.lastBatchBody.Data[0].Range; !strings.HasPrefix(got, "'Second'!") {
		t.Fatalf("worksheet 2 should resolve to Second, got range %q", got)
	}

	var wsErr *ports.WorksheetError
	if err := connector.Write(context.Background(), sheet, table, 3); !errors.As(err, &wsErr) {
		t.Fatalf("expected WorksheetError for ordinal 3, got %v", err)
	}
	if err := connector.Write(context.Background(), sheet, table, 0); !errors.As(err, &wsErr) {
		t.Fatalf("expected WorksheetError for ordinal 0, got %v", err)
	}
}

func TestReadDropsEmptyHeaders(t *testing.T) {
	backend, connector := newFake(t, "")
	backend.values = [][]interface{}{
		{"name", "", "age"},
		{"ada", "x", "36"},
	}
	sheet := ports.Spreadsheet{ID: "abc123", Title: "Budget"}

	table, err := connector.Read(context.Background(), sheet, 1, nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	headers := table.Headers()
	if len(headers) != 2 || headers[0] != "name" || headers[1] != "age" {
		t.Fatalf("headers: got %v", headers)
	}
	if table.Cell(0, 1) != "36" {
		t.Fatalf("age cell: got %q", table.Cell(0, 1))
	}
	if backend.valueGets != 1 {
		t.Fatalf("value fetches: got %d, want 1", backend.valueGets)
	}
}

func TestReadCastFailure(t *testing.T) {
	backend, connector := newFake(t, "")
	backend.values = [][]interface{}{
		{"name", "age"},
		{"ada", "not a number"},
	}
	sheet := ports.Spreadsheet{ID: "abc123", Title: "Budget"}

	_, err := connector.Read(context.Background(), sheet, 1, map[string]core.Kind{"age": core.Int})
	var cast *core.CastError
	if !errors.As(err, &cast) {
		t.Fatalf("expected CastError, got %v", err)
	}
	if cast.Column != "age" || cast.Kind != core.Int {
		t.Fatalf("cast error: got %+v", cast)
	}
}

func TestReadMissingCastColumn(t *testing.T) {
	backend, connector := newFake(t, "")
	backend.values = [][]interface{}{
		{"name"},
		{"ada"},
	}
	sheet := ports.Spreadsheet{ID: "abc123", Title: "Budget"}

	_, err := connector.Read(context.Background(), sheet, 1, map[string]core.Kind{"missing_col": core.String})
	var notFound *core.ColumnNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ColumnNotFoundError, got %v", err)
	}
	if notFound.Column != "missing_col" {
		t.Fatalf("column: got %q", notFound.Column)
	}
}

func TestReadHeaderOnlySheet(t *testing.T) {
	backend, connector := newFake(t, "")
	backend.values = [][]interface{}{{"name", "age"}}
	sheet := ports.Spreadsheet{ID: "abc123", Title: "Budget"}

	table, err := connector.Read(context.Background(), sheet, 1, nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if table.Rows() != 0 || table.Cols() != 2 {
		t.Fatalf("shape: got %dx%d", table.Rows(), table.Cols())
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	backend, connector := newFake(t, "")
	sheet := ports.Spreadsheet{ID: "abc123", Title: "Budget"}

	table, err := core.NewTable(
		core.Column{Name: "name", Values: []string{"ada", "grace"}},
		core.Column{Name: "age", Values: []string{"36", "45"}},
	)
	if err != nil {
		t.Fatalf("table: %v", err)
	}

	if err := connector.Write(context.Background(), sheet, table, 1); err != nil {
		t.Fatalf("write: %v", err)
	}
	back, err := connector.Read(context.Background(), sheet, 1, map[string]core.Kind{"age": core.Int})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !back.Equal(table) {
		t.Fatalf("round trip mismatch: got headers %v", back.Headers())
	}
	_ = backend
}

func TestWorksheets(t *testing.T) {
	backend, connector := newFake(t, "")
	backend.worksheets = []string{"a", "b", "c"}
	sheet := ports.Spreadsheet{ID: "abc123", Title: "Budget"}

	n, err := connector.Worksheets(context.Background(), sheet)
	if err != nil {
		t.Fatalf("worksheets: %v", err)
	}
	if n != 3 {
		t.Fatalf("count: got %d", n)
	}
}

func TestWorksheetTitlesCached(t *testing.T) {
	backend, connector := newFake(t, "")
	sheet := ports.Spreadsheet{ID: "abc123", Title: "Budget"}

	table, err := core.NewTable(core.Column{Name: "name", Values: []string{"ada"}})
	if err != nil {
		t.Fatalf("table: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := connector.Write(context.Background(), sheet, table, 1); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if backend.metadataGets != 1 {
		t.Fatalf("metadata fetches: got %d, want 1", backend.metadataGets)
	}
	if backend.batchUpdates != 3 {
		t.Fatalf("batch updates: got %d, want 3", backend.batchUpdates)
	}
}

func TestOpenEscapesQueryLiterals(t *testing.T) {
	backend, connector := newFake(t, "")

	_, err := connector.Open(context.Background(), `it's a \ title`, false)
	var notFound *ports.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	want := `name = 'it\'s a \\ title' and mimeType = 'application/vnd.google-apps.spreadsheet' and trashed = false`
	if backend.lastQuery != want {
		t.Fatalf("drive query:\ngot  %s\nwant %s", backend.lastQuery, want)
	}
}
