package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"sheetlink/internal/cache"
	"sheetlink/internal/core"
	applog "sheetlink/internal/log"
	ports "sheetlink/internal/sheets"

	goauth "golang.org/x/oauth2/google"
	gdrive "google.golang.org/api/drive/v3"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Connector moves tables between the caller and Google Sheets. Every
// operation is a blocking round trip; the only state kept between
// calls is a short-lived cache of worksheet titles.
type Connector struct {
	sheets    *gsheet.Service
	drive     *gdrive.Service
	shareWith string
	email     string
	log       *slog.Logger

	// titles caches worksheet titles per spreadsheet ID so repeated
	// writes do not refetch metadata on every call.
	titles *cache.LRU[[]string]
}

const (
	titleCacheSize = 64
	titleCacheTTL  = 30 * time.Second
)

// Config holds connector construction inputs.
type Config struct {
	// CredentialsFile is the path to a service-account key file.
	CredentialsFile string
	// ShareWith is the default grantee for newly created spreadsheets.
	// Leave empty to disable creation.
	ShareWith string
}

// Ensure interface conformance
var _ ports.Connector = (*Connector)(nil)

// New builds a connector from a service-account key file, scoped to
// exactly spreadsheets and drive access.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Connector, error) {
	credentialsJSON, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}

	jwtConfig, err := goauth.JWTConfigFromJSON(credentialsJSON, gsheet.SpreadsheetsScope, gdrive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}

	client := jwtConfig.Client(ctx)

	sheetsSvc, err := gsheet.NewService(ctx, goption.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	driveSvc, err := gdrive.NewService(ctx, goption.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return NewWithServices(sheetsSvc, driveSvc, cfg, jwtConfig.Email, logger), nil
}

// NewWithServices builds a connector around already-constructed Sheets
// and Drive services. Used by New and by tests that point the services
// at a fake endpoint.
func NewWithServices(sheetsSvc *gsheet.Service, driveSvc *gdrive.Service, cfg Config, serviceAccountEmail string, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		sheets:    sheetsSvc,
		drive:     driveSvc,
		shareWith: cfg.ShareWith,
		email:     serviceAccountEmail,
		log:       logger,
		titles:    cache.NewLRU[[]string](titleCacheSize, titleCacheTTL),
	}
}

// ServiceAccount returns the authenticated service-account email.
func (c *Connector) ServiceAccount() string {
	return c.email
}

// Open looks up a spreadsheet by exact title among the resources the
// service account can see. When create is true and the title does not
// exist, a new spreadsheet is created and shared with the configured
// grantee as writer.
//
// Drive can silently no-op the share call for unsupported grantee/role
// combinations, so a nil error from Open does not guarantee the grantee
// has access. Use VerifyShared when that matters.
func (c *Connector) Open(ctx context.Context, title string, create bool) (ports.Spreadsheet, error) {
	query := fmt.Sprintf("name = '%s' and mimeType = 'application/vnd.google-apps.spreadsheet' and trashed = false", escapeQuery(title))
	list, err := c.drive.Files.List().Q(query).PageSize(1).Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return ports.Spreadsheet{}, fmt.Errorf("look up spreadsheet %q: %w", title, err)
	}
	if len(list.Files) > 0 {
		return ports.Spreadsheet{ID: list.Files[0].Id, Title: list.Files[0].Name}, nil
	}

	if !create {
		return ports.Spreadsheet{}, &ports.NotFoundError{Title: title, ServiceAccount: c.email}
	}
	if c.shareWith == "" {
		return ports.Spreadsheet{}, ports.ErrShareUnconfigured
	}

	created, err := c.sheets.Spreadsheets.Create(&gsheet.Spreadsheet{
		Properties: &gsheet.SpreadsheetProperties{Title: title},
	}).Context(ctx).Do()
	if err != nil {
		return ports.Spreadsheet{}, fmt.Errorf("create spreadsheet %q: %w", title, err)
	}

	// Sharing as "owner" fails across the service account's domain
	// boundary, so the grantee gets writer.
	permission := &gdrive.Permission{
		Type:         "user",
		Role:         "writer",
		EmailAddress: c.shareWith,
	}
	if _, err := c.drive.Permissions.Create(created.SpreadsheetId, permission).SendNotificationEmail(false).Context(ctx).Do(); err != nil {
		return ports.Spreadsheet{}, fmt.Errorf("share spreadsheet %q with %s: %w", title, c.shareWith, err)
	}

	c.log.InfoContext(ctx, "Created spreadsheet",
		applog.FieldSheetID, created.SpreadsheetId,
		applog.FieldSheetTitle, title,
		applog.FieldGrantee, c.shareWith)

	return ports.Spreadsheet{ID: created.SpreadsheetId, Title: title}, nil
}

// VerifyShared reads back the spreadsheet's permissions and reports
// whether the email holds at least writer access. This is the
// out-of-band check for Open's silent-share caveat.
func (c *Connector) VerifyShared(ctx context.Context, sheet ports.Spreadsheet, email string) (bool, error) {
	list, err := c.drive.Permissions.List(sheet.ID).Fields("permissions(emailAddress, role)").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("list permissions for %q: %w", sheet.Title, err)
	}
	for _, p := range list.Permissions {
		if !strings.EqualFold(p.EmailAddress, email) {
			continue
		}
		switch p.Role {
		case "writer", "owner", "organizer", "fileOrganizer":
			return true, nil
		}
	}
	return false, nil
}

// Write overwrites the worksheet's top-left rectangle with the table:
// row 1 gets the column names, data row r lands in sheet row r+2. All
// cells go out in a single batched update; there is no partial-write
// recovery. A zero-row table writes only the header row.
//
// The worksheet ordinal resolves through metadata cached for up to
// titleCacheTTL, so a remote rename or reorder inside that window can
// land the write on the worksheet's previous title.
func (c *Connector) Write(ctx context.Context, sheet ports.Spreadsheet, t core.Table, worksheet int) error {
	if t.Cols() == 0 {
		return core.ErrEmptyTable
	}

	wsTitle, err := c.worksheetTitle(ctx, sheet, worksheet)
	if err != nil {
		return err
	}

	data := &gsheet.ValueRange{
		Range:  ports.TableRange(wsTitle, t),
		Values: ports.ValuesMatrix(t),
	}
	rq := &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             []*gsheet.ValueRange{data},
	}
	if _, err := c.sheets.Spreadsheets.Values.BatchUpdate(sheet.ID, rq).Context(ctx).Do(); err != nil {
		return fmt.Errorf("batch update %s: %w", data.Range, err)
	}

	c.log.DebugContext(ctx, "Wrote table to worksheet",
		applog.FieldSheetID, sheet.ID,
		applog.FieldWorksheet, worksheet,
		"range", data.Range,
		applog.FieldRows, t.Rows(),
		applog.FieldCols, t.Cols())

	return nil
}

// Read fetches the worksheet as a table, treating row 1 as the header
// row. Empty-string header cells are dropped, preserving the order of
// the remaining ones. A non-nil types map validates the named columns
// after the fetch. The same metadata staleness window as Write applies
// to the worksheet ordinal.
func (c *Connector) Read(ctx context.Context, sheet ports.Spreadsheet, worksheet int, types map[string]core.Kind) (core.Table, error) {
	wsTitle, err := c.worksheetTitle(ctx, sheet, worksheet)
	if err != nil {
		return core.Table{}, err
	}

	area := fmt.Sprintf("'%s'", strings.ReplaceAll(wsTitle, "'", "''"))
	resp, err := c.sheets.Spreadsheets.Values.Get(sheet.ID, area).Context(ctx).Do()
	if err != nil {
		return core.Table{}, fmt.Errorf("read worksheet %d of %q: %w", worksheet, sheet.Title, err)
	}

	t, err := ports.TableFromValues(resp.Values)
	if err != nil {
		return core.Table{}, fmt.Errorf("build table from worksheet %d of %q: %w", worksheet, sheet.Title, err)
	}

	if types != nil {
		if err := t.Cast(types); err != nil {
			return core.Table{}, err
		}
	}
	return t, nil
}

// Worksheets returns the number of worksheets in the spreadsheet.
func (c *Connector) Worksheets(ctx context.Context, sheet ports.Spreadsheet) (int, error) {
	titles, err := c.worksheetTitles(ctx, sheet)
	if err != nil {
		return 0, err
	}
	return len(titles), nil
}

// worksheetTitle resolves a 1-based worksheet ordinal to the sheet
// title the values API addresses ranges with.
func (c *Connector) worksheetTitle(ctx context.Context, sheet ports.Spreadsheet, worksheet int) (string, error) {
	index, err := ports.WorksheetIndex(worksheet)
	if err != nil {
		return "", err
	}
	titles, err := c.worksheetTitles(ctx, sheet)
	if err != nil {
		return "", err
	}
	if index >= len(titles) {
		return "", &ports.WorksheetError{Worksheet: worksheet, Count: len(titles)}
	}
	return titles[index], nil
}

func (c *Connector) worksheetTitles(ctx context.Context, sheet ports.Spreadsheet) ([]string, error) {
	if titles, ok := c.titles.Get(sheet.ID); ok {
		return titles, nil
	}

	meta, err := c.sheets.Spreadsheets.Get(sheet.ID).Fields("sheets(properties(title, index))").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet %q: %w", sheet.Title, err)
	}

	titles := make([]string, 0, len(meta.Sheets))
	for _, s := range meta.Sheets {
		if s.Properties == nil {
			return nil, errors.New("worksheet metadata missing properties")
		}
		titles = append(titles, s.Properties.Title)
	}
	c.titles.Set(sheet.ID, titles)
	return titles, nil
}

// escapeQuery escapes a string for use inside a Drive query literal.
// Backslashes go first so the quote escapes are not doubled up.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
