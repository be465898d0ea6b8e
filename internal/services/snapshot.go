package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"sheetlink/internal/core"
	applog "sheetlink/internal/log"
	"sheetlink/internal/sheets"
	"sheetlink/internal/storage"
)

// SnapshotService moves tables between a spreadsheet backend and the
// local snapshot store. Each connector call stays a blocking round
// trip; Export only fans out across worksheets.
type SnapshotService struct {
	connector sheets.Connector
	repo      *storage.Repository
	log       *slog.Logger

	// ExportConcurrency bounds how many worksheets Export pulls at
	// once. Zero or negative means 1.
	ExportConcurrency int
}

func NewSnapshotService(connector sheets.Connector, repo *storage.Repository, logger *slog.Logger) *SnapshotService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotService{
		connector:         connector,
		repo:              repo,
		log:               logger,
		ExportConcurrency: 1,
	}
}

// Pull reads a worksheet and stores it as a snapshot. The spreadsheet
// must already exist; Pull never creates.
func (s *SnapshotService) Pull(ctx context.Context, title string, worksheet int, types map[string]core.Kind) (storage.Snapshot, error) {
	sheet, err := s.connector.Open(ctx, title, false)
	if err != nil {
		return storage.Snapshot{}, err
	}

	t, err := s.connector.Read(ctx, sheet, worksheet, types)
	if err != nil {
		return storage.Snapshot{}, err
	}

	id, err := s.repo.SaveSnapshot(ctx, sheet.ID, sheet.Title, worksheet, t)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}

	s.log.InfoContext(ctx, "Pulled worksheet snapshot",
		applog.FieldSnapshotID, id,
		applog.FieldSheetTitle, sheet.Title,
		applog.FieldWorksheet, worksheet,
		applog.FieldRows, t.Rows(),
		applog.FieldCols, t.Cols())

	meta, _, err := s.repo.GetSnapshot(ctx, id)
	if err != nil {
		return storage.Snapshot{}, err
	}
	return meta, nil
}

// Push writes a stored snapshot back to its worksheet. When create is
// true a missing spreadsheet is created under the snapshot's title.
func (s *SnapshotService) Push(ctx context.Context, snapshotID int64, create bool) error {
	meta, t, err := s.repo.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return err
	}

	sheet, err := s.connector.Open(ctx, meta.Title, create)
	if err != nil {
		return err
	}

	if err := s.connector.Write(ctx, sheet, t, meta.Worksheet); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "Pushed snapshot to worksheet",
		applog.FieldSnapshotID, snapshotID,
		applog.FieldSheetTitle, meta.Title,
		applog.FieldWorksheet, meta.Worksheet,
		applog.FieldRows, t.Rows())

	return nil
}

// PushLatest pushes the most recent snapshot of a worksheet.
func (s *SnapshotService) PushLatest(ctx context.Context, title string, worksheet int, create bool) error {
	sheet, err := s.connector.Open(ctx, title, create)
	if err != nil {
		return err
	}

	meta, t, err := s.repo.LatestSnapshot(ctx, sheet.ID, worksheet)
	if err != nil {
		return err
	}

	if err := s.connector.Write(ctx, sheet, t, worksheet); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "Pushed latest snapshot",
		applog.FieldSnapshotID, meta.ID,
		applog.FieldSheetTitle, title,
		applog.FieldWorksheet, worksheet)

	return nil
}

// Export snapshots every worksheet of a spreadsheet, pulling up to
// ExportConcurrency worksheets at a time. Snapshots come back ordered
// by worksheet number.
func (s *SnapshotService) Export(ctx context.Context, title string) ([]storage.Snapshot, error) {
	sheet, err := s.connector.Open(ctx, title, false)
	if err != nil {
		return nil, err
	}

	count, err := s.connector.Worksheets(ctx, sheet)
	if err != nil {
		return nil, err
	}

	limit := s.ExportConcurrency
	if limit < 1 {
		limit = 1
	}

	snapshots := make([]storage.Snapshot, count)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < count; i++ {
		worksheet := i + 1
		g.Go(func() error {
			t, err := s.connector.Read(ctx, sheet, worksheet, nil)
			if err != nil {
				return fmt.Errorf("read worksheet %d: %w", worksheet, err)
			}
			id, err := s.repo.SaveSnapshot(ctx, sheet.ID, sheet.Title, worksheet, t)
			if err != nil {
				return fmt.Errorf("save worksheet %d: %w", worksheet, err)
			}
			meta, _, err := s.repo.GetSnapshot(ctx, id)
			if err != nil {
				return err
			}
			snapshots[worksheet-1] = meta
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "Exported spreadsheet",
		applog.FieldSheetTitle, title,
		"worksheets", count)

	return snapshots, nil
}
