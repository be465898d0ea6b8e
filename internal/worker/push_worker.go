package worker

import (
	"context"
	"fmt"
	"log/slog"

	"sheetlink/internal/amqp"
	"sheetlink/internal/sheets"
	"sheetlink/internal/storage"
)

// PushWorker applies queued push requests: it loads the snapshot from
// the local store and writes it to the target worksheet.
type PushWorker struct {
	repo      *storage.Repository
	connector sheets.Connector

	// CreateMissing controls whether a push may create the target
	// spreadsheet. Requires the connector to have a share-with grantee.
	CreateMissing bool
}

func NewPushWorker(repo *storage.Repository, connector sheets.Connector) *PushWorker {
	return &PushWorker{
		repo:      repo,
		connector: connector,
	}
}

// HandlePushRequest processes a single push request from the queue.
func (w *PushWorker) HandlePushRequest(ctx context.Context, msg *amqp.PushRequestMessage) error {
	slog.InfoContext(ctx, "Processing push request",
		"snapshot_id", msg.SnapshotID,
		"title", msg.Title,
		"worksheet", msg.Worksheet)

	meta, t, err := w.repo.GetSnapshot(ctx, msg.SnapshotID)
	if err != nil {
		return fmt.Errorf("get snapshot from storage: %w", err)
	}

	// The message addresses the push; the snapshot's own addressing is
	// the fallback for older producers that left them empty.
	title := msg.Title
	if title == "" {
		title = meta.Title
	}
	worksheet := msg.Worksheet
	if worksheet == 0 {
		worksheet = meta.Worksheet
	}

	sheet, err := w.connector.Open(ctx, title, w.CreateMissing)
	if err != nil {
		return fmt.Errorf("open spreadsheet %q: %w", title, err)
	}

	if err := w.connector.Write(ctx, sheet, t, worksheet); err != nil {
		return fmt.Errorf("write snapshot %d to %q: %w", msg.SnapshotID, title, err)
	}

	slog.InfoContext(ctx, "Pushed snapshot",
		"snapshot_id", msg.SnapshotID,
		"title", title,
		"worksheet", worksheet,
		"rows", t.Rows())

	return nil
}
