package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldError      = "error"
	FieldSheetID    = "sheet_id"
	FieldSheetTitle = "sheet_title"
	FieldWorksheet  = "worksheet"
	FieldSnapshotID = "snapshot_id"
	FieldRows       = "rows"
	FieldCols       = "cols"
	FieldGrantee    = "grantee"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentSheets  = "sheets"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentService = "service"
	ComponentCLI     = "cli"
)
