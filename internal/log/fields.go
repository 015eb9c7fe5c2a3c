package log

import "ledger/internal/core"

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldOperation  = "operation"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldPath       = "path"
	FieldBackend    = "backend"
	FieldRecordID   = "record_id"
	FieldDate       = "date"
	FieldKind       = "kind"
	FieldCategory   = "category"
	FieldAmount     = "amount"
	FieldImageRef   = "image_ref"
	FieldRows       = "rows"
	FieldCount      = "count"
	FieldBackupPath = "backup_path"
	FieldFromCols   = "from_columns"
	FieldToCols     = "to_columns"
	FieldDuration   = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentLedger      = "ledger"
	ComponentCategories  = "categories"
	ComponentMigration   = "migration"
	ComponentStorage     = "storage"
	ComponentAttachments = "attachments"
	ComponentBackend     = "backend"
)

// Operations defines standard operation names
const (
	OpStartup = "startup"
	OpInit    = "init"
	OpMigrate = "migrate"
	OpRead    = "read"
	OpAppend  = "append"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpLoad    = "load"
	OpSave    = "save"
	OpAttach  = "attach"
	OpRelease = "release"
	OpPrune   = "prune"
	OpFilter  = "filter"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds the error message and its classification
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = core.ErrorType(err)
	}
	return f
}

// WithRecord adds record-related fields. Notes are never logged.
func (f LogFields) WithRecord(r core.Record) LogFields {
	if r.ID != "" {
		f[FieldRecordID] = r.ID
	}
	f[FieldDate] = r.Date.String()
	f[FieldKind] = string(r.Kind)
	f[FieldCategory] = r.Category
	f[FieldAmount] = r.Amount.Text()
	if r.HasImage() {
		f[FieldImageRef] = r.ImageRef
	}
	return f
}

// WithPath adds a file path field
func (f LogFields) WithPath(path string) LogFields {
	f[FieldPath] = path
	return f
}

// With adds an arbitrary field
func (f LogFields) With(key string, value any) LogFields {
	f[key] = value
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
