// Package core implements the spreadsheet bulk-upload pipeline: template
// generation, xlsx parsing, rule-based validation, interactive correction,
// and batched delivery of rows to an injected upload function.
// This package has no HTTP dependencies and can be driven by any frontend.
package core

import (
	"context"
	"time"
)

// ColumnKind identifies the value kind of a spreadsheet column.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindNumber
	KindBoolean
	KindEnum
	KindImage
)

// String returns a human-readable name for the column kind.
func (k ColumnKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindEnum:
		return "enum"
	case KindImage:
		return "image"
	default:
		return "value"
	}
}

// Rules holds the validation rules for one column. Rules are evaluated in a
// fixed order and the first failing rule stops evaluation for that cell.
type Rules struct {
	Required    bool
	Positive    bool     // number must be > 0
	NonNegative bool     // number must be >= 0
	Min         *float64 // inclusive lower bound
	Max         *float64 // inclusive upper bound
	MinLen      int      // minimum length in runes (0 = no check)
	MaxLen      int      // maximum length in runes (0 = no check)
}

// RowData maps target entity field names to their cell values for one row.
type RowData map[string]string

// Clone returns a shallow copy of the row data.
func (r RowData) Clone() RowData {
	out := make(RowData, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// OptionsFunc produces dropdown values for a column at template-generation
// time. Failures are swallowed; the column simply gets no dropdown.
type OptionsFunc func(ctx context.Context) ([]string, error)

// CellValidatorFunc is a caller-supplied predicate run as the last rule for a
// column. It returns a non-empty message when the value is invalid. A non-nil
// error is also treated as a validation failure.
type CellValidatorFunc func(ctx context.Context, value string, row RowData) (string, error)

// RowValidatorFunc validates a whole row after all column checks. index is
// the zero-based data row index; returned errors with a zero Row are stamped
// with the row's spreadsheet position.
type RowValidatorFunc func(row RowData, index int) []ValidationError

// TransformFunc rewrites a cell value after type coercion. The transformed
// value is what validation sees and what the row retains.
type TransformFunc func(value string) string

// ColumnDefinition describes one spreadsheet column of a dataset.
// Definitions are immutable once registered.
type ColumnDefinition struct {
	Header    string // header text in the sheet
	Field     string // target entity field name
	Kind      ColumnKind
	Rules     Rules
	OneOf     []string      // static dropdown/enum values
	Options   OptionsFunc   // dynamic dropdown values, used instead of OneOf when set
	Sample    string        // sample cell written to the template's example row
	Transform TransformFunc // optional, applied after coercion
	Validate  CellValidatorFunc
	Hidden    bool    // omit from table display
	Width     float64 // display width hint, 0 = derive from header
}

// ValidationError records one failed check for a cell or row.
// Row is 1-based and offset by the header row, so it matches the row's
// position in the original spreadsheet.
type ValidationError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidatedRow is the result of validating one parsed spreadsheet row.
// Valid and Errors are recomputed in place when a field is edited; Data is
// otherwise treated as immutable.
type ValidatedRow struct {
	Row    int               `json:"row"` // spreadsheet row number (index + 2)
	Data   RowData           `json:"data"`
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors"`
}

// FileHandle is an in-memory binary attachment, typically an image uploaded
// through the interactive editor or produced by an attachment generator.
type FileHandle struct {
	Name        string
	ContentType string
	Data        []byte
}

// PayloadFormat selects how a row is encoded for the upload function.
type PayloadFormat int

const (
	PayloadJSON PayloadFormat = iota
	PayloadMultipart
)

// Payload is one row's outbound representation: scalar fields plus any
// binary attachments keyed by form field name.
type Payload struct {
	Format PayloadFormat
	Fields map[string]string
	Files  map[string]*FileHandle
}

// UploadFunc delivers one row payload to the destination. Implementations
// should resolve rather than fail on business-logic rejection where possible;
// the success predicate, not the error, classifies the outcome. Errors are
// still caught and counted as failures.
type UploadFunc func(ctx context.Context, payload *Payload) (any, error)

// SuccessFunc decides whether an upload call's result counts as success.
type SuccessFunc func(result any) bool

// AttachmentFunc generates an extra file to append to a row's multipart
// payload, computed from the merged row data.
type AttachmentFunc func(ctx context.Context, row RowData) (*FileHandle, error)

// CompletionFunc receives the aggregate outcome of an upload run. It is not
// invoked for cancelled runs.
type CompletionFunc func(outcome UploadOutcome)

// Batch and parsing defaults.
const (
	DefaultMaxRows    = 60
	DefaultBatchSize  = 1
	DefaultBatchDelay = 500 * time.Millisecond
)

// DatasetDefinition contains everything needed to ingest one entity type.
type DatasetDefinition struct {
	Key       string // unique identifier: "products"
	Group     string // logical grouping for listings
	Label     string // display name
	SheetName string // template sheet name, defaults to Label

	Columns []ColumnDefinition

	// MaxRows caps the number of data rows accepted per file (default 60).
	MaxRows int

	// Editable enables the interactive editor. Image columns bypass the
	// standard rule pipeline when set; their presence is checked separately
	// so the user can attach files after validation.
	Editable bool

	ValidateRow RowValidatorFunc // optional whole-row validator

	Upload     UploadFunc
	Success    SuccessFunc
	Format     PayloadFormat
	BatchSize  int           // rows submitted concurrently per round (default 1)
	BatchDelay time.Duration // pause between rounds (default 500ms)

	// Attachments maps extra multipart field names to generators invoked per
	// row at upload time.
	Attachments map[string]AttachmentFunc

	// ExcludePayloadFields lists fields kept in row data for display and
	// lookup but filtered from the outbound payload.
	ExcludePayloadFields []string

	OnComplete CompletionFunc // optional, skipped for cancelled runs
}

// columnByField returns the column definition for a target field name.
func (d DatasetDefinition) columnByField(field string) (ColumnDefinition, bool) {
	for _, col := range d.Columns {
		if col.Field == field {
			return col, true
		}
	}
	return ColumnDefinition{}, false
}

// payloadExcluded reports whether a field is filtered from upload payloads.
func (d DatasetDefinition) payloadExcluded(field string) bool {
	for _, f := range d.ExcludePayloadFields {
		if f == field {
			return true
		}
	}
	return false
}

// isImageColumn reports whether the column holds a binary asset handled
// through the editor's image overlay.
func isImageColumn(col ColumnDefinition) bool {
	return col.Kind == KindImage
}

// DatasetInfo is the display summary of a registered dataset.
type DatasetInfo struct {
	Key      string       `json:"key"`
	Group    string       `json:"group"`
	Label    string       `json:"label"`
	Columns  []ColumnInfo `json:"columns"`
	MaxRows  int          `json:"maxRows"`
	Editable bool         `json:"editable"`
}

// ColumnInfo is the display summary of one column.
type ColumnInfo struct {
	Header   string   `json:"header"`
	Field    string   `json:"field"`
	Kind     string   `json:"kind"`
	Required bool     `json:"required"`
	OneOf    []string `json:"oneOf,omitempty"`
	Hidden   bool     `json:"hidden,omitempty"`
}

// Info returns the dataset's display summary.
func (d DatasetDefinition) Info() DatasetInfo {
	cols := make([]ColumnInfo, len(d.Columns))
	for i, col := range d.Columns {
		cols[i] = ColumnInfo{
			Header:   col.Header,
			Field:    col.Field,
			Kind:     col.Kind.String(),
			Required: col.Rules.Required,
			OneOf:    col.OneOf,
			Hidden:   col.Hidden,
		}
	}
	return DatasetInfo{
		Key:      d.Key,
		Group:    d.Group,
		Label:    d.Label,
		Columns:  cols,
		MaxRows:  d.MaxRows,
		Editable: d.Editable,
	}
}

// SessionPhase is the lifecycle stage of an upload session.
type SessionPhase string

const (
	PhaseFileSelected SessionPhase = "file_selected"
	PhaseValidating   SessionPhase = "validating"
	PhaseValidated    SessionPhase = "validated"
	PhaseUploading    SessionPhase = "uploading"
	PhaseComplete     SessionPhase = "complete"
	PhaseCancelled    SessionPhase = "cancelled"
)

// UploadProgress is the live state of one upload run. It is reset between
// runs; Completed counts every settled row, successful or not.
type UploadProgress struct {
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Current   string `json:"current"`
}

// Percent returns the run progress as 0-100.
func (p UploadProgress) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return (p.Completed * 100) / p.Total
}

// UploadOutcome is the aggregate result of an uncancelled upload run.
type UploadOutcome struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// ValidationReport summarizes one parse-and-validate pass for display.
type ValidationReport struct {
	TotalRows     int               `json:"totalRows"`
	ValidRows     int               `json:"validRows"`
	InvalidRows   int               `json:"invalidRows"`
	Errors        []ValidationError `json:"errors"`
	MissingImages []ValidationError `json:"missingImages,omitempty"`
}
