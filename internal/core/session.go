package core

// session.go owns the lifecycle of interactive upload sessions.
//
// A session is created by parsing and validating a workbook, then moves
// through a fixed phase sequence: file_selected -> validating -> validated ->
// uploading -> complete or cancelled. Edits and image attachments are stored
// as overlays keyed by (row, field) and merged with the parsed data only at
// upload time, so the original spreadsheet values are never mutated.
//
// The Service serializes all session access behind its mutex. Progress
// subscribers receive snapshots over buffered channels; a slow subscriber
// drops updates rather than blocking the run.

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UploadTimeout bounds a single upload run.
var UploadTimeout = 10 * time.Minute

// DefaultSessionRetention is how long finished sessions stay queryable.
const DefaultSessionRetention = 30 * time.Minute

// cellKey addresses one cell overlay. Row is the spreadsheet row number.
type cellKey struct {
	Row   int
	Field string
}

// Session is the server-side state of one interactive upload.
// All fields are guarded by the owning Service's mutex.
type Session struct {
	ID        string
	Dataset   string
	FileName  string
	Phase     SessionPhase
	CreatedAt time.Time

	rows      []*ValidatedRow
	overrides map[cellKey]string
	images    map[cellKey]*FileHandle

	progress UploadProgress
	outcome  *UploadOutcome

	cancel    context.CancelFunc
	done      chan struct{}
	listeners []chan UploadProgress
}

// SessionState is a point-in-time snapshot of a session for API responses.
type SessionState struct {
	ID        string           `json:"id"`
	Dataset   string           `json:"dataset"`
	FileName  string           `json:"fileName"`
	Phase     SessionPhase     `json:"phase"`
	CreatedAt time.Time        `json:"createdAt"`
	Rows      []*ValidatedRow  `json:"rows,omitempty"`
	Report    ValidationReport `json:"report"`
	Progress  UploadProgress   `json:"progress"`
	Outcome   *UploadOutcome   `json:"outcome,omitempty"`
}

// Service coordinates sessions, the run limiter, and upload execution.
type Service struct {
	limiter   *RunLimiter
	logger    *slog.Logger
	retention time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates a session service. A nil limiter gets defaults; a nil
// logger falls back to slog's default.
func NewService(limiter *RunLimiter, logger *slog.Logger) *Service {
	if limiter == nil {
		limiter = NewRunLimiter(DefaultMaxConcurrentRuns, DefaultMaxWaitTime)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		limiter:   limiter,
		logger:    logger,
		retention: DefaultSessionRetention,
		sessions:  make(map[string]*Session),
	}
}

// Limiter exposes the run limiter for shutdown draining.
func (s *Service) Limiter() *RunLimiter { return s.limiter }

// CreateSession parses and validates the workbook and stores a new session in
// the validated phase. The returned state carries the full validation report.
func (s *Service) CreateSession(ctx context.Context, datasetKey, fileName string, r io.Reader) (SessionState, error) {
	def, ok := Get(datasetKey)
	if !ok {
		return SessionState{}, &UnknownDatasetError{Key: datasetKey}
	}

	sess := &Session{
		ID:        uuid.New().String(),
		Dataset:   datasetKey,
		FileName:  fileName,
		Phase:     PhaseFileSelected,
		CreatedAt: time.Now(),
		overrides: make(map[cellKey]string),
		images:    make(map[cellKey]*FileHandle),
	}

	sess.Phase = PhaseValidating
	rows, err := ParseWorkbook(r, def)
	if err != nil {
		return SessionState{}, err
	}
	sess.rows = ValidateRows(ctx, def, rows)
	sess.Phase = PhaseValidated

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Info("session created",
		"session_id", sess.ID,
		"dataset", datasetKey,
		"file", fileName,
		"rows", len(sess.rows),
	)

	return s.snapshot(sess, def, true), nil
}

// Session returns a snapshot of the session including its rows.
func (s *Service) Session(id string) (SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return SessionState{}, &SessionNotFoundError{ID: id}
	}
	def, _ := Get(sess.Dataset)
	return s.snapshot(sess, def, true), nil
}

// SetField applies an edited cell value and revalidates that field. row is
// the spreadsheet row number as reported in validation errors.
func (s *Service) SetField(ctx context.Context, id string, row int, field, value string) (*ValidatedRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, &SessionNotFoundError{ID: id}
	}
	if sess.Phase != PhaseValidated {
		return nil, &PhaseError{Op: "edit", Phase: sess.Phase}
	}
	def, ok := Get(sess.Dataset)
	if !ok {
		return nil, &UnknownDatasetError{Key: sess.Dataset}
	}
	if !def.Editable {
		return nil, &PhaseError{Op: "edit", Phase: sess.Phase}
	}
	col, ok := def.columnByField(field)
	if !ok {
		return nil, BadRequest("unknown field: %s", field)
	}
	if isImageColumn(col) {
		return nil, BadRequest("field %s holds an image, use the image endpoint", field)
	}

	vr := findRow(sess.rows, row)
	if vr == nil {
		return nil, BadRequest("no row %d in session", row)
	}

	sess.overrides[cellKey{Row: row, Field: field}] = value
	revalidateField(ctx, def, vr, field, value)
	return vr, nil
}

// AttachImage stores an image for a cell. Only image columns of editable
// datasets accept attachments.
func (s *Service) AttachImage(id string, row int, field string, file *FileHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return &SessionNotFoundError{ID: id}
	}
	if sess.Phase != PhaseValidated {
		return &PhaseError{Op: "attach image", Phase: sess.Phase}
	}
	def, ok := Get(sess.Dataset)
	if !ok {
		return &UnknownDatasetError{Key: sess.Dataset}
	}
	col, ok := def.columnByField(field)
	if !ok || !isImageColumn(col) || !def.Editable {
		return BadRequest("field %s does not accept image attachments", field)
	}
	if findRow(sess.rows, row) == nil {
		return BadRequest("no row %d in session", row)
	}

	// The override carries the file name so displayed row data reflects the
	// attachment; payload assembly reads the binary from the image overlay.
	key := cellKey{Row: row, Field: field}
	sess.images[key] = file
	sess.overrides[key] = file.Name
	return nil
}

// RemoveImage discards a previously attached image.
func (s *Service) RemoveImage(id string, row int, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return &SessionNotFoundError{ID: id}
	}
	if sess.Phase != PhaseValidated {
		return &PhaseError{Op: "remove image", Phase: sess.Phase}
	}
	key := cellKey{Row: row, Field: field}
	delete(sess.images, key)
	delete(sess.overrides, key)
	return nil
}

// Cancel requests cooperative cancellation of the session's upload run.
// Rows already in flight are allowed to settle.
func (s *Service) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return &SessionNotFoundError{ID: id}
	}
	if sess.Phase != PhaseUploading || sess.cancel == nil {
		return &PhaseError{Op: "cancel", Phase: sess.Phase}
	}
	sess.cancel()
	return nil
}

// Result returns the aggregate outcome of a finished run.
func (s *Service) Result(id string) (*UploadOutcome, UploadProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, UploadProgress{}, &SessionNotFoundError{ID: id}
	}
	if sess.Phase != PhaseComplete && sess.Phase != PhaseCancelled {
		return nil, UploadProgress{}, &PhaseError{Op: "result", Phase: sess.Phase}
	}
	return sess.outcome, sess.progress, nil
}

// Delete removes a session. Sessions with an active run cannot be deleted.
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return &SessionNotFoundError{ID: id}
	}
	if sess.Phase == PhaseUploading {
		return &PhaseError{Op: "delete", Phase: sess.Phase}
	}
	delete(s.sessions, id)
	return nil
}

// Subscribe registers a progress listener for the session. The returned
// cancel function must be called when the subscriber disconnects.
func (s *Service) Subscribe(id string) (<-chan UploadProgress, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil, &SessionNotFoundError{ID: id}
	}

	ch := make(chan UploadProgress, 16)
	ch <- sess.progress

	// A finished run's listeners were already closed; a late subscriber
	// (e.g. an SSE reconnect) gets the final snapshot and a closed channel
	// instead of hanging.
	if sess.Phase == PhaseComplete || sess.Phase == PhaseCancelled {
		close(ch)
		return ch, func() {}, nil
	}

	sess.listeners = append(sess.listeners, ch)

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range sess.listeners {
			if l == ch {
				sess.listeners = append(sess.listeners[:i], sess.listeners[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel, nil
}

// Done returns a channel closed when the session's run finishes, or nil when
// no run was started. Intended for tests and polling callers.
func (s *Service) Done(id string) <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[id]; ok {
		return sess.done
	}
	return nil
}

// CleanupLoop deletes finished sessions older than the retention window.
// Blocks until ctx is cancelled; run it as a goroutine.
func (s *Service) CleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *Service) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if sess.Phase == PhaseUploading {
			continue
		}
		if now.Sub(sess.CreatedAt) > s.retention {
			delete(s.sessions, id)
			s.logger.Debug("session expired", "session_id", id)
		}
	}
}

// notify pushes a progress snapshot to all listeners without blocking.
// Caller holds s.mu.
func (s *Service) notify(sess *Session) {
	for _, ch := range sess.listeners {
		select {
		case ch <- sess.progress:
		default:
		}
	}
}

// mergedValue resolves a cell through the edit overlay.
func mergedValue(sess *Session, vr *ValidatedRow, field string) string {
	if v, ok := sess.overrides[cellKey{Row: vr.Row, Field: field}]; ok {
		return v
	}
	return vr.Data[field]
}

// missingImages synthesizes presence errors for required image columns that
// have no attachment yet. These are display errors only, never stored on the
// row, so they disappear as soon as an image is attached.
func missingImages(sess *Session, def DatasetDefinition) []ValidationError {
	if !def.Editable {
		return nil
	}
	var out []ValidationError
	for _, col := range def.Columns {
		if !isImageColumn(col) || !col.Rules.Required {
			continue
		}
		for _, vr := range sess.rows {
			// Rows with other errors go through the standard validator
			// first; flagging their images too would be noise.
			if !vr.Valid {
				continue
			}
			if _, ok := sess.images[cellKey{Row: vr.Row, Field: col.Field}]; !ok {
				out = append(out, ValidationError{
					Row:     vr.Row,
					Field:   col.Field,
					Message: fmt.Sprintf("%s image is required", col.Header),
				})
			}
		}
	}
	return out
}

// rowMissingImage reports whether the row lacks any required image.
func rowMissingImage(sess *Session, def DatasetDefinition, vr *ValidatedRow) bool {
	if !def.Editable {
		return false
	}
	for _, col := range def.Columns {
		if !isImageColumn(col) || !col.Rules.Required {
			continue
		}
		if _, ok := sess.images[cellKey{Row: vr.Row, Field: col.Field}]; !ok {
			return true
		}
	}
	return false
}

// uploadableRows returns the rows eligible for delivery: rule-valid and not
// missing a required image.
func uploadableRows(sess *Session, def DatasetDefinition) []*ValidatedRow {
	var out []*ValidatedRow
	for _, vr := range sess.rows {
		if vr.Valid && !rowMissingImage(sess, def, vr) {
			out = append(out, vr)
		}
	}
	return out
}

// snapshot builds a SessionState. Caller holds at least a read lock.
func (s *Service) snapshot(sess *Session, def DatasetDefinition, includeRows bool) SessionState {
	report := ValidationReport{TotalRows: len(sess.rows)}
	for _, vr := range sess.rows {
		if vr.Valid {
			report.ValidRows++
		} else {
			report.InvalidRows++
			report.Errors = append(report.Errors, vr.Errors...)
		}
	}
	report.MissingImages = missingImages(sess, def)

	state := SessionState{
		ID:        sess.ID,
		Dataset:   sess.Dataset,
		FileName:  sess.FileName,
		Phase:     sess.Phase,
		CreatedAt: sess.CreatedAt,
		Report:    report,
		Progress:  sess.progress,
		Outcome:   sess.outcome,
	}
	if includeRows {
		state.Rows = sess.rows
	}
	return state
}

func findRow(rows []*ValidatedRow, row int) *ValidatedRow {
	for _, vr := range rows {
		if vr.Row == row {
			return vr
		}
	}
	return nil
}
