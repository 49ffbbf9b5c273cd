package core

// uploader.go executes upload runs: rows are delivered in batches, rows
// inside a batch run concurrently and are always allowed to settle, and
// cancellation is honored at batch and row boundaries only. Completed counts
// every settled row; Successful is derived as Completed - Failed.

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StartUpload begins an asynchronous run for the session and returns once the
// run goroutine is launched. Fails when the session is not in the validated
// phase, when no rows are eligible, or when no run slot is available.
func (s *Service) StartUpload(ctx context.Context, id string) error {
	s.mu.Lock()

	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return &SessionNotFoundError{ID: id}
	}
	if sess.Phase != PhaseValidated {
		s.mu.Unlock()
		return &PhaseError{Op: "upload", Phase: sess.Phase}
	}
	def, ok := Get(sess.Dataset)
	if !ok {
		s.mu.Unlock()
		return &UnknownDatasetError{Key: sess.Dataset}
	}
	rows := uploadableRows(sess, def)
	if len(rows) == 0 {
		s.mu.Unlock()
		return ErrNoValidRows
	}
	s.mu.Unlock()

	// Acquire outside the lock: other sessions must stay responsive while
	// this run waits for a slot.
	if err := s.limiter.Acquire(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-fetch: the session may have been deleted, or its phase moved,
	// while waiting for a slot.
	sess, ok = s.sessions[id]
	if !ok {
		s.limiter.Release()
		return &SessionNotFoundError{ID: id}
	}
	if sess.Phase != PhaseValidated {
		s.limiter.Release()
		return &PhaseError{Op: "upload", Phase: sess.Phase}
	}

	runCtx, cancel := context.WithTimeout(context.Background(), UploadTimeout)
	sess.Phase = PhaseUploading
	sess.cancel = cancel
	sess.done = make(chan struct{})
	sess.outcome = nil
	sess.progress = UploadProgress{Total: len(rows)}
	s.notify(sess)

	s.logger.Info("upload started",
		"session_id", sess.ID,
		"dataset", sess.Dataset,
		"rows", len(rows),
		"batch_size", def.BatchSize,
	)

	go s.runUpload(runCtx, sess, def, rows)
	return nil
}

// runUpload drives one run to completion. It owns the session's phase
// transition out of uploading.
func (s *Service) runUpload(ctx context.Context, sess *Session, def DatasetDefinition, rows []*ValidatedRow) {
	defer s.limiter.Release()
	defer sess.cancel()

	size := def.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	delay := def.BatchDelay
	if delay <= 0 {
		delay = DefaultBatchDelay
	}

	cancelled := false

batches:
	for start := 0; start < len(rows); start += size {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		end := start + size
		if end > len(rows) {
			end = len(rows)
		}

		var wg sync.WaitGroup
		for _, vr := range rows[start:end] {
			// Row boundary check: rows not yet launched are skipped, rows
			// already launched always settle.
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			wg.Add(1)
			go func(vr *ValidatedRow) {
				defer wg.Done()
				s.uploadRow(ctx, sess, def, vr)
			}(vr)
		}
		wg.Wait()

		if cancelled {
			break
		}
		if end < len(rows) {
			select {
			case <-ctx.Done():
				cancelled = true
				break batches
			case <-time.After(delay):
			}
		}
	}

	s.mu.Lock()
	if cancelled || ctx.Err() != nil {
		sess.Phase = PhaseCancelled
		sess.progress.Current = ""
		s.notify(sess)
		s.closeListeners(sess)
		close(sess.done)
		s.logger.Info("upload cancelled",
			"session_id", sess.ID,
			"completed", sess.progress.Completed,
			"failed", sess.progress.Failed,
		)
		s.mu.Unlock()
		return
	}

	outcome := UploadOutcome{
		Successful: sess.progress.Completed - sess.progress.Failed,
		Failed:     sess.progress.Failed,
	}
	sess.Phase = PhaseComplete
	sess.outcome = &outcome
	sess.progress.Current = ""
	s.notify(sess)
	s.closeListeners(sess)
	close(sess.done)
	s.mu.Unlock()

	s.logger.Info("upload complete",
		"session_id", sess.ID,
		"successful", outcome.Successful,
		"failed", outcome.Failed,
	)

	if def.OnComplete != nil {
		def.OnComplete(outcome)
	}
}

// uploadRow delivers one row and records the settled outcome. Build errors,
// call errors, and a false success predicate all count as a failed row.
func (s *Service) uploadRow(ctx context.Context, sess *Session, def DatasetDefinition, vr *ValidatedRow) {
	s.mu.Lock()
	sess.progress.Current = fmt.Sprintf("row %d", vr.Row)
	s.notify(sess)
	payload, err := buildPayload(ctx, sess, def, vr)
	s.mu.Unlock()

	ok := false
	if err == nil {
		var result any
		result, err = def.Upload(ctx, payload)
		ok = err == nil && def.Success(result)
	}
	if err != nil {
		s.logger.Warn("row upload failed",
			"session_id", sess.ID,
			"row", vr.Row,
			"error", err,
		)
	}

	s.mu.Lock()
	sess.progress.Completed++
	if !ok {
		sess.progress.Failed++
	}
	s.notify(sess)
	s.mu.Unlock()
}

// closeListeners closes and detaches all progress channels. Caller holds s.mu.
func (s *Service) closeListeners(sess *Session) {
	for _, ch := range sess.listeners {
		close(ch)
	}
	sess.listeners = nil
}
