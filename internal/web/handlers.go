package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rowlift/rowlift/internal/core"
	"github.com/rowlift/rowlift/internal/logging"
)

// handleListDatasets returns the catalog of registered datasets.
func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	defs := core.All()
	infos := make([]core.DatasetInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info()
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": infos})
}

// handleDownloadTemplate streams the dataset's xlsx template.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "dataset")
	def, ok := core.Get(key)
	if !ok {
		respondError(w, r, &core.UnknownDatasetError{Key: key})
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", key+"_template.xlsx"))

	if err := core.WriteTemplate(r.Context(), def, w); err != nil {
		// Headers are out; all we can do is log.
		logging.FromContext(r.Context()).Error("template write failed",
			"dataset", key,
			"error", err,
		)
	}
}

// handleCreateSession accepts a workbook upload and returns the validated
// session with its report.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "dataset")

	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		respondError(w, r, core.ErrFileTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, core.ErrUnreadableFile)
		return
	}
	defer file.Close()

	state, err := s.service.CreateSession(r.Context(), key, header.Filename, file)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

// handleGetSession returns the session snapshot including rows and report.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.Session(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleDeleteSession discards a session.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(chi.URLParam(r, "sessionID")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// setFieldRequest is the body for cell edits. Row is the spreadsheet row
// number as reported in validation errors.
type setFieldRequest struct {
	Row   int    `json:"row"`
	Field string `json:"field"`
	Value string `json:"value"`
}

// handleSetField applies a cell edit and returns the revalidated row.
func (s *Server) handleSetField(w http.ResponseWriter, r *http.Request) {
	var req setFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, core.BadRequest("invalid request body: %v", err))
		return
	}
	if req.Field == "" || req.Row < 2 {
		respondError(w, r, core.BadRequest("row and field are required"))
		return
	}

	row, err := s.service.SetField(r.Context(), chi.URLParam(r, "sessionID"), req.Row, req.Field, req.Value)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// maxImageSize caps a single attached image.
const maxImageSize = 5 << 20

// handleAttachImage stores an image for a cell. Expects multipart form with
// row, field, and file parts.
func (s *Server) handleAttachImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		respondError(w, r, core.ErrFileTooLarge)
		return
	}

	row, err := strconv.Atoi(r.FormValue("row"))
	if err != nil || row < 2 {
		respondError(w, r, core.BadRequest("row must be a spreadsheet row number"))
		return
	}
	field := r.FormValue("field")
	if field == "" {
		respondError(w, r, core.BadRequest("field is required"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, core.ErrUnreadableFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, core.ErrUnreadableFile)
		return
	}

	fh := &core.FileHandle{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	if err := s.service.AttachImage(chi.URLParam(r, "sessionID"), row, field, fh); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "attached"})
}

// handleRemoveImage discards an attached image. Row and field come as query
// parameters since DELETE bodies are unreliable across clients.
func (s *Server) handleRemoveImage(w http.ResponseWriter, r *http.Request) {
	row, err := strconv.Atoi(r.URL.Query().Get("row"))
	if err != nil {
		respondError(w, r, core.BadRequest("row must be a spreadsheet row number"))
		return
	}
	field := r.URL.Query().Get("field")
	if field == "" {
		respondError(w, r, core.BadRequest("field is required"))
		return
	}

	if err := s.service.RemoveImage(chi.URLParam(r, "sessionID"), row, field); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// handleStartUpload launches the session's upload run.
func (s *Server) handleStartUpload(w http.ResponseWriter, r *http.Request) {
	if err := s.service.StartUpload(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// handleProgress streams upload progress via Server-Sent Events.
// Supports resumption via the lastEventId query parameter: the event ID is
// the progress percentage, so a reconnecting client skips what it has seen.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	lastEventIDStr := r.URL.Query().Get("lastEventId")
	var lastEventID int
	if lastEventIDStr != "" {
		lastEventID, _ = strconv.Atoi(lastEventIDStr)
	}

	progressCh, cancel, err := s.service.Subscribe(sessionID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.New("streaming not supported"))
		return
	}

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed: run complete or cancelled.
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			percent := progress.Percent()
			if lastEventIDStr != "" && percent <= lastEventID {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", percent, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleCancel requests cancellation of the session's run.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Cancel(chi.URLParam(r, "sessionID")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// handleResult returns the aggregate outcome of a finished run. Cancelled
// runs have no outcome; the progress snapshot still reports settled counts.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	outcome, progress, err := s.service.Result(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"outcome":  outcome,
		"progress": progress,
	})
}
