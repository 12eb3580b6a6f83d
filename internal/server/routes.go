package server

import (
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/cricksy/video-analysis/internal/apperrors"
	"github.com/cricksy/video-analysis/internal/common"
	"github.com/cricksy/video-analysis/internal/interfaces"
	"github.com/cricksy/video-analysis/internal/models"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/diagnostics", s.handleDiagnostics)
	mux.HandleFunc("/shutdown", s.handleShutdown)
	mux.HandleFunc("/debug/memstats", s.handleMemstats)

	// Upload lifecycle (spec §4.1, §6)
	mux.HandleFunc("/videos/upload/initiate", s.handleUploadInitiate)
	mux.HandleFunc("/videos/upload/complete", s.handleUploadComplete)

	// Analysis jobs (spec §4.2, §4.5, §6)
	mux.HandleFunc("/analysis-jobs/ws", s.handleAnalysisJobsWS) // supplement (SPEC_FULL §12)
	mux.HandleFunc("/analysis-jobs/", s.routeAnalysisJobs)

	// Sessions (spec §4.1, §6)
	mux.HandleFunc("/sessions/bulk", s.handleSessionsBulkDelete)
	mux.HandleFunc("/sessions/", s.handleSessionByID)
	mux.HandleFunc("/sessions", s.handleSessionList)
}

// routeAnalysisJobs dispatches /analysis-jobs/{id} and /analysis-jobs/{id}/*
// sub-routes.
func (s *Server) routeAnalysisJobs(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/analysis-jobs/")
	parts := strings.SplitN(path, "/", 2)
	jobID := parts[0]
	if jobID == "" {
		WriteError(w, http.StatusNotFound, "job id is required")
		return
	}

	if len(parts) == 1 {
		s.handleAnalysisJobGet(w, r, jobID)
		return
	}

	switch parts[1] {
	case "export-pdf":
		s.handleAnalysisJobExportPDF(w, r, jobID)
	case "logs":
		s.handleAnalysisJobLogs(w, r, jobID)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// --- Upload lifecycle handlers (spec §6) ---

// handleUploadInitiate handles POST /videos/upload/initiate.
func (s *Server) handleUploadInitiate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var body struct {
		SessionID     string `json:"session_id"`
		SampleFPS     int    `json:"sample_fps"`
		IncludeFrames bool   `json:"include_frames"`
	}
	if !DecodeJSON(w, r, &body) {
		return
	}
	if body.SessionID == "" {
		WriteError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if body.SampleFPS <= 0 {
		body.SampleFPS = 5
	}

	ownerID := common.ResolveUserID(r.Context())

	result, err := s.app.Upload.InitiateUpload(r.Context(), ownerID, body.SessionID, body.SampleFPS, body.IncludeFrames)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// handleUploadComplete handles POST /videos/upload/complete.
func (s *Server) handleUploadComplete(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var body struct {
		JobID string `json:"job_id"`
	}
	if !DecodeJSON(w, r, &body) {
		return
	}
	if body.JobID == "" {
		WriteError(w, http.StatusBadRequest, "job_id is required")
		return
	}

	result, err := s.app.Upload.CompleteUpload(r.Context(), body.JobID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// --- Analysis job handlers (spec §4.2, §4.5, §6, §12) ---

// handleAnalysisJobGet handles GET /analysis-jobs/{id}.
func (s *Server) handleAnalysisJobGet(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	job, err := s.app.Store.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if job == nil {
		WriteError(w, http.StatusNotFound, "job not found")
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// handleAnalysisJobExportPDF handles POST /analysis-jobs/{id}/export-pdf.
func (s *Server) handleAnalysisJobExportPDF(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	pdfBytes, err := s.app.Export.ExportReport(r.Context(), jobID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+jobID+".pdf\"")
	w.WriteHeader(http.StatusOK)
	w.Write(pdfBytes)
}

// handleAnalysisJobLogs handles GET /analysis-jobs/{id}/logs — the per-job
// structured log trail (SPEC_FULL §12 supplement). The worker tags every
// log line it emits for a job with the job ID as correlation ID
// (internal/worker/pool.go), so the same arbor memory-log lookup the
// diagnostics endpoint uses serves per-job logs here.
func (s *Server) handleAnalysisJobLogs(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	job, err := s.app.Store.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if job == nil {
		WriteError(w, http.StatusNotFound, "job not found")
		return
	}

	logs, err := s.app.Logger.GetMemoryLogsForCorrelation(jobID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load logs: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": jobID,
		"logs":   logs,
	})
}

// handleAnalysisJobsWS handles GET /analysis-jobs/ws — upgrades to a
// WebSocket that streams JobEvent broadcasts from the progress hub
// (SPEC_FULL §12 supplement, grounded on the teacher's admin-jobs WebSocket
// upgrade pattern). A bearer token is required; the hub itself doesn't
// filter by ownership — each client is expected to filter on job IDs it
// already knows about. Any authenticated caller may watch the shared job
// feed; no admin role is checked.
func (s *Server) handleAnalysisJobsWS(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if common.AuthContextFromContext(r.Context()) == nil {
		WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	s.app.Hub.ServeWS(w, r)
}

// --- Session handlers (spec §4.1, §6) ---

// handleSessionList handles GET /sessions.
func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	opts := interfaces.SessionListOptions{
		OwnerID:       common.ResolveUserID(r.Context()),
		Limit:         queryInt(q, "limit", 50),
		Offset:        queryInt(q, "offset", 0),
		StatusFilter:  models.SessionStatus(q.Get("status_filter")),
		ExcludeFailed: true,
	}
	if v := q.Get("exclude_failed"); v != "" {
		opts.ExcludeFailed = v != "false" && v != "0"
	}

	sessions, err := s.app.Store.ListSessions(r.Context(), opts)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// handleSessionByID handles DELETE /sessions/{id}.
func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/sessions/")
	if sessionID == "" {
		WriteError(w, http.StatusNotFound, "session id is required")
		return
	}

	session, err := s.app.Store.GetSession(r.Context(), sessionID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if session == nil {
		WriteError(w, http.StatusNotFound, "session not found")
		return
	}
	if ac := common.AuthContextFromContext(r.Context()); ac != nil && !ac.IsAdmin() && !ac.IsOwner(session.OwnerID) {
		WriteError(w, http.StatusForbidden, "caller does not own this session")
		return
	}

	if err := s.app.Upload.DeleteSession(r.Context(), sessionID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleSessionsBulkDelete handles DELETE /sessions/bulk?status_filter=&older_than_days=.
func (s *Server) handleSessionsBulkDelete(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	q := r.URL.Query()
	opts := interfaces.BulkDeleteOptions{
		OwnerID:      common.ResolveUserID(r.Context()),
		StatusFilter: models.SessionStatus(q.Get("status_filter")),
	}
	if days := q.Get("older_than_days"); days != "" {
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			cutoff := time.Now().AddDate(0, 0, -n)
			opts.OlderThan = &cutoff
		}
	}

	deleted, err := s.app.Store.DeleteSessionsBulk(r.Context(), opts)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s3Deleted := 0
	for _, sess := range deleted {
		jobs, err := s.app.Store.ListJobsBySession(r.Context(), sess.ID)
		if err != nil {
			continue
		}
		for _, job := range jobs {
			if job.S3Key == "" {
				continue
			}
			if err := s.app.Blobs.Delete(r.Context(), job.S3Key); err == nil {
				s3Deleted++
			}
		}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"deleted_count":    len(deleted),
		"s3_files_deleted": s3Deleted,
	})
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	correlationID := r.URL.Query().Get("correlation_id")
	limit := queryInt(r.URL.Query(), "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	uptime := time.Since(s.app.StartupTime).Round(time.Second)

	resp := map[string]interface{}{
		"version":    common.GetVersion(),
		"build":      common.GetBuild(),
		"commit":     common.GetGitCommit(),
		"uptime":     uptime.String(),
		"started_at": s.app.StartupTime,
	}

	if correlationID != "" {
		logs, err := s.app.Logger.GetMemoryLogsForCorrelation(correlationID)
		if err == nil {
			resp["correlation_logs"] = logs
		}
	}

	logs, err := s.app.Logger.GetMemoryLogsWithLimit(limit)
	if err == nil {
		resp["recent_logs"] = logs
	}

	WriteJSON(w, http.StatusOK, resp)
}

// handleShutdown handles POST /shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}

func (s *Server) handleMemstats(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"heap_alloc_bytes": m.HeapAlloc,
		"heap_inuse_bytes": m.HeapInuse,
		"heap_idle_bytes":  m.HeapIdle,
		"sys_bytes":        m.Sys,
		"num_gc":           m.NumGC,
		"heap_alloc_mb":    float64(m.HeapAlloc) / 1024 / 1024,
		"heap_inuse_mb":    float64(m.HeapInuse) / 1024 / 1024,
		"heap_idle_mb":     float64(m.HeapIdle) / 1024 / 1024,
		"sys_mb":           float64(m.Sys) / 1024 / 1024,
	})
}

// --- shared helpers ---

// writeDomainError maps a domain-layer error to the HTTP status the
// sentinel taxonomy names (spec §7 propagation policy).
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.Kind(err)
	status := kind.HTTPStatus()
	if status >= 500 {
		s.logger.Error().Str("path", r.URL.Path).Err(err).Msg("Request failed")
	}
	WriteError(w, status, err.Error())
}

func queryInt(q map[string][]string, key string, def int) int {
	v := urlQueryGet(q, key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func urlQueryGet(q map[string][]string, key string) string {
	vals, ok := q[key]
	if !ok || len(vals) == 0 {
		return ""
	}
	return vals[0]
}
