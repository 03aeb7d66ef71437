// Package api serves the monitoring HTTP surface: live tracker snapshots,
// session persistence and exports, and the detection ingest endpoint.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/roadmetrics/trafficwatch/internal/config"
	"github.com/roadmetrics/trafficwatch/internal/db"
	"github.com/roadmetrics/trafficwatch/internal/detect"
	"github.com/roadmetrics/trafficwatch/internal/pipeline"
	"github.com/roadmetrics/trafficwatch/internal/report"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server exposes the pipeline and sessions store over HTTP.
type Server struct {
	pipe   *pipeline.Pipeline
	store  *db.DB
	cfg    *config.TuningConfig
	ingest *detect.ChanStream
}

// NewServer creates a Server. store and ingest may be nil, which disables
// the sessions and ingest endpoints respectively.
func NewServer(pipe *pipeline.Pipeline, store *db.DB, cfg *config.TuningConfig, ingest *detect.ChanStream) *Server {
	return &Server{pipe: pipe, store: store, cfg: cfg, ingest: ingest}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/snapshot", s.showSnapshot)
	mux.HandleFunc("/reset", s.resetTracker)
	mux.HandleFunc("/sessions", s.handleSessions)
	mux.HandleFunc("/sessions.csv", s.exportSessionsCSV)
	mux.HandleFunc("/summary", s.showSummary)
	mux.HandleFunc("/chart", s.showChart)
	mux.HandleFunc("/plot.png", s.showPlot)
	mux.HandleFunc("/config", s.showConfig)
	mux.HandleFunc("/ingest", s.ingestFrame)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func (s *Server) showSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, s.pipe.Snapshot())
}

func (s *Server) resetTracker(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.pipe.Reset()
	s.writeJSON(w, map[string]string{"status": "reset", "session_id": s.pipe.SessionID()})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listSessions(w, r)
	case http.MethodPost:
		s.saveSession(w, r)
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeJSONError(w, http.StatusNotImplemented, "session store disabled")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	sessions, err := s.store.ListSessions(r.Context(), limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, sessions)
}

func (s *Server) saveSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.pipe.SaveSession(r.Context())
	if err == pipeline.ErrEmptySession {
		s.writeJSONError(w, http.StatusConflict, "no vehicles counted this session")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, session)
}

func (s *Server) exportSessionsCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.store == nil {
		s.writeJSONError(w, http.StatusNotImplemented, "session store disabled")
		return
	}
	sessions, err := s.store.ListSessions(r.Context(), 0)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="traffic_sessions.csv"`)
	if err := report.WriteSessionsCSV(w, sessions); err != nil {
		log.Printf("failed to write csv export: %v", err)
	}
}

func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeJSONError(w, http.StatusNotImplemented, "session store disabled")
		return
	}
	sessions, err := s.store.ListSessions(r.Context(), 0)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, report.Summarize(sessions))
}

func (s *Server) showChart(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeJSONError(w, http.StatusNotImplemented, "session store disabled")
		return
	}
	sessions, err := s.store.ListSessions(r.Context(), 0)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderSessionsChart(w, sessions); err != nil {
		log.Printf("failed to render chart: %v", err)
	}
}

func (s *Server) showPlot(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeJSONError(w, http.StatusNotImplemented, "session store disabled")
		return
	}
	sessions, err := s.store.ListSessions(r.Context(), 0)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	png, err := report.RenderTotalsPlot(sessions)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	// Report effective values, not just the fields present in the file.
	s.writeJSON(w, map[string]any{
		"confidence_threshold":   s.cfg.GetConfidenceThreshold(),
		"use_gpu":                s.cfg.GetUseGPU(),
		"skip_frames":            s.cfg.GetSkipFrames(),
		"distance_threshold":     s.cfg.GetDistanceThreshold(),
		"movement_threshold":     s.cfg.GetMovementThreshold(),
		"max_missed_frames":      s.cfg.GetMaxMissedFrames(),
		"parked_frame_threshold": s.cfg.GetParkedFrameThreshold(),
		"history_length":         s.cfg.GetHistoryLength(),
		"counting_policy":        s.cfg.GetCountingPolicy(),
		"confirm_frames":         s.cfg.GetConfirmFrames(),
		"count_parked":           s.cfg.GetCountParked(),
	})
}

// ingestFrame accepts one frame of detections from an external oracle and
// queues it for the pipeline.
func (s *Server) ingestFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.ingest == nil {
		s.writeJSONError(w, http.StatusNotImplemented, "ingest disabled")
		return
	}
	var frame detect.Frame
	if err := json.NewDecoder(r.Body).Decode(&frame); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid frame payload: "+err.Error())
		return
	}
	if frame.Time.IsZero() {
		frame.Time = time.Now()
	}
	if err := s.ingest.Push(frame); err != nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"status": "queued", "frame": frame.Index})
}
