// Package server exposes the HTTP API: live track adjudication, incident
// submission for the multi-agent path, conversation history, and the
// Prometheus scrape endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/storewatch/storewatch/internal/agents"
	"github.com/storewatch/storewatch/internal/convstore"
	"github.com/storewatch/storewatch/internal/event"
	"github.com/storewatch/storewatch/internal/metrics"
	"github.com/storewatch/storewatch/internal/pipeline"
	"github.com/storewatch/storewatch/internal/suspicion"
	"github.com/storewatch/storewatch/internal/track"
	"github.com/storewatch/storewatch/internal/zone"
)

// Adjudicator runs one incident through the multi-agent path.
type Adjudicator interface {
	AnalyzeIncident(ctx context.Context, in agents.IncidentInput) (agents.Outcome, error)
}

// Server is the HTTP front end. All collaborators are injected by the
// composition root; nil Store and nil Adjudicator disable their routes
// with 503.
type Server struct {
	Addr        string
	Tracker     *track.Tracker
	Zones       []zone.Zone
	History     *zone.History
	Pipeline    *pipeline.Pipeline
	Adjudicator Adjudicator
	Store       *convstore.Store
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger

	// LocationFor maps a camera id to its configured location label.
	LocationFor func(cameraID string) string
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/track", s.handleTrack)
		r.Post("/events", s.handleEvent)
		r.Post("/incidents", s.handleIncident)
		r.Get("/conversations", s.handleConversations)
		r.Get("/conversations/{id}", s.handleConversation)
		r.Get("/stats", s.handleStats)
	})

	return r
}

// ListenAndServe runs the HTTP server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	s.Logger.Info().Str("addr", s.Addr).Msg("http server listening")

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.Store != nil {
		if _, err := s.Store.Statistics(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "store unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// trackRequest is one frame's worth of person detections from a camera.
type trackRequest struct {
	CameraID   string            `json:"camera_id"`
	Location   string            `json:"location,omitempty"`
	Detections []track.Detection `json:"detections"`
	FramePaths []string          `json:"frame_paths,omitempty"`
	FrameW     float64           `json:"frame_w,omitempty"`
	FrameH     float64           `json:"frame_h,omitempty"`
	NowMS      int64             `json:"now_ms,omitempty"`
}

// trackResult is the per-person outcome for one frame.
type trackResult struct {
	TrackID   string           `json:"track_id"`
	Suspicion suspicion.Result `json:"suspicion"`
	Pipeline  pipeline.Result  `json:"pipeline"`
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	if s.Tracker == nil || s.Pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "track pipeline not configured")
		return
	}

	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.CameraID == "" {
		writeError(w, http.StatusBadRequest, "camera_id is required")
		return
	}

	nowMS := req.NowMS
	if nowMS == 0 {
		nowMS = time.Now().UnixMilli()
	}
	location := req.Location
	if location == "" && s.LocationFor != nil {
		location = s.LocationFor(req.CameraID)
	}

	persons := s.Tracker.Update(req.Detections, nowMS)
	if s.Metrics != nil {
		s.Metrics.TracksActive.Set(float64(len(s.Tracker.Active())))
	}

	results := make([]trackResult, 0, len(persons))
	for _, p := range persons {
		visits := s.observe(p, req, nowMS)
		sus := suspicion.Evaluate(suspicion.Input{
			Track:       p,
			CameraID:    req.CameraID,
			Location:    location,
			Zones:       s.Zones,
			ZoneHistory: visits,
			NowMS:       nowMS,
			FrameW:      req.FrameW,
			FrameH:      req.FrameH,
		})

		start := time.Now()
		res := s.Pipeline.Run(r.Context(), pipeline.Input{
			Track:      p,
			CameraID:   req.CameraID,
			Location:   location,
			Suspicion:  sus,
			FramePaths: req.FramePaths,
			NowMS:      nowMS,
		})
		if s.Metrics != nil {
			s.Metrics.RecordPipeline(res.Status, res.SuppressedReason, res.VoiceUsed, time.Since(start).Seconds())
		}

		results = append(results, trackResult{TrackID: p.TrackID, Suspicion: sus, Pipeline: res})
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// observe records the person's position against the zone map and returns
// the accumulated visit history for suspicion scoring.
func (s *Server) observe(p *track.Person, req trackRequest, nowMS int64) []zone.Visit {
	if s.History == nil {
		return nil
	}
	b := p.Bbox
	x := (b.X1 + b.X2) / 2
	y := b.Y2
	if req.FrameW > 0 && req.FrameH > 0 {
		x /= req.FrameW
		y /= req.FrameH
	}
	return s.History.Observe(p.TrackID, zone.Point{X: x, Y: y}, s.Zones, nowMS)
}

// handleEvent accepts an externally produced shoplifting event and runs it
// through the gate, voice, log tail. The event's own confidence and
// timestamp drive the gate; no tracker or judge is involved.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if s.Pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "alert pipeline not configured")
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	ev, err := event.Parse(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	nowMS := int64(0)
	if at, err := time.Parse(time.RFC3339, ev.Timestamp); err == nil {
		nowMS = at.UnixMilli()
	}

	if s.Metrics != nil {
		s.Metrics.EventsIngested.Inc()
	}

	start := time.Now()
	res := s.Pipeline.RunEvent(r.Context(), *ev, nowMS)
	if s.Metrics != nil {
		s.Metrics.RecordPipeline(res.Status, res.SuppressedReason, res.VoiceUsed, time.Since(start).Seconds())
	}

	writeJSON(w, http.StatusOK, map[string]any{"event": ev, "result": res})
}

func (s *Server) handleIncident(w http.ResponseWriter, r *http.Request) {
	if s.Adjudicator == nil {
		writeError(w, http.StatusServiceUnavailable, "adjudicator not configured")
		return
	}

	var in agents.IncidentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.Metrics != nil {
		s.Metrics.EventsIngested.Inc()
		s.Metrics.ConversationsTotal.Inc()
	}

	out, err := s.Adjudicator.AnalyzeIncident(r.Context(), in)
	if err != nil {
		s.Logger.Error().Err(err).Str("incident_id", in.IncidentID).Msg("adjudication failed")
		writeError(w, http.StatusInternalServerError, "adjudication failed")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "conversation store not configured")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	convs, err := s.Store.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "conversation store not configured")
		return
	}
	id := chi.URLParam(r, "id")
	conv, err := s.Store.Get(r.Context(), id)
	if errors.Is(err, convstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	resp := map[string]any{"conversation": conv}
	if concl, err := s.Store.Conclusion(r.Context(), id); err == nil {
		resp["conclusion"] = concl
	}
	if analyses, err := s.Store.Analyses(r.Context(), id); err == nil && len(analyses) > 0 {
		resp["analyses"] = analyses
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "conversation store not configured")
		return
	}
	stats, err := s.Store.Statistics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
