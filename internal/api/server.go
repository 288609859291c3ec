// Package api exposes the receiver's status surface over HTTP: live stats,
// the frame index, a preview image of the latest frame and a throughput
// chart. It is a status API, not a UI.
package api

import (
	"image/png"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/polarisvision/camlink/internal/camera"
	"github.com/polarisvision/camlink/internal/db"
	"github.com/polarisvision/camlink/internal/httputil"
	"github.com/polarisvision/camlink/internal/version"
)

// ANSI escape codes for request log colouring
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server serves the status API for one receive session.
type Server struct {
	session *camera.Session
	db      *db.DB

	mu         sync.RWMutex
	latest     []uint16
	latestW    int
	latestH    int
	falseColor bool
}

// NewServer wires the API over a session and an optional frame index.
func NewServer(session *camera.Session, database *db.DB, falseColor bool) *Server {
	return &Server{session: session, db: database, falseColor: falseColor}
}

// SetLatest copies the frame's samples so the preview endpoint can render
// them after the consumer releases the pool buffer.
func (s *Server) SetLatest(f *camera.DecodedFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cap(s.latest) < len(f.Pixels) {
		s.latest = make([]uint16, len(f.Pixels))
	}
	s.latest = s.latest[:len(f.Pixels)]
	copy(s.latest, f.Pixels)
	s.latestW = int(f.Width)
	s.latestH = int(f.Height)
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/frames", s.handleFrames)
	mux.HandleFunc("/api/preview", s.handlePreview)
	mux.HandleFunc("/api/chart", s.handleChart)
	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration.
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

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// statsResponse is the /api/stats payload.
type statsResponse struct {
	SessionID      string  `json:"session_id"`
	State          string  `json:"state"`
	FramesReceived int64   `json:"frames_received"`
	BytesReceived  int64   `json:"bytes_received"`
	AvgFPS         float64 `json:"avg_fps"`
	StartTime      string  `json:"start_time,omitempty"`
	LastFrameTime  string  `json:"last_frame_time,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.session.Stats()
	resp := statsResponse{
		SessionID:      s.session.ID(),
		State:          s.session.State().String(),
		FramesReceived: st.FramesReceived,
		BytesReceived:  st.BytesReceived,
		AvgFPS:         st.AvgFPS,
	}
	if !st.StartTime.IsZero() {
		resp.StartTime = st.StartTime.Format(time.RFC3339Nano)
		resp.LastFrameTime = st.LastFrameTime.Format(time.RFC3339Nano)
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		httputil.NotFound(w, "frame index disabled")
		return
	}
	limit := 100
	if q := r.URL.Query().Get("limit"); q != "" {
		if v, err := strconv.Atoi(q); err == nil {
			limit = v
		}
	}
	rows, err := s.db.RecentFrames(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]any{"frames": rows, "count": len(rows)})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	pixels := make([]uint16, len(s.latest))
	copy(pixels, s.latest)
	fw, fh := s.latestW, s.latestH
	s.mu.RUnlock()

	if fw == 0 || fh == 0 {
		httputil.NotFound(w, "no frame received yet")
		return
	}

	falseColor := s.falseColor
	if q := r.URL.Query().Get("falsecolor"); q != "" {
		falseColor = q == "1" || q == "true"
	}
	norm := camera.Normalizer{FalseColor: falseColor}
	img, err := norm.Image(&camera.DecodedFrame{
		Width:  uint32(fw),
		Height: uint32(fh),
		Pixels: pixels,
	})
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		log.Printf("api: encode preview: %v", err)
	}
}
