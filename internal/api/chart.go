package api

import (
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/polarisvision/camlink/internal/httputil"
)

// handleChart renders an HTML line chart of the session's throughput
// samples. A quick visual check without the full report tooling; the offline
// stats-report command produces the archival PNG.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		httputil.NotFound(w, "frame index disabled")
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = s.session.ID()
	}
	samples, err := s.db.Samples(sessionID, 0)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if len(samples) == 0 {
		httputil.NotFound(w, "no samples for session")
		return
	}

	labels := make([]string, len(samples))
	fps := make([]opts.LineData, len(samples))
	megabytes := make([]opts.LineData, len(samples))
	for i, sm := range samples {
		labels[i] = sm.SampledAt.Format(time.TimeOnly)
		fps[i] = opts.LineData{Value: sm.AvgFPS}
		megabytes[i] = opts.LineData{Value: float64(sm.BytesReceived) / (1024 * 1024)}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "camlink session throughput",
			Subtitle: sessionID,
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)
	line.SetXAxis(labels).
		AddSeries("avg fps", fps).
		AddSeries("MB received", megabytes)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(w); err != nil {
		httputil.InternalServerError(w, err.Error())
	}
}
