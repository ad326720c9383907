package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/catid/timesync/internal/config"
	"github.com/catid/timesync/internal/peersync"
	"github.com/catid/timesync/pkg/logger"
)

// Handlers contains HTTP request handlers
type Handlers struct {
	config   *config.Config
	registry *prometheus.Registry
	manager  *peersync.Manager
}

// NewHandlers creates a new handlers instance
func NewHandlers(cfg *config.Config, registry *prometheus.Registry, mgr *peersync.Manager) *Handlers {
	return &Handlers{
		config:   cfg,
		registry: registry,
		manager:  mgr,
	}
}

// MetricsHandler serves Prometheus metrics
func (h *Handlers) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	handler := promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{
		ErrorLog:      &loggerAdapter{},
		ErrorHandling: promhttp.ContinueOnError,
	})

	handler.ServeHTTP(w, r)
}

// HealthHandler returns health status
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := `{"status":"healthy","service":"timesyncd"}`
	w.Write([]byte(response))
}

// peerView is the JSON shape of one tracked peer, returned by PeersHandler.
type peerView struct {
	Peer            string `json:"peer"`
	State           string `json:"state"`
	OWDUsec         uint32 `json:"owd_usec"`
	ClockOffsetUsec int32  `json:"clock_offset_usec"`
	LastSeen        string `json:"last_seen"`
}

// PeersHandler returns a JSON snapshot of every tracked peer's
// synchronization state.
func (h *Handlers) PeersHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := h.manager.Snapshot()

	views := make([]peerView, 0, len(snapshot))
	for _, status := range snapshot {
		views = append(views, peerView{
			Peer:            string(status.Peer),
			State:           status.State.String(),
			OWDUsec:         status.OWDUsec,
			ClockOffsetUsec: status.ClockOffsetUsec,
			LastSeen:        status.LastSeen.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(views); err != nil {
		logger.Error("server", "Failed to encode peers response", err)
	}
}

// IndexHandler serves the index page
func (h *Handlers) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)

	// Build HTML response without fmt
	html := `<!DOCTYPE html>
<html>
<head>
    <title>timesyncd</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        h1 { color: #333; }
        ul { list-style-type: none; padding: 0; }
        li { margin: 10px 0; }
        a { color: #0066cc; text-decoration: none; }
        a:hover { text-decoration: underline; }
        .info { background-color: #f0f0f0; padding: 15px; border-radius: 5px; }
    </style>
</head>
<body>
    <h1>timesyncd</h1>
    <div class="info">
        <h2>Available Endpoints:</h2>
        <ul>
            <li><a href="/metrics">/metrics</a> - Prometheus metrics</li>
            <li><a href="/health">/health</a> - Health check</li>
            <li><a href="/peers">/peers</a> - Tracked peer state</li>
        </ul>
        <h2>Configuration:</h2>
        <ul>
            <li>Peers configured: ` + strconv.Itoa(len(h.config.Transport.Peers)) + `</li>
            <li>Listen address: ` + h.config.Transport.ListenAddress + `</li>
            <li>Window: ` + strconv.FormatInt(h.config.PeerSync.WindowUsec, 10) + ` usec</li>
            <li>Peer TTL: ` + h.config.PeerSync.PeerTTL.String() + `</li>
            <li>Max concurrency: ` + strconv.Itoa(h.config.PeerSync.MaxConcurrency) + `</li>
        </ul>
    </div>
</body>
</html>`

	w.Write([]byte(html))
}

// loggerAdapter adapts pkg/logger to promhttp logger interface
type loggerAdapter struct{}

func (l *loggerAdapter) Println(v ...interface{}) {
	// Convert v to string without fmt
	msg := ""
	for i, val := range v {
		if i > 0 {
			msg += " "
		}
		if s, ok := val.(string); ok {
			msg += s
		} else if err, ok := val.(error); ok {
			msg += err.Error()
		}
	}
	logger.Error("promhttp", msg, nil)
}
