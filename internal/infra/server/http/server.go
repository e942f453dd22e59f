// Package httpserver exposes the read-only operations surface: metrics,
// health, the algorithm catalogue, running instances and the call journal.
package httpserver

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coachpo/algohost/internal/app/lambda/runtime"
	"github.com/coachpo/algohost/internal/domain/algo"
	"github.com/coachpo/algohost/internal/domain/journal"
	"github.com/coachpo/algohost/internal/observability"
)

const (
	metricsPath    = "/metrics"
	healthPath     = "/healthz"
	algorithmsPath = "/algorithms"
	instancesPath  = "/instances"
	journalPath    = "/journal"

	defaultJournalLimit = 100
	maxJournalLimit     = 1000
)

// Options configures the handler. Nil components disable their routes.
type Options struct {
	Discovery *runtime.Discovery
	Journal   journal.Store
	Gatherer  prometheus.Gatherer
	Logger    observability.Logger
}

type handlerFunc func(http.ResponseWriter, *http.Request)

type httpServer struct {
	discovery *runtime.Discovery
	journal   journal.Store
	logger    observability.Logger
}

// NewHandler builds the operations mux.
func NewHandler(opts Options) http.Handler {
	server := &httpServer{
		discovery: opts.Discovery,
		journal:   opts.Journal,
		logger:    observability.OrNop(opts.Logger),
	}
	mux := http.NewServeMux()

	if opts.Gatherer != nil {
		mux.Handle(metricsPath, promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	mux.Handle(healthPath, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet: server.health,
	}))
	if server.discovery != nil {
		mux.Handle(algorithmsPath, server.methodHandlers(map[string]handlerFunc{
			http.MethodGet: server.listAlgorithms,
		}))
		mux.Handle(instancesPath, server.methodHandlers(map[string]handlerFunc{
			http.MethodGet: server.listInstances,
		}))
	}
	if server.journal != nil {
		mux.Handle(journalPath, server.methodHandlers(map[string]handlerFunc{
			http.MethodGet: server.listJournal,
		}))
	}
	return mux
}

func (s *httpServer) methodHandlers(handlers map[string]handlerFunc) http.Handler {
	allowed := allowedMethods(handlers)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler(w, r)
			return
		}
		methodNotAllowed(w, allowed...)
	})
}

func allowedMethods(handlers map[string]handlerFunc) []string {
	if len(handlers) == 0 {
		return nil
	}
	allowed := make([]string, 0, len(handlers))
	for method := range handlers {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	return allowed
}

func (s *httpServer) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *httpServer) listAlgorithms(w http.ResponseWriter, r *http.Request) {
	available := s.discovery.ListAvailable(r.Context(), r.URL.Query().Get("filter"))
	if available == nil {
		available = []algo.Descriptor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"algorithms": available})
}

type instanceView struct {
	InstanceID string          `json:"instanceId"`
	Algorithm  algo.Descriptor `json:"algorithm"`
	State      string          `json:"state"`
	Config     algo.Config     `json:"config"`
	CreatedAt  time.Time       `json:"createdAt"`
}

func (s *httpServer) listInstances(w http.ResponseWriter, r *http.Request) {
	running := s.discovery.ListRunning(r.Context(), r.URL.Query().Get("filter"))
	out := make([]instanceView, 0, len(running))
	for _, snap := range running {
		out = append(out, instanceView{
			InstanceID: snap.InstanceID,
			Algorithm:  snap.Descriptor,
			State:      snap.State.String(),
			Config:     snap.Config,
			CreatedAt:  snap.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"instances": out})
}

type journalView struct {
	ID         string          `json:"id"`
	InstanceID string          `json:"instanceId"`
	MessageID  int64           `json:"messageId"`
	Operation  string          `json:"operation"`
	Request    json.RawMessage `json:"request,omitempty"`
	Success    bool            `json:"success"`
	Error      string          `json:"error,omitempty"`
	RecordedAt time.Time       `json:"recordedAt"`
}

func (s *httpServer) listJournal(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := defaultJournalLimit
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxJournalLimit)
	}
	entries, err := s.journal.List(r.Context(), strings.TrimSpace(query.Get("instance")), limit)
	if err != nil {
		s.logger.Warn("journal query failed", observability.Err(err))
		writeError(w, http.StatusInternalServerError, "journal unavailable")
		return
	}
	out := make([]journalView, 0, len(entries))
	for _, e := range entries {
		out = append(out, journalView{
			ID:         e.ID.String(),
			InstanceID: e.InstanceID,
			MessageID:  e.MessageID,
			Operation:  string(e.Operation),
			Request:    e.Request,
			Success:    e.Success,
			Error:      e.Error,
			RecordedAt: e.RecordedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": message})
}
