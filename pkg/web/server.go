// Package web serves a saved navigation report as HTML and a JSON API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/lens"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/logging"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/model"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/pubsub"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/query"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/report"
)

// Server represents the report server
type Server struct {
	router     *mux.Router
	reportPath string
	publisher  *pubsub.SSEPublisher
	logger     *slog.Logger

	mu     sync.RWMutex
	report *model.Report
	html   []byte
}

// NewServer creates a server for the report at reportPath. The report is not
// read until Reload is called.
func NewServer(reportPath string, publisher *pubsub.SSEPublisher) *Server {
	if publisher == nil {
		publisher = NewPublisher()
	}
	s := &Server{
		router:     mux.NewRouter(),
		reportPath: reportPath,
		publisher:  publisher,
		logger:     logging.New("web"),
	}
	s.setupRoutes()
	return s
}

// NewPublisher creates a publisher with the replay policy the server expects:
// a new viewer sees the current analysis state and the latest report.
func NewPublisher() *pubsub.SSEPublisher {
	p := pubsub.NewSSEPublisher()
	p.ConfigureTopic(pubsub.TopicAnalysis, pubsub.TopicConfig{BufferSize: 10})
	p.ConfigureTopic(pubsub.TopicReport, pubsub.TopicConfig{BufferSize: 1})
	return p
}

// Publisher returns the publisher backing the subscribe endpoints
func (s *Server) Publisher() *pubsub.SSEPublisher {
	return s.publisher
}

// Reload reads the report from disk and re-renders the HTML page. On error
// the previously loaded report stays in place.
func (s *Server) Reload() error {
	rep, err := report.Load(s.reportPath)
	if err != nil {
		return err
	}
	page, err := report.RenderHTML(rep)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.report, s.html = rep, page
	s.mu.Unlock()

	s.logger.Info("report loaded", "path", s.reportPath, "pages", len(rep.Pages))
	return nil
}

// FollowReports reloads the report every time a new one is published, until ctx is done
func (s *Server) FollowReports(ctx context.Context) error {
	sub, err := s.publisher.Subscribe(ctx, pubsub.TopicReport)
	if err != nil {
		return err
	}
	defer sub.Close()

	for range sub.Events() {
		if err := s.Reload(); err != nil {
			s.logger.Error("failed to reload report", "error", err)
		}
	}
	return ctx.Err()
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestLogger)

	s.router.HandleFunc("/api/subscribe/{topic}", s.handleSubscribe).Methods("GET")

	s.router.HandleFunc("/api/report", s.handleReport).Methods("GET")
	s.router.HandleFunc("/api/pages", s.handlePages).Methods("GET")
	s.router.HandleFunc("/api/pages/{name}", s.handlePage).Methods("GET")
	s.router.HandleFunc("/api/search", s.handleSearch).Methods("GET")
	s.router.HandleFunc("/api/focus", s.handleFocus).Methods("GET")

	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
}

// current returns the loaded report, or writes 503 and returns nil
func (s *Server) current(w http.ResponseWriter) *model.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.report == nil {
		writeError(w, http.StatusServiceUnavailable, (&report.MissingReportError{Path: s.reportPath}).Error())
		return nil
	}
	return s.report
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	page := s.html
	s.mu.RUnlock()

	if page == nil {
		http.Error(w, (&report.MissingReportError{Path: s.reportPath}).Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if rep := s.current(w); rep != nil {
		writeJSON(w, http.StatusOK, rep)
	}
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	rep := s.current(w)
	if rep == nil {
		return
	}
	entries, err := query.List(rep, r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	rep := s.current(w)
	if rep == nil {
		return
	}
	name := mux.Vars(r)["name"]
	page, ok := query.Lookup(rep, name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("page not found: %s", name))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	rep := s.current(w)
	if rep == nil {
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	writeJSON(w, http.StatusOK, query.Search(rep, q))
}

// defaultFocusDepth is used when /api/focus has no depth parameter
const defaultFocusDepth = 1

// handleFocus serves the graph around ?page=A&page=B within ?depth=N hops
func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	rep := s.current(w)
	if rep == nil {
		return
	}

	depth := defaultFocusDepth
	if d := r.URL.Query().Get("depth"); d != "" {
		var err error
		if depth, err = strconv.Atoi(d); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid depth %q", d))
			return
		}
	}

	view, err := lens.Focus(&rep.Graph, r.URL.Query()["page"], depth)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	if topic != pubsub.TopicAnalysis && topic != pubsub.TopicReport {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown topic: %s", topic))
		return
	}

	sub, err := s.publisher.Subscribe(r.Context(), topic)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	// Initial comment establishes the stream (Safari)
	fmt.Fprint(w, ": connected\n\n")
	flush()

	for event := range sub.Events() {
		if err := pubsub.WriteSSE(w, event); err != nil {
			logging.WarnContext(r.Context(), "failed to write SSE event", "topic", topic, "error", err)
			return
		}
		flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		logging.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Start serves on port until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting report server", "url", fmt.Sprintf("http://localhost:%d", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Close subscriptions first so streaming handlers return
	s.publisher.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
