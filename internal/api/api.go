// Package api provides HTTP handlers and the main API server logic for DriverDesk.
//
// It exposes the Twilio WhatsApp webhook plus a small set of ops
// endpoints for the back office: marking requests done, triggering a
// status check pass, and clearing conversation state.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/twilio/twilio-go/twiml"

	"github.com/treelogistics/driverdesk/internal/flow"
	"github.com/treelogistics/driverdesk/internal/models"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8080"

const shutdownTimeout = 10 * time.Second

// RequestAdmin is the slice of the request store the ops endpoints need.
type RequestAdmin interface {
	MarkDone(ctx context.Context, rowID string) (*models.DriverRequest, error)
	AllRequests(ctx context.Context) ([]models.DriverRequest, error)
}

// StatusChecker runs one completion-notification pass on demand.
type StatusChecker interface {
	CheckAndNotify(ctx context.Context) error
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server wires the conversation engine and stores to HTTP.
type Server struct {
	engine   *flow.Engine
	flows    flow.Store
	requests RequestAdmin
	checker  StatusChecker
	httpSrv  *http.Server
}

// NewServer creates the API server.
func NewServer(engine *flow.Engine, flows flow.Store, requests RequestAdmin, checker StatusChecker, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{
		engine:   engine,
		flows:    flows,
		requests: requests,
		checker:  checker,
	}
	s.httpSrv = &http.Server{Addr: cfg.Addr, Handler: s.Handler()}
	return s
}

// Handler builds the HTTP route table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthHandler)
	r.Post("/webhook/whatsapp", s.webhookHandler)
	r.Get("/requests", s.listRequestsHandler)
	r.Post("/requests/{rowID}/done", s.markDoneHandler)
	r.Post("/check-status", s.checkStatusHandler)
	r.Post("/clear-flows", s.clearFlowsHandler)

	return r
}

// Run starts the HTTP server and blocks until the context is cancelled
// or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	active, err := s.flows.ActiveCount(r.Context())
	if err != nil {
		slog.Error("healthHandler failed to count flows", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("flow store unavailable"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{"active_flows": active}))
}

// webhookHandler handles inbound Twilio WhatsApp messages and answers
// inline with TwiML.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("webhookHandler failed to parse form", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	from := strings.TrimPrefix(r.PostFormValue("From"), "whatsapp:")
	body := r.PostFormValue("Body")
	profileName := r.PostFormValue("ProfileName")
	if from == "" {
		http.Error(w, "missing sender", http.StatusBadRequest)
		return
	}
	slog.Debug("webhookHandler received message", "from", from, "body_length", len(body))

	reply, err := s.engine.HandleMessage(r.Context(), from, body, profileName)
	if err != nil {
		slog.Error("webhookHandler engine error", "error", err, "from", from)
		if reply == "" {
			reply = "⚠️ Something went wrong on our side. Please try again in a moment."
		}
	}

	var verbs []twiml.Element
	if reply != "" {
		verbs = append(verbs, &twiml.MessagingMessage{Body: reply})
	}
	doc, err := twiml.Messages(verbs)
	if err != nil {
		slog.Error("webhookHandler failed to render TwiML", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	if _, err := w.Write([]byte(doc)); err != nil {
		slog.Error("webhookHandler failed to write response", "error", err)
	}
}

// listRequestsHandler returns every filed request, newest first, for
// the back office.
func (s *Server) listRequestsHandler(w http.ResponseWriter, r *http.Request) {
	requests, err := s.requests.AllRequests(r.Context())
	if err != nil {
		slog.Error("listRequestsHandler failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to list requests"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(requests))
}

// markDoneHandler is called by the back office when a request is
// resolved. The driver is notified on the next status check pass.
func (s *Server) markDoneHandler(w http.ResponseWriter, r *http.Request) {
	rowID := chi.URLParam(r, "rowID")
	req, err := s.requests.MarkDone(r.Context(), rowID)
	if errors.Is(err, models.ErrRequestMissing) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("request not found"))
		return
	}
	if err != nil {
		slog.Error("markDoneHandler failed", "error", err, "rowID", rowID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to update request"))
		return
	}
	slog.Info("markDoneHandler request marked done", "rowID", rowID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("request marked done", req))
}

func (s *Server) checkStatusHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.checker.CheckAndNotify(r.Context()); err != nil {
		slog.Error("checkStatusHandler failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("status check failed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("status check completed", nil))
}

func (s *Server) clearFlowsHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.flows.ClearAll(r.Context()); err != nil {
		slog.Error("clearFlowsHandler failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to clear flows"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("all conversation flows cleared", nil))
}
