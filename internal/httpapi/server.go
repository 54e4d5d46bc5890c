// Package httpapi exposes the trading core's local-operator HTTP surface:
// health/status REST and a live analytics event stream ("Events
// emitted (dashboard bus)").
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ict-core/enginecore/internal/analytics"
	"github.com/ict-core/enginecore/internal/coordinator"
	"github.com/ict-core/enginecore/pkg/metrics"
)

// StatusSource is satisfied by *coordinator.Engine.
type StatusSource interface {
	Status() coordinator.SystemHealth
}

// EventSource is satisfied by *analytics.Bus.
type EventSource interface {
	Subscribe(component string, h analytics.Handler)
	RecentEvents() []analytics.Event
}

// Server is the trading core's HTTP surface. Grounded on chi's
// composable-middleware router shape, used elsewhere in the pack for REST
// services; the websocket upgrade pattern mirrors gorilla/websocket's
// documented handshake-then-pump idiom.
type Server struct {
	router *chi.Mux
	status StatusSource
	events EventSource
	log    *logrus.Entry

	upgrader websocket.Upgrader
}

// NewServer builds the HTTP surface router.
func NewServer(status StatusSource, events EventSource, log *logrus.Entry) *Server {
	s := &Server{
		status: status,
		events: events,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Get("/events/recent", s.handleRecentEvents)
	r.Get("/events/stream", s.handleEventStream)

	s.router = r
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.status.Status()
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.events.RecentEvents())
}

// handleEventStream upgrades to a websocket and pushes every analytics event
// to the client as it is dispatched, until the connection closes. Consumers
// outside the core subscribe by component identity.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.log != nil {
			s.log.WithError(err).Warn("httpapi: websocket upgrade failed")
		}
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := make(chan analytics.Event, 64)
	s.events.Subscribe("dashboard_stream", func(_ context.Context, evt analytics.Event) {
		select {
		case out <- evt:
		default:
		}
	})

	go s.readPump(ctx, conn, cancel)

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-out:
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	}
}

// readPump drains and discards client frames, detecting disconnect (the
// gorilla/websocket documented pattern: a dedicated reader goroutine is
// required even for a write-only stream to observe close frames).
func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
