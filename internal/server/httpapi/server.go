// Package httpapi mounts the FlockSync HTTP surface: account auth, the
// record feed, engagements, media presigning and the realtime change feed.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/flocksync/internal/logging"
	"github.com/dmitrijs2005/flocksync/internal/server/auth"
	"github.com/dmitrijs2005/flocksync/internal/server/hub"
	"github.com/dmitrijs2005/flocksync/internal/server/repositories"
)

// Presigner mints short-lived upload and download URLs for attachments.
type Presigner interface {
	PresignedPutURL(ctx context.Context) (string, string, error)
	PresignedGetURL(ctx context.Context, key string) (string, error)
}

// Server wires repositories, the presigner and the change hub into an HTTP
// handler tree.
type Server struct {
	users       repositories.UserRepository
	records     repositories.RecordRepository
	engagements repositories.EngagementRepository
	presigner   Presigner
	publisher   hub.Publisher
	changes     http.Handler
	log         logging.Logger
	jwtSecret   []byte
	jwtExpiry   time.Duration
}

// Deps carries everything the API needs. Publisher and Changes may be nil;
// the corresponding behavior (fan-out, websocket feed) is then disabled.
type Deps struct {
	Users       repositories.UserRepository
	Records     repositories.RecordRepository
	Engagements repositories.EngagementRepository
	Presigner   Presigner
	Publisher   hub.Publisher
	Changes     http.Handler
	Log         logging.Logger
	JWTSecret   []byte
	JWTExpiry   time.Duration
}

func NewServer(d Deps) *Server {
	return &Server{
		users:       d.Users,
		records:     d.Records,
		engagements: d.Engagements,
		presigner:   d.Presigner,
		publisher:   d.Publisher,
		changes:     d.Changes,
		log:         d.Log,
		jwtSecret:   d.JWTSecret,
		jwtExpiry:   d.JWTExpiry,
	}
}

// Router assembles the route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireToken(s.jwtSecret))
			r.Post("/records", s.handleCreateRecord)
			r.Get("/records", s.handleListRecords)
			r.Post("/records/{id}/engagements", s.handleAddEngagement)
			r.Post("/media/presign", s.handlePresignUpload)
			r.Get("/media/url", s.handlePresignDownload)
		})
	})

	if s.changes != nil {
		r.Get("/ws/changes", s.changes.ServeHTTP)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			s.log.Error(context.Background(), "failed to encode response", "error", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}
