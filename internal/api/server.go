package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"codectx/internal/app"
	"codectx/internal/domain"
	"codectx/internal/registry"
)

// Server exposes the query engine over HTTP. The surface is deliberately
// thin: one query endpoint plus a status check. Sessions are held open for
// the life of the server, one per project: the bolt stores take an
// exclusive file lock, so per-request opens would serialize every query on
// flock, while a shared BoltIndex already serves concurrent readers.
type Server struct {
	app *app.App

	mu       sync.Mutex
	sessions map[string]*app.Session
}

// New builds the HTTP server on the given app.
func New(a *app.App, host string, port int) *http.Server {
	s := newServer(a)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/query", s.handleQuery)
	mux.HandleFunc("/api/status", s.handleStatus)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: mux,
	}
	srv.RegisterOnShutdown(s.closeSessions)
	return srv
}

func newServer(a *app.App) *Server {
	return &Server{app: a, sessions: make(map[string]*app.Session)}
}

// session returns the shared session for a project, opening it on first
// use. An empty name resolves to the current project.
func (s *Server) session(projectName string) (*app.Session, error) {
	p, err := s.app.Registry.Resolve(projectName)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[p.Name]; ok {
		return sess, nil
	}
	sess, err := s.app.Open(p.Name)
	if err != nil {
		return nil, err
	}
	s.sessions[p.Name] = sess
	return sess, nil
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, sess := range s.sessions {
		if err := sess.Close(); err != nil {
			log.Printf("failed to close session %s: %v", name, err)
		}
		delete(s.sessions, name)
	}
}

type queryRequest struct {
	Query     string   `json:"query"`
	TopK      *int     `json:"top_k,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Project   string   `json:"project,omitempty"`
}

type queryResult struct {
	File      string  `json:"file"`
	Type      string  `json:"type"`
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Text      string  `json:"text"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing query"})
		return
	}

	session, err := s.session(req.Project)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	topK := session.Cfg.Retriever.TopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	threshold := session.Cfg.Retriever.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	results, err := s.app.Querier(session).Query(r.Context(), req.Query, topK, threshold)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidConfig) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("query error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}

	out := make([]queryResult, len(results))
	for i, res := range results {
		out[i] = queryResult{
			File:      res.Chunk.FilePath,
			Type:      string(res.Chunk.Type),
			Name:      res.Chunk.Name,
			Score:     res.Score,
			StartLine: res.Chunk.StartLine,
			EndLine:   res.Chunk.EndLine,
			Text:      res.Chunk.Text,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   req.Query,
		"results": out,
		"total":   len(out),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(r.URL.Query().Get("project"))
	if err != nil {
		writeResolveError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"project": session.Project.Name,
		"records": session.Index.Count(),
	})
}

func writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrProjectNotFound), errors.Is(err, registry.ErrNoCurrentProject):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		log.Printf("project open error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to open project"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
