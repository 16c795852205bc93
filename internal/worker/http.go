package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"cloneforge/internal/artifact"
)

// Server is the HTTP surface every worker exposes: a plain ServeMux
// wrapped in an h2c handler so peers can speak HTTP/2 without TLS.
type Server struct {
	httpServer *http.Server
	worker     *Worker
	upgrader   websocket.Upgrader
}

// roleVerb returns the specialization endpoint path for a role, or "" if
// the role has none (the coordinator has no specialization verb).
func roleVerb(role Role) string {
	switch role {
	case RoleAnalyzer:
		return "/analyze"
	case RoleArchitect:
		return "/design"
	case RoleTester:
		return "/generate-tests"
	case RoleCommunicator:
		return "/document"
	default:
		return ""
	}
}

func artifactTypeFor(role Role) artifact.Type {
	switch role {
	case RoleAnalyzer:
		return artifact.TypeCodeAnalysis
	case RoleArchitect:
		return artifact.TypeArchitectureDesign
	case RoleTester:
		return artifact.TypeTestSuite
	case RoleCommunicator:
		return artifact.TypeDocumentation
	default:
		return artifact.TypeCode
	}
}

// NewServer builds the ServeMux and wraps it in an h2c handler.
func NewServer(addr string, w *Worker) *Server {
	return NewServerWithExtra(addr, w, nil)
}

// NewServerWithExtra is NewServer plus an optional hook to register
// additional routes on the same mux (used by the coordinator to add
// /network-status, /delegate, /orchestrate alongside the shared worker
// surface).
func NewServerWithExtra(addr string, w *Worker, extra func(*http.ServeMux)) *Server {
	mux := http.NewServeMux()
	srv := &Server{
		worker: w,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	srv.registerRoutes(mux)
	if extra != nil {
		extra(mux)
	}

	srv.httpServer = &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}
	return srv
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /task", s.handleTask)
	mux.HandleFunc("POST /artifacts", s.handleStoreArtifact)
	mux.HandleFunc("GET /artifacts/{id}", s.handleGetArtifact)
	mux.HandleFunc("GET /audit", s.handleAuditTrail)
	mux.HandleFunc("GET /audit/stream", s.handleAuditStream)

	if verb := roleVerb(s.worker.Identity.Role); verb != "" {
		mux.HandleFunc("POST "+verb, s.handleSpecialization)
	}
}

// Start binds and serves. It blocks until Shutdown is called or the server
// fails to start.
func (s *Server) Start() error {
	log.Printf("worker %s listening on %s", s.worker.Identity.Role, s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown initiates a graceful shutdown, waiting for outstanding handlers
// to drain before releasing the port.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]any{"success": false, "error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.worker.Health())
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &ValidationError{Reasons: []string{"malformed JSON body"}})
		return
	}
	resp, err := s.worker.ExecuteTask(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type storeArtifactRequest struct {
	Type     artifact.Type  `json:"type"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handleStoreArtifact(w http.ResponseWriter, r *http.Request) {
	var req storeArtifactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &ValidationError{Reasons: []string{"malformed JSON body"}})
		return
	}
	manifest, err := s.worker.Artifact.StoreArtifact(r.Context(), req.Type, []byte(req.Content), req.Metadata)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "manifest": manifest})
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	manifestOnly, _ := strconv.ParseBool(r.URL.Query().Get("manifestOnly"))
	result, err := s.worker.Artifact.Retrieve(r.Context(), id, artifact.RetrieveOptions{ManifestOnly: manifestOnly})
	if err != nil {
		writeError(w, err)
		return
	}
	body := map[string]any{"success": true, "manifest": result.Manifest}
	if !manifestOnly {
		body["content"] = string(result.Content)
	}
	writeJSON(w, http.StatusOK, body)
}

// handleSpecialization dispatches the role-specific verb to
// RunSpecialization, deriving prompt/metadata from the role-shaped input
// body.
func (s *Server) handleSpecialization(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, &ValidationError{Reasons: []string{"malformed JSON body"}})
		return
	}

	prompt, metadata := specializationPromptAndMetadata(s.worker.Identity.Role, raw)
	result, err := s.worker.RunSpecialization(r.Context(), SpecializationInput{
		Prompt:       prompt,
		Context:      raw,
		ArtifactType: artifactTypeFor(s.worker.Identity.Role),
		Metadata:     metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"result":   result.Task.Result,
		"artifact": result.Manifest,
	})
}

// specializationPromptAndMetadata extracts the per-role primary text field
// and the tags carried through to artifact metadata: the original input
// size always, plus any language/framework/focus/docType/audience tags
// the caller passed.
func specializationPromptAndMetadata(role Role, raw map[string]any) (string, map[string]any) {
	field := "code"
	switch role {
	case RoleArchitect:
		field = "requirements"
	case RoleCommunicator:
		field = "content"
	}
	primary, _ := raw[field].(string)

	metadata := map[string]any{"inputSize": len(primary)}
	for _, tag := range []string{"language", "framework", "focus", "docType", "audience"} {
		if v, ok := raw[tag]; ok {
			metadata[tag] = v
		}
	}
	return primary, metadata
}

// handleAuditTrail serves the evidence recorder's audit trail for a task,
// the HTTP surface the tool bridge's audit_log tool calls. An absent
// taskId returns every record currently held in memory.
func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("taskId")
	if taskID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "records": s.worker.Evidence.All()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "auditTrail": s.worker.Evidence.AuditTrail(taskID)})
}

// handleAuditStream is a live-tail endpoint over websocket: every
// evidence record recorded after the client connects is pushed as one
// JSON text frame, so an IDE can watch the audit stream without polling
// /audit.
func (s *Server) handleAuditStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	sent := len(s.worker.Evidence.All())

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			all := s.worker.Evidence.All()
			for _, rec := range all[sent:] {
				if err := conn.WriteJSON(rec); err != nil {
					return
				}
			}
			sent = len(all)
		}
	}
}
