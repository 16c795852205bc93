package coordinator

import (
	"encoding/json"
	"errors"
	"net/http"

	"cloneforge/internal/worker"
)

// NewServer builds the coordinator's HTTP server: the shared worker
// surface (health/task/artifacts/audit-stream) plus /network-status,
// /delegate, and /orchestrate.
func NewServer(addr string, c *Coordinator) *worker.Server {
	return worker.NewServerWithExtra(addr, c.Worker, func(mux *http.ServeMux) {
		mux.HandleFunc("GET /network-status", c.handleNetworkStatus)
		mux.HandleFunc("POST /delegate", c.handleDelegate)
		mux.HandleFunc("POST /orchestrate", c.handleOrchestrate)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (c *Coordinator) handleNetworkStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.NetworkStatus(r.Context()))
}

func (c *Coordinator) handleDelegate(w http.ResponseWriter, r *http.Request) {
	var req DelegateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "malformed JSON body"})
		return
	}
	resp, err := c.Delegate(r.Context(), req)
	if err != nil {
		status := http.StatusBadGateway
		var unknown *worker.UnknownCloneError
		if errors.As(err, &unknown) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": resp})
}

func (c *Coordinator) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	var req OrchestrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "malformed JSON body"})
		return
	}
	resp, err := c.Orchestrate(r.Context(), req)
	if err != nil {
		// Quality gate reject or invalid input: no downstream call was made.
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
