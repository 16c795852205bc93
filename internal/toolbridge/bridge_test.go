package toolbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runLine(t *testing.T, b *Bridge, line string) Response {
	t.Helper()
	var out bytes.Buffer
	err := b.Run(context.Background(), strings.NewReader(line+"\n"), &out)
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp))
	return resp
}

func TestDispatchRejectsMissingParamsName(t *testing.T) {
	b := New(Endpoints{})
	resp := runLine(t, b, `{"params": {}}`)
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Content[0].Text, "params.name")
}

func TestDispatchRejectsUnknownTool(t *testing.T) {
	b := New(Endpoints{})
	resp := runLine(t, b, `{"params": {"name": "not_a_real_tool"}}`)
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Content[0].Text, "unknown tool")
}

func TestDispatchHealthCheckCallsCoordinatorNetworkStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/network-status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"coordinator": map[string]any{"status": "active"}})
	}))
	defer srv.Close()

	b := New(Endpoints{Coordinator: srv.URL})
	resp := runLine(t, b, `{"params": {"name": "health_check"}}`)
	require.False(t, resp.IsError)
	assert.Contains(t, resp.Content[0].Text, "active")
}

func TestDispatchBetaAnalyzeForwardsArguments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "function a(){}", body["code"])
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	b := New(Endpoints{Analyzer: srv.URL})
	resp := runLine(t, b, `{"params": {"name": "beta_analyze", "arguments": {"code": "function a(){}"}}}`)
	require.False(t, resp.IsError)
}

func TestDispatchDefaultsMissingArgumentsToEmptyObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]any{})
		assert.Equal(t, string(body), readAll(r))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	b := New(Endpoints{Analyzer: srv.URL})
	resp := runLine(t, b, `{"params": {"name": "beta_analyze"}}`)
	require.False(t, resp.IsError)
}

func readAll(r *http.Request) string {
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(r.Body)
	return buf.String()
}

func TestDispatchReportsMissingEndpointAsIsError(t *testing.T) {
	b := New(Endpoints{}) // no coordinator URL configured
	resp := runLine(t, b, `{"params": {"name": "omega_orchestrate", "arguments": {}}}`)
	assert.True(t, resp.IsError)
}
