package toolbridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultToolTimeout     = 30 * time.Second
	orchestrateToolTimeout = 60 * time.Second
)

// Endpoints is the set of base URLs the bridge dispatches tool calls to.
type Endpoints struct {
	Coordinator  string
	Analyzer     string
	Architect    string
	Tester       string
	Communicator string
}

func (e Endpoints) byRole(role string) string {
	switch role {
	case "analyzer", "beta":
		return e.Analyzer
	case "architect", "gamma":
		return e.Architect
	case "tester", "delta":
		return e.Tester
	case "communicator", "sigma":
		return e.Communicator
	default:
		return ""
	}
}

// Bridge reads one JSON message per line from in, dispatches it, and
// writes one JSON response per line to out.
type Bridge struct {
	Endpoints Endpoints
	client    *http.Client
}

// New builds a Bridge.
func New(endpoints Endpoints) *Bridge {
	return &Bridge{Endpoints: endpoints, client: &http.Client{}}
}

// Run reads lines from in until EOF, dispatching each and writing the
// response, LF-terminated, to out.
func (b *Bridge) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	writer := bufio.NewWriter(out)
	defer writer.Flush()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		resp := b.dispatchLine(ctx, line)
		encoded, err := json.Marshal(resp)
		if err != nil {
			encoded, _ = json.Marshal(errorResponse("toolbridge: marshal response: " + err.Error()))
		}
		if _, err := writer.Write(encoded); err != nil {
			return err
		}
		if err := writer.WriteByte('\n'); err != nil {
			return err
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// dispatchLine validates and dispatches one message, never panicking on
// malformed input: every failure mode becomes a structured isError
// response.
func (b *Bridge) dispatchLine(ctx context.Context, line []byte) Response {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return errorResponse("toolbridge: malformed message: " + err.Error())
	}
	if msg.Params.Name == "" {
		return errorResponse("toolbridge: params.name is required")
	}
	if !IsKnown(msg.Params.Name) {
		return errorResponse("toolbridge: unknown tool: " + msg.Params.Name)
	}

	arguments := msg.Params.Arguments
	if len(arguments) == 0 {
		arguments = json.RawMessage("{}")
	}

	timeout := defaultToolTimeout
	if msg.Params.Name == "omega_orchestrate" {
		timeout = orchestrateToolTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return b.dispatch(callCtx, msg.Params.Name, arguments)
}

func (b *Bridge) dispatch(ctx context.Context, name string, arguments json.RawMessage) Response {
	switch name {
	case "health_check":
		return b.get(ctx, b.Endpoints.Coordinator, "/network-status")
	case "beta_analyze":
		return b.post(ctx, b.Endpoints.Analyzer, "/analyze", arguments)
	case "gamma_design":
		return b.post(ctx, b.Endpoints.Architect, "/design", arguments)
	case "delta_test":
		return b.post(ctx, b.Endpoints.Tester, "/generate-tests", arguments)
	case "sigma_document":
		return b.post(ctx, b.Endpoints.Communicator, "/document", arguments)
	case "omega_orchestrate":
		return b.post(ctx, b.Endpoints.Coordinator, "/orchestrate", arguments)
	case "store_artifact":
		return b.dispatchStoreArtifact(ctx, arguments)
	case "get_artifact":
		return b.dispatchGetArtifact(ctx, arguments)
	case "audit_log":
		return b.dispatchAuditLog(ctx, arguments)
	default:
		return errorResponse("toolbridge: unknown tool: " + name)
	}
}

type cloneTargeted struct {
	Clone string `json:"clone"`
}

func (b *Bridge) dispatchStoreArtifact(ctx context.Context, arguments json.RawMessage) Response {
	var target cloneTargeted
	_ = json.Unmarshal(arguments, &target)
	baseURL := b.Endpoints.byRole(target.Clone)
	if baseURL == "" {
		baseURL = b.Endpoints.Coordinator
	}
	return b.post(ctx, baseURL, "/artifacts", arguments)
}

type artifactLookup struct {
	Clone        string `json:"clone"`
	ArtifactID   string `json:"artifactId"`
	ManifestOnly bool   `json:"manifestOnly"`
}

func (b *Bridge) dispatchGetArtifact(ctx context.Context, arguments json.RawMessage) Response {
	var lookup artifactLookup
	if err := json.Unmarshal(arguments, &lookup); err != nil {
		return errorResponse("toolbridge: malformed arguments: " + err.Error())
	}
	baseURL := b.Endpoints.byRole(lookup.Clone)
	if baseURL == "" {
		baseURL = b.Endpoints.Coordinator
	}
	path := fmt.Sprintf("/artifacts/%s", lookup.ArtifactID)
	if lookup.ManifestOnly {
		path += "?manifestOnly=true"
	}
	return b.get(ctx, baseURL, path)
}

func (b *Bridge) dispatchAuditLog(ctx context.Context, arguments json.RawMessage) Response {
	var target cloneTargeted
	_ = json.Unmarshal(arguments, &target)
	baseURL := b.Endpoints.byRole(target.Clone)
	if baseURL == "" {
		baseURL = b.Endpoints.Coordinator
	}
	return b.get(ctx, baseURL, "/audit")
}

func (b *Bridge) get(ctx context.Context, baseURL, path string) Response {
	if baseURL == "" {
		return errorResponse("toolbridge: no base URL configured for this tool")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	if err != nil {
		return errorResponse("toolbridge: build request: " + err.Error())
	}
	return b.do(req)
}

func (b *Bridge) post(ctx context.Context, baseURL, path string, body json.RawMessage) Response {
	if baseURL == "" {
		return errorResponse("toolbridge: no base URL configured for this tool")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errorResponse("toolbridge: build request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	return b.do(req)
}

func (b *Bridge) do(req *http.Request) Response {
	resp, err := b.client.Do(req)
	if err != nil {
		return errorResponse("toolbridge: request failed: " + err.Error())
	}
	defer resp.Body.Close()

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return errorResponse("toolbridge: decode response: " + err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{Content: []ContentBlock{{Type: "text", Text: mustJSON(payload)}}, IsError: true}
	}
	return jsonResponse(payload)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
