package toolreg

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wyrecliff/docvault/docerr"
)

// HTTPHandler exposes the registry over plain net/http, decoding already
// JSON-RPC-stripped requests — the JSON-RPC 2.0 envelope itself (request
// id, "jsonrpc" version, method dispatch between initialize/tools/list/
// tools/call) is assembled by a framing layer in front of this handler,
// not by docvault.
type HTTPHandler struct {
	registry *Registry
}

// NewHTTPHandler builds an HTTPHandler over registry.
func NewHTTPHandler(registry *Registry) *HTTPHandler {
	return &HTTPHandler{registry: registry}
}

// ServeToolsList writes every registered tool's descriptor as JSON.
func (h *HTTPHandler) ServeToolsList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": h.registry.List()})
}

// callRequest is the already-decoded shape a framing layer hands to
// ServeToolsCall: the tool name, its arguments, and the caller's actor
// identity (carried on audit entries only, per spec.md §4.8/§6).
type callRequest struct {
	Actor string         `json:"actor"`
	Name  string         `json:"name"`
	Args  map[string]any `json:"args"`
}

// ServeToolsCall decodes a callRequest from the body, dispatches it through
// the registry, and writes either the result or a classified error
// envelope with an HTTP status derived from the error's docerr.Kind.
func (h *HTTPHandler) ServeToolsCall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, docerr.InvalidField("body", "must be valid JSON"))
		return
	}

	result, err := h.registry.Call(r.Context(), req.Actor, req.Name, req.Args)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// errorBody never includes the raw cause (secrets, upstream response
// bodies) — only the classified kind, message, and offending field.
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	kind, _ := docerr.KindOf(err)
	body := errorBody{Kind: string(kind), Message: err.Error()}

	var de *docerr.Error
	if errors.As(err, &de) {
		body.Message = de.Message
		body.Field = de.Field
	}
	writeJSON(w, statusForKind(kind), map[string]any{"error": body})
}

func statusForKind(kind docerr.Kind) int {
	switch kind {
	case docerr.InvalidArgs:
		return http.StatusBadRequest
	case docerr.UnknownTool, docerr.NotFound:
		return http.StatusNotFound
	case docerr.RateLimited:
		return http.StatusTooManyRequests
	case docerr.UpstreamUnavailable, docerr.StoreTransient:
		return http.StatusServiceUnavailable
	case docerr.StoreFatal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
