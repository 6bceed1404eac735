package toolreg

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPHandler_ServeToolsList_ListsTools(t *testing.T) {
	r := New(&fakeQueryRunner{}, &fakeAdminOps{}, []Tool{{Name: "rust_query", Description: "search"}})
	h := NewHTTPHandler(r)

	w := httptest.NewRecorder()
	h.ServeToolsList(w, httptest.NewRequest(http.MethodGet, "/tools/list", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["tools"])
}

func TestHTTPHandler_ServeToolsCall_UnknownToolIsNotFound(t *testing.T) {
	r := New(&fakeQueryRunner{}, &fakeAdminOps{}, nil)
	h := NewHTTPHandler(r)

	req := httptest.NewRequest(http.MethodPost, "/tools/call", strings.NewReader(`{"name":"nope","args":{}}`))
	w := httptest.NewRecorder()
	h.ServeToolsCall(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHTTPHandler_ServeToolsCall_InvalidArgsIsBadRequest(t *testing.T) {
	r := New(&fakeQueryRunner{}, &fakeAdminOps{}, nil)
	h := NewHTTPHandler(r)

	req := httptest.NewRequest(http.MethodPost, "/tools/call", strings.NewReader(`{"name":"add_rust_crate","args":{}}`))
	w := httptest.NewRecorder()
	h.ServeToolsCall(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "name", errBody["field"])
}

func TestHTTPHandler_ServeToolsCall_MalformedBodyIsBadRequest(t *testing.T) {
	r := New(&fakeQueryRunner{}, &fakeAdminOps{}, nil)
	h := NewHTTPHandler(r)

	req := httptest.NewRequest(http.MethodPost, "/tools/call", strings.NewReader(`not json`))
	w := httptest.NewRecorder()
	h.ServeToolsCall(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
