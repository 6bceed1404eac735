package toolreg

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyrecliff/docvault/admin"
	"github.com/wyrecliff/docvault/docerr"
	"github.com/wyrecliff/docvault/query"
	"github.com/wyrecliff/docvault/store"
)

type fakeQueryRunner struct {
	lastReq query.Request
	result  *query.Result
	err     error
}

func (f *fakeQueryRunner) Query(ctx context.Context, req query.Request) (*query.Result, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeAdminOps struct {
	addResult    *admin.AddResult
	removeResult *admin.AddResult
	statusResult []admin.StatusResult
	listResult   *admin.ListResult
	err          error
	lastSoft     bool
	lastName     string
}

func (f *fakeAdminOps) Add(ctx context.Context, actor, docType, sourceName, version string) (*admin.AddResult, error) {
	f.lastName = sourceName
	if f.err != nil {
		return nil, f.err
	}
	return f.addResult, nil
}

func (f *fakeAdminOps) Remove(ctx context.Context, actor, docType, sourceName string, soft bool) (*admin.AddResult, error) {
	f.lastName, f.lastSoft = sourceName, soft
	if f.err != nil {
		return nil, f.err
	}
	return f.removeResult, nil
}

func (f *fakeAdminOps) Status(ctx context.Context, actor string, id *uuid.UUID, recentLimit int) ([]admin.StatusResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.statusResult, nil
}

func (f *fakeAdminOps) List(ctx context.Context, actor string, filter store.ListFilter) (*admin.ListResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.listResult, nil
}

func TestRegistry_List_IncludesFixedAndConfiguredTools(t *testing.T) {
	r := New(&fakeQueryRunner{}, &fakeAdminOps{}, []Tool{{Name: "rust_query", Description: "query rust docs"}})

	names := map[string]bool{}
	for _, d := range r.List() {
		names[d.Name] = true
	}
	assert.True(t, names["add_rust_crate"])
	assert.True(t, names["remove_rust_crate"])
	assert.True(t, names["list_rust_crates"])
	assert.True(t, names["check_rust_status"])
	assert.True(t, names["rust_query"])
}

func TestRegistry_Call_UnknownToolIsUnknownToolKind(t *testing.T) {
	r := New(&fakeQueryRunner{}, &fakeAdminOps{}, nil)

	_, err := r.Call(context.Background(), "", "not_a_tool", nil)
	require.Error(t, err)
	kind, ok := docerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, docerr.UnknownTool, kind)
}

func TestRegistry_Call_QueryToolMissingQueryIsInvalidArgs(t *testing.T) {
	r := New(&fakeQueryRunner{}, &fakeAdminOps{}, []Tool{{Name: "rust_query", DocType: "rust"}})

	_, err := r.Call(context.Background(), "", "rust_query", map[string]any{})
	require.Error(t, err)
	kind, ok := docerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, docerr.InvalidArgs, kind)
}

func TestRegistry_Call_QueryToolLimitZeroReturnsEmptyResult(t *testing.T) {
	qr := &fakeQueryRunner{result: &query.Result{Markdown: "should not appear", Count: 5}}
	r := New(qr, &fakeAdminOps{}, []Tool{{Name: "rust_query", DocType: "rust"}})

	res, err := r.Call(context.Background(), "", "rust_query", map[string]any{"query": "channels", "limit": 0})
	require.NoError(t, err)
	assert.Equal(t, &query.Result{}, res)
}

func TestRegistry_Call_QueryToolLimitOver20IsInvalidArgs(t *testing.T) {
	r := New(&fakeQueryRunner{}, &fakeAdminOps{}, []Tool{{Name: "rust_query", DocType: "rust"}})

	_, err := r.Call(context.Background(), "", "rust_query", map[string]any{"query": "channels", "limit": 21})
	require.Error(t, err)
	kind, ok := docerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, docerr.InvalidArgs, kind)
}

func TestRegistry_Call_QueryToolMergesDefaultAndRequestFilters(t *testing.T) {
	qr := &fakeQueryRunner{result: &query.Result{}}
	r := New(qr, &fakeAdminOps{}, []Tool{{
		Name:           "rust_query",
		DocType:        "rust",
		DefaultFilters: map[string]any{"lang": "rust"},
		FilterKeys:     []string{"crate"},
	}})

	_, err := r.Call(context.Background(), "", "rust_query", map[string]any{"query": "channels", "crate": "tokio"})
	require.NoError(t, err)
	assert.Equal(t, "rust", qr.lastReq.Metadata["lang"])
	assert.Equal(t, "tokio", qr.lastReq.Metadata["crate"])
}

func TestRegistry_Call_QueryToolDefaultsIncludeDisabledFalse(t *testing.T) {
	qr := &fakeQueryRunner{result: &query.Result{}}
	r := New(qr, &fakeAdminOps{}, []Tool{{Name: "rust_query", DocType: "rust"}})

	_, err := r.Call(context.Background(), "", "rust_query", map[string]any{"query": "channels"})
	require.NoError(t, err)
	assert.False(t, qr.lastReq.IncludeDisabled)
}

func TestRegistry_Call_QueryToolThreadsIncludeDisabled(t *testing.T) {
	qr := &fakeQueryRunner{result: &query.Result{}}
	r := New(qr, &fakeAdminOps{}, []Tool{{Name: "rust_query", DocType: "rust"}})

	_, err := r.Call(context.Background(), "", "rust_query", map[string]any{"query": "channels", "include_disabled": true})
	require.NoError(t, err)
	assert.True(t, qr.lastReq.IncludeDisabled)
}

func TestRegistry_Call_QueryToolIncludeDisabledMustBeBool(t *testing.T) {
	r := New(&fakeQueryRunner{}, &fakeAdminOps{}, []Tool{{Name: "rust_query", DocType: "rust"}})

	_, err := r.Call(context.Background(), "", "rust_query", map[string]any{"query": "channels", "include_disabled": "yes"})
	require.Error(t, err)
	kind, ok := docerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, docerr.InvalidArgs, kind)
}

func TestRegistry_Call_AddRustCrateDispatchesToAdminOps(t *testing.T) {
	jobID := uuid.New()
	ops := &fakeAdminOps{addResult: &admin.AddResult{JobID: jobID, Status: store.JobQueued}}
	r := New(&fakeQueryRunner{}, ops, nil)

	res, err := r.Call(context.Background(), "alice", "add_rust_crate", map[string]any{"name": "tokio"})
	require.NoError(t, err)
	out, ok := res.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, jobID, out["job_id"])
	assert.Equal(t, "tokio", ops.lastName)
}

func TestRegistry_Call_AddRustCrateMissingNameIsInvalidArgs(t *testing.T) {
	r := New(&fakeQueryRunner{}, &fakeAdminOps{}, nil)

	_, err := r.Call(context.Background(), "", "add_rust_crate", map[string]any{})
	require.Error(t, err)
	kind, ok := docerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, docerr.InvalidArgs, kind)
}

func TestRegistry_Call_RemoveRustCratePropagatesSoftDelete(t *testing.T) {
	ops := &fakeAdminOps{removeResult: &admin.AddResult{JobID: uuid.New()}}
	r := New(&fakeQueryRunner{}, ops, nil)

	_, err := r.Call(context.Background(), "", "remove_rust_crate", map[string]any{"name": "serde", "soft_delete": true})
	require.NoError(t, err)
	assert.True(t, ops.lastSoft)
}

func TestRegistry_Call_CheckRustStatusInvalidUUIDIsInvalidArgs(t *testing.T) {
	r := New(&fakeQueryRunner{}, &fakeAdminOps{}, nil)

	_, err := r.Call(context.Background(), "", "check_rust_status", map[string]any{"job_id": "not-a-uuid"})
	require.Error(t, err)
	kind, ok := docerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, docerr.InvalidArgs, kind)
}
