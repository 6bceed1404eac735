package toolreg

import (
	"context"

	"github.com/google/uuid"

	"github.com/wyrecliff/docvault/admin"
	"github.com/wyrecliff/docvault/docerr"
	"github.com/wyrecliff/docvault/query"
	"github.com/wyrecliff/docvault/store"
)

// QueryRunner is the subset of query.Engine the registry needs, narrowed to
// an interface so Registry can be tested against a fake.
type QueryRunner interface {
	Query(ctx context.Context, req query.Request) (*query.Result, error)
}

// AdminOps is the subset of admin.Ops the registry needs, narrowed to an
// interface so Registry can be tested against a fake.
type AdminOps interface {
	Add(ctx context.Context, actor, docType, sourceName, version string) (*admin.AddResult, error)
	Remove(ctx context.Context, actor, docType, sourceName string, soft bool) (*admin.AddResult, error)
	Status(ctx context.Context, actor string, id *uuid.UUID, recentLimit int) ([]admin.StatusResult, error)
	List(ctx context.Context, actor string, f store.ListFilter) (*admin.ListResult, error)
}

// Descriptor is what list() exposes to a tool caller: enough to build a
// JSON-RPC tools/list response without leaking the registry's internals.
type Descriptor struct {
	Name        string
	Description string
}

// Registry holds the fixed Rust admin tools plus whatever query tools were
// loaded from configuration, and dispatches calls to the query engine or
// admin ops.
type Registry struct {
	queryEngine QueryRunner
	adminOps    AdminOps
	queryTools  map[string]Tool
	adminTools  map[string]Tool
}

// New builds a Registry with the four fixed Rust admin tools registered and
// queryTools (typically loaded via LoadQueryTools) added as data-driven
// query tools.
func New(queryEngine QueryRunner, adminOps AdminOps, queryTools []Tool) *Registry {
	r := &Registry{
		queryEngine: queryEngine,
		adminOps:    adminOps,
		queryTools:  make(map[string]Tool, len(queryTools)),
		adminTools:  make(map[string]Tool, len(fixedAdminTools)),
	}
	for _, t := range queryTools {
		r.queryTools[t.Name] = t
	}
	for _, t := range fixedAdminTools {
		r.adminTools[t.Name] = t
	}
	return r
}

// List returns every registered tool's descriptor, admin tools first.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.adminTools)+len(r.queryTools))
	for _, t := range fixedAdminTools {
		out = append(out, Descriptor{Name: t.Name, Description: t.Description})
	}
	for _, t := range r.queryTools {
		out = append(out, Descriptor{Name: t.Name, Description: t.Description})
	}
	return out
}

// Call validates args against name's schema and dispatches to the query
// engine (query tools) or admin ops (the fixed Rust tools). actor is
// threaded through to admin ops for audit logging and is empty when the
// caller is unauthenticated.
func (r *Registry) Call(ctx context.Context, actor, name string, args map[string]any) (any, error) {
	if t, ok := r.adminTools[name]; ok {
		return r.callAdmin(ctx, actor, t, args)
	}
	if t, ok := r.queryTools[name]; ok {
		return r.callQuery(ctx, t, args)
	}
	return nil, docerr.New(docerr.UnknownTool, "no tool registered with name \""+name+"\"")
}

// callQuery validates query, limit, and include_disabled (every query tool's
// fixed arguments) before merging t's filters and dispatching to the engine.
// include_disabled is an admin override surfaced on every query tool, not a
// per-tool filter_key, since it applies uniformly regardless of doc_type.
func (r *Registry) callQuery(ctx context.Context, t Tool, args map[string]any) (*query.Result, error) {
	text, err := requiredString(args, "query")
	if err != nil {
		return nil, err
	}
	limit, hasLimit, err := optionalInt(args, "limit")
	if err != nil {
		return nil, err
	}
	if hasLimit && limit == 0 {
		return &query.Result{}, nil
	}
	if hasLimit && (limit < 0 || limit > 20) {
		return nil, docerr.InvalidField("limit", "must be between 1 and 20")
	}
	includeDisabled, err := optionalBool(args, "include_disabled")
	if err != nil {
		return nil, err
	}

	filters := mergeFilters(t.DefaultFilters, args, t.FilterKeys)
	return r.queryEngine.Query(ctx, query.Request{
		DocType:         t.DocType,
		Text:            text,
		Limit:           limit,
		Metadata:        filters,
		IncludeDisabled: includeDisabled,
	})
}

// mergeFilters layers request-supplied filter values (restricted to
// allowedKeys) over the tool's configured defaults.
func mergeFilters(defaults map[string]any, args map[string]any, allowedKeys []string) map[string]any {
	if len(defaults) == 0 && len(allowedKeys) == 0 {
		return nil
	}
	out := make(map[string]any, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for _, k := range allowedKeys {
		if v, ok := args[k]; ok {
			out[k] = v
		}
	}
	return out
}
