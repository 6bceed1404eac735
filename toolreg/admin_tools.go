package toolreg

import (
	"context"

	"github.com/google/uuid"

	"github.com/wyrecliff/docvault/docerr"
	"github.com/wyrecliff/docvault/store"
)

// rustDocType is the doc_type bound to every fixed Rust admin tool; the
// Rust crate registry is the only management surface named explicitly by
// the configuration — every other doc_type is data-driven.
const rustDocType = "rust"

// fixedAdminTools is the set of Rust crate-management tools registered in
// Go rather than loaded from configuration, per the specification's
// distinction between fixed admin tools and data-driven query tools.
var fixedAdminTools = []Tool{
	{Name: "add_rust_crate", Description: "Queue a Rust crate's documentation for ingestion.", DocType: rustDocType},
	{Name: "remove_rust_crate", Description: "Queue removal of a Rust crate's indexed documentation.", DocType: rustDocType},
	{Name: "list_rust_crates", Description: "List indexed Rust crates with aggregate counts.", DocType: rustDocType},
	{Name: "check_rust_status", Description: "Check the status of a Rust crate ingestion job.", DocType: rustDocType},
}

func (r *Registry) callAdmin(ctx context.Context, actor string, t Tool, args map[string]any) (any, error) {
	switch t.Name {
	case "add_rust_crate":
		return r.addRustCrate(ctx, actor, args)
	case "remove_rust_crate":
		return r.removeRustCrate(ctx, actor, args)
	case "list_rust_crates":
		return r.listRustCrates(ctx, actor, args)
	case "check_rust_status":
		return r.checkRustStatus(ctx, actor, args)
	default:
		return nil, docerr.New(docerr.UnknownTool, "no handler registered for admin tool \""+t.Name+"\"")
	}
}

func (r *Registry) addRustCrate(ctx context.Context, actor string, args map[string]any) (any, error) {
	name, err := requiredString(args, "name")
	if err != nil {
		return nil, err
	}
	version, _ := optionalString(args, "version")

	res, err := r.adminOps.Add(ctx, actor, rustDocType, name, version)
	if err != nil {
		return nil, err
	}
	return map[string]any{"job_id": res.JobID, "status": res.Status}, nil
}

func (r *Registry) removeRustCrate(ctx context.Context, actor string, args map[string]any) (any, error) {
	name, err := requiredString(args, "name")
	if err != nil {
		return nil, err
	}
	soft, err := optionalBool(args, "soft_delete")
	if err != nil {
		return nil, err
	}

	res, err := r.adminOps.Remove(ctx, actor, rustDocType, name, soft)
	if err != nil {
		return nil, err
	}
	return map[string]any{"job_id": res.JobID}, nil
}

func (r *Registry) listRustCrates(ctx context.Context, actor string, args map[string]any) (any, error) {
	page, _, err := optionalInt(args, "page")
	if err != nil {
		return nil, err
	}
	limit, hasLimit, err := optionalInt(args, "limit")
	if err != nil {
		return nil, err
	}
	if hasLimit && limit > 100 {
		return nil, docerr.InvalidField("limit", "must be at most 100")
	}
	namePattern, _ := optionalString(args, "name_pattern")

	res, err := r.adminOps.List(ctx, actor, store.ListFilter{
		DocType:     rustDocType,
		NamePattern: namePattern,
		Page:        page,
		PageSize:    limit,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"sources": res.Sources, "total": res.Total}, nil
}

func (r *Registry) checkRustStatus(ctx context.Context, actor string, args map[string]any) (any, error) {
	raw, ok := optionalRaw(args, "job_id")
	var id *uuid.UUID
	if ok {
		s, isStr := raw.(string)
		if !isStr {
			return nil, docerr.InvalidField("job_id", "must be a string uuid")
		}
		parsed, err := uuid.Parse(s)
		if err != nil {
			return nil, docerr.InvalidField("job_id", "must be a valid uuid")
		}
		id = &parsed
	}

	results, err := r.adminOps.Status(ctx, actor, id, 20)
	if err != nil {
		return nil, err
	}
	return results, nil
}
