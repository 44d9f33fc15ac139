// Package tables exposes record CRUD over the platform's table API. Tables
// are addressed by an explicit factory (Client.Table) returning a Handle
// over a templated resource path.
package tables

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/hostbridge/hostbridge-go/request"
)

// Record is one row of a table. Column sets are defined server side, so
// records stay schemaless on the client.
type Record map[string]any

// ListParams narrow a List call. Nil fields are omitted from the query
// string entirely.
type ListParams struct {
	Limit *int
	Skip  *int
	Where *string
	Sort  *string
}

func (p ListParams) query() map[string]any {
	query := map[string]any{}
	if p.Limit != nil {
		query["limit"] = *p.Limit
	}
	if p.Skip != nil {
		query["skip"] = *p.Skip
	}
	if p.Where != nil {
		query["where"] = *p.Where
	}
	if p.Sort != nil {
		query["sort"] = *p.Sort
	}
	return query
}

// Handle performs record operations against a single table.
type Handle struct {
	exec *request.Executor
	name string
}

// New creates a Handle for the named table using the given executor.
func New(exec *request.Executor, name string) *Handle {
	return &Handle{exec: exec, name: name}
}

// Name returns the table name this handle addresses.
func (h *Handle) Name() string {
	return h.name
}

// List returns records matching params.
func (h *Handle) List(ctx context.Context, params ListParams) ([]Record, error) {
	var records []Record
	err := h.exec.Do(ctx, request.Request{
		Method: http.MethodGet,
		Path:   h.recordsPath(),
		Query:  params.query(),
	}, &records)
	if err != nil {
		return nil, errors.Wrapf(err, "[Handle.List] table %q", h.name)
	}
	return records, nil
}

// Get returns the record with the given id.
func (h *Handle) Get(ctx context.Context, id string) (Record, error) {
	var record Record
	err := h.exec.Do(ctx, request.Request{
		Method: http.MethodGet,
		Path:   h.recordPath(id),
	}, &record)
	if err != nil {
		return nil, errors.Wrapf(err, "[Handle.Get] table %q", h.name)
	}
	return record, nil
}

// Create stores a new record and returns it as the server committed it.
func (h *Handle) Create(ctx context.Context, record Record) (Record, error) {
	var created Record
	err := h.exec.Do(ctx, request.Request{
		Method: http.MethodPost,
		Path:   h.recordsPath(),
		Body:   record,
	}, &created)
	if err != nil {
		return nil, errors.Wrapf(err, "[Handle.Create] table %q", h.name)
	}
	return created, nil
}

// Update applies a partial change to the record with the given id and
// returns the updated record.
func (h *Handle) Update(ctx context.Context, id string, changes Record) (Record, error) {
	var updated Record
	err := h.exec.Do(ctx, request.Request{
		Method: http.MethodPatch,
		Path:   h.recordPath(id),
		Body:   changes,
	}, &updated)
	if err != nil {
		return nil, errors.Wrapf(err, "[Handle.Update] table %q", h.name)
	}
	return updated, nil
}

// Delete removes the record with the given id.
func (h *Handle) Delete(ctx context.Context, id string) error {
	err := h.exec.Do(ctx, request.Request{
		Method: http.MethodDelete,
		Path:   h.recordPath(id),
	}, nil)
	if err != nil {
		return errors.Wrapf(err, "[Handle.Delete] table %q", h.name)
	}
	return nil
}

func (h *Handle) recordsPath() string {
	return "/tables/" + url.PathEscape(h.name) + "/records"
}

func (h *Handle) recordPath(id string) string {
	return h.recordsPath() + "/" + url.PathEscape(id)
}
