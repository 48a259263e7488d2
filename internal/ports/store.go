package ports

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by DocumentStore.Get when nothing is stored at a path.
var ErrNotFound = errors.New("document not found")

// TransactFunc computes the next value at a path from its current encoding.
// current is nil when the path is empty. Returning a nil value deletes the
// path; returning an error aborts the transaction and the store hands that
// error back to the caller unchanged.
type TransactFunc func(current json.RawMessage) (any, error)

// DocumentStore is a hierarchical JSON tree addressed by slash separated
// paths such as "rooms/{id}/state/phase". Empty maps are never stored.
type DocumentStore interface {
	// Get decodes the value at path into dst. Returns ErrNotFound when absent.
	Get(ctx context.Context, path string, dst any) error

	// Set replaces the value at path. A nil value deletes it.
	Set(ctx context.Context, path string, value any) error

	// Delete removes the value at path. Deleting an absent path is not an error.
	Delete(ctx context.Context, path string) error

	// Update applies every path to value pair atomically. Nil values delete.
	// No path may be an ancestor of another.
	Update(ctx context.Context, values map[string]any) error

	// Transact runs fn against the latest value at path and commits its
	// result only if nothing changed in between, retrying otherwise.
	// It returns the committed encoding, or nil when the path was deleted.
	Transact(ctx context.Context, path string, fn TransactFunc) (json.RawMessage, error)
}
