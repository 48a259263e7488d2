package docstore

import (
	"context"
	"errors"
)

// ErrVersionConflict is returned by Backend.Apply when a write's expected
// version does not match what is stored.
var ErrVersionConflict = errors.New("document version conflict")

const (
	// VersionAny writes regardless of what is stored.
	VersionAny = ""
	// VersionAbsent writes only if nothing is stored under the key.
	VersionAbsent = "*"
)

// Object is one stored document: the JSON tree under a collection/key pair.
type Object struct {
	Collection string
	Key        string
	Value      []byte
	Version    string
}

// Write is a conditional put or delete. A nil Value deletes the object.
type Write struct {
	Collection string
	Key        string
	Value      []byte
	Version    string
}

// Backend persists versioned JSON objects. Apply must commit all writes or
// none of them.
type Backend interface {
	// Read returns ports.ErrNotFound when the object does not exist.
	Read(ctx context.Context, collection, key string) (*Object, error)

	// List returns objects in key order, starting after cursor.
	List(ctx context.Context, collection, cursor string, limit int) ([]*Object, string, error)

	Apply(ctx context.Context, writes []Write) error
}
