// Package store persists enrolled speaker models.
//
// The package includes a BadgerDB-backed implementation for production use and
// an in-memory implementation for testing.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrNotFound is returned when a speaker is not in the store.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidID is returned for empty speaker identifiers.
	ErrInvalidID = errors.New("store: invalid speaker id")
)

// Record is an enrolled speaker: the JFA speaker factors estimated at enrolment.
type Record struct {
	ID       string    `msgpack:"id"`
	Y        []float64 `msgpack:"y"`
	Z        []float64 `msgpack:"z"`
	Sessions int       `msgpack:"sessions"`
	Enrolled time.Time `msgpack:"enrolled"`
}

// Store is a speaker model store.
type Store interface {
	// Get returns the record of a speaker, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Put creates or replaces a record.
	Put(ctx context.Context, r *Record) error

	// Delete removes a speaker. Deleting an unknown speaker is not an error.
	Delete(ctx context.Context, id string) error

	// List returns all speaker ids in ascending order.
	List(ctx context.Context) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}

const keyPrefix = "speaker:"

func encodeKey(id string) []byte { return []byte(keyPrefix + id) }

func decodeKey(k []byte) string { return string(k[len(keyPrefix):]) }

func checkID(id string) error {
	if id == "" {
		return ErrInvalidID
	}
	return nil
}

func marshal(r *Record) ([]byte, error) {
	if r == nil {
		return nil, errors.New("store: nil record")
	}
	if err := checkID(r.ID); err != nil {
		return nil, err
	}
	b, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("store: encode %q: %w", r.ID, err)
	}
	return b, nil
}

func unmarshal(id string, b []byte) (*Record, error) {
	var r Record
	if err := msgpack.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("store: decode %q: %w", id, err)
	}
	return &r, nil
}
